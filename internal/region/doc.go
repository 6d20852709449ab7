// Package region implements topology-optimisation design regions bound to an
// engine session.
//
// A Region registers an index monitor, a field monitor, a mesh override and an
// import placeholder when it is built. Each Update maps a density matrix in
// [0,1] onto a permittivity distribution and replaces the imported geometry
// with it. Field and permittivity reads go back through the session.
//
// Two variants exist. Extruded2D writes the lateral design onto two z-planes
// (z_start and z_end) and uses 2-D monitors. Layered3D fills every z sample of
// the grid and uses 3-D monitors; UpdateVolume accepts a per-layer design.
//
// A Region is not safe for concurrent use.
package region
