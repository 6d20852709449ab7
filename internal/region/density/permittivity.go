package density

import (
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/toporegion/internal/region/material"
)

// ToPermittivity runs filter → projection → linear map on a lateral field.
// dx and dy are the grid pitches in micrometres.
func ToPermittivity(rho *mat.Dense, p Params, dx, dy float64, b material.Bounds) *mat.Dense {
	filtered := Filter2D(rho, p.Radius, dx, dy)
	nx, ny := filtered.Dims()
	eps := mat.NewDense(nx, ny, nil)
	eps.Apply(func(i, j int, v float64) float64 {
		return b.Clamp(b.Lerp(Project(v, p.Eta, p.Beta)))
	}, filtered)
	return eps
}

// VolumeToPermittivity runs the same pipeline with the 3D kernel.
func VolumeToPermittivity(rho *Volume, p Params, dx, dy, dz float64, b material.Bounds) *Volume {
	filtered := Filter3D(rho, p.Radius, dx, dy, dz)
	return filtered.Map(func(v float64) float64 {
		return b.Clamp(b.Lerp(Project(v, p.Eta, p.Beta)))
	})
}
