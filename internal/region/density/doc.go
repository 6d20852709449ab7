// Package density maps bounded design variables onto a permittivity field.
//
// The pipeline is the usual three-field topology optimisation scheme:
// a conic density filter of radius R, a tanh projection with threshold eta
// and sharpness beta, then a linear map onto the material permittivity range.
//
// Lateral fields are *mat.Dense with rows along x and columns along y.
// Volumes are flat, x-major (x slowest, z fastest), matching engine arrays.
package density
