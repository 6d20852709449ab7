package density

import "math"

// betaFloor is the sharpness below which projection is the identity;
// the tanh form is 0/0 at beta = 0.
const betaFloor = 1e-9

// Project applies the smoothed Heaviside projection
//
//	(tanh(βη) + tanh(β(ρ-η))) / (tanh(βη) + tanh(β(1-η)))
//
// which maps 0→0 and 1→1 and is monotone in ρ.
func Project(rho, eta, beta float64) float64 {
	if beta < betaFloor {
		return rho
	}
	num := math.Tanh(beta*eta) + math.Tanh(beta*(rho-eta))
	den := math.Tanh(beta*eta) + math.Tanh(beta*(1-eta))
	return clamp01(num / den)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
