// internal/rating/glicko2.go
package rating

import (
	"math"
)

const (
	// GlickoScale is the multiplier used for converting between Elo and Glicko2's mu.
	GlickoScale = 173.7178
	// DefaultMu is the baseline rating (1500) in Glicko2 terms.
	DefaultMu = 1500.0
	// DefaultPhi is the baseline rating deviation (RD) in Glicko2 terms (350).
	DefaultPhi = 350.0
	// DefaultSigma is the starting volatility.
	DefaultSigma = 0.06
	// Tau is the constraint on volatility changes.
	Tau = 0.5
	// Epsilon is the tolerance used in iteration stopping conditions.
	Epsilon = 0.000001
)

// Rating is a player's rating on the 1500 scale.
type Rating struct {
	Elo   float64 `json:"elo"`
	RD    float64 `json:"rd"`
	Sigma float64 `json:"sigma"`
}

// Default is the rating of a player with no history.
func Default() Rating {
	return Rating{Elo: DefaultMu, RD: DefaultPhi, Sigma: DefaultSigma}
}

// glicko2 holds a rating in Glicko2 space.
type glicko2 struct {
	mu, phi, sigma float64
}

func (r Rating) scaled() glicko2 {
	if r.RD <= 0 {
		r.RD = DefaultPhi
	}
	if r.Sigma <= 0 {
		r.Sigma = DefaultSigma
	}
	return glicko2{mu: (r.Elo - DefaultMu) / GlickoScale, phi: r.RD / GlickoScale, sigma: r.Sigma}
}

func (g2 glicko2) unscaled() Rating {
	return Rating{Elo: g2.mu*GlickoScale + DefaultMu, RD: g2.phi * GlickoScale, Sigma: g2.sigma}
}

// update performs a single-match Glicko2 update against opp, given the score in [0..1].
func update(r, opp glicko2, score float64) glicko2 {
	gVal := g(opp.phi)
	EVal := E(r.mu, opp.mu, opp.phi)

	v := 1.0 / (gVal * gVal * EVal * (1 - EVal))
	delta := v * gVal * (score - EVal)

	a := math.Log(r.sigma * r.sigma)
	A := a
	var B float64
	if delta*delta > r.phi*r.phi+v {
		B = math.Log(delta*delta - r.phi*r.phi - v)
	} else {
		k := 1.0
		for f(a-k*Tau, r.phi, v, delta, a) < 0 {
			k++
		}
		B = a - k*Tau
	}

	fA, fB := f(A, r.phi, v, delta, a), f(B, r.phi, v, delta, a)
	for i := 0; i < 100 && math.Abs(B-A) > Epsilon; i++ {
		C := A + (A-B)*fA/(fB-fA)
		fC := f(C, r.phi, v, delta, a)
		if fC*fB <= 0 {
			A, fA = B, fB
		} else {
			fA /= 2
		}
		B, fB = C, fC
	}

	newSigma := math.Exp(A / 2)
	phiStar := math.Sqrt(r.phi*r.phi + newSigma*newSigma)
	phiPrime := 1.0 / math.Sqrt(1.0/(phiStar*phiStar)+1.0/v)
	muPrime := r.mu + phiPrime*phiPrime*gVal*(score-EVal)

	return glicko2{mu: muPrime, phi: phiPrime, sigma: newSigma}
}

// g is the G(phi) factor from Glicko2, applying the standard formula 1/sqrt(1+3phi^2/pi^2).
func g(phi float64) float64 {
	return 1.0 / math.Sqrt(1.0+3.0*phi*phi/math.Pi/math.Pi)
}

// E is the expected score formula in Glicko2 space, E(mu,mu2,phi2)=1/(1+exp[-g(phi2)*(mu-mu2)])
func E(mu, mu2, phi2 float64) float64 {
	return 1.0 / (1.0 + math.Exp(-g(phi2)*(mu-mu2)))
}

// f is the Glicko2 volatility root-finding function used in the iterative volatility update.
func f(x, phi, v, delta, a float64) float64 {
	ex := math.Exp(x)
	num := ex * (delta*delta - phi*phi - v - ex)
	den := 2.0 * (phi*phi + v + ex) * (phi*phi + v + ex)
	return (num / den) - ((x - a) / (Tau * Tau))
}
