// Package skill implements a pairwise Bayesian skill-rating model in the
// TrueSkill family. A player's skill is a Gaussian belief (mu, sigma); a
// single win/loss observation moves both players' beliefs toward the outcome
// and shrinks their uncertainty. The update is deterministic and treats the
// two players symmetrically.
package skill

import "math"

// Default prior for a player who has never played. These constants are fixed
// and part of this package's contract.
const (
	DefaultMu    = 25.0
	DefaultSigma = DefaultMu / 3.0
)

// Model parameters, derived from the default prior:
//
//	beta — variance of a single game performance around true skill
//	tau  — additive dynamics noise applied before every update, keeps
//	       ratings from freezing as sigma shrinks
const (
	beta = DefaultSigma / 2.0
	tau  = DefaultSigma / 100.0
)

// Rating is a Gaussian skill belief for one player.
type Rating struct {
	Mu    float64
	Sigma float64
}

// NewRating returns the default prior rating.
func NewRating() Rating {
	return Rating{Mu: DefaultMu, Sigma: DefaultSigma}
}

// Exposure is the conservative skill estimate used as a sort key: a
// high-confidence lower bound on the player's true skill.
func (r Rating) Exposure() float64 {
	return r.Mu - 3*r.Sigma
}

// Update returns the posterior ratings after winner beat loser exactly once.
// Draws are not modeled. Given identical inputs the outputs are identical.
func Update(winner, loser Rating) (Rating, Rating) {
	// Dynamics: inflate both variances before conditioning on the outcome.
	wVar := winner.Sigma*winner.Sigma + tau*tau
	lVar := loser.Sigma*loser.Sigma + tau*tau

	c2 := 2*beta*beta + wVar + lVar
	c := math.Sqrt(c2)
	t := (winner.Mu - loser.Mu) / c

	v := vWin(t)
	w := v * (v + t)

	winner.Mu += wVar / c * v
	loser.Mu -= lVar / c * v
	winner.Sigma = math.Sqrt(wVar * (1 - wVar/c2*w))
	loser.Sigma = math.Sqrt(lVar * (1 - lVar/c2*w))
	return winner, loser
}

// vWin is the additive truncation correction V(t) = pdf(t)/cdf(t) for a
// non-draw win. The asymptotic branch keeps the value finite when the
// observed outcome was a huge upset and cdf(t) underflows.
func vWin(t float64) float64 {
	denom := normCDF(t)
	if denom < 1e-12 {
		return -t
	}
	return normPDF(t) / denom
}

func normPDF(x float64) float64 {
	return math.Exp(-x*x/2) / math.Sqrt(2*math.Pi)
}

func normCDF(x float64) float64 {
	return 0.5 * math.Erfc(-x/math.Sqrt2)
}
