// Package votes casts simulated votes on imported posts. Voter selection is
// a deterministic function of the post identifier, so replaying the
// simulator against the same post and pool always picks the same voters.
package votes

import (
	"context"
	"fmt"
	"math"

	"github.com/lifenautjoe/userfeed-canny-importer/internal/identity"
)

// Caster issues a single vote on the board service.
type Caster interface {
	CreateVote(ctx context.Context, postID, voterID string) error
}

// Simulator selects voters and casts votes.
type Simulator struct {
	caster Caster
}

// NewSimulator returns a simulator backed by the given caster.
func NewSimulator(caster Caster) *Simulator {
	return &Simulator{caster: caster}
}

// SelectVoters returns min(requested, len(pool)) distinct voters for the
// post, chosen by a seeded Fisher-Yates shuffle over the pool order. The
// shuffle is driven by a sine-based pseudo-random function of the post id
// rather than a platform RNG; the exact formula is a compatibility contract
// with previously simulated votes and must not be substituted.
func SelectVoters(postID string, pool []identity.Voter, requested int) []identity.Voter {
	shuffled := make([]identity.Voter, len(pool))
	copy(shuffled, pool)

	seed := seedFor(postID)
	for m := len(shuffled); m >= 1; m-- {
		i := int(math.Floor(pseudoRand(seed+m) * float64(m)))
		shuffled[m-1], shuffled[i] = shuffled[i], shuffled[m-1]
	}

	if requested > len(shuffled) {
		requested = len(shuffled)
	}
	return shuffled[:requested]
}

// seedFor sums the byte values of the post identifier.
func seedFor(postID string) int {
	seed := 0
	for i := 0; i < len(postID); i++ {
		seed += int(postID[i])
	}
	return seed
}

// pseudoRand maps an integer to [0, 1) via frac(sin(x) * 10000).
func pseudoRand(x int) float64 {
	v := math.Sin(float64(x)) * 10000
	return v - math.Floor(v)
}

// Simulate selects voters for the post and casts one vote per voter, in
// selection order. It stops at the first failed vote call so the caller's
// per-item failure handling sees the error.
func (s *Simulator) Simulate(ctx context.Context, postID string, pool []identity.Voter, requested int) (int, error) {
	voters := SelectVoters(postID, pool, requested)
	for cast, voter := range voters {
		if err := s.caster.CreateVote(ctx, postID, voter.ID); err != nil {
			return cast, fmt.Errorf("vote %d of %d on %s: %w", cast+1, len(voters), postID, err)
		}
	}
	return len(voters), nil
}
