package bot

import (
	"math/rand"

	"github.com/freeeve/chiron/pkg/chiron"
)

// Bot randomness comes from the simulation's own source so that a seeded
// game replays identically. A nil source falls back to the global
// math/rand default.

func botIntn(rng chiron.Rand, n int) int {
	if rng != nil {
		return rng.Intn(n)
	}
	return rand.Intn(n)
}

// botShuffle is a Fisher-Yates shuffle drawing from rng.
func botShuffle(rng chiron.Rand, n int, swap func(i, j int)) {
	for i := n - 1; i > 0; i-- {
		swap(i, botIntn(rng, i+1))
	}
}
