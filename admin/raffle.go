package admin

import (
	"math/rand/v2"

	"github.com/3run4/stampcard/models"
)

// Picker draws a uniform index in [0, n). *rand.Rand satisfies it.
type Picker interface {
	IntN(n int) int
}

type globalPicker struct{}

func (globalPicker) IntN(n int) int { return rand.IntN(n) }

// PickWinner draws one member uniformly from pool. ok is false when the pool is empty.
// A nil rng uses the shared generator.
func PickWinner(pool []models.Member, rng Picker) (models.Member, bool) {
	if len(pool) == 0 {
		return models.Member{}, false
	}
	if rng == nil {
		rng = globalPicker{}
	}
	return pool[rng.IntN(len(pool))], true
}
