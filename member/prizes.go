package member

import "github.com/3run4/stampcard/models"

// ReachedPrizes returns, ascending by threshold, the prizes whose threshold is at most n.
func ReachedPrizes(table models.PrizeTable, n int) models.PrizeTable {
	out := models.PrizeTable{}
	for _, p := range table.Sorted() {
		if p.Stamps <= n {
			out = append(out, p)
		}
	}
	return out
}

// NextPrize is the lowest prize not yet reached and how many stamps are still missing.
func NextPrize(table models.PrizeTable, n int) (models.Prize, int, bool) {
	for _, p := range table.Sorted() {
		if p.Stamps > n {
			return p, p.Stamps - n, true
		}
	}
	return models.Prize{}, 0, false
}
