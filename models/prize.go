package models

import "sort"

// Prize maps a stamp threshold to a reward label.
type Prize struct {
	Stamps int    `json:"stamps"`
	Prize  string `json:"prize"`
}

// PrizeTable is the ordered set of prizes, unique by threshold.
type PrizeTable []Prize

// DefaultPrizeTable is shown when the gateway has no table configured yet.
func DefaultPrizeTable() PrizeTable {
	return PrizeTable{
		{Stamps: 5, Prize: "Hat"},
		{Stamps: 10, Prize: "Case of Beer"},
		{Stamps: 15, Prize: "Model Car"},
	}
}

// Sorted returns a copy ordered ascending by threshold. Equal thresholds keep their order.
func (t PrizeTable) Sorted() PrizeTable {
	out := make(PrizeTable, len(t))
	copy(out, t)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Stamps < out[j].Stamps })
	return out
}

// MaxThreshold returns the largest threshold in the table, or 0 when empty.
func (t PrizeTable) MaxThreshold() int {
	top := 0
	for _, p := range t {
		if p.Stamps > top {
			top = p.Stamps
		}
	}
	return top
}
