package admin

import (
	"fmt"
	"strings"
	"sync"

	"github.com/3run4/stampcard/models"
)

// PrizeEditor holds the prize table being edited. Entries stay in the order they were
// added until the table is saved, and RemoveEntry indexes into that displayed order.
type PrizeEditor struct {
	mu      sync.Mutex
	entries models.PrizeTable
	dirty   bool
}

// NewPrizeEditor starts from the default table.
func NewPrizeEditor() *PrizeEditor {
	return &PrizeEditor{entries: models.DefaultPrizeTable()}
}

// Load replaces the working table. An empty table falls back to the default one.
func (e *PrizeEditor) Load(table models.PrizeTable) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(table) == 0 {
		table = models.DefaultPrizeTable()
	}
	e.entries = append(models.PrizeTable{}, table...)
	e.dirty = false
}

// Entries returns the table in displayed order.
func (e *PrizeEditor) Entries() models.PrizeTable {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append(models.PrizeTable{}, e.entries...)
}

// Dirty reports unsaved changes.
func (e *PrizeEditor) Dirty() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dirty
}

// AddEntry appends a prize. Thresholds must be positive and unique, labels non-empty.
func (e *PrizeEditor) AddEntry(stamps int, prize string) error {
	prize = strings.TrimSpace(prize)
	if stamps <= 0 {
		return models.Invalid("stamps", "Stamps must be a positive whole number.")
	}
	if prize == "" {
		return models.Invalid("prize", "Prize name is required.")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, p := range e.entries {
		if p.Stamps == stamps {
			return models.Invalid("stamps", fmt.Sprintf("There is already a prize at %d stamps.", stamps))
		}
	}
	e.entries = append(e.entries, models.Prize{Stamps: stamps, Prize: prize})
	e.dirty = true
	return nil
}

// RemoveEntry drops the entry at index in displayed order.
func (e *PrizeEditor) RemoveEntry(index int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if index < 0 || index >= len(e.entries) {
		return models.Invalid("index", "No prize at that position.")
	}
	e.entries = append(e.entries[:index:index], e.entries[index+1:]...)
	e.dirty = true
	return nil
}
