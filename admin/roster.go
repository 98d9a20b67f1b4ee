package admin

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/3run4/stampcard/models"
)

// RosterSource lists every member known to the gateway.
type RosterSource interface {
	ListMembers(ctx context.Context) ([]models.Member, error)
}

// Roster is the administrator's in-memory copy of all members. Each Refresh replaces
// the whole snapshot; a failed refresh keeps the previous one.
type Roster struct {
	src RosterSource

	mu          sync.RWMutex
	members     []models.Member
	refreshedAt time.Time
}

func NewRoster(src RosterSource) *Roster {
	return &Roster{src: src}
}

// Refresh reloads the roster from the gateway.
func (r *Roster) Refresh(ctx context.Context) error {
	members, err := r.src.ListMembers(ctx)
	if err != nil {
		return err
	}
	if members == nil {
		members = []models.Member{}
	}
	r.mu.Lock()
	r.members = members
	r.refreshedAt = time.Now()
	r.mu.Unlock()
	return nil
}

// Members returns a copy of the current snapshot in gateway order.
func (r *Roster) Members() []models.Member {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Member, len(r.members))
	copy(out, r.members)
	return out
}

// Find looks a member up by email.
func (r *Roster) Find(email string) (models.Member, bool) {
	email = models.NormalizeEmail(email)
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, m := range r.members {
		if strings.EqualFold(m.Email, email) {
			return m, true
		}
	}
	return models.Member{}, false
}

// RefreshedAt is the time of the last successful refresh, zero if none.
func (r *Roster) RefreshedAt() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.refreshedAt
}
