package member

import (
	"time"

	"github.com/3run4/stampcard/models"
)

// Snapshot is the last-known card of a signed-in member, cached so a reload can show
// something before the gateway answers. It is never trusted on its own.
type Snapshot struct {
	Email         string             `json:"email"`
	DisplayName   string             `json:"display_name"`
	StampCount    int                `json:"stamp_count"`
	PrizesClaimed models.PrizeClaims `json:"prizes_claimed"`
	SavedAt       time.Time          `json:"saved_at"`
}

func (s Snapshot) member() models.Member {
	claims := s.PrizesClaimed
	if claims == nil {
		claims = models.PrizeClaims{}
	}
	return models.Member{
		Email:         models.NormalizeEmail(s.Email),
		DisplayName:   s.DisplayName,
		StampCount:    s.StampCount,
		PrizesClaimed: claims,
	}
}

// Snapshot captures the session for the cache. ok is false unless a member is signed in.
func (s *Session) Snapshot() (snap Snapshot, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != ReturningMember {
		return Snapshot{}, false
	}
	return Snapshot{
		Email:         s.email,
		DisplayName:   s.card.DisplayName,
		StampCount:    s.card.StampCount,
		PrizesClaimed: append(models.PrizeClaims{}, s.card.PrizesClaimed...),
		SavedAt:       time.Now(),
	}, true
}
