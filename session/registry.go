package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/3run4/stampcard/admin"
	"github.com/3run4/stampcard/member"
)

// ErrUnknownSession means the id does not name a live session and nothing could be restored.
var ErrUnknownSession = errors.New("unknown or expired session")

// Registry holds live member sessions and admin consoles keyed by session id.
type Registry struct {
	store  Store
	idle   time.Duration
	logger *zap.Logger
	now    func() time.Time

	mu       sync.Mutex
	members  map[string]*member.Session
	consoles map[string]*admin.Console
}

// NewRegistry builds a registry. Sessions idle for longer than idle are swept.
func NewRegistry(store Store, idle time.Duration, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	if idle <= 0 {
		idle = 24 * time.Hour
	}
	return &Registry{
		store:    store,
		idle:     idle,
		logger:   logger,
		now:      time.Now,
		members:  map[string]*member.Session{},
		consoles: map[string]*admin.Console{},
	}
}

// AddMember registers s and returns its new session id.
func (r *Registry) AddMember(s *member.Session) string {
	id := uuid.NewString()
	r.mu.Lock()
	r.members[id] = s
	r.mu.Unlock()
	return id
}

// Member returns the live member session for id.
func (r *Registry) Member(id string) (*member.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.members[id]
	return s, ok
}

// RestoreMember returns the live session for id, or rebuilds one from the store after a
// restart. The rebuilt session is revalidated against the gateway; if the member is gone
// the cached snapshot is cleared and ErrUnknownSession returned.
func (r *Registry) RestoreMember(ctx context.Context, id string, fresh func() *member.Session) (*member.Session, error) {
	if s, ok := r.Member(id); ok {
		return s, nil
	}
	snap, ok, err := r.store.Load(ctx, id)
	if err != nil {
		r.logger.Warn("session store load failed", zap.String("session_id", id), zap.Error(err))
		return nil, ErrUnknownSession
	}
	if !ok {
		return nil, ErrUnknownSession
	}

	s := fresh()
	if _, err := s.Resume(ctx, snap); err != nil && s.State() != member.ReturningMember {
		_ = r.store.Clear(ctx, id)
		return nil, ErrUnknownSession
	}

	r.mu.Lock()
	if existing, ok := r.members[id]; ok {
		r.mu.Unlock()
		return existing, nil
	}
	r.members[id] = s
	r.mu.Unlock()
	r.logger.Info("member session restored", zap.String("session_id", id), zap.String("email", snap.Email))
	return s, nil
}

// Persist mirrors the session into the store, or clears the cached copy when nobody is
// signed in. Store errors are logged, never returned: the cache is optional.
func (r *Registry) Persist(ctx context.Context, id string) {
	s, ok := r.Member(id)
	if !ok {
		return
	}
	snap, signedIn := s.Snapshot()
	var err error
	if signedIn {
		err = r.store.Save(ctx, id, snap)
	} else {
		err = r.store.Clear(ctx, id)
	}
	if err != nil {
		r.logger.Warn("session store write failed", zap.String("session_id", id), zap.Error(err))
	}
}

// AddConsole registers an admin console and returns its session id.
func (r *Registry) AddConsole(c *admin.Console) string {
	id := uuid.NewString()
	r.mu.Lock()
	r.consoles[id] = c
	r.mu.Unlock()
	return id
}

// Console returns the live admin console for id.
func (r *Registry) Console(id string) (*admin.Console, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.consoles[id]
	return c, ok
}

// Remove ends the session with id, whatever its kind, and drops any cached snapshot.
func (r *Registry) Remove(ctx context.Context, id string) {
	r.mu.Lock()
	s := r.members[id]
	delete(r.members, id)
	delete(r.consoles, id)
	r.mu.Unlock()
	if s != nil {
		s.Logout()
	}
	if err := r.store.Clear(ctx, id); err != nil {
		r.logger.Warn("session store clear failed", zap.String("session_id", id), zap.Error(err))
	}
}

// Len reports live member sessions and consoles.
func (r *Registry) Len() (members, consoles int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members), len(r.consoles)
}

// Sweep drops sessions idle for longer than the idle limit. Cached member snapshots are
// kept so a returning browser can still resume until the store expires them.
func (r *Registry) Sweep() int {
	cutoff := r.now().Add(-r.idle)
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, s := range r.members {
		if s.LastActive().Before(cutoff) {
			delete(r.members, id)
			n++
		}
	}
	for id, c := range r.consoles {
		if c.LastActive().Before(cutoff) {
			delete(r.consoles, id)
			n++
		}
	}
	return n
}

// purger is implemented by stores that can drop expired entries.
type purger interface {
	Purge(ctx context.Context) (int, error)
}

// StartSweeper runs Sweep every interval until ctx is done. The memory and SQL stores
// are purged of expired snapshots on the same tick; Redis expires keys itself.
func (r *Registry) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			if n := r.Sweep(); n > 0 {
				r.logger.Info("idle sessions swept", zap.Int("count", n))
			}
			if p, ok := r.store.(purger); ok {
				if _, err := p.Purge(ctx); err != nil {
					r.logger.Warn("session store purge failed", zap.Error(err))
				}
			}
		}
	}()
}
