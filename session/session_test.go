package session

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3run4/stampcard/admin"
	"github.com/3run4/stampcard/config"
	"github.com/3run4/stampcard/gateway"
	"github.com/3run4/stampcard/member"
	"github.com/3run4/stampcard/models"
)

type cardGateway struct {
	cards map[string]models.Member
	down  bool
}

func (g *cardGateway) FetchCard(_ context.Context, email string) (models.Member, error) {
	if g.down {
		return models.Member{}, &gateway.TransportError{Op: "fetch_card", Err: context.DeadlineExceeded}
	}
	m, ok := g.cards[email]
	if !ok {
		return models.Member{}, gateway.ErrNotFound
	}
	return m, nil
}

func (g *cardGateway) UpsertMember(context.Context, gateway.UpsertRequest) (models.Member, error) {
	return models.Member{}, nil
}

func (g *cardGateway) AddStamp(context.Context, string) (gateway.StampResult, error) {
	return gateway.StampResult{}, nil
}

func newCardGateway() *cardGateway {
	return &cardGateway{cards: map[string]models.Member{
		"ana@club.org": {Email: "ana@club.org", DisplayName: "Ana", StampCount: 6},
	}}
}

func snapshot() member.Snapshot {
	return member.Snapshot{Email: "ana@club.org", DisplayName: "Ana", StampCount: 4, PrizesClaimed: models.PrizeClaims{"5"}, SavedAt: time.Now()}
}

func TestMemoryStoreTTL(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(time.Minute)
	now := time.Date(2024, 6, 13, 18, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	require.NoError(t, s.Save(ctx, "sid", snapshot()))
	got, ok, err := s.Load(ctx, "sid")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 4, got.StampCount)

	now = now.Add(2 * time.Minute)
	_, ok, err = s.Load(ctx, "sid")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Save(ctx, "a", snapshot()))
	require.NoError(t, s.Save(ctx, "b", snapshot()))
	now = now.Add(2 * time.Minute)
	n, err := s.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, _, err = s.Load(ctx, "")
	assert.Error(t, err)
}

func TestRegistryPersistAndRestore(t *testing.T) {
	ctx := context.Background()
	gw := newCardGateway()
	store := NewMemoryStore(time.Hour)
	reg := NewRegistry(store, time.Hour, nil)
	fresh := func() *member.Session { return member.NewSession(gw) }

	s := fresh()
	_, err := s.Login(ctx, "ana@club.org")
	require.NoError(t, err)
	id := reg.AddMember(s)
	reg.Persist(ctx, id)

	_, ok, err := store.Load(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)

	// simulate a restart: new registry, same store
	reg2 := NewRegistry(store, time.Hour, nil)
	restored, err := reg2.RestoreMember(ctx, id, fresh)
	require.NoError(t, err)
	v := restored.View()
	assert.Equal(t, member.ReturningMember, v.State)
	assert.Equal(t, 6, v.Card.StampCount)

	again, err := reg2.RestoreMember(ctx, id, fresh)
	require.NoError(t, err)
	assert.Same(t, restored, again)
}

func TestRegistryRestoreDropsDeletedMember(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Hour)
	require.NoError(t, store.Save(ctx, "sid", snapshot()))

	gw := &cardGateway{cards: map[string]models.Member{}}
	reg := NewRegistry(store, time.Hour, nil)
	_, err := reg.RestoreMember(ctx, "sid", func() *member.Session { return member.NewSession(gw) })
	assert.ErrorIs(t, err, ErrUnknownSession)

	_, ok, _ := store.Load(ctx, "sid")
	assert.False(t, ok)
}

func TestRegistryRestoreKeepsStaleCardWhenGatewayDown(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Hour)
	require.NoError(t, store.Save(ctx, "sid", snapshot()))

	gw := &cardGateway{down: true}
	reg := NewRegistry(store, time.Hour, nil)
	s, err := reg.RestoreMember(ctx, "sid", func() *member.Session { return member.NewSession(gw) })
	require.NoError(t, err)
	v := s.View()
	assert.True(t, v.Stale)
	assert.Equal(t, 4, v.Card.StampCount)
}

func TestRegistryUnknownID(t *testing.T) {
	reg := NewRegistry(NewMemoryStore(time.Hour), time.Hour, nil)
	_, err := reg.RestoreMember(context.Background(), "nope", func() *member.Session { return member.NewSession(newCardGateway()) })
	assert.ErrorIs(t, err, ErrUnknownSession)
}

func TestRegistryRemove(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Hour)
	reg := NewRegistry(store, time.Hour, nil)

	s := member.NewSession(newCardGateway())
	_, err := s.Login(ctx, "ana@club.org")
	require.NoError(t, err)
	id := reg.AddMember(s)
	reg.Persist(ctx, id)

	reg.Remove(ctx, id)
	_, ok := reg.Member(id)
	assert.False(t, ok)
	assert.Equal(t, member.LoggedOut, s.State())
	_, ok, _ = store.Load(ctx, id)
	assert.False(t, ok)

	cid := reg.AddConsole(admin.NewConsole("boss@club.org", nil))
	_, ok = reg.Console(cid)
	assert.True(t, ok)
	reg.Remove(ctx, cid)
	_, ok = reg.Console(cid)
	assert.False(t, ok)
}

func TestRegistrySweep(t *testing.T) {
	reg := NewRegistry(NewMemoryStore(time.Hour), time.Minute, nil)
	reg.AddMember(member.NewSession(newCardGateway()))
	reg.AddConsole(admin.NewConsole("boss@club.org", nil))

	assert.Equal(t, 0, reg.Sweep())
	reg.now = func() time.Time { return time.Now().Add(time.Hour) }
	assert.Equal(t, 2, reg.Sweep())
	m, c := reg.Len()
	assert.Zero(t, m)
	assert.Zero(t, c)
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("STAMPCARD_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("STAMPCARD_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	rc := redis.NewClient(&redis.Options{Addr: addr})
	defer rc.Close()
	s := NewRedisStore(rc, time.Minute)

	id := "test-" + time.Now().Format("150405.000000")
	require.NoError(t, s.Save(ctx, id, snapshot()))
	got, ok, err := s.Load(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, models.PrizeClaims{"5"}, got.PrizesClaimed)

	require.NoError(t, s.Clear(ctx, id))
	_, ok, err = s.Load(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLStore(t *testing.T) {
	dsn := os.Getenv("STAMPCARD_TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("STAMPCARD_TEST_MYSQL_DSN not set")
	}
	ctx := context.Background()
	db, err := config.OpenDatabase(config.AppConfig{DatabaseURI: dsn, LogLevel: "silent"}, &models.SessionSnapshot{})
	require.NoError(t, err)
	s := NewSQLStore(db, time.Minute)

	id := "test-" + time.Now().Format("150405.000000")
	require.NoError(t, s.Save(ctx, id, snapshot()))
	require.NoError(t, s.Save(ctx, id, snapshot()))
	got, ok, err := s.Load(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Ana", got.DisplayName)
	assert.Equal(t, models.PrizeClaims{"5"}, got.PrizesClaimed)

	require.NoError(t, s.Clear(ctx, id))
	_, ok, err = s.Load(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)
}
