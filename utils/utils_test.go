package utils

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Hour)

	token, err := issuer.GenerateToken("sess-1", RoleAdmin)
	require.NoError(t, err)

	claims, err := issuer.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "sess-1", claims.SessionID)
	assert.Equal(t, RoleAdmin, claims.Role)
}

func TestTokenRejectsOtherSecret(t *testing.T) {
	token, err := NewTokenIssuer("one", time.Hour).GenerateToken("sess-1", RoleMember)
	require.NoError(t, err)

	_, err = NewTokenIssuer("two", time.Hour).ParseToken(token)
	assert.Error(t, err)
}

func TestTokenRejectsExpired(t *testing.T) {
	issuer := NewTokenIssuer("s", -time.Minute)
	token, err := issuer.GenerateToken("sess-1", RoleMember)
	require.NoError(t, err)

	_, err = issuer.ParseToken(token)
	assert.Error(t, err)
}

func TestSanitizeText(t *testing.T) {
	assert.Equal(t, "Run Thursday", SanitizeText("<b>Run</b> Thursday"))
	assert.Equal(t, "", SanitizeText("<script>alert(1)</script>"))
	assert.Equal(t, "plain", SanitizeText("  plain  "))
	assert.Equal(t, "O'Brien & Co", SanitizeText("O'Brien & Co"))
	assert.Equal(t, "Beer & Pretzels", SanitizeText(SanitizeText("<i>Beer</i> & Pretzels")))
}

func TestMemoryCache(t *testing.T) {
	c := NewCache(nil)
	now := time.Date(2024, 6, 13, 18, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	c.SetJSON(ctx, "public:prizes", []int{5, 10}, time.Minute)
	c.SetJSON(ctx, "public:announcement", "hills", time.Minute)
	c.SetJSON(ctx, "other", "keep", time.Minute)

	var got []int
	require.True(t, c.GetJSON(ctx, "public:prizes", &got))
	assert.Equal(t, []int{5, 10}, got)

	c.InvalidateByPrefix(ctx, "public:")
	assert.False(t, c.GetJSON(ctx, "public:prizes", &got))
	var s string
	assert.False(t, c.GetJSON(ctx, "public:announcement", &s))
	assert.True(t, c.GetJSON(ctx, "other", &s))

	now = now.Add(2 * time.Minute)
	assert.False(t, c.GetJSON(ctx, "other", &s))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, "debug", parseLevel("debug").String())
	assert.Equal(t, "warn", parseLevel("warn").String())
	assert.Equal(t, "info", parseLevel("").String())
	assert.Equal(t, "info", parseLevel("chatty").String())
}

func TestDirOf(t *testing.T) {
	assert.Equal(t, "logs", dirOf("logs/app.log"))
	assert.Equal(t, "", dirOf("app.log"))
	assert.Equal(t, "/var/log", dirOf("/var/log/app.log"))
}
