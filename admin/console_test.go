package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3run4/stampcard/gateway"
	"github.com/3run4/stampcard/models"
)

func newConsole(t *testing.T, gw *fakeGateway) *Console {
	t.Helper()
	c := NewConsole("boss@club.org", gw, WithClock(func() time.Time { return day("2024-06-15") }))
	require.NoError(t, c.Refresh(context.Background()))
	return c
}

func TestRefreshReplacesSnapshot(t *testing.T) {
	gw := newFakeGateway(fixtureRoster()...)
	c := newConsole(t, gw)
	assert.Len(t, c.Roster().Members(), 4)

	gw.members = gw.members[:1]
	require.NoError(t, c.Refresh(context.Background()))
	assert.Len(t, c.Roster().Members(), 1)

	gw.listErr = &gateway.TransportError{Op: "list_members", Err: errors.New("down")}
	assert.Error(t, c.Refresh(context.Background()))
	assert.Len(t, c.Roster().Members(), 1)
}

func TestRaffleDrawsFromWeekPool(t *testing.T) {
	gw := newFakeGateway(fixtureRoster()...)
	c := newConsole(t, gw)

	for i := 0; i < 50; i++ {
		w, pool, ok, err := c.Raffle(Query{})
		require.NoError(t, err)
		require.True(t, ok)
		assert.Len(t, pool, 2)
		assert.Contains(t, []string{"cara@club.org", "ana@club.org"}, w.Email)
	}

	_, pool, ok, err := c.Raffle(Query{Week: WeekCustom, Date: "2024-05-30"})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, pool)
}

func TestCommitEditRejectsNonNumeric(t *testing.T) {
	gw := newFakeGateway(fixtureRoster()...)
	c := newConsole(t, gw)

	for _, raw := range []string{"ten", "", "4.5", "-2"} {
		require.NoError(t, c.StageEdit("ana@club.org", raw))
		_, err := c.CommitEdit(context.Background(), "ana@club.org")
		assert.True(t, models.IsValidation(err), raw)
		assert.Equal(t, raw, c.Edits()["ana@club.org"])
	}
	assert.Equal(t, 0, gw.count("upsert"))
}

func TestCommitEditSavesAndRefreshes(t *testing.T) {
	gw := newFakeGateway(fixtureRoster()...)
	c := newConsole(t, gw)
	lists := gw.count("list")

	require.NoError(t, c.StageEdit("ANA@club.org", " 20 "))
	m, err := c.CommitEdit(context.Background(), "ana@club.org")
	require.NoError(t, err)
	assert.Equal(t, 20, m.StampCount)

	require.Len(t, gw.upserts, 1)
	assert.Equal(t, 20, *gw.upserts[0].InitialStamps)
	assert.Nil(t, gw.upserts[0].DisplayName)
	assert.Equal(t, lists+1, gw.count("list"))
	assert.Empty(t, c.Edits())

	got, ok := c.Roster().Find("ana@club.org")
	require.True(t, ok)
	assert.Equal(t, 20, got.StampCount)
}

func TestCommitEditFailureClearsBuffer(t *testing.T) {
	gw := newFakeGateway(fixtureRoster()...)
	gw.upsertErr = &gateway.BusinessError{Op: "upsert_member", Message: "Stamp count locked"}
	c := newConsole(t, gw)

	require.NoError(t, c.StageEdit("ana@club.org", "3"))
	_, err := c.CommitEdit(context.Background(), "ana@club.org")
	msg, ok := gateway.BusinessMessage(err)
	require.True(t, ok)
	assert.Equal(t, "Stamp count locked", msg)
	assert.Empty(t, c.Edits())
}

func TestCommitEditWithoutStagedValue(t *testing.T) {
	c := newConsole(t, newFakeGateway(fixtureRoster()...))
	_, err := c.CommitEdit(context.Background(), "ana@club.org")
	assert.ErrorIs(t, err, ErrNoPendingEdit)

	require.NoError(t, c.StageEdit("ana@club.org", "1"))
	c.CancelEdit("ana@club.org")
	_, err = c.CommitEdit(context.Background(), "ana@club.org")
	assert.ErrorIs(t, err, ErrNoPendingEdit)
}

func TestDeleteNeedsConfirmation(t *testing.T) {
	gw := newFakeGateway(fixtureRoster()...)
	c := newConsole(t, gw)

	assert.ErrorIs(t, c.ConfirmDelete(context.Background(), "ana@club.org"), ErrDeleteNotConfirmed)
	assert.ErrorIs(t, c.RequestDelete("ghost@club.org"), ErrUnknownMember)

	require.NoError(t, c.RequestDelete("ana@club.org"))
	assert.ErrorIs(t, c.ConfirmDelete(context.Background(), "cara@club.org"), ErrDeleteNotConfirmed)
	c.CancelDelete()
	assert.ErrorIs(t, c.ConfirmDelete(context.Background(), "ana@club.org"), ErrDeleteNotConfirmed)
	assert.Equal(t, 0, gw.count("delete"))

	require.NoError(t, c.RequestDelete("ana@club.org"))
	require.NoError(t, c.ConfirmDelete(context.Background(), "ana@club.org"))
	assert.Empty(t, c.PendingDelete())
	_, found := c.Roster().Find("ana@club.org")
	assert.False(t, found)
}

func TestDeleteFailureKeepsRequest(t *testing.T) {
	gw := newFakeGateway(fixtureRoster()...)
	gw.deleteErr = &gateway.TransportError{Op: "delete_member", Err: errors.New("timeout")}
	c := newConsole(t, gw)

	require.NoError(t, c.RequestDelete("ana@club.org"))
	assert.Error(t, c.ConfirmDelete(context.Background(), "ana@club.org"))
	assert.Equal(t, "ana@club.org", c.PendingDelete())
}

func TestPrizeEditor(t *testing.T) {
	e := NewPrizeEditor()
	assert.Equal(t, models.DefaultPrizeTable(), e.Entries())

	assert.True(t, models.IsValidation(e.AddEntry(0, "Socks")))
	assert.True(t, models.IsValidation(e.AddEntry(3, "  ")))
	assert.True(t, models.IsValidation(e.AddEntry(5, "Another hat")))
	require.NoError(t, e.AddEntry(3, "Socks"))
	assert.True(t, e.Dirty())

	entries := e.Entries()
	assert.Equal(t, models.Prize{Stamps: 3, Prize: "Socks"}, entries[3])

	require.NoError(t, e.RemoveEntry(1))
	assert.Equal(t, []int{5, 15, 3}, thresholds(e.Entries()))
	assert.True(t, models.IsValidation(e.RemoveEntry(3)))
	assert.True(t, models.IsValidation(e.RemoveEntry(-1)))

	e.Load(nil)
	assert.Equal(t, models.DefaultPrizeTable(), e.Entries())
	assert.False(t, e.Dirty())
}

func thresholds(t models.PrizeTable) []int {
	out := make([]int, 0, len(t))
	for _, p := range t {
		out = append(out, p.Stamps)
	}
	return out
}

func TestSavePrizesSortsAndReplaces(t *testing.T) {
	gw := newFakeGateway()
	c := newConsole(t, gw)

	table, err := c.LoadPrizes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.DefaultPrizeTable(), table)

	require.NoError(t, c.Prizes().AddEntry(2, "Sticker"))
	saved, err := c.SavePrizes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{2, 5, 10, 15}, thresholds(saved))
	require.Len(t, gw.saved, 1)
	assert.Equal(t, []int{2, 5, 10, 15}, thresholds(gw.saved[0]))
	assert.False(t, c.Prizes().Dirty())
}

func TestExportUsesFilteredView(t *testing.T) {
	c := newConsole(t, newFakeGateway(fixtureRoster()...))
	var sb strings.Builder
	require.NoError(t, c.Export(&sb, Query{Week: WeekLast, Column: ColumnEmail}, LayoutBasic))
	assert.Equal(t, "Email,Name,Stamps\nBo@club.org,\"Bo, Jr.\",5\ncara@club.org,Cara,5\n", sb.String())
}

func TestSetAnnouncementTrims(t *testing.T) {
	gw := newFakeGateway()
	c := newConsole(t, gw)
	require.NoError(t, c.SetAnnouncement(context.Background(), "  Hill reps Thursday  "))
	assert.Equal(t, "Hill reps Thursday", gw.announce)
}

func TestAuthenticate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/admin-login":
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body["password"] != "right" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_, _ = w.Write([]byte(`{"token":"gw-token"}`))
		case "/users":
			if r.Header.Get("Authorization") != "Bearer gw-token" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_, _ = w.Write([]byte(`[{"email":"a@club.org","display_name":"A","stamp_count":1}]`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()
	client := gateway.NewClient(srv.URL, time.Second)

	_, err := Authenticate(context.Background(), client, "boss@club.org", "wrong")
	assert.ErrorIs(t, err, gateway.ErrInvalidCredentials)

	_, err = Authenticate(context.Background(), client, "", "")
	assert.True(t, models.IsValidation(err))

	c, err := Authenticate(context.Background(), client, "Boss@Club.org", "right")
	require.NoError(t, err)
	assert.Equal(t, "boss@club.org", c.Identity())
	require.NoError(t, c.Refresh(context.Background()))
	assert.Len(t, c.Roster().Members(), 1)
}
