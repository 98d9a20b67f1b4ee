package admin

import (
	"bytes"
	"encoding/csv"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3run4/stampcard/models"
)

func day(s string) time.Time {
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		panic(err)
	}
	return t
}

func emails(members []models.Member) []string {
	out := make([]string, 0, len(members))
	for _, m := range members {
		out = append(out, m.Email)
	}
	return out
}

func fixtureRoster() []models.Member {
	return []models.Member{
		{Email: "cara@club.org", DisplayName: "Cara", StampCount: 5, AttendanceDates: []string{"2024-06-06", "2024-06-13"}},
		{Email: "ana@club.org", DisplayName: "ana", StampCount: 12, AttendanceDates: []string{"2024-06-13"}},
		{Email: "Bo@club.org", DisplayName: "Bo, Jr.", StampCount: 5, AttendanceDates: []string{"2024-06-06"}},
		{Email: "dee@other.net", DisplayName: "", StampCount: 0},
	}
}

func TestAnchorThursday(t *testing.T) {
	assert.Equal(t, "2024-06-13", AnchorThursday(day("2024-06-15")).Format(DateLayout))
	assert.Equal(t, "2024-06-13", AnchorThursday(day("2024-06-13")).Format(DateLayout))
	assert.Equal(t, "2024-06-06", AnchorThursday(day("2024-06-12")).Format(DateLayout))
	assert.Equal(t, "2024-06-13", AnchorThursday(day("2024-06-13").Add(23*time.Hour)).Format(DateLayout))
}

func TestResolveAnchor(t *testing.T) {
	today := day("2024-06-15")

	a, err := ResolveAnchor(WeekThis, "", today)
	require.NoError(t, err)
	assert.Equal(t, "2024-06-13", a.Format(DateLayout))

	a, err = ResolveAnchor(WeekLast, "", today)
	require.NoError(t, err)
	assert.Equal(t, "2024-06-06", a.Format(DateLayout))

	a, err = ResolveAnchor(WeekCustom, "2024-05-01", today)
	require.NoError(t, err)
	assert.Equal(t, "2024-04-25", a.Format(DateLayout))

	_, err = ResolveAnchor(WeekCustom, "", today)
	assert.True(t, models.IsValidation(err))
	_, err = ResolveAnchor(WeekCustom, "13/06/2024", today)
	assert.True(t, models.IsValidation(err))
}

func TestFilterByWeek(t *testing.T) {
	got := FilterByWeek(fixtureRoster(), day("2024-06-13"))
	assert.Equal(t, []string{"cara@club.org", "ana@club.org"}, emails(got))
	assert.Empty(t, FilterByWeek(fixtureRoster(), day("2024-05-30")))
}

func TestSearch(t *testing.T) {
	roster := fixtureRoster()
	assert.Equal(t, []string{"cara@club.org", "ana@club.org", "Bo@club.org"}, emails(Search(roster, "CLUB")))
	assert.Equal(t, []string{"Bo@club.org"}, emails(Search(roster, "jr")))
	assert.Len(t, Search(roster, "  "), 4)
	assert.Equal(t, "cara@club.org", roster[0].Email)
}

func TestSortIsStable(t *testing.T) {
	roster := fixtureRoster()

	byStamps := Sort(roster, ColumnStampCount, Asc)
	assert.Equal(t, []string{"dee@other.net", "cara@club.org", "Bo@club.org", "ana@club.org"}, emails(byStamps))

	desc := Sort(roster, ColumnStampCount, Desc)
	assert.Equal(t, []string{"ana@club.org", "cara@club.org", "Bo@club.org", "dee@other.net"}, emails(desc))

	byEmail := Sort(roster, ColumnEmail, Asc)
	assert.Equal(t, []string{"ana@club.org", "Bo@club.org", "cara@club.org", "dee@other.net"}, emails(byEmail))

	byName := Sort(roster, ColumnDisplayName, Asc)
	assert.Equal(t, []string{"dee@other.net", "ana@club.org", "Bo@club.org", "cara@club.org"}, emails(byName))

	byLast := Sort(roster, ColumnLastStamp, Desc)
	assert.Equal(t, []string{"cara@club.org", "ana@club.org", "Bo@club.org", "dee@other.net"}, emails(byLast))

	assert.Equal(t, "cara@club.org", roster[0].Email)
}

func TestToggleSort(t *testing.T) {
	col, dir := ToggleSort(ColumnEmail, Asc, ColumnEmail)
	assert.Equal(t, ColumnEmail, col)
	assert.Equal(t, Desc, dir)

	col, dir = ToggleSort(ColumnEmail, Desc, ColumnStampCount)
	assert.Equal(t, ColumnStampCount, col)
	assert.Equal(t, Asc, dir)
}

func TestParseHelpers(t *testing.T) {
	c, err := ParseColumn("")
	require.NoError(t, err)
	assert.Equal(t, ColumnEmail, c)
	_, err = ParseColumn("age")
	assert.True(t, models.IsValidation(err))

	d, err := ParseDirection("DESC")
	require.NoError(t, err)
	assert.Equal(t, Desc, d)

	w, err := ParseWeekMode("Last")
	require.NoError(t, err)
	assert.Equal(t, WeekLast, w)
	_, err = ParseWeekMode("next")
	assert.Error(t, err)

	l, err := ParseLayout("")
	require.NoError(t, err)
	assert.Equal(t, LayoutBasic, l)
}

func TestPickWinner(t *testing.T) {
	_, ok := PickWinner(nil, nil)
	assert.False(t, ok)

	solo := []models.Member{{Email: "solo@club.org"}}
	for i := 0; i < 20; i++ {
		w, ok := PickWinner(solo, nil)
		require.True(t, ok)
		assert.Equal(t, "solo@club.org", w.Email)
	}

	pool := fixtureRoster()[:3]
	rng := rand.New(rand.NewPCG(7, 11))
	const trials = 30000
	counts := map[string]int{}
	for i := 0; i < trials; i++ {
		w, ok := PickWinner(pool, rng)
		require.True(t, ok)
		counts[w.Email]++
	}
	for _, m := range pool {
		assert.InDelta(t, trials/3, counts[m.Email], 600, m.Email)
	}
}

func TestExportCSVRoundTrip(t *testing.T) {
	roster := Sort(fixtureRoster()[:3], ColumnEmail, Asc)

	var buf bytes.Buffer
	require.NoError(t, ExportCSV(&buf, roster, LayoutBasic))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, []string{"Email", "Name", "Stamps"}, records[0])
	assert.Equal(t, []string{"ana@club.org", "ana", "12"}, records[1])
	assert.Equal(t, []string{"Bo@club.org", "Bo, Jr.", "5"}, records[2])
	assert.Equal(t, []string{"cara@club.org", "Cara", "5"}, records[3])
}

func TestExportCSVDetailed(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ExportCSV(&buf, fixtureRoster(), LayoutDetailed))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, []string{"Email", "Display Name", "Stamps", "Last Stamp Date"}, records[0])
	assert.Equal(t, "2024-06-13", records[1][3])
	assert.Equal(t, "", records[4][3])
}

func TestQueryApply(t *testing.T) {
	q := Query{Search: "club", Week: WeekThis, Column: ColumnStampCount, Direction: Desc}
	got, err := q.Apply(fixtureRoster(), day("2024-06-15"))
	require.NoError(t, err)
	assert.Equal(t, []string{"ana@club.org", "cara@club.org"}, emails(got))

	_, err = Query{Week: WeekCustom}.Apply(fixtureRoster(), day("2024-06-15"))
	assert.True(t, models.IsValidation(err))
}
