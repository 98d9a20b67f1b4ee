package admin

import (
	"sort"
	"strings"
	"time"

	"github.com/3run4/stampcard/models"
)

// Column is a sortable roster column.
type Column string

const (
	ColumnEmail       Column = "email"
	ColumnDisplayName Column = "display_name"
	ColumnStampCount  Column = "stamp_count"
	ColumnLastStamp   Column = "last_stamp_date"
)

// Direction is a sort direction.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// ParseColumn accepts a column name; empty means email.
func ParseColumn(s string) (Column, error) {
	switch c := Column(strings.ToLower(strings.TrimSpace(s))); c {
	case "":
		return ColumnEmail, nil
	case ColumnEmail, ColumnDisplayName, ColumnStampCount, ColumnLastStamp:
		return c, nil
	default:
		return "", models.Invalid("sort", "Unknown sort column "+s+".")
	}
}

// ParseDirection accepts asc or desc; empty means asc.
func ParseDirection(s string) (Direction, error) {
	switch d := Direction(strings.ToLower(strings.TrimSpace(s))); d {
	case "":
		return Asc, nil
	case Asc, Desc:
		return d, nil
	default:
		return "", models.Invalid("dir", "Sort direction must be asc or desc.")
	}
}

// ToggleSort is the header-click rule: the same column flips direction, a new column
// starts ascending.
func ToggleSort(current Column, dir Direction, clicked Column) (Column, Direction) {
	if clicked == current {
		if dir == Asc {
			return current, Desc
		}
		return current, Asc
	}
	return clicked, Asc
}

// Search keeps members whose email or display name contains q, ignoring case.
// An empty query keeps everyone. The input slice is not modified.
func Search(members []models.Member, q string) []models.Member {
	q = strings.ToLower(strings.TrimSpace(q))
	out := make([]models.Member, 0, len(members))
	for _, m := range members {
		if q == "" ||
			strings.Contains(strings.ToLower(m.Email), q) ||
			strings.Contains(strings.ToLower(m.DisplayName), q) {
			out = append(out, m)
		}
	}
	return out
}

// Sort returns a stably sorted copy. Ties keep their input order in both directions.
func Sort(members []models.Member, col Column, dir Direction) []models.Member {
	out := make([]models.Member, len(members))
	copy(out, members)
	cmp := comparator(col)
	sort.SliceStable(out, func(i, j int) bool {
		c := cmp(out[i], out[j])
		if dir == Desc {
			return c > 0
		}
		return c < 0
	})
	return out
}

func comparator(col Column) func(a, b models.Member) int {
	switch col {
	case ColumnDisplayName:
		return func(a, b models.Member) int {
			return strings.Compare(strings.ToLower(a.DisplayName), strings.ToLower(b.DisplayName))
		}
	case ColumnStampCount:
		return func(a, b models.Member) int { return a.StampCount - b.StampCount }
	case ColumnLastStamp:
		return func(a, b models.Member) int { return strings.Compare(a.LastStampDate(), b.LastStampDate()) }
	default:
		return func(a, b models.Member) int {
			return strings.Compare(strings.ToLower(a.Email), strings.ToLower(b.Email))
		}
	}
}

// Query describes one roster view: search, optional week filter, then sort.
type Query struct {
	Search    string
	Week      WeekMode
	Date      string
	Column    Column
	Direction Direction
}

// Apply runs the query over members. today anchors the week filter.
func (q Query) Apply(members []models.Member, today time.Time) ([]models.Member, error) {
	out := Search(members, q.Search)
	if q.Week != WeekAll {
		anchor, err := ResolveAnchor(q.Week, q.Date, today)
		if err != nil {
			return nil, err
		}
		out = FilterByWeek(out, anchor)
	}
	col := q.Column
	if col == "" {
		col = ColumnEmail
	}
	return Sort(out, col, q.Direction), nil
}
