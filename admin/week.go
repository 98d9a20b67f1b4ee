package admin

import (
	"strings"
	"time"

	"github.com/3run4/stampcard/models"
)

// DateLayout is the ISO day format used for attendance dates.
const DateLayout = "2006-01-02"

// WeekMode selects the raffle week.
type WeekMode string

const (
	WeekAll    WeekMode = ""
	WeekThis   WeekMode = "this"
	WeekLast   WeekMode = "last"
	WeekCustom WeekMode = "custom"
)

// ParseWeekMode accepts this, last, custom or empty (no week filter).
func ParseWeekMode(s string) (WeekMode, error) {
	switch m := WeekMode(strings.ToLower(strings.TrimSpace(s))); m {
	case WeekAll, WeekThis, WeekLast, WeekCustom:
		return m, nil
	default:
		return "", models.Invalid("week", "Week must be this, last or custom.")
	}
}

// AnchorThursday is the most recent Thursday on or before ref, at midnight in ref's location.
// The club meets on Thursdays, so this day keys every weekly check.
func AnchorThursday(ref time.Time) time.Time {
	back := (int(ref.Weekday()) - int(time.Thursday) + 7) % 7
	y, m, d := ref.Date()
	return time.Date(y, m, d-back, 0, 0, 0, 0, ref.Location())
}

// ResolveAnchor turns a week selection into its anchor Thursday.
func ResolveAnchor(mode WeekMode, custom string, today time.Time) (time.Time, error) {
	switch mode {
	case WeekThis, WeekAll:
		return AnchorThursday(today), nil
	case WeekLast:
		return AnchorThursday(today.AddDate(0, 0, -7)), nil
	case WeekCustom:
		custom = strings.TrimSpace(custom)
		if custom == "" {
			return time.Time{}, models.Invalid("date", "Pick a date for the custom week.")
		}
		day, err := time.ParseInLocation(DateLayout, custom, today.Location())
		if err != nil {
			return time.Time{}, models.Invalid("date", "Dates must look like 2024-06-13.")
		}
		return AnchorThursday(day), nil
	default:
		return time.Time{}, models.Invalid("week", "Week must be this, last or custom.")
	}
}

// FilterByWeek keeps members who have a stamp dated exactly on anchor.
func FilterByWeek(members []models.Member, anchor time.Time) []models.Member {
	day := anchor.Format(DateLayout)
	out := make([]models.Member, 0, len(members))
	for _, m := range members {
		if m.AttendedOn(day) {
			out = append(out, m)
		}
	}
	return out
}
