package member

import "math"

const RecentWeeks = 8

// Attendance tiers.
const (
	TierStrong   = "strong"
	TierSteady   = "steady"
	TierComeback = "comeback"
)

// AttendanceSummary describes the most recent weeks of a member's attendance history.
type AttendanceSummary struct {
	Weeks    []int  `json:"weeks"`
	Attended int    `json:"attended"`
	Percent  int    `json:"percent"`
	Tier     string `json:"tier,omitempty"`
}

// SummarizeAttendance looks at the last eight entries of history (oldest first, 1 = attended).
// ok is false when there is no history to show.
func SummarizeAttendance(history []int) (AttendanceSummary, bool) {
	if len(history) == 0 {
		return AttendanceSummary{}, false
	}
	recent := history
	if len(recent) > RecentWeeks {
		recent = recent[len(recent)-RecentWeeks:]
	}
	s := AttendanceSummary{Weeks: append([]int(nil), recent...)}
	for _, w := range recent {
		if w == 1 {
			s.Attended++
		}
	}
	s.Percent = int(math.Round(float64(s.Attended) / float64(len(recent)) * 100))

	switch {
	case s.Percent >= 75:
		s.Tier = TierStrong
	case s.Percent >= 50:
		s.Tier = TierSteady
	case len(recent) >= 4:
		s.Tier = TierComeback
	}
	return s, true
}
