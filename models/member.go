package models

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Member is one run club registrant as reported by the gateway.
type Member struct {
	Email             string      `json:"email"`
	DisplayName       string      `json:"display_name"`
	StampCount        int         `json:"stamp_count"`
	PrizesClaimed     PrizeClaims `json:"prizes_claimed"`
	AttendanceDates   []string    `json:"attendance_dates"`
	AttendanceHistory []int       `json:"attendance_history,omitempty"`
	LastStampDateRaw  string      `json:"last_stamp_date,omitempty"`
	WaiverAccepted    bool        `json:"waiver_accepted"`
	NewsletterOptIn   bool        `json:"newsletter_opt_in,omitempty"`
	Streak            int         `json:"streak"`
}

// NormalizeEmail trims and lowercases an address. Emails are compared case-insensitively everywhere.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Incomplete reports whether the member has not set a display name yet.
func (m Member) Incomplete() bool {
	return strings.TrimSpace(m.DisplayName) == ""
}

// LastStampDate is the most recent attendance date. ISO dates order lexicographically,
// so the max string is the latest day. Falls back to the wire field when no dates are present.
func (m Member) LastStampDate() string {
	last := ""
	for _, d := range m.AttendanceDates {
		if d > last {
			last = d
		}
	}
	if last == "" {
		return m.LastStampDateRaw
	}
	return last
}

// AttendedOn reports whether the member has a stamp recorded for the given YYYY-MM-DD day.
func (m Member) AttendedOn(day string) bool {
	for _, d := range m.AttendanceDates {
		if strings.TrimSpace(d) == day {
			return true
		}
	}
	return false
}

// PrizeClaims lists claimed prize identifiers. The gateway sends either thresholds (numbers)
// or labels (strings); both are kept as strings.
type PrizeClaims []string

// UnmarshalJSON accepts an array of strings and/or numbers, or null.
func (p *PrizeClaims) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(PrizeClaims, 0, len(raw))
	for _, item := range raw {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			out = append(out, s)
			continue
		}
		var n json.Number
		if err := json.Unmarshal(item, &n); err == nil {
			out = append(out, n.String())
			continue
		}
	}
	*p = out
	return nil
}

// Contains reports whether id is among the claims.
func (p PrizeClaims) Contains(id string) bool {
	for _, c := range p {
		if c == id {
			return true
		}
	}
	return false
}

// ContainsThreshold reports whether the prize at the given threshold was claimed.
func (p PrizeClaims) ContainsThreshold(stamps int) bool {
	return p.Contains(strconv.Itoa(stamps))
}
