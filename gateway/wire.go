package gateway

import (
	"encoding/json"
	"strings"

	"github.com/3run4/stampcard/models"
)

// memberWire mirrors a member record as the gateway sends it. Pointers tell
// "absent" apart from zero, which the found/not-found rule depends on.
type memberWire struct {
	Email             string             `json:"email"`
	DisplayName       *string            `json:"display_name"`
	StampCount        *json.Number       `json:"stamp_count"`
	PrizesClaimed     models.PrizeClaims `json:"prizes_claimed"`
	AttendanceDates   []string           `json:"attendance_dates"`
	AttendanceHistory []int              `json:"attendance_history"`
	LastStampDate     string             `json:"last_stamp_date"`
	WaiverAccepted    bool               `json:"waiver_accepted"`
	NewsletterOptIn   bool               `json:"newsletter_opt_in"`
	Streak            *json.Number       `json:"streak"`
}

// hasCard is true when the record carries a display name or a numeric stamp count.
func (w memberWire) hasCard() bool {
	return (w.DisplayName != nil && strings.TrimSpace(*w.DisplayName) != "") || w.StampCount != nil
}

func (w memberWire) toMember() models.Member {
	m := models.Member{
		Email:             models.NormalizeEmail(w.Email),
		StampCount:        numberToInt(w.StampCount),
		PrizesClaimed:     w.PrizesClaimed,
		AttendanceDates:   w.AttendanceDates,
		AttendanceHistory: w.AttendanceHistory,
		LastStampDateRaw:  w.LastStampDate,
		WaiverAccepted:    w.WaiverAccepted,
		NewsletterOptIn:   w.NewsletterOptIn,
		Streak:            numberToInt(w.Streak),
	}
	if w.DisplayName != nil {
		m.DisplayName = *w.DisplayName
	}
	if m.StampCount < 0 {
		m.StampCount = 0
	}
	if m.PrizesClaimed == nil {
		m.PrizesClaimed = models.PrizeClaims{}
	}
	return m
}

func numberToInt(n *json.Number) int {
	if n == nil {
		return 0
	}
	if i, err := n.Int64(); err == nil {
		return int(i)
	}
	if f, err := n.Float64(); err == nil {
		return int(f)
	}
	return 0
}

// UpsertRequest is the POST /card body. Nil fields are omitted so the gateway keeps its values.
type UpsertRequest struct {
	Email           string  `json:"email"`
	DisplayName     *string `json:"display_name,omitempty"`
	InitialStamps   *int    `json:"initial_stamps,omitempty"`
	WaiverAccepted  *bool   `json:"waiver_accepted,omitempty"`
	NewsletterOptIn *bool   `json:"newsletter_opt_in,omitempty"`
}

// StampResult is the authoritative outcome of POST /stamp.
// StampCount is nil when the gateway did not report a count.
type StampResult struct {
	StampCount    *int
	PrizesClaimed models.PrizeClaims
}

type stampWire struct {
	StampCount    *json.Number       `json:"stamp_count"`
	PrizesClaimed models.PrizeClaims `json:"prizes_claimed"`
}

type prizesEnvelope struct {
	Prizes models.PrizeTable `json:"prizes"`
}

// AdminAuth is a successful /admin-login answer.
type AdminAuth struct {
	Token string
}

type adminLoginWire struct {
	Token         string `json:"token"`
	Success       *bool  `json:"success"`
	OK            *bool  `json:"ok"`
	Authenticated *bool  `json:"authenticated"`
}

func (w adminLoginWire) accepted() bool {
	if w.Token != "" {
		return true
	}
	for _, b := range []*bool{w.Success, w.OK, w.Authenticated} {
		if b != nil && *b {
			return true
		}
	}
	return false
}
