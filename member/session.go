package member

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/3run4/stampcard/gateway"
	"github.com/3run4/stampcard/models"
)

// ConnectionMessage is shown for every transport failure; the underlying error is only logged.
const ConnectionMessage = "Could not reach the stamp card service. Please try again."

const MaxInitialStamps = 999

var (
	ErrBusy              = models.ErrBusy
	ErrInvalidTransition = errors.New("action not allowed in the current state")
	ErrLoggedOut         = errors.New("session ended")
)

var emailRegex = regexp.MustCompile(`^[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}$`)

// Gateway is the part of the gateway client a member session needs.
type Gateway interface {
	FetchCard(ctx context.Context, email string) (models.Member, error)
	UpsertMember(ctx context.Context, in gateway.UpsertRequest) (models.Member, error)
	AddStamp(ctx context.Context, email string) (gateway.StampResult, error)
}

// ProfileInput is what a member submits on the profile form.
type ProfileInput struct {
	DisplayName     string `json:"display_name"`
	InitialStamps   *int   `json:"initial_stamps,omitempty"`
	NewsletterOptIn *bool  `json:"newsletter_opt_in,omitempty"`
}

// StampOutcome describes the effect of one AddStamp call.
type StampOutcome struct {
	Previous  int  `json:"previous"`
	Current   int  `json:"current"`
	Reported  bool `json:"reported"`
	Decreased bool `json:"decreased"`
}

// View is a read-only copy of the session for rendering.
type View struct {
	State          State          `json:"state"`
	Email          string         `json:"email,omitempty"`
	FirstTime      bool           `json:"first_time"`
	WaiverShown    bool           `json:"waiver_shown"`
	WaiverAccepted bool           `json:"waiver_accepted"`
	NeedsProfile   bool           `json:"needs_profile"`
	Card           *models.Member `json:"card,omitempty"`
	Stale          bool           `json:"stale,omitempty"`
	Message        string         `json:"message,omitempty"`
	Busy           bool           `json:"busy"`
}

// Session is one member's sign-in flow and card. Only one gateway call runs at a time;
// a second caller gets ErrBusy instead of queueing.
type Session struct {
	gw      Gateway
	timeout time.Duration
	logger  *zap.Logger

	mu             sync.Mutex
	busy           bool
	gen            uint64
	state          State
	email          string
	authenticated  bool
	firstTime      bool
	waiverShown    bool
	waiverAccepted bool
	card           models.Member
	stale          bool
	message        string
	touched        time.Time
}

// Option customizes a Session.
type Option func(*Session)

// WithTimeout bounds every gateway call made by the session.
func WithTimeout(d time.Duration) Option {
	return func(s *Session) { s.timeout = d }
}

// WithLogger sets the session logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewSession returns a logged-out session.
func NewSession(gw Gateway, opts ...Option) *Session {
	s := &Session{
		gw:      gw,
		timeout: 10 * time.Second,
		logger:  zap.NewNop(),
		touched: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ValidateEmail normalizes raw and checks it looks like an address.
func ValidateEmail(raw string) (string, error) {
	email := models.NormalizeEmail(raw)
	if email == "" {
		return "", models.Invalid("email", "Email is required.")
	}
	if !emailRegex.MatchString(email) {
		return "", models.Invalid("email", "Please enter a valid email address.")
	}
	return email, nil
}

// begin claims the busy flag. It returns the generation the operation belongs to.
func (s *Session) begin() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return 0, ErrBusy
	}
	s.busy = true
	s.touched = time.Now()
	return s.gen, nil
}

// finish releases the busy flag. It must be called with mu held.
func (s *Session) finish() {
	s.busy = false
	s.touched = time.Now()
}

func (s *Session) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// Login classifies the email against the gateway: a known card signs in, an unknown
// email starts registration, a transport failure lands in ConnectionError and a
// gateway-reported error returns to LoggedOut with the gateway's message.
func (s *Session) Login(ctx context.Context, raw string) (View, error) {
	email, err := ValidateEmail(raw)
	if err != nil {
		return s.View(), err
	}
	gen, err := s.begin()
	if err != nil {
		return s.View(), err
	}

	s.mu.Lock()
	if s.state != LoggedOut && s.state != ConnectionError {
		s.finish()
		s.mu.Unlock()
		return s.View(), ErrInvalidTransition
	}
	s.state = Authenticating
	s.email = email
	s.message = ""
	s.mu.Unlock()

	cctx, cancel := s.callContext(ctx)
	m, err := s.gw.FetchCard(cctx, email)
	cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.finish()
	if gen != s.gen {
		return s.viewLocked(), ErrLoggedOut
	}

	switch {
	case err == nil:
		s.state = ReturningMember
		s.authenticated = true
		s.firstTime = false
		s.card = m
		s.stale = false
	case errors.Is(err, gateway.ErrNotFound):
		s.state = NewRegistrant
		s.authenticated = true
		s.firstTime = true
		s.card = models.Member{Email: email, PrizesClaimed: models.PrizeClaims{}}
		err = nil
	case gateway.IsTransport(err):
		s.logger.Warn("member login: gateway unreachable", zap.String("email", email), zap.Error(err))
		s.state = ConnectionError
		s.authenticated = false
		s.message = ConnectionMessage
	default:
		s.resetLocked()
		s.message = err.Error()
	}
	return s.viewLocked(), err
}

// PresentWaiver records that the waiver was shown to a first-time registrant.
func (s *Session) PresentWaiver() (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return s.viewLocked(), ErrBusy
	}
	if s.state != NewRegistrant {
		return s.viewLocked(), ErrInvalidTransition
	}
	s.state = WaiverPending
	s.waiverShown = true
	s.touched = time.Now()
	return s.viewLocked(), nil
}

// AcceptWaiver moves a registrant on to profile setup. Acceptance cannot be withdrawn.
func (s *Session) AcceptWaiver() (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return s.viewLocked(), ErrBusy
	}
	if s.state != WaiverPending {
		return s.viewLocked(), ErrInvalidTransition
	}
	s.state = ProfileSetup
	s.waiverAccepted = true
	s.touched = time.Now()
	return s.viewLocked(), nil
}

// CompleteProfile saves the display name, and on first registration the optional
// starting stamp count, then adopts the record the gateway returns.
func (s *Session) CompleteProfile(ctx context.Context, in ProfileInput) (View, error) {
	name := strings.TrimSpace(in.DisplayName)
	if name == "" {
		return s.View(), models.Invalid("display_name", "Display name is required.")
	}
	if in.InitialStamps != nil && (*in.InitialStamps < 0 || *in.InitialStamps > MaxInitialStamps) {
		return s.View(), models.Invalid("initial_stamps", "Starting stamps must be between 0 and 999.")
	}

	gen, err := s.begin()
	if err != nil {
		return s.View(), err
	}

	s.mu.Lock()
	allowed := s.state == ProfileSetup || (s.state == ReturningMember && s.card.Incomplete())
	if !allowed {
		s.finish()
		s.mu.Unlock()
		return s.View(), ErrInvalidTransition
	}
	req := gateway.UpsertRequest{
		Email:           s.email,
		DisplayName:     &name,
		NewsletterOptIn: in.NewsletterOptIn,
	}
	if s.firstTime {
		req.InitialStamps = in.InitialStamps
	}
	if s.waiverAccepted {
		yes := true
		req.WaiverAccepted = &yes
	}
	s.message = ""
	s.mu.Unlock()

	cctx, cancel := s.callContext(ctx)
	m, err := s.gw.UpsertMember(cctx, req)
	cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.finish()
	if gen != s.gen {
		return s.viewLocked(), ErrLoggedOut
	}
	if err != nil {
		s.message = s.describeLocked("member profile", err)
		return s.viewLocked(), err
	}
	if m.Email == "" {
		m.Email = s.email
	}
	s.card = m
	s.state = ReturningMember
	s.firstTime = false
	s.stale = false
	return s.viewLocked(), nil
}

// AddStamp records a visit. The gateway's count replaces the local one, even when it
// went down; a decrease is logged as a contract violation and flagged in the outcome.
func (s *Session) AddStamp(ctx context.Context) (StampOutcome, View, error) {
	gen, err := s.begin()
	if err != nil {
		return StampOutcome{}, s.View(), err
	}

	s.mu.Lock()
	if s.state != ReturningMember {
		s.finish()
		s.mu.Unlock()
		return StampOutcome{}, s.View(), ErrInvalidTransition
	}
	email := s.email
	prev := s.card.StampCount
	s.message = ""
	s.mu.Unlock()

	cctx, cancel := s.callContext(ctx)
	res, err := s.gw.AddStamp(cctx, email)
	cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.finish()
	if gen != s.gen {
		return StampOutcome{}, s.viewLocked(), ErrLoggedOut
	}
	out := StampOutcome{Previous: prev, Current: prev}
	if err != nil {
		s.message = s.describeLocked("add stamp", err)
		return out, s.viewLocked(), err
	}
	if res.StampCount != nil {
		out.Reported = true
		out.Current = *res.StampCount
		if out.Current < prev {
			out.Decreased = true
			s.logger.Error("gateway contract violation: stamp count decreased",
				zap.String("email", email),
				zap.Int("previous", prev),
				zap.Int("current", out.Current),
			)
		}
		s.card.StampCount = out.Current
	}
	if res.PrizesClaimed != nil {
		s.card.PrizesClaimed = res.PrizesClaimed
	}
	s.stale = false
	return out, s.viewLocked(), nil
}

// Refresh reloads the card of a signed-in member. A card that vanished ends the session;
// a transport failure keeps the cached card marked stale.
func (s *Session) Refresh(ctx context.Context) (View, error) {
	gen, err := s.begin()
	if err != nil {
		return s.View(), err
	}
	s.mu.Lock()
	if s.state != ReturningMember {
		s.finish()
		s.mu.Unlock()
		return s.View(), nil
	}
	email := s.email
	s.mu.Unlock()

	cctx, cancel := s.callContext(ctx)
	m, err := s.gw.FetchCard(cctx, email)
	cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.finish()
	if gen != s.gen {
		return s.viewLocked(), ErrLoggedOut
	}
	s.adoptFetchLocked(m, err)
	return s.viewLocked(), err
}

// Resume rebuilds a signed-in session from a cached snapshot and revalidates it.
func (s *Session) Resume(ctx context.Context, snap Snapshot) (View, error) {
	email, err := ValidateEmail(snap.Email)
	if err != nil {
		return s.View(), err
	}
	gen, err := s.begin()
	if err != nil {
		return s.View(), err
	}

	s.mu.Lock()
	if s.state != LoggedOut {
		s.finish()
		s.mu.Unlock()
		return s.View(), ErrInvalidTransition
	}
	s.state = ReturningMember
	s.authenticated = true
	s.email = email
	s.card = snap.member()
	s.stale = true
	s.mu.Unlock()

	cctx, cancel := s.callContext(ctx)
	m, err := s.gw.FetchCard(cctx, email)
	cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.finish()
	if gen != s.gen {
		return s.viewLocked(), ErrLoggedOut
	}
	s.adoptFetchLocked(m, err)
	return s.viewLocked(), err
}

func (s *Session) adoptFetchLocked(m models.Member, err error) {
	switch {
	case err == nil:
		if m.Email == "" {
			m.Email = s.email
		}
		s.card = m
		s.stale = false
		s.message = ""
	case errors.Is(err, gateway.ErrNotFound):
		s.resetLocked()
	default:
		s.stale = true
		s.message = s.describeLocked("refresh card", err)
	}
}

// Logout clears the session. Calling it again is harmless. A gateway call still in
// flight finishes but its result is dropped.
func (s *Session) Logout() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.resetLocked()
	s.touched = time.Now()
	return s.viewLocked()
}

func (s *Session) resetLocked() {
	s.state = LoggedOut
	s.email = ""
	s.authenticated = false
	s.firstTime = false
	s.waiverShown = false
	s.waiverAccepted = false
	s.card = models.Member{}
	s.stale = false
	s.message = ""
}

// describeLocked picks the user-facing message for a failed call.
func (s *Session) describeLocked(op string, err error) string {
	if msg, ok := gateway.BusinessMessage(err); ok {
		return msg
	}
	if gateway.IsTransport(err) {
		s.logger.Warn(op+": gateway unreachable", zap.String("email", s.email), zap.Error(err))
		return ConnectionMessage
	}
	return err.Error()
}

// View returns a snapshot of the session for rendering.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

func (s *Session) viewLocked() View {
	v := View{
		State:          s.state,
		Email:          s.email,
		FirstTime:      s.firstTime,
		WaiverShown:    s.waiverShown,
		WaiverAccepted: s.waiverAccepted,
		Stale:          s.stale,
		Message:        s.message,
		Busy:           s.busy,
	}
	switch s.state {
	case ReturningMember, NewRegistrant, WaiverPending, ProfileSetup:
		card := s.card
		card.PrizesClaimed = append(models.PrizeClaims{}, s.card.PrizesClaimed...)
		v.Card = &card
		v.NeedsProfile = s.state == ProfileSetup || (s.state == ReturningMember && s.card.Incomplete())
	}
	return v
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Email returns the signed-in address, or "" when logged out.
func (s *Session) Email() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.email
}

// LastActive is the time of the last operation on the session.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.touched
}
