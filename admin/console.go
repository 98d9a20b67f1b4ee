package admin

import (
	"context"
	"errors"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/3run4/stampcard/gateway"
	"github.com/3run4/stampcard/models"
)

var (
	ErrBusy               = models.ErrBusy
	ErrNoPendingEdit      = errors.New("no pending edit for this member")
	ErrDeleteNotConfirmed = errors.New("delete was not requested for this member")
	ErrUnknownMember      = errors.New("member is not in the roster")
)

// Gateway is what an authenticated console calls. Calls carry the admin token.
type Gateway interface {
	RosterSource
	UpsertMember(ctx context.Context, in gateway.UpsertRequest) (models.Member, error)
	DeleteMember(ctx context.Context, email string) error
	FetchPrizes(ctx context.Context) (models.PrizeTable, error)
	SavePrizes(ctx context.Context, table models.PrizeTable) (models.PrizeTable, error)
	SetAnnouncement(ctx context.Context, text string) error
}

// Console is one administrator's session: roster snapshot, staged edits, pending delete
// and prize editor. One gateway call runs at a time.
type Console struct {
	identity string
	gw       Gateway
	timeout  time.Duration
	logger   *zap.Logger
	rng      Picker
	now      func() time.Time

	roster *Roster
	prizes *PrizeEditor

	mu            sync.Mutex
	busy          bool
	edits         map[string]string
	pendingDelete string
	touched       time.Time
}

// Option customizes a Console.
type Option func(*Console)

func WithTimeout(d time.Duration) Option { return func(c *Console) { c.timeout = d } }

func WithLogger(l *zap.Logger) Option {
	return func(c *Console) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithPicker fixes the raffle generator.
func WithPicker(p Picker) Option { return func(c *Console) { c.rng = p } }

// WithClock overrides the clock used for "this week".
func WithClock(now func() time.Time) Option { return func(c *Console) { c.now = now } }

// NewConsole binds a console to a gateway client that already carries admin credentials.
func NewConsole(identity string, gw Gateway, opts ...Option) *Console {
	c := &Console{
		identity: models.NormalizeEmail(identity),
		gw:       gw,
		timeout:  10 * time.Second,
		logger:   zap.NewNop(),
		now:      time.Now,
		roster:   NewRoster(gw),
		prizes:   NewPrizeEditor(),
		edits:    make(map[string]string),
		touched:  time.Now(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Authenticate checks the credentials with the gateway and returns a console whose
// calls carry the token the gateway issued. Nothing is checked locally.
func Authenticate(ctx context.Context, client *gateway.Client, identity, secret string, opts ...Option) (*Console, error) {
	identity = models.NormalizeEmail(identity)
	if identity == "" || secret == "" {
		return nil, models.Invalid("credentials", "Email and password are required.")
	}
	auth, err := client.AdminLogin(ctx, identity, secret)
	if err != nil {
		return nil, err
	}
	return NewConsole(identity, client.WithAdminToken(auth.Token), opts...), nil
}

// Identity is the administrator email the console was opened for.
func (c *Console) Identity() string { return c.identity }

// Roster exposes the roster snapshot.
func (c *Console) Roster() *Roster { return c.roster }

// Prizes exposes the prize editor.
func (c *Console) Prizes() *PrizeEditor { return c.prizes }

// Today is the console's notion of the current day.
func (c *Console) Today() time.Time { return c.now() }

// LastActive is the time of the last operation on the console.
func (c *Console) LastActive() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.touched
}

func (c *Console) begin() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy {
		return ErrBusy
	}
	c.busy = true
	c.touched = time.Now()
	return nil
}

func (c *Console) end() {
	c.mu.Lock()
	c.busy = false
	c.touched = time.Now()
	c.mu.Unlock()
}

func (c *Console) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

// Refresh replaces the roster snapshot from the gateway.
func (c *Console) Refresh(ctx context.Context) error {
	if err := c.begin(); err != nil {
		return err
	}
	defer c.end()
	return c.refresh(ctx)
}

func (c *Console) refresh(ctx context.Context) error {
	cctx, cancel := c.callContext(ctx)
	defer cancel()
	if err := c.roster.Refresh(cctx); err != nil {
		c.logger.Warn("roster refresh failed", zap.String("admin", c.identity), zap.Error(err))
		return err
	}
	return nil
}

// View applies q to the current roster.
func (c *Console) View(q Query) ([]models.Member, error) {
	return q.Apply(c.roster.Members(), c.now())
}

// Raffle draws a winner among members who attended the selected week, after the
// search filter. It never draws from the unfiltered roster; an empty week means no winner.
func (c *Console) Raffle(q Query) (winner models.Member, pool []models.Member, ok bool, err error) {
	if q.Week == WeekAll {
		q.Week = WeekThis
	}
	pool, err = c.View(q)
	if err != nil {
		return models.Member{}, nil, false, err
	}
	c.mu.Lock()
	winner, ok = PickWinner(pool, c.rng)
	c.touched = time.Now()
	c.mu.Unlock()
	return winner, pool, ok, nil
}

// Export writes the filtered and sorted roster as CSV.
func (c *Console) Export(w io.Writer, q Query, layout Layout) error {
	rows, err := c.View(q)
	if err != nil {
		return err
	}
	return ExportCSV(w, rows, layout)
}

// ParseStampCount validates a manually entered stamp count.
func ParseStampCount(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, models.Invalid("stamp_count", "Stamp count is required.")
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, models.Invalid("stamp_count", "Stamp count must be a whole number.")
	}
	if n < 0 {
		return 0, models.Invalid("stamp_count", "Stamp count cannot be negative.")
	}
	return n, nil
}

// StageEdit records the raw stamp count typed for a member. Nothing is validated or sent yet.
func (c *Console) StageEdit(email, raw string) error {
	email = models.NormalizeEmail(email)
	if email == "" {
		return models.Invalid("email", "Email is required.")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.edits[email] = raw
	c.touched = time.Now()
	return nil
}

// CancelEdit drops a staged edit.
func (c *Console) CancelEdit(email string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.edits, models.NormalizeEmail(email))
}

// Edits returns the staged edits keyed by email.
func (c *Console) Edits() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]string, len(c.edits))
	for k, v := range c.edits {
		out[k] = v
	}
	return out
}

// CommitEdit sends a staged stamp count. Invalid input is rejected without a gateway call
// and stays staged for correction. Once sent, the edit is dropped whether or not the save
// succeeds; a successful save is followed by a roster refresh.
func (c *Console) CommitEdit(ctx context.Context, email string) (models.Member, error) {
	email = models.NormalizeEmail(email)
	c.mu.Lock()
	raw, ok := c.edits[email]
	c.mu.Unlock()
	if !ok {
		return models.Member{}, ErrNoPendingEdit
	}
	n, err := ParseStampCount(raw)
	if err != nil {
		return models.Member{}, err
	}

	if err := c.begin(); err != nil {
		return models.Member{}, err
	}
	defer c.end()

	c.mu.Lock()
	delete(c.edits, email)
	c.mu.Unlock()

	cctx, cancel := c.callContext(ctx)
	m, err := c.gw.UpsertMember(cctx, gateway.UpsertRequest{Email: email, InitialStamps: &n})
	cancel()
	if err != nil {
		c.logger.Warn("manual stamp edit failed", zap.String("admin", c.identity), zap.String("email", email), zap.Error(err))
		return models.Member{}, err
	}
	c.logger.Info("manual stamp edit saved", zap.String("admin", c.identity), zap.String("email", email), zap.Int("stamp_count", n))
	_ = c.refresh(ctx)
	return m, nil
}

// RequestDelete opens the confirmation step for a member in the roster.
func (c *Console) RequestDelete(email string) error {
	email = models.NormalizeEmail(email)
	if _, ok := c.roster.Find(email); !ok {
		return ErrUnknownMember
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pendingDelete = email
	c.touched = time.Now()
	return nil
}

// PendingDelete is the email awaiting confirmation, or "".
func (c *Console) PendingDelete() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pendingDelete
}

// CancelDelete closes the confirmation step.
func (c *Console) CancelDelete() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pendingDelete = ""
}

// ConfirmDelete deletes the member whose deletion was requested. On failure the request
// stays open so it can be retried or cancelled.
func (c *Console) ConfirmDelete(ctx context.Context, email string) error {
	email = models.NormalizeEmail(email)
	c.mu.Lock()
	pending := c.pendingDelete
	c.mu.Unlock()
	if pending == "" || pending != email {
		return ErrDeleteNotConfirmed
	}

	if err := c.begin(); err != nil {
		return err
	}
	defer c.end()

	cctx, cancel := c.callContext(ctx)
	err := c.gw.DeleteMember(cctx, email)
	cancel()
	if err != nil {
		c.logger.Warn("delete member failed", zap.String("admin", c.identity), zap.String("email", email), zap.Error(err))
		return err
	}
	c.logger.Info("member deleted", zap.String("admin", c.identity), zap.String("email", email))

	c.mu.Lock()
	c.pendingDelete = ""
	delete(c.edits, email)
	c.mu.Unlock()
	_ = c.refresh(ctx)
	return nil
}

// LoadPrizes pulls the prize table into the editor. An empty server table shows the default.
func (c *Console) LoadPrizes(ctx context.Context) (models.PrizeTable, error) {
	if err := c.begin(); err != nil {
		return nil, err
	}
	defer c.end()

	cctx, cancel := c.callContext(ctx)
	table, err := c.gw.FetchPrizes(cctx)
	cancel()
	if err != nil {
		return c.prizes.Entries(), err
	}
	c.prizes.Load(table)
	return c.prizes.Entries(), nil
}

// SavePrizes sorts the working table ascending and replaces the whole server table with
// it. The editor then shows what the gateway stored.
func (c *Console) SavePrizes(ctx context.Context) (models.PrizeTable, error) {
	if err := c.begin(); err != nil {
		return nil, err
	}
	defer c.end()

	table := c.prizes.Entries().Sorted()
	cctx, cancel := c.callContext(ctx)
	saved, err := c.gw.SavePrizes(cctx, table)
	cancel()
	if err != nil {
		return c.prizes.Entries(), err
	}
	c.prizes.Load(saved.Sorted())
	c.logger.Info("prize table saved", zap.String("admin", c.identity), zap.Int("entries", len(saved)))
	return c.prizes.Entries(), nil
}

// SetAnnouncement replaces the club announcement. Empty text clears it.
func (c *Console) SetAnnouncement(ctx context.Context, text string) error {
	if err := c.begin(); err != nil {
		return err
	}
	defer c.end()

	cctx, cancel := c.callContext(ctx)
	defer cancel()
	return c.gw.SetAnnouncement(cctx, strings.TrimSpace(text))
}
