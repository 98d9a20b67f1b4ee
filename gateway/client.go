package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/3run4/stampcard/models"
)

const (
	userAgent       = "stampcard/1.0"
	maxResponseBody = 4 << 20
)

// Operation names, used as metric labels and in error messages.
const (
	OpFetchCard         = "fetch_card"
	OpUpsertMember      = "upsert_member"
	OpAddStamp          = "add_stamp"
	OpListMembers       = "list_members"
	OpDeleteMember      = "delete_member"
	OpFetchPrizes       = "fetch_prizes"
	OpSavePrizes        = "save_prizes"
	OpFetchAnnouncement = "fetch_announcement"
	OpSetAnnouncement   = "set_announcement"
	OpAdminLogin        = "admin_login"
)

// Client talks to the Backend Gateway. It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	adminToken string
	logger     *zap.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger sets the logger used for malformed responses and contract warnings.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient builds a gateway client. timeout bounds every request; zero means 10s.
func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithAdminToken returns a copy of c that sends token as a Bearer credential.
func (c *Client) WithAdminToken(token string) *Client {
	cp := *c
	cp.adminToken = token
	return &cp
}

// BaseURL returns the gateway root the client was built with.
func (c *Client) BaseURL() string { return c.baseURL }

// roundTrip is a completed exchange with the gateway, before classification.
type roundTrip struct {
	status   int
	payload  json.RawMessage
	parseErr error
}

// do performs one round trip. Only transport failures are returned as err; the caller
// classifies the unwrapped payload with interpret.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body any) (roundTrip, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return roundTrip{}, fmt.Errorf("gateway %s: encode request: %w", op, err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return roundTrip{}, &TransportError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.adminToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.adminToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return roundTrip{}, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return roundTrip{status: resp.StatusCode}, &TransportError{Op: op, Status: resp.StatusCode, Err: err}
	}
	payload, parseErr := UnwrapResponse(raw)
	if parseErr != nil {
		c.logger.Warn("gateway returned malformed JSON",
			zap.String("op", op),
			zap.Int("status", resp.StatusCode),
			zap.Int("bytes", len(raw)),
		)
	}
	return roundTrip{status: resp.StatusCode, payload: payload, parseErr: parseErr}, nil
}

// interpret applies the error taxonomy to a completed round trip.
func interpret(op string, rt roundTrip) error {
	status := rt.status
	if rt.parseErr != nil {
		return &TransportError{Op: op, Status: status, Err: rt.parseErr}
	}
	// a server failure is never a business answer, even when it carries an error field
	if status >= http.StatusInternalServerError {
		err := errors.New("server error")
		if msg := errorField(rt.payload); msg != "" {
			err = errors.New(msg)
		}
		return &TransportError{Op: op, Status: status, Err: err}
	}
	if msg := errorField(rt.payload); msg != "" {
		if strings.Contains(strings.ToLower(msg), "not found") {
			return ErrNotFound
		}
		return &BusinessError{Op: op, Status: status, Message: msg}
	}
	if status == http.StatusNotFound {
		return ErrNotFound
	}
	if status < 200 || status > 299 {
		return &TransportError{Op: op, Status: status, Err: errors.New("unexpected status")}
	}
	return nil
}

func (c *Client) call(ctx context.Context, op, method, path string, query url.Values, body any) (json.RawMessage, error) {
	rt, err := c.do(ctx, op, method, path, query, body)
	if err != nil {
		return nil, err
	}
	if err := interpret(op, rt); err != nil {
		return nil, err
	}
	return rt.payload, nil
}

func decode(op string, payload json.RawMessage, v any) error {
	if err := json.Unmarshal(payload, v); err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("%w: %v", ErrMalformedResponse, err)}
	}
	return nil
}

// FetchCard loads one member's card. A record with neither a display name nor a
// stamp count is treated as not found.
func (c *Client) FetchCard(ctx context.Context, email string) (m models.Member, err error) {
	start := time.Now()
	defer func() { observe(OpFetchCard, start, err) }()
	email = models.NormalizeEmail(email)
	payload, err := c.call(ctx, OpFetchCard, http.MethodGet, "/card", url.Values{"email": {email}}, nil)
	if err != nil {
		return models.Member{}, err
	}
	var w memberWire
	if err = decode(OpFetchCard, payload, &w); err != nil {
		return models.Member{}, err
	}
	if !w.hasCard() {
		err = ErrNotFound
		return models.Member{}, err
	}
	m = w.toMember()
	if m.Email == "" {
		m.Email = email
	}
	return m, nil
}

// UpsertMember creates or updates a member record and returns the stored record.
func (c *Client) UpsertMember(ctx context.Context, in UpsertRequest) (m models.Member, err error) {
	start := time.Now()
	defer func() { observe(OpUpsertMember, start, err) }()
	in.Email = models.NormalizeEmail(in.Email)
	payload, err := c.call(ctx, OpUpsertMember, http.MethodPost, "/card", nil, in)
	if err != nil {
		return models.Member{}, err
	}
	var w memberWire
	if err = decode(OpUpsertMember, payload, &w); err != nil {
		return models.Member{}, err
	}
	m = w.toMember()
	if m.Email == "" {
		m.Email = in.Email
	}
	if m.DisplayName == "" && in.DisplayName != nil {
		m.DisplayName = *in.DisplayName
	}
	return m, nil
}

// AddStamp records a visit. The result is the gateway's authoritative count.
func (c *Client) AddStamp(ctx context.Context, email string) (res StampResult, err error) {
	start := time.Now()
	defer func() { observe(OpAddStamp, start, err) }()
	body := map[string]string{"email": models.NormalizeEmail(email)}
	payload, err := c.call(ctx, OpAddStamp, http.MethodPost, "/stamp", nil, body)
	if err != nil {
		return StampResult{}, err
	}
	var w stampWire
	if err = decode(OpAddStamp, payload, &w); err != nil {
		return StampResult{}, err
	}
	if w.StampCount != nil {
		n := numberToInt(w.StampCount)
		res.StampCount = &n
	}
	res.PrizesClaimed = w.PrizesClaimed
	return res, nil
}

// ListMembers returns the full roster. A non-array answer is malformed.
func (c *Client) ListMembers(ctx context.Context) (members []models.Member, err error) {
	start := time.Now()
	defer func() { observe(OpListMembers, start, err) }()
	payload, err := c.call(ctx, OpListMembers, http.MethodGet, "/users", nil, nil)
	if err != nil {
		return nil, err
	}
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		err = &TransportError{Op: OpListMembers, Err: fmt.Errorf("%w: expected an array", ErrMalformedResponse)}
		return nil, err
	}
	var wires []memberWire
	if err = decode(OpListMembers, trimmed, &wires); err != nil {
		return nil, err
	}
	members = make([]models.Member, 0, len(wires))
	for _, w := range wires {
		members = append(members, w.toMember())
	}
	return members, nil
}

// DeleteMember removes a member. Deleting an absent member succeeds.
func (c *Client) DeleteMember(ctx context.Context, email string) (err error) {
	start := time.Now()
	defer func() { observe(OpDeleteMember, start, err) }()
	_, err = c.call(ctx, OpDeleteMember, http.MethodDelete, "/user", url.Values{"email": {models.NormalizeEmail(email)}}, nil)
	if errors.Is(err, ErrNotFound) {
		err = nil
	}
	return err
}

// FetchPrizes returns the configured prize table, which may be empty.
func (c *Client) FetchPrizes(ctx context.Context) (table models.PrizeTable, err error) {
	start := time.Now()
	defer func() { observe(OpFetchPrizes, start, err) }()
	payload, err := c.call(ctx, OpFetchPrizes, http.MethodGet, "/prizes", nil, nil)
	if err != nil {
		return nil, err
	}
	table, err = decodePrizes(OpFetchPrizes, payload)
	return table, err
}

// SavePrizes replaces the whole server table and returns the table the gateway echoes.
// When the gateway echoes nothing the sent table is returned.
func (c *Client) SavePrizes(ctx context.Context, table models.PrizeTable) (saved models.PrizeTable, err error) {
	start := time.Now()
	defer func() { observe(OpSavePrizes, start, err) }()
	if table == nil {
		table = models.PrizeTable{}
	}
	payload, err := c.call(ctx, OpSavePrizes, http.MethodPost, "/prizes", nil, prizesEnvelope{Prizes: table})
	if err != nil {
		return nil, err
	}
	saved, err = decodePrizes(OpSavePrizes, payload)
	if err != nil {
		return nil, err
	}
	if len(saved) == 0 {
		saved = table
	}
	return saved, nil
}

func decodePrizes(op string, payload json.RawMessage) (models.PrizeTable, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var table models.PrizeTable
		if err := decode(op, trimmed, &table); err != nil {
			return nil, err
		}
		return table, nil
	}
	var env prizesEnvelope
	if err := decode(op, trimmed, &env); err != nil {
		return nil, err
	}
	return env.Prizes, nil
}

// FetchAnnouncement returns the current announcement; empty text means none.
func (c *Client) FetchAnnouncement(ctx context.Context) (a models.Announcement, err error) {
	start := time.Now()
	defer func() { observe(OpFetchAnnouncement, start, err) }()
	payload, err := c.call(ctx, OpFetchAnnouncement, http.MethodGet, "/announcement", nil, nil)
	if err != nil {
		return models.Announcement{}, err
	}
	err = decode(OpFetchAnnouncement, payload, &a)
	return a, err
}

// SetAnnouncement replaces the announcement text.
func (c *Client) SetAnnouncement(ctx context.Context, text string) (err error) {
	start := time.Now()
	defer func() { observe(OpSetAnnouncement, start, err) }()
	_, err = c.call(ctx, OpSetAnnouncement, http.MethodPost, "/announcement", nil, models.Announcement{Text: text})
	return err
}

// AdminLogin asks the gateway to verify administrator credentials.
// Refusals come back as ErrInvalidCredentials.
func (c *Client) AdminLogin(ctx context.Context, email, password string) (auth AdminAuth, err error) {
	start := time.Now()
	defer func() { observe(OpAdminLogin, start, err) }()
	body := map[string]string{"email": models.NormalizeEmail(email), "password": password}
	rt, err := c.do(ctx, OpAdminLogin, http.MethodPost, "/admin-login", nil, body)
	if err != nil {
		return AdminAuth{}, err
	}
	if rt.status == http.StatusUnauthorized || rt.status == http.StatusForbidden {
		err = ErrInvalidCredentials
		return AdminAuth{}, err
	}
	if rt.status < http.StatusInternalServerError && rt.parseErr == nil && errorField(rt.payload) != "" {
		err = ErrInvalidCredentials
		return AdminAuth{}, err
	}
	if err = interpret(OpAdminLogin, rt); err != nil {
		return AdminAuth{}, err
	}
	var w adminLoginWire
	if err = decode(OpAdminLogin, rt.payload, &w); err != nil {
		return AdminAuth{}, err
	}
	if !w.accepted() {
		err = ErrInvalidCredentials
		return AdminAuth{}, err
	}
	return AdminAuth{Token: w.Token}, nil
}
