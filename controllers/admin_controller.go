package controllers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/3run4/stampcard/admin"
	"github.com/3run4/stampcard/gateway"
	"github.com/3run4/stampcard/middleware"
	"github.com/3run4/stampcard/models"
	"github.com/3run4/stampcard/session"
	"github.com/3run4/stampcard/utils"
)

// AdminController serves the administrator console. Credentials are checked by the
// gateway; the console keeps the gateway's admin token server-side.
type AdminController struct {
	client   *gateway.Client
	registry *session.Registry
	issuer   *utils.TokenIssuer
	cache    *utils.Cache
	timeout  time.Duration
}

// NewAdminController creates a new controller instance.
func NewAdminController(client *gateway.Client, registry *session.Registry, issuer *utils.TokenIssuer, cache *utils.Cache, timeout time.Duration) *AdminController {
	return &AdminController{client: client, registry: registry, issuer: issuer, cache: cache, timeout: timeout}
}

func (a *AdminController) console(ctx *gin.Context) (*admin.Console, bool) {
	c, ok := a.registry.Console(middleware.SessionID(ctx))
	if !ok {
		respondError(ctx, session.ErrUnknownSession, nil)
		return nil, false
	}
	return c, true
}

// Login authenticates against the gateway and opens a console with a fresh roster.
func (a *AdminController) Login(ctx *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badPayload(ctx)
		return
	}

	c, err := admin.Authenticate(ctx.Request.Context(), a.client, req.Email, req.Password,
		admin.WithTimeout(a.timeout), admin.WithLogger(utils.Logger))
	if err != nil {
		utils.Logger.Warn("admin login refused", zap.String("email", models.NormalizeEmail(req.Email)), zap.Error(err))
		respondError(ctx, err, nil)
		return
	}

	id := a.registry.AddConsole(c)
	token, err := a.issuer.GenerateToken(id, utils.RoleAdmin)
	if err != nil {
		a.registry.Remove(ctx.Request.Context(), id)
		utils.Error(ctx, http.StatusInternalServerError, 50001, "could not issue session token")
		return
	}

	data := gin.H{"token": token, "admin": c.Identity()}
	if err := c.Refresh(ctx.Request.Context()); err != nil {
		data["roster_error"] = userMessage(err)
	}
	if _, err := c.LoadPrizes(ctx.Request.Context()); err != nil {
		data["prizes_error"] = userMessage(err)
	}
	utils.Logger.Info("admin signed in", zap.String("admin", c.Identity()))
	utils.Success(ctx, data)
}

// Logout closes the console.
func (a *AdminController) Logout(ctx *gin.Context) {
	a.registry.Remove(ctx.Request.Context(), middleware.SessionID(ctx))
	utils.Success(ctx, gin.H{"logged_out": true})
}

// RefreshRoster reloads every member from the gateway.
func (a *AdminController) RefreshRoster(ctx *gin.Context) {
	c, ok := a.console(ctx)
	if !ok {
		return
	}
	if err := c.Refresh(ctx.Request.Context()); err != nil {
		respondError(ctx, err, nil)
		return
	}
	a.rosterResponse(ctx, c)
}

// Roster returns the filtered and sorted roster view.
func (a *AdminController) Roster(ctx *gin.Context) {
	c, ok := a.console(ctx)
	if !ok {
		return
	}
	a.rosterResponse(ctx, c)
}

func (a *AdminController) rosterResponse(ctx *gin.Context, c *admin.Console) {
	q, err := queryFromRequest(ctx)
	if err != nil {
		respondError(ctx, err, nil)
		return
	}
	rows, err := c.View(q)
	if err != nil {
		respondError(ctx, err, nil)
		return
	}
	utils.Success(ctx, gin.H{
		"members":        rows,
		"count":          len(rows),
		"total":          len(c.Roster().Members()),
		"refreshed_at":   c.Roster().RefreshedAt(),
		"edits":          c.Edits(),
		"pending_delete": c.PendingDelete(),
		"sort":           q.Column,
		"dir":            q.Direction,
	})
}

func queryFromRequest(ctx *gin.Context) (admin.Query, error) {
	week, err := admin.ParseWeekMode(ctx.Query("week"))
	if err != nil {
		return admin.Query{}, err
	}
	col, err := admin.ParseColumn(ctx.Query("sort"))
	if err != nil {
		return admin.Query{}, err
	}
	dir, err := admin.ParseDirection(ctx.Query("dir"))
	if err != nil {
		return admin.Query{}, err
	}
	return admin.Query{
		Search:    ctx.Query("search"),
		Week:      week,
		Date:      ctx.Query("date"),
		Column:    col,
		Direction: dir,
	}, nil
}

// Export downloads the current roster view as CSV.
func (a *AdminController) Export(ctx *gin.Context) {
	c, ok := a.console(ctx)
	if !ok {
		return
	}
	q, err := queryFromRequest(ctx)
	if err != nil {
		respondError(ctx, err, nil)
		return
	}
	layout, err := admin.ParseLayout(ctx.Query("layout"))
	if err != nil {
		respondError(ctx, err, nil)
		return
	}
	var buf bytes.Buffer
	if err := c.Export(&buf, q, layout); err != nil {
		respondError(ctx, err, nil)
		return
	}
	ctx.Header("Content-Disposition", `attachment; filename="users.csv"`)
	ctx.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

// Raffle draws a winner among members who attended the selected week.
func (a *AdminController) Raffle(ctx *gin.Context) {
	c, ok := a.console(ctx)
	if !ok {
		return
	}
	q, err := queryFromRequest(ctx)
	if err != nil {
		respondError(ctx, err, nil)
		return
	}
	if q.Week == admin.WeekAll {
		q.Week = admin.WeekThis
	}
	anchor, err := admin.ResolveAnchor(q.Week, q.Date, c.Today())
	if err != nil {
		respondError(ctx, err, nil)
		return
	}
	winner, pool, found, err := c.Raffle(q)
	if err != nil {
		respondError(ctx, err, nil)
		return
	}
	data := gin.H{
		"week_of":    anchor.Format(admin.DateLayout),
		"eligible":   len(pool),
		"has_winner": found,
	}
	if found {
		data["winner"] = winner
		utils.Logger.Info("raffle drawn", zap.String("admin", c.Identity()), zap.String("winner", winner.Email), zap.Int("eligible", len(pool)))
	}
	utils.Success(ctx, data)
}

// StageEdit stores a typed stamp count for a member. The value may be sent as a string or number.
func (a *AdminController) StageEdit(ctx *gin.Context) {
	c, ok := a.console(ctx)
	if !ok {
		return
	}
	var req struct {
		StampCount json.RawMessage `json:"stamp_count"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badPayload(ctx)
		return
	}
	raw := rawText(req.StampCount)
	if err := c.StageEdit(ctx.Param("email"), raw); err != nil {
		respondError(ctx, err, nil)
		return
	}
	utils.Success(ctx, gin.H{"edits": c.Edits()})
}

// rawText returns a JSON string's contents, or any other JSON value's literal text.
func rawText(v json.RawMessage) string {
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s
	}
	t := strings.TrimSpace(string(v))
	if t == "null" {
		return ""
	}
	return t
}

// CancelEdit discards a staged edit.
func (a *AdminController) CancelEdit(ctx *gin.Context) {
	c, ok := a.console(ctx)
	if !ok {
		return
	}
	c.CancelEdit(ctx.Param("email"))
	utils.Success(ctx, gin.H{"edits": c.Edits()})
}

// CommitEdit saves a staged stamp count.
func (a *AdminController) CommitEdit(ctx *gin.Context) {
	c, ok := a.console(ctx)
	if !ok {
		return
	}
	m, err := c.CommitEdit(ctx.Request.Context(), ctx.Param("email"))
	if err != nil {
		respondError(ctx, err, gin.H{"edits": c.Edits()})
		return
	}
	utils.Success(ctx, gin.H{"member": m, "edits": c.Edits()})
}

// RequestDelete asks for confirmation before deleting a member.
func (a *AdminController) RequestDelete(ctx *gin.Context) {
	c, ok := a.console(ctx)
	if !ok {
		return
	}
	if err := c.RequestDelete(ctx.Param("email")); err != nil {
		respondError(ctx, err, nil)
		return
	}
	utils.Success(ctx, gin.H{"pending_delete": c.PendingDelete()})
}

// ConfirmDelete deletes a member after RequestDelete.
func (a *AdminController) ConfirmDelete(ctx *gin.Context) {
	c, ok := a.console(ctx)
	if !ok {
		return
	}
	if err := c.ConfirmDelete(ctx.Request.Context(), ctx.Param("email")); err != nil {
		respondError(ctx, err, gin.H{"pending_delete": c.PendingDelete()})
		return
	}
	utils.Success(ctx, gin.H{"deleted": models.NormalizeEmail(ctx.Param("email"))})
}

// CancelDelete closes the delete confirmation.
func (a *AdminController) CancelDelete(ctx *gin.Context) {
	c, ok := a.console(ctx)
	if !ok {
		return
	}
	c.CancelDelete()
	utils.Success(ctx, gin.H{"pending_delete": ""})
}

// Prizes returns the prize table being edited. reload=1 pulls it from the gateway first.
func (a *AdminController) Prizes(ctx *gin.Context) {
	c, ok := a.console(ctx)
	if !ok {
		return
	}
	if ctx.Query("reload") == "1" {
		if _, err := c.LoadPrizes(ctx.Request.Context()); err != nil {
			respondError(ctx, err, nil)
			return
		}
	}
	utils.Success(ctx, gin.H{"prizes": c.Prizes().Entries(), "dirty": c.Prizes().Dirty()})
}

// AddPrizeEntry appends a prize to the working table.
func (a *AdminController) AddPrizeEntry(ctx *gin.Context) {
	c, ok := a.console(ctx)
	if !ok {
		return
	}
	var req models.Prize
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badPayload(ctx)
		return
	}
	if err := c.Prizes().AddEntry(req.Stamps, utils.SanitizeText(req.Prize)); err != nil {
		respondError(ctx, err, nil)
		return
	}
	utils.Success(ctx, gin.H{"prizes": c.Prizes().Entries(), "dirty": true})
}

// RemovePrizeEntry drops the prize at the displayed position.
func (a *AdminController) RemovePrizeEntry(ctx *gin.Context) {
	c, ok := a.console(ctx)
	if !ok {
		return
	}
	index, err := strconv.Atoi(ctx.Param("index"))
	if err != nil {
		respondError(ctx, models.Invalid("index", "Position must be a number."), nil)
		return
	}
	if err := c.Prizes().RemoveEntry(index); err != nil {
		respondError(ctx, err, nil)
		return
	}
	utils.Success(ctx, gin.H{"prizes": c.Prizes().Entries(), "dirty": true})
}

// SavePrizes replaces the server's prize table with the working table, sorted.
func (a *AdminController) SavePrizes(ctx *gin.Context) {
	c, ok := a.console(ctx)
	if !ok {
		return
	}
	table, err := c.SavePrizes(ctx.Request.Context())
	if err != nil {
		respondError(ctx, err, gin.H{"prizes": table})
		return
	}
	a.cache.InvalidateByPrefix(ctx.Request.Context(), publicCachePrefix)
	utils.Success(ctx, gin.H{"prizes": table, "dirty": false})
}

// SetAnnouncement replaces the club announcement.
func (a *AdminController) SetAnnouncement(ctx *gin.Context) {
	c, ok := a.console(ctx)
	if !ok {
		return
	}
	var req models.Announcement
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badPayload(ctx)
		return
	}
	text := utils.SanitizeText(req.Text)
	if err := c.SetAnnouncement(ctx.Request.Context(), text); err != nil {
		respondError(ctx, err, nil)
		return
	}
	a.cache.InvalidateByPrefix(ctx.Request.Context(), publicCachePrefix)
	utils.Success(ctx, models.Announcement{Text: text})
}
