package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/3run4/stampcard/member"
	"github.com/3run4/stampcard/middleware"
	"github.com/3run4/stampcard/models"
	"github.com/3run4/stampcard/session"
	"github.com/3run4/stampcard/utils"
)

// CardGateway is what the member endpoints need from the gateway.
type CardGateway interface {
	member.Gateway
	FetchPrizes(ctx context.Context) (models.PrizeTable, error)
}

// MemberController handles the member sign-in flow and stamp card.
type MemberController struct {
	gw       CardGateway
	registry *session.Registry
	issuer   *utils.TokenIssuer
	timeout  time.Duration
}

// NewMemberController creates a new controller instance.
func NewMemberController(gw CardGateway, registry *session.Registry, issuer *utils.TokenIssuer, timeout time.Duration) *MemberController {
	return &MemberController{gw: gw, registry: registry, issuer: issuer, timeout: timeout}
}

func (m *MemberController) newSession() *member.Session {
	return member.NewSession(m.gw, member.WithTimeout(m.timeout), member.WithLogger(utils.Logger))
}

// session resolves the caller's live session, rebuilding it from the cache if needed.
func (m *MemberController) session(ctx *gin.Context) (string, *member.Session, bool) {
	id := middleware.SessionID(ctx)
	s, err := m.registry.RestoreMember(ctx.Request.Context(), id, m.newSession)
	if err != nil {
		respondError(ctx, err, nil)
		return "", nil, false
	}
	return id, s, true
}

// Login starts a session for an email. Known members are signed in, unknown emails begin
// registration. A token is only issued when the gateway answered.
func (m *MemberController) Login(ctx *gin.Context) {
	var req struct {
		Email string `json:"email"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badPayload(ctx)
		return
	}

	s := m.newSession()
	view, err := s.Login(ctx.Request.Context(), req.Email)
	if err != nil {
		respondError(ctx, err, gin.H{"session": view})
		return
	}

	id := m.registry.AddMember(s)
	token, err := m.issuer.GenerateToken(id, utils.RoleMember)
	if err != nil {
		m.registry.Remove(ctx.Request.Context(), id)
		utils.Error(ctx, http.StatusInternalServerError, 50001, "could not issue session token")
		return
	}
	m.registry.Persist(ctx.Request.Context(), id)
	utils.Logger.Info("member signed in", zap.String("email", view.Email), zap.String("state", view.State.String()))
	utils.Success(ctx, gin.H{"token": token, "session": view})
}

// Card reloads the member's card and returns it with the grid, prizes and attendance.
func (m *MemberController) Card(ctx *gin.Context) {
	id, s, ok := m.session(ctx)
	if !ok {
		return
	}
	view, err := s.Refresh(ctx.Request.Context())
	if view.State == member.LoggedOut {
		m.registry.Remove(ctx.Request.Context(), id)
	} else {
		m.registry.Persist(ctx.Request.Context(), id)
	}
	payload := m.cardPayload(ctx.Request.Context(), view)
	if err != nil {
		respondError(ctx, err, payload)
		return
	}
	utils.Success(ctx, payload)
}

func (m *MemberController) cardPayload(ctx context.Context, view member.View) gin.H {
	payload := gin.H{"session": view}
	if view.Card == nil {
		return payload
	}

	cctx, cancel := context.WithTimeout(ctx, m.timeout)
	table, err := m.gw.FetchPrizes(cctx)
	cancel()
	if err != nil {
		utils.Logger.Warn("prize table unavailable, showing default", zap.Error(err))
	}
	if len(table) == 0 {
		table = models.DefaultPrizeTable()
	}
	table = table.Sorted()

	card := view.Card
	payload["prizes"] = table
	payload["grid"] = member.BuildGrid(card.StampCount, table, card.PrizesClaimed)
	payload["reached"] = member.ReachedPrizes(table, card.StampCount)
	if next, togo, ok := member.NextPrize(table, card.StampCount); ok {
		payload["next_prize"] = gin.H{"prize": next, "stamps_to_go": togo}
	}
	if summary, ok := member.SummarizeAttendance(card.AttendanceHistory); ok {
		payload["attendance"] = summary
	}
	payload["last_stamp_date"] = card.LastStampDate()
	return payload
}

// PresentWaiver marks the waiver as shown to a first-time registrant.
func (m *MemberController) PresentWaiver(ctx *gin.Context) {
	_, s, ok := m.session(ctx)
	if !ok {
		return
	}
	view, err := s.PresentWaiver()
	if err != nil {
		respondError(ctx, err, gin.H{"session": view})
		return
	}
	utils.Success(ctx, gin.H{"session": view})
}

// AcceptWaiver records waiver acceptance and moves on to profile setup.
func (m *MemberController) AcceptWaiver(ctx *gin.Context) {
	_, s, ok := m.session(ctx)
	if !ok {
		return
	}
	view, err := s.AcceptWaiver()
	if err != nil {
		respondError(ctx, err, gin.H{"session": view})
		return
	}
	utils.Success(ctx, gin.H{"session": view})
}

// CompleteProfile saves the display name and, for new members, the starting stamps.
func (m *MemberController) CompleteProfile(ctx *gin.Context) {
	id, s, ok := m.session(ctx)
	if !ok {
		return
	}
	var req member.ProfileInput
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badPayload(ctx)
		return
	}
	req.DisplayName = utils.SanitizeText(req.DisplayName)

	view, err := s.CompleteProfile(ctx.Request.Context(), req)
	if err != nil {
		respondError(ctx, err, gin.H{"session": view})
		return
	}
	m.registry.Persist(ctx.Request.Context(), id)
	utils.Success(ctx, m.cardPayload(ctx.Request.Context(), view))
}

// AddStamp records today's visit.
func (m *MemberController) AddStamp(ctx *gin.Context) {
	id, s, ok := m.session(ctx)
	if !ok {
		return
	}
	outcome, view, err := s.AddStamp(ctx.Request.Context())
	if err != nil {
		respondError(ctx, err, gin.H{"session": view})
		return
	}
	m.registry.Persist(ctx.Request.Context(), id)
	payload := m.cardPayload(ctx.Request.Context(), view)
	payload["stamp"] = outcome
	utils.Success(ctx, payload)
}

// Logout ends the session. Logging out twice is fine.
func (m *MemberController) Logout(ctx *gin.Context) {
	m.registry.Remove(ctx.Request.Context(), middleware.SessionID(ctx))
	utils.Success(ctx, gin.H{"state": member.LoggedOut})
}
