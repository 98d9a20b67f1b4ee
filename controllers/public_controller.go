package controllers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/3run4/stampcard/models"
	"github.com/3run4/stampcard/utils"
)

// PublicGateway serves the endpoints that need no session.
type PublicGateway interface {
	FetchPrizes(ctx context.Context) (models.PrizeTable, error)
	FetchAnnouncement(ctx context.Context) (models.Announcement, error)
}

// Public answers are cached briefly; admin writes drop every key under this prefix.
const (
	publicCachePrefix = "stampcard:public:"
	prizesCacheKey    = publicCachePrefix + "prizes"
	announcementKey   = publicCachePrefix + "announcement"
	publicCacheTTL    = 30 * time.Second
)

// PublicController exposes the prize table and announcement.
type PublicController struct {
	gw      PublicGateway
	cache   *utils.Cache
	timeout time.Duration
}

// NewPublicController creates a new controller instance.
func NewPublicController(gw PublicGateway, cache *utils.Cache, timeout time.Duration) *PublicController {
	return &PublicController{gw: gw, cache: cache, timeout: timeout}
}

// Prizes returns the prize table ascending, or the default table when none is configured.
func (p *PublicController) Prizes(ctx *gin.Context) {
	var table models.PrizeTable
	if !p.cache.GetJSON(ctx.Request.Context(), prizesCacheKey, &table) {
		cctx, cancel := context.WithTimeout(ctx.Request.Context(), p.timeout)
		defer cancel()
		var err error
		table, err = p.gw.FetchPrizes(cctx)
		if err != nil {
			respondError(ctx, err, nil)
			return
		}
		p.cache.SetJSON(ctx.Request.Context(), prizesCacheKey, table, publicCacheTTL)
	}
	isDefault := len(table) == 0
	if isDefault {
		table = models.DefaultPrizeTable()
	}
	utils.Success(ctx, gin.H{"prizes": table.Sorted(), "default": isDefault})
}

// Announcement returns the current announcement text, sanitized for display.
func (p *PublicController) Announcement(ctx *gin.Context) {
	var a models.Announcement
	if !p.cache.GetJSON(ctx.Request.Context(), announcementKey, &a) {
		cctx, cancel := context.WithTimeout(ctx.Request.Context(), p.timeout)
		defer cancel()
		var err error
		a, err = p.gw.FetchAnnouncement(cctx)
		if err != nil {
			respondError(ctx, err, nil)
			return
		}
		p.cache.SetJSON(ctx.Request.Context(), announcementKey, a, publicCacheTTL)
	}
	utils.Success(ctx, models.Announcement{Text: utils.SanitizeText(a.Text)})
}
