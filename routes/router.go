package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/3run4/stampcard/config"
	"github.com/3run4/stampcard/controllers"
	"github.com/3run4/stampcard/gateway"
	"github.com/3run4/stampcard/middleware"
	"github.com/3run4/stampcard/session"
	"github.com/3run4/stampcard/utils"
)

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(cfg config.AppConfig, client *gateway.Client, registry *session.Registry, cache *utils.Cache) *gin.Engine {
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	// Access log goes to its own rolling file; without one it joins the app log
	gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg)
	if err != nil {
		gl = utils.Logger
	}
	r.Use(ginzap.Ginzap(gl, time.RFC3339, true))
	r.Use(ginzap.RecoveryWithZap(gl, false))

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 0 || (len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*") {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	timeout := time.Duration(cfg.GatewayTimeoutSec) * time.Second
	issuer := utils.NewTokenIssuer(cfg.JWTSecret, time.Duration(cfg.SessionTTLMinutes)*time.Minute)

	memberController := controllers.NewMemberController(client, registry, issuer, timeout)
	adminController := controllers.NewAdminController(client, registry, issuer, cache, timeout)
	publicController := controllers.NewPublicController(client, cache, timeout)

	api := r.Group("/api/v1")
	api.Use(middleware.RateLimitMiddleware(cfg.RateLimitPerMinute))

	api.GET("/prizes", publicController.Prizes)
	api.GET("/announcement", publicController.Announcement)

	api.POST("/member/login", memberController.Login)
	memberGroup := api.Group("/member")
	memberGroup.Use(middleware.AuthRequired(issuer, utils.RoleMember))
	memberGroup.GET("/card", memberController.Card)
	memberGroup.POST("/waiver/present", memberController.PresentWaiver)
	memberGroup.POST("/waiver/accept", memberController.AcceptWaiver)
	memberGroup.POST("/profile", memberController.CompleteProfile)
	memberGroup.POST("/stamp", memberController.AddStamp)
	memberGroup.POST("/logout", memberController.Logout)

	api.POST("/admin/login", adminController.Login)
	adminGroup := api.Group("/admin")
	adminGroup.Use(middleware.AuthRequired(issuer, utils.RoleAdmin))
	adminGroup.POST("/logout", adminController.Logout)
	adminGroup.POST("/roster/refresh", adminController.RefreshRoster)
	adminGroup.GET("/roster", adminController.Roster)
	adminGroup.GET("/roster/export", adminController.Export)
	adminGroup.POST("/raffle", adminController.Raffle)
	adminGroup.PUT("/members/:email/edit", adminController.StageEdit)
	adminGroup.DELETE("/members/:email/edit", adminController.CancelEdit)
	adminGroup.POST("/members/:email/edit/commit", adminController.CommitEdit)
	adminGroup.POST("/members/:email/delete", adminController.RequestDelete)
	adminGroup.POST("/members/:email/delete/confirm", adminController.ConfirmDelete)
	adminGroup.DELETE("/members/:email/delete", adminController.CancelDelete)
	adminGroup.GET("/prizes", adminController.Prizes)
	adminGroup.POST("/prizes/entries", adminController.AddPrizeEntry)
	adminGroup.DELETE("/prizes/entries/:index", adminController.RemovePrizeEntry)
	adminGroup.POST("/prizes/save", adminController.SavePrizes)
	adminGroup.PUT("/announcement", adminController.SetAnnouncement)

	r.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusNotFound, 40400, "api route not found")
	})

	return r
}
