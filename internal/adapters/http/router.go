package http

import (
	"context"
	"net/http"

	"github.com/dkeye/Colla/internal/adapters/signal"
	"github.com/dkeye/Colla/internal/app/orch"
	"github.com/dkeye/Colla/internal/config"
	"github.com/dkeye/Colla/internal/identity"
	"github.com/dkeye/Colla/internal/metrics"
	"github.com/dkeye/Colla/internal/store"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
)

type Deps struct {
	Orch     *orch.Orchestrator
	Signal   *signal.SignalWSController
	Identity *identity.Service
	Tokens   *identity.Tokens
	Store    store.Store
	Metrics  *metrics.Metrics
}

// SetupRouter builds the gin engine and wraps it with CORS.
func SetupRouter(ctx context.Context, cfg *config.Config, d Deps) http.Handler {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	cookieStore := cookie.NewStore([]byte(cfg.Secret))
	cookieStore.Options(sessions.Options{Path: "/", MaxAge: int(cfg.Auth.TokenTTL.Seconds()), HttpOnly: true})
	r.Use(sessions.Sessions("CollaSessions", cookieStore))

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(cfg.StaticPath + "/index.html")
	})
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "connections": d.Orch.Registry.Count()})
	})
	r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))

	live := &LiveAPI{
		Orch:       d.Orch,
		Limiter:    NewRateLimiter(cfg.LeaveRate.Limit, cfg.LeaveRate.Interval),
		ICEServers: ICEServersFromConfig(cfg.ICEServers),
	}
	r.POST("/leave", live.leave)

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	api := r.Group("/api")
	api.GET("/ws", func(c *gin.Context) {
		d.Signal.HandleSignal(ctx, c)
	})
	api.GET("/ice-servers", live.iceServers)
	api.GET("/rooms/live", live.listRooms)
	api.GET("/rooms/live/:key/files", live.roomFiles)
	api.GET("/rooms/live/:key/messages", live.roomMessages)

	auth := &AuthAPI{Identity: d.Identity, Tokens: d.Tokens}
	api.POST("/auth", auth.signup)
	api.PUT("/auth", auth.login)
	api.GET("/auth/me", auth.RequireAuth(), auth.me)

	storage := &StorageAPI{Store: d.Store}
	api.GET("/rooms", auth.RequireAuth(), storage.listRooms)
	api.POST("/rooms", auth.RequireAuth(), storage.joinRoom)
	api.DELETE("/rooms", auth.RequireAuth(), storage.leaveRoom)
	api.GET("/fetchFile", storage.fetchFiles)
	api.POST("/saveCode", storage.saveFiles)

	return cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler(r)
}
