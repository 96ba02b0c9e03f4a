package server

import (
	"net/http"
	"time"

	"attendance-cloud/internal/auth"
	"attendance-cloud/internal/docstore"
	"attendance-cloud/internal/handler"
	"attendance-cloud/internal/middleware"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type Deps struct {
	Store         docstore.Store
	TokenConfig   auth.TokenConfig
	StaticRoot    string
	EntryDocument string
	Version       string
	Logger        zerolog.Logger
	// AnonSignInLimit caps anonymous sign-ins per client IP per minute; 0 disables it.
	AnonSignInLimit int
}

// NewRouter assembles the HTTP API and static delivery. The returned func
// releases background work owned by the router.
func NewRouter(deps Deps) (*gin.Engine, func()) {
	if deps.EntryDocument == "" {
		deps.EntryDocument = "index.html"
	}
	if deps.StaticRoot == "" {
		deps.StaticRoot = "."
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(deps.Logger))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	versionHandler := &handler.VersionHandler{Version: deps.Version}
	r.GET("/v1/version", versionHandler.Get)

	authHandler := &handler.AuthHandler{TokenConfig: deps.TokenConfig, Logger: deps.Logger}
	anonLimiter := middleware.NewRateLimiter(deps.AnonSignInLimit, time.Minute)
	r.POST("/v1/auth/anonymous", middleware.RateLimit(anonLimiter), authHandler.Anonymous)
	r.POST("/v1/auth/token", authHandler.CustomToken)

	docs := r.Group("/v1/docs")
	docs.Use(middleware.RequireAuth(deps.TokenConfig))
	docHandler := &handler.DocumentHandler{Store: deps.Store, Logger: deps.Logger}
	docs.PUT("/*path", docHandler.Set)
	docs.PATCH("/*path", docHandler.Update)
	docs.DELETE("/*path", docHandler.Delete)

	listenHandler := &handler.ListenHandler{Store: deps.Store, TokenConfig: deps.TokenConfig, Logger: deps.Logger}
	r.GET("/v1/listen", listenHandler.Serve)

	static := &handler.StaticHandler{Root: deps.StaticRoot, EntryDocument: deps.EntryDocument}
	r.GET("/", static.Entry)
	r.HEAD("/", static.Entry)
	r.NoRoute(static.NoRoute)

	return r, anonLimiter.Close
}
