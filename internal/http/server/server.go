// Package server assembles the HTTP router.
package server

import (
	"net/http"
	"reflect"
	"strings"
	"sync"

	"direct-chat/internal/auth"
	"direct-chat/internal/config"
	"direct-chat/internal/http/handlers"
	"direct-chat/internal/http/middleware"
	"direct-chat/internal/metrics"
	"direct-chat/internal/store"
	"direct-chat/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

type Deps struct {
	Config config.Config
	Store  *store.Store
	Hub    *ws.Hub
	Tokens *auth.Issuer
	Log    *zap.Logger
}

var registerTagName sync.Once

// New returns the router with every route mounted.
func New(d Deps) *gin.Engine {
	useJSONFieldNames()

	r := gin.New()
	r.Use(
		middleware.RequestID(),
		middleware.Logger(d.Log),
		middleware.Recovery(d.Log),
		middleware.Metrics(),
	)

	r.GET("/healthz", func(c *gin.Context) {
		if err := d.Store.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"message": "database unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	authH := &handlers.AuthHandler{
		Store:        d.Store,
		Tokens:       d.Tokens,
		CookieName:   d.Config.CookieName,
		CookieSecure: d.Config.CookieSecure,
		Log:          d.Log,
	}
	r.POST("/api/auth/register", authH.Register)
	r.POST("/api/auth/login", authH.Login)
	r.POST("/api/auth/logout", authH.Logout)

	requireSession := middleware.AuthMiddleware(d.Tokens, d.Config.CookieName)

	wsH := &handlers.WSHandler{
		Hub:                  d.Hub,
		Members:              d.Store,
		RequireMembership:    d.Config.WSRequireMembership,
		WSInsecureSkipVerify: d.Config.WSInsecureSkipVerify,
		OriginPatterns:       d.Config.WSOriginPatterns,
		Log:                  d.Log,
	}
	r.GET("/ws", requireSession, wsH.Handle)

	authed := r.Group("/api")
	authed.Use(requireSession)

	userH := &handlers.UserHandler{Store: d.Store, Log: d.Log}
	authed.GET("/users/search", userH.Search)
	authed.GET("/users/me", userH.Me)

	contactH := &handlers.ContactHandler{Store: d.Store, Log: d.Log}
	authed.GET("/contacts", contactH.List)
	authed.POST("/contacts", contactH.Add)

	limiter := middleware.NewRateLimiter(d.Config.MessageRatePerSec, d.Config.MessageBurst)
	chatH := &handlers.ChatHandler{Store: d.Store, Hub: d.Hub, Log: d.Log}
	authed.GET("/conversations", chatH.ListConversations)
	authed.POST("/conversations", chatH.CreateConversation)
	authed.GET("/conversations/:id", chatH.GetConversation)
	authed.GET("/conversations/:id/messages", chatH.ListMessages)
	authed.POST("/conversations/:id/messages", limiter.Handler(), chatH.SendMessage)

	return r
}

// useJSONFieldNames makes validation errors name fields as clients send them.
func useJSONFieldNames() {
	registerTagName.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return f.Name
			}
			return name
		})
	})
}
