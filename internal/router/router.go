package router

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/cloudwego/hertz/pkg/route"

	"github.com/mbeoliero/campuschat/internal/handler"
	"github.com/mbeoliero/campuschat/internal/middleware"
	"github.com/mbeoliero/campuschat/pkg/ratelimit"
)

// Handlers holds all HTTP handlers
type Handlers struct {
	Auth *handler.AuthHandler
	User *handler.UserHandler
	Chat *handler.ChatHandler
}

// Options carries the collaborators routes are guarded by. Nil limiters
// disable rate limiting for their group.
type Options struct {
	Auth           middleware.TokenValidator
	ChatLimiter    ratelimit.Limiter
	GenericLimiter ratelimit.Limiter
	AllowedOrigins []string
}

// SetupRouter sets up all routes
func SetupRouter(r *route.Engine, handlers *Handlers, opts Options) {
	r.Use(middleware.AccessLog(), middleware.CORS(opts.AllowedOrigins))

	// Health check
	r.GET("/health", func(ctx context.Context, c *app.RequestContext) {
		c.JSON(consts.StatusOK, map[string]string{"status": "ok"})
	})

	api := r.Group("/api")

	// Auth routes (no auth required, except logout)
	authGroup := api.Group("/auth", middleware.RateLimit(opts.GenericLimiter))
	{
		authGroup.POST("/register", handlers.Auth.Register)
		authGroup.POST("/login", handlers.Auth.Login)
		authGroup.POST("/logout", middleware.JWTAuth(opts.Auth), handlers.Auth.Logout)
	}

	// User routes (auth required)
	userGroup := api.Group("/users", middleware.JWTAuth(opts.Auth), middleware.RateLimit(opts.GenericLimiter))
	{
		userGroup.GET("/me", handlers.User.GetMe)
		userGroup.GET("/:userId", handlers.User.GetUserById)
	}

	// Chat routes (auth required). Chat polls often, so it has its own,
	// larger budget instead of the generic one.
	chatGroup := api.Group("/chat", middleware.JWTAuth(opts.Auth), middleware.RateLimit(opts.ChatLimiter))
	{
		chatGroup.POST("/send", handlers.Chat.SendMessage)
		chatGroup.GET("/history/:userId", handlers.Chat.GetHistory)
		chatGroup.GET("/conversations", handlers.Chat.ListConversations)
		chatGroup.GET("/unread-count", handlers.Chat.GetUnreadCount)
		chatGroup.POST("/read/:userId", handlers.Chat.MarkRead)
	}
}
