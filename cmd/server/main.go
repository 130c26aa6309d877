package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/mbeoliero/kit/log"

	"github.com/mbeoliero/campuschat/internal/config"
	"github.com/mbeoliero/campuschat/internal/handler"
	"github.com/mbeoliero/campuschat/internal/repository"
	"github.com/mbeoliero/campuschat/internal/router"
	"github.com/mbeoliero/campuschat/internal/service"
	"github.com/mbeoliero/campuschat/pkg/constant"
	"github.com/mbeoliero/campuschat/pkg/idgen"
	"github.com/mbeoliero/campuschat/pkg/jwt"
	"github.com/mbeoliero/campuschat/pkg/ratelimit"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.CtxError(ctx, "failed to load config: %v", err)
		panic(err)
	}
	log.CtxInfo(ctx, "config loaded: mode=%s, database=%s, redis=%t", cfg.Server.Mode, cfg.Database.Driver, cfg.Redis.Enabled())

	constant.InitRedisKeyPrefix(cfg.Redis.KeyPrefix)
	idgen.SetMachineID(cfg.Server.MachineId)

	// Initialize repositories
	repos, err := repository.NewRepositories(cfg)
	if err != nil {
		log.CtxError(ctx, "failed to initialize repositories: %v", err)
		panic(err)
	}
	defer repos.Close()

	// Datastores may still be starting next to us; retry for a while.
	if err := repos.CheckConnection(ctx, 30*time.Second); err != nil {
		log.CtxError(ctx, "connection check failed: %v", err)
		panic(err)
	}
	log.CtxInfo(ctx, "database connection established")

	// Initialize services
	tokenStore := jwt.NewTokenStore(repos.Redis, cfg.JWT.ExpireHours)
	authService := service.NewAuthService(repos.User, cfg, tokenStore)
	userService := service.NewUserService(repos.User)
	chatService := service.NewChatService(repos)

	handlers := &router.Handlers{
		Auth: handler.NewAuthHandler(authService),
		User: handler.NewUserHandler(userService),
		Chat: handler.NewChatHandler(chatService),
	}

	opts := router.Options{
		Auth:           authService,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}
	if cfg.RateLimit.Enabled {
		opts.ChatLimiter = newLimiter(ctx, repos, constant.RateLimitGroupChat,
			ratelimit.Rule{Limit: cfg.RateLimit.ChatLimit, Window: cfg.RateLimit.ChatWindow})
		opts.GenericLimiter = newLimiter(ctx, repos, constant.RateLimitGroupGeneric,
			ratelimit.Rule{Limit: cfg.RateLimit.GenericLimit, Window: cfg.RateLimit.GenericWindow})
	}

	// Create Hertz server
	h := server.Default(
		server.WithHostPorts(fmt.Sprintf(":%d", cfg.Server.HTTPPort)),
	)

	router.SetupRouter(h.Engine, handlers, opts)

	log.CtxInfo(ctx, "server starting on port %d", cfg.Server.HTTPPort)

	// Start server in goroutine
	go func() {
		h.Spin()
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.CtxInfo(ctx, "shutting down server...")
	cancel()

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if err := h.Shutdown(shutdownCtx); err != nil {
		log.CtxError(ctx, "server shutdown error: %v", err)
	}

	log.CtxInfo(ctx, "server stopped")
}

// newLimiter shares limits across instances through Redis when available
func newLimiter(ctx context.Context, repos *repository.Repositories, group string, rule ratelimit.Rule) ratelimit.Limiter {
	if repos.Redis != nil {
		return ratelimit.NewRedisLimiter(repos.Redis, group, rule)
	}
	local := ratelimit.NewLocalLimiter(rule)
	go local.RunSweeper(ctx, time.Minute)
	return local
}
