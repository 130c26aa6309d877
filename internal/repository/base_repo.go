package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/glebarez/sqlite"
	"github.com/mbeoliero/kit/log"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mbeoliero/campuschat/internal/config"
	"github.com/mbeoliero/campuschat/internal/entity"
)

// Repositories holds all repositories
type Repositories struct {
	DB           *gorm.DB
	Redis        *redis.Client
	User         *UserRepo
	Message      *MessageRepo
	Conversation *ConversationRepo
	Unread       *UnreadCache
}

// NewRepositories opens the datastore and, when configured, Redis
func NewRepositories(cfg *config.Config) (*Repositories, error) {
	db, err := openDatabase(cfg)
	if err != nil {
		return nil, err
	}

	var rdb *redis.Client
	if cfg.Redis.Enabled() {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	repos := NewRepositoriesWithDB(db, rdb, cfg.Chat.UnreadCacheTTL)
	if cfg.Database.AutoMigrate {
		if err := repos.AutoMigrate(); err != nil {
			return nil, fmt.Errorf("auto migrate failed: %w", err)
		}
	}
	return repos, nil
}

// NewRepositoriesWithDB wires repositories over existing connections. rdb may be nil.
func NewRepositoriesWithDB(db *gorm.DB, rdb *redis.Client, unreadTTL time.Duration) *Repositories {
	return &Repositories{
		DB:           db,
		Redis:        rdb,
		User:         NewUserRepo(db),
		Message:      NewMessageRepo(db),
		Conversation: NewConversationRepo(db),
		Unread:       NewUnreadCache(rdb, unreadTTL),
	}
}

// openDatabase opens a gorm connection for the configured driver
func openDatabase(cfg *config.Config) (*gorm.DB, error) {
	var logLevel logger.LogLevel
	if cfg.Server.Mode == "debug" {
		logLevel = logger.Info
	} else {
		logLevel = logger.Warn
	}

	var dialector gorm.Dialector
	switch cfg.Database.Driver {
	case "postgres":
		dialector = postgres.Open(cfg.Database.DSN())
	case "sqlite":
		dialector = sqlite.Open(cfg.Database.DSN())
	default:
		dialector = mysql.Open(cfg.Database.DSN())
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	if cfg.Database.Driver == "sqlite" {
		// sqlite serializes writers; one connection avoids "database is locked".
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	}
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}

// AutoMigrate creates or updates the chat tables
func (r *Repositories) AutoMigrate() error {
	return r.DB.AutoMigrate(&entity.User{}, &entity.Message{}, &entity.Conversation{})
}

// Close closes all connections
func (r *Repositories) Close() error {
	sqlDB, err := r.DB.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.Close(); err != nil {
		return err
	}
	if r.Redis != nil {
		return r.Redis.Close()
	}
	return nil
}

// Transaction executes fn in a transaction
func (r *Repositories) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.DB.WithContext(ctx).Transaction(fn)
}

// CheckConnection pings the database and Redis, retrying with exponential
// backoff until maxElapsed has passed.
func (r *Repositories) CheckConnection(ctx context.Context, maxElapsed time.Duration) error {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = maxElapsed

	ping := func() error {
		sqlDB, err := r.DB.DB()
		if err != nil {
			return backoff.Permanent(err)
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			log.CtxWarn(ctx, "database ping failed: %v", err)
			return err
		}
		if r.Redis != nil {
			if err := r.Redis.Ping(ctx).Err(); err != nil {
				log.CtxWarn(ctx, "redis ping failed: %v", err)
				return err
			}
		}
		return nil
	}

	return backoff.Retry(ping, backoff.WithContext(bo, ctx))
}
