// Package testutil builds throwaway datastores for package tests.
package testutil

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/mbeoliero/campuschat/internal/config"
	"github.com/mbeoliero/campuschat/internal/entity"
	"github.com/mbeoliero/campuschat/internal/repository"
)

// NewRepositories opens a migrated sqlite database in a temp dir, without
// Redis. It is closed when the test ends.
func NewRepositories(t testing.TB) *repository.Repositories {
	t.Helper()

	cfg := &config.Config{
		Server: config.ServerConfig{Mode: "test"},
		Database: config.DatabaseConfig{
			Driver:      "sqlite",
			Path:        filepath.Join(t.TempDir(), "campuschat.db"),
			AutoMigrate: true,
		},
		JWT: config.JWTConfig{Secret: "test-secret"},
	}
	cfg.SetDefaults()

	repos, err := repository.NewRepositories(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repos.Close() })
	return repos
}

// CreateUser inserts a user. A zero id lets the store assign one.
func CreateUser(t testing.TB, repos *repository.Repositories, id int64, username string) *entity.User {
	t.Helper()
	user := &entity.User{Id: id, Username: username, Password: "x"}
	require.NoError(t, repos.User.Create(context.Background(), user))
	require.NotZero(t, user.Id)
	return user
}

// NewRedis starts an in-process Redis server and returns a client for it.
// Both are shut down when the test ends.
func NewRedis(t testing.TB) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb, mr
}

// AttachRedis backs repos' Redis-based caches with an in-process server.
// Call it before building services on repos.
func AttachRedis(t testing.TB, repos *repository.Repositories) *miniredis.Miniredis {
	t.Helper()
	rdb, mr := NewRedis(t)
	repos.Redis = rdb
	repos.Unread = repository.NewUnreadCache(rdb, time.Minute)
	return mr
}
