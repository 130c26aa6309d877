package router_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	hzconfig "github.com/cloudwego/hertz/pkg/common/config"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/cloudwego/hertz/pkg/route"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbeoliero/campuschat/internal/config"
	"github.com/mbeoliero/campuschat/internal/handler"
	"github.com/mbeoliero/campuschat/internal/repository"
	"github.com/mbeoliero/campuschat/internal/router"
	"github.com/mbeoliero/campuschat/internal/service"
	"github.com/mbeoliero/campuschat/internal/testutil"
	"github.com/mbeoliero/campuschat/pkg/ratelimit"
)

type testServer struct {
	engine *route.Engine
	repos  *repository.Repositories
	auth   *service.AuthService
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func newTestServer(t *testing.T, chatLimiter ratelimit.Limiter) *testServer {
	t.Helper()
	repos := testutil.NewRepositories(t)
	cfg := &config.Config{JWT: config.JWTConfig{Secret: "router-secret", ExpireHours: 1}}

	auth := service.NewAuthService(repos.User, cfg, nil)
	handlers := &router.Handlers{
		Auth: handler.NewAuthHandler(auth),
		User: handler.NewUserHandler(service.NewUserService(repos.User)),
		Chat: handler.NewChatHandler(service.NewChatService(repos)),
	}

	engine := route.NewEngine(hzconfig.NewOptions([]hzconfig.Option{}))
	router.SetupRouter(engine, handlers, router.Options{
		Auth:        auth,
		ChatLimiter: chatLimiter,
	})
	return &testServer{engine: engine, repos: repos, auth: auth}
}

func (s *testServer) do(t *testing.T, method, url, token string, body interface{}) (int, envelope) {
	t.Helper()
	var reqBody *ut.Body
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reqBody = &ut.Body{Body: bytes.NewReader(raw), Len: len(raw)}
	}
	headers := []ut.Header{{Key: "Content-Type", Value: "application/json"}}
	if token != "" {
		headers = append(headers, ut.Header{Key: "Authorization", Value: "Bearer " + token})
	}

	w := ut.PerformRequest(s.engine, method, url, reqBody, headers...)
	resp := w.Result()

	var env envelope
	if len(resp.Body()) > 0 {
		require.NoError(t, json.Unmarshal(resp.Body(), &env), string(resp.Body()))
	}
	return resp.StatusCode(), env
}

// signup registers and logs in a user, returning its id and token
func (s *testServer) signup(t *testing.T, username string) (int64, string) {
	t.Helper()
	status, env := s.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": username, "password": "password1",
	})
	require.Equal(t, http.StatusCreated, status, env.Error)

	status, env = s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": username, "password": "password1",
	})
	require.Equal(t, http.StatusOK, status, env.Error)

	var login struct {
		Token string `json:"token"`
		User  struct {
			Id int64 `json:"id"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &login))
	return login.User.Id, login.Token
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil)
	w := ut.PerformRequest(s.engine, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Result().StatusCode())
	assert.JSONEq(t, `{"status":"ok"}`, string(w.Result().Body()))
}

func TestChatFlow(t *testing.T) {
	s := newTestServer(t, nil)
	aliceId, aliceToken := s.signup(t, "alice")
	bobId, bobToken := s.signup(t, "bob")

	t.Run("send", func(t *testing.T) {
		status, env := s.do(t, http.MethodPost, "/api/chat/send", aliceToken, map[string]interface{}{
			"receiverId": bobId, "message": "hello bob",
		})
		require.Equal(t, http.StatusCreated, status, env.Error)
		assert.Equal(t, http.StatusCreated, env.Code)

		var msg map[string]interface{}
		require.NoError(t, json.Unmarshal(env.Data, &msg))
		assert.Equal(t, false, msg["is_read"])
		assert.Equal(t, "hello bob", msg["message"])
		assert.Equal(t, "alice", msg["sender_username"])
		assert.Equal(t, "bob", msg["receiver_username"])
	})

	t.Run("send with snake case receiver", func(t *testing.T) {
		status, env := s.do(t, http.MethodPost, "/api/chat/send", aliceToken, map[string]interface{}{
			"receiver_id": bobId, "message": "again",
		})
		require.Equal(t, http.StatusCreated, status, env.Error)
	})

	t.Run("unread count", func(t *testing.T) {
		status, env := s.do(t, http.MethodGet, "/api/chat/unread-count", bobToken, nil)
		require.Equal(t, http.StatusOK, status)
		assert.JSONEq(t, `{"unread_count":2}`, string(env.Data))
	})

	t.Run("conversations", func(t *testing.T) {
		status, env := s.do(t, http.MethodGet, "/api/chat/conversations", bobToken, nil)
		require.Equal(t, http.StatusOK, status)

		var data struct {
			Conversations []struct {
				PeerId       int64  `json:"peer_id"`
				PeerUsername string `json:"peer_username"`
				LastMessage  string `json:"last_message"`
				UnreadCount  int64  `json:"unread_count"`
			} `json:"conversations"`
			Pagination struct {
				Total   int64 `json:"total"`
				HasNext bool  `json:"hasNext"`
			} `json:"pagination"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &data))
		require.Len(t, data.Conversations, 1)
		assert.Equal(t, aliceId, data.Conversations[0].PeerId)
		assert.Equal(t, "alice", data.Conversations[0].PeerUsername)
		assert.Equal(t, "again", data.Conversations[0].LastMessage)
		assert.Equal(t, int64(2), data.Conversations[0].UnreadCount)
		assert.Equal(t, int64(1), data.Pagination.Total)
	})

	t.Run("history marks read", func(t *testing.T) {
		status, env := s.do(t, http.MethodGet, fmt.Sprintf("/api/chat/history/%d?limit=500", aliceId), bobToken, nil)
		require.Equal(t, http.StatusOK, status, env.Error)

		var data struct {
			Messages []struct {
				Message string `json:"message"`
			} `json:"messages"`
			Pagination struct {
				Limit int `json:"limit"`
			} `json:"pagination"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &data))
		require.Len(t, data.Messages, 2)
		assert.Equal(t, "hello bob", data.Messages[0].Message)
		assert.Equal(t, "again", data.Messages[1].Message)
		assert.Equal(t, 100, data.Pagination.Limit)

		_, env = s.do(t, http.MethodGet, "/api/chat/unread-count", bobToken, nil)
		assert.JSONEq(t, `{"unread_count":0}`, string(env.Data))
	})

	t.Run("mark read", func(t *testing.T) {
		status, env := s.do(t, http.MethodPost, fmt.Sprintf("/api/chat/read/%d", aliceId), bobToken, nil)
		require.Equal(t, http.StatusOK, status, env.Error)
		assert.JSONEq(t, `{"marked":0}`, string(env.Data))
	})

	t.Run("users", func(t *testing.T) {
		status, env := s.do(t, http.MethodGet, "/api/users/me", aliceToken, nil)
		require.Equal(t, http.StatusOK, status)
		assert.Contains(t, string(env.Data), `"username":"alice"`)

		status, env = s.do(t, http.MethodGet, fmt.Sprintf("/api/users/%d", bobId), aliceToken, nil)
		require.Equal(t, http.StatusOK, status)
		assert.Contains(t, string(env.Data), `"username":"bob"`)
	})
}

func TestChatErrors(t *testing.T) {
	s := newTestServer(t, nil)
	aliceId, aliceToken := s.signup(t, "alice")

	cases := []struct {
		name   string
		method string
		url    string
		token  string
		body   interface{}
		status int
	}{
		{"missing token", http.MethodGet, "/api/chat/unread-count", "", nil, http.StatusUnauthorized},
		{"bad token", http.MethodGet, "/api/chat/unread-count", "garbage", nil, http.StatusUnauthorized},
		{"self send", http.MethodPost, "/api/chat/send", aliceToken, map[string]interface{}{"receiverId": aliceId, "message": "me"}, http.StatusBadRequest},
		{"empty message", http.MethodPost, "/api/chat/send", aliceToken, map[string]interface{}{"receiverId": aliceId + 1, "message": ""}, http.StatusBadRequest},
		{"missing receiver", http.MethodPost, "/api/chat/send", aliceToken, map[string]interface{}{"message": "hi"}, http.StatusBadRequest},
		{"unknown receiver", http.MethodPost, "/api/chat/send", aliceToken, map[string]interface{}{"receiverId": 999, "message": "hi"}, http.StatusNotFound},
		{"self history", http.MethodGet, fmt.Sprintf("/api/chat/history/%d", aliceId), aliceToken, nil, http.StatusBadRequest},
		{"bad peer id", http.MethodGet, "/api/chat/history/abc", aliceToken, nil, http.StatusBadRequest},
		{"unknown peer", http.MethodGet, "/api/chat/history/999", aliceToken, nil, http.StatusNotFound},
		{"unknown user", http.MethodGet, "/api/users/999", aliceToken, nil, http.StatusNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, env := s.do(t, tc.method, tc.url, tc.token, tc.body)
			assert.Equal(t, tc.status, status)
			assert.NotEmpty(t, env.Error)
		})
	}
}

func TestAuthErrors(t *testing.T) {
	s := newTestServer(t, nil)
	s.signup(t, "alice")

	status, env := s.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "alice", "password": "password1",
	})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "username already taken", env.Error)

	status, _ = s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": "alice", "password": "nope-nope",
	})
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestChatRateLimit(t *testing.T) {
	limiter := ratelimit.NewLocalLimiter(ratelimit.Rule{Limit: 2, Window: time.Hour})
	s := newTestServer(t, limiter)
	_, token := s.signup(t, "alice")
	_, otherToken := s.signup(t, "bob")

	for i := 0; i < 2; i++ {
		status, _ := s.do(t, http.MethodGet, "/api/chat/unread-count", token, nil)
		require.Equal(t, http.StatusOK, status)
	}

	status, env := s.do(t, http.MethodGet, "/api/chat/unread-count", token, nil)
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.NotEmpty(t, env.Error)

	status, _ = s.do(t, http.MethodGet, "/api/chat/unread-count", otherToken, nil)
	assert.Equal(t, http.StatusOK, status, "budgets are per user")

	allowed, err := limiter.Allow(context.Background(), "user:0")
	require.NoError(t, err)
	assert.True(t, allowed)
}
