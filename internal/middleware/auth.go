package middleware

import (
	"context"
	"strings"

	"github.com/cloudwego/hertz/pkg/app"

	"github.com/mbeoliero/campuschat/pkg/errcode"
	"github.com/mbeoliero/campuschat/pkg/jwt"
	"github.com/mbeoliero/campuschat/pkg/response"
)

const (
	// AuthorizationHeader is the header key for authorization
	AuthorizationHeader = "Authorization"
	// BearerPrefix is the prefix for bearer token
	BearerPrefix = "Bearer "
	// UserIdKey is the context key for user Id
	UserIdKey = "user_id"
	// TokenIdKey is the context key for the token id (jti)
	TokenIdKey = "token_id"
)

// TokenValidator turns a bearer token into verified claims
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*jwt.Claims, error)
}

// JWTAuth is the JWT authentication middleware
func JWTAuth(validator TokenValidator) app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		authHeader := string(c.GetHeader(AuthorizationHeader))
		if authHeader == "" {
			response.ErrorWithCode(ctx, c, errcode.ErrTokenMissing)
			c.Abort()
			return
		}

		if !strings.HasPrefix(authHeader, BearerPrefix) {
			response.ErrorWithCode(ctx, c, errcode.ErrTokenInvalid)
			c.Abort()
			return
		}

		tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, BearerPrefix))
		claims, err := validator.ValidateToken(ctx, tokenString)
		if err != nil {
			e := errcode.From(err)
			if e.Status != errcode.ErrTokenInvalid.Status {
				e = errcode.ErrTokenInvalid
			}
			response.ErrorWithCode(ctx, c, e)
			c.Abort()
			return
		}

		c.Set(UserIdKey, claims.UserId)
		c.Set(TokenIdKey, claims.ID)

		c.Next(ctx)
	}
}

// GetUserId gets user Id from context, 0 when unauthenticated
func GetUserId(c *app.RequestContext) int64 {
	if v, ok := c.Get(UserIdKey); ok {
		if id, ok := v.(int64); ok {
			return id
		}
	}
	return 0
}

// GetTokenId gets the token id from context
func GetTokenId(c *app.RequestContext) string {
	return c.GetString(TokenIdKey)
}
