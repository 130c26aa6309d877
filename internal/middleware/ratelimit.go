package middleware

import (
	"context"
	"strconv"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/mbeoliero/kit/log"

	"github.com/mbeoliero/campuschat/pkg/errcode"
	"github.com/mbeoliero/campuschat/pkg/ratelimit"
	"github.com/mbeoliero/campuschat/pkg/response"
)

// RateLimit rejects requests beyond the limiter's budget with 429. Requests
// are keyed by user id once authenticated, otherwise by client IP. A nil
// limiter disables the check.
func RateLimit(limiter ratelimit.Limiter) app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		if limiter == nil {
			c.Next(ctx)
			return
		}

		allowed, err := limiter.Allow(ctx, identity(c))
		if err != nil {
			// The limiter store being down must not take chat down with it.
			log.CtxWarn(ctx, "rate limiter unavailable: path=%s, error=%v", c.Path(), err)
			c.Next(ctx)
			return
		}
		if !allowed {
			response.ErrorWithCode(ctx, c, errcode.ErrTooManyRequests)
			c.Abort()
			return
		}

		c.Next(ctx)
	}
}

func identity(c *app.RequestContext) string {
	if id := GetUserId(c); id > 0 {
		return "user:" + strconv.FormatInt(id, 10)
	}
	return "ip:" + c.ClientIP()
}
