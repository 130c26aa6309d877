package middleware

import (
	"context"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/mbeoliero/kit/log"

	"github.com/mbeoliero/campuschat/pkg/idgen"
)

const (
	// RequestIdHeader carries the request id in both directions
	RequestIdHeader = "X-Request-Id"
	// RequestIdKey is the context key for the request id
	RequestIdKey = "request_id"
)

// AccessLog assigns every request an id and logs it once it completes
func AccessLog() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		start := time.Now()

		requestId := string(c.GetHeader(RequestIdHeader))
		if requestId == "" {
			id, err := idgen.NextID()
			if err != nil {
				log.CtxWarn(ctx, "generate request id failed: %v", err)
			}
			requestId = id
		}
		if requestId != "" {
			c.Set(RequestIdKey, requestId)
			c.Header(RequestIdHeader, requestId)
		}

		c.Next(ctx)

		status := c.Response.StatusCode()
		latency := time.Since(start)
		if status >= 500 {
			log.CtxError(ctx, "request done: id=%s, method=%s, path=%s, status=%d, latency=%s",
				requestId, c.Method(), c.Path(), status, latency)
			return
		}
		log.CtxInfo(ctx, "request done: id=%s, method=%s, path=%s, status=%d, latency=%s",
			requestId, c.Method(), c.Path(), status, latency)
	}
}
