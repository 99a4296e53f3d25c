package middleware

import (
	"strings"

	"github.com/google/uuid"
	"github.com/valyala/fasthttp"

	httpctx "taskpulse/internal/http/ctx"
)

const requestIDHeader = "X-Request-ID"

// RequestID tags every request with the caller's X-Request-ID, or a fresh
// uuid, and echoes it on the response.
func RequestID(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		id := strings.TrimSpace(string(ctx.Request.Header.Peek(requestIDHeader)))
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		httpctx.SetRequestID(ctx, id)
		ctx.Response.Header.Set(requestIDHeader, id)
		next(ctx)
	}
}
