package handlers

import (
	"encoding/json"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	httpctx "taskpulse/internal/http/ctx"
)

// RequestLogger returns fasthttp middleware that logs method, path, status, duration.
func RequestLogger(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		start := time.Now()
		next(ctx)
		rid, _ := httpctx.RequestIDFromCtx(ctx)
		log.Printf("%s %s -> %d (%s) ip=%s rid=%s", ctx.Method(), ctx.Path(), ctx.Response.StatusCode(), time.Since(start), ctx.RemoteAddr(), rid)
	}
}

func jsonResponse(ctx *fasthttp.RequestCtx, data map[string]any) {
	ctx.SetContentType("application/json")
	body, _ := json.Marshal(data)
	ctx.SetBody(body)
}

func errResponse(ctx *fasthttp.RequestCtx, code int, msg string) {
	ctx.SetStatusCode(code)
	ctx.SetBodyString(msg)
}

// pathID reads a positive integer router parameter.
func pathID(ctx *fasthttp.RequestCtx, name string) (int64, bool) {
	v, _ := ctx.UserValue(name).(string)
	id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil || id <= 0 {
		errResponse(ctx, fasthttp.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}

// queryInt returns def when the parameter is absent and ok=false (after
// answering 400) when it is not an integer.
func queryInt(ctx *fasthttp.RequestCtx, name string, def int) (int, bool) {
	raw := strings.TrimSpace(string(ctx.QueryArgs().Peek(name)))
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		errResponse(ctx, fasthttp.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return n, true
}

// parseWindow reads month and year, defaulting to the current month.
func parseWindow(ctx *fasthttp.RequestCtx, now time.Time) (month, year int, ok bool) {
	if month, ok = queryInt(ctx, "month", int(now.Month())); !ok {
		return 0, 0, false
	}
	if year, ok = queryInt(ctx, "year", now.Year()); !ok {
		return 0, 0, false
	}
	if month < 1 || month > 12 || year < 2000 {
		errResponse(ctx, fasthttp.StatusBadRequest, "invalid month/year")
		return 0, 0, false
	}
	return month, year, true
}
