package handlers

import (
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	dbpkg "taskpulse/internal/db"
	"taskpulse/internal/taxonomy"
)

// ItemsHandler lists stored work items, optionally filtered by ?status=.
// ?raw=true includes the upstream record of each item.
func ItemsHandler(store *dbpkg.Store) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		status := ""
		if raw := strings.TrimSpace(string(ctx.QueryArgs().Peek("status"))); raw != "" {
			s, err := taxonomy.ParseStatus(raw)
			if err != nil {
				errResponse(ctx, fasthttp.StatusBadRequest, "status must be one of "+strings.Join(statusNames(), ", "))
				return
			}
			status = s.String()
		}
		withRaw, _ := strconv.ParseBool(string(ctx.QueryArgs().Peek("raw")))

		items, err := store.ItemsByStatus(ctx, status, withRaw)
		if err != nil {
			errResponse(ctx, fasthttp.StatusInternalServerError, "failed to load items")
			return
		}
		jsonResponse(ctx, map[string]any{
			"status": status,
			"count":  len(items),
			"items":  items,
		})
	}
}

// AuditHandler aggregates the audit window ?month=&year= (default: current
// month) per user, optionally for one ?project=.
func AuditHandler(store *dbpkg.Store, now func() time.Time) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		month, year, ok := parseWindow(ctx, now().UTC())
		if !ok {
			return
		}
		project, ok := queryInt(ctx, "project", 0)
		if !ok {
			return
		}

		users, err := store.AuditCounts(ctx, month, year, int64(project))
		if err != nil {
			errResponse(ctx, fasthttp.StatusInternalServerError, "failed to aggregate audit")
			return
		}
		jsonResponse(ctx, map[string]any{
			"month": month,
			"year":  year,
			"users": users,
		})
	}
}
