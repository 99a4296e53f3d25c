package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/valyala/fasthttp"

	dbpkg "taskpulse/internal/db"
	"taskpulse/internal/syncer"
)

// Syncer starts background runs and reports their progress.
type Syncer interface {
	StartFull() (string, error)
	StartProject(ctx context.Context, projectID int64) (string, error)
	StartAudit(ctx context.Context, month, year int, projectID int64) (string, error)
	Status(ctx context.Context) (syncer.Status, error)
}

func startResponse(ctx *fasthttp.RequestCtx, runID string, err error) {
	switch {
	case err == nil:
		ctx.SetStatusCode(fasthttp.StatusAccepted)
		jsonResponse(ctx, map[string]any{"status": "started", "run_id": runID})
	case errors.Is(err, syncer.ErrSyncInProgress):
		errResponse(ctx, fasthttp.StatusConflict, "sync already in progress")
	case errors.Is(err, dbpkg.ErrProjectNotFound):
		errResponse(ctx, fasthttp.StatusNotFound, "project not found")
	case errors.Is(err, syncer.ErrInvalidWindow):
		errResponse(ctx, fasthttp.StatusBadRequest, err.Error())
	default:
		errResponse(ctx, fasthttp.StatusInternalServerError, "failed to start sync")
	}
}

func SyncAllHandler(s Syncer) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		runID, err := s.StartFull()
		startResponse(ctx, runID, err)
	}
}

func SyncProjectHandler(s Syncer) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		id, ok := pathID(ctx, "id")
		if !ok {
			return
		}
		runID, err := s.StartProject(ctx, id)
		startResponse(ctx, runID, err)
	}
}

// SyncAuditHandler starts an audit run for ?month=&year= (default: current
// month) over one ?project= or every active project.
func SyncAuditHandler(s Syncer, now func() time.Time) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		month, year, ok := parseWindow(ctx, now().UTC())
		if !ok {
			return
		}
		project, ok := queryInt(ctx, "project", 0)
		if !ok {
			return
		}
		runID, err := s.StartAudit(ctx, month, year, int64(project))
		startResponse(ctx, runID, err)
	}
}

func SyncStatusHandler(s Syncer) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		st, err := s.Status(ctx)
		if err != nil {
			errResponse(ctx, fasthttp.StatusInternalServerError, "failed to load sync status")
			return
		}
		jsonResponse(ctx, map[string]any{"sync": st})
	}
}

func SyncRunsHandler(store *dbpkg.Store) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		limit, ok := queryInt(ctx, "limit", 50)
		if !ok {
			return
		}
		runs, err := store.RecentRuns(ctx, limit)
		if err != nil {
			errResponse(ctx, fasthttp.StatusInternalServerError, "failed to load runs")
			return
		}
		jsonResponse(ctx, map[string]any{"runs": runs})
	}
}
