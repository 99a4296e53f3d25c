package handlers

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/valyala/fasthttp"

	dbpkg "taskpulse/internal/db"
	"taskpulse/internal/taxonomy"
)

func statusNames() []string {
	statuses := taxonomy.Statuses()
	names := make([]string, 0, len(statuses))
	for _, s := range statuses {
		names = append(names, s.String())
	}
	return names
}

// ListProjectsHandler returns the active projects with their item counts per
// status. ?all=true lists every monitored project without counts.
func ListProjectsHandler(store *dbpkg.Store) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		if all, _ := strconv.ParseBool(string(ctx.QueryArgs().Peek("all"))); all {
			projects, err := store.Projects(ctx)
			if err != nil {
				errResponse(ctx, fasthttp.StatusInternalServerError, "failed to load projects")
				return
			}
			jsonResponse(ctx, map[string]any{"projects": projects})
			return
		}

		summaries, err := store.ProjectSummaries(ctx, statusNames())
		if err != nil {
			errResponse(ctx, fasthttp.StatusInternalServerError, "failed to load projects")
			return
		}
		jsonResponse(ctx, map[string]any{
			"statuses": statusNames(),
			"projects": summaries,
		})
	}
}

type createProjectRequest struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func CreateProjectHandler(store *dbpkg.Store) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		var body createProjectRequest
		if err := json.Unmarshal(ctx.PostBody(), &body); err != nil {
			errResponse(ctx, fasthttp.StatusBadRequest, "invalid JSON body")
			return
		}
		if body.ID <= 0 {
			errResponse(ctx, fasthttp.StatusBadRequest, "id must be a positive integer")
			return
		}
		name := strings.TrimSpace(body.Name)
		if name == "" {
			name = "project " + strconv.FormatInt(body.ID, 10)
		}

		p, err := store.CreateProject(ctx, body.ID, name)
		if err != nil {
			if errors.Is(err, dbpkg.ErrProjectExists) {
				errResponse(ctx, fasthttp.StatusConflict, "project already exists")
				return
			}
			errResponse(ctx, fasthttp.StatusInternalServerError, "failed to create project")
			return
		}

		ctx.SetStatusCode(fasthttp.StatusCreated)
		jsonResponse(ctx, map[string]any{"project": p})
	}
}

// SetProjectActiveHandler handles POST /v1/projects/{id}/active?value=true|false.
func SetProjectActiveHandler(store *dbpkg.Store) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		id, ok := pathID(ctx, "id")
		if !ok {
			return
		}
		active, err := strconv.ParseBool(string(ctx.QueryArgs().Peek("value")))
		if err != nil {
			errResponse(ctx, fasthttp.StatusBadRequest, "value must be true or false")
			return
		}

		if err := store.SetProjectActive(ctx, id, active); err != nil {
			if errors.Is(err, dbpkg.ErrProjectNotFound) {
				errResponse(ctx, fasthttp.StatusNotFound, "project not found")
				return
			}
			errResponse(ctx, fasthttp.StatusInternalServerError, "failed to update project")
			return
		}
		jsonResponse(ctx, map[string]any{"id": id, "active": active})
	}
}
