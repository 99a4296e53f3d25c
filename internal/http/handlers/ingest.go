package handlers

import (
	"bytes"
	"strconv"

	"github.com/valyala/fasthttp"

	"taskpulse/internal/config"
	dbpkg "taskpulse/internal/db"
)

// ImportProjectsHandler accepts a project roster as CSV (project_id,
// project_name) and merges it into the monitored projects.
func ImportProjectsHandler(store *dbpkg.Store) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		projects, err := config.ParseProjects(bytes.NewReader(ctx.PostBody()))
		if err != nil {
			errResponse(ctx, fasthttp.StatusBadRequest, err.Error())
			return
		}
		if len(projects) == 0 {
			errResponse(ctx, fasthttp.StatusBadRequest, "no projects provided")
			return
		}

		res, err := store.ImportProjects(ctx, projects)
		if err != nil {
			errResponse(ctx, fasthttp.StatusInternalServerError, "failed to import projects")
			return
		}

		ctx.SetContentType("application/json")
		ctx.SetBodyString(`{"status":"imported","count":` + strconv.Itoa(len(projects)) +
			`,"created":` + strconv.Itoa(res.Created) + `,"renamed":` + strconv.Itoa(res.Renamed) + `}`)
	}
}
