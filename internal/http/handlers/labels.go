package handlers

import (
	"context"
	"errors"
	"log"

	"github.com/valyala/fasthttp"
	"gopkg.in/yaml.v3"

	dbpkg "taskpulse/internal/db"
	"taskpulse/internal/gitlab"
	"taskpulse/internal/taxonomy"
)

// LabelLister lists the labels defined on an upstream project.
type LabelLister interface {
	Labels(ctx context.Context, projectID int64) ([]gitlab.Label, error)
}

// DiscoverLabelsHandler reads the labels of one ?project= (or of every active
// project) and proposes a taxonomy grouping them by keyword. ?format=yaml
// returns the proposal in the labels file format.
func DiscoverLabelsHandler(store *dbpkg.Store, lister LabelLister) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		project, ok := queryInt(ctx, "project", 0)
		if !ok {
			return
		}

		var ids []int64
		if project != 0 {
			if _, err := store.Project(ctx, int64(project)); err != nil {
				if errors.Is(err, dbpkg.ErrProjectNotFound) {
					errResponse(ctx, fasthttp.StatusNotFound, "project not found")
					return
				}
				errResponse(ctx, fasthttp.StatusInternalServerError, "failed to load project")
				return
			}
			ids = []int64{int64(project)}
		} else {
			projects, err := store.ActiveProjects(ctx)
			if err != nil {
				errResponse(ctx, fasthttp.StatusInternalServerError, "failed to load projects")
				return
			}
			for _, p := range projects {
				ids = append(ids, p.ID)
			}
		}

		var names []string
		failed := make([]int64, 0)
		for _, id := range ids {
			labels, err := lister.Labels(ctx, id)
			if err != nil {
				log.Printf("label discovery: project %d: %v", id, err)
				failed = append(failed, id)
				continue
			}
			for _, l := range labels {
				names = append(names, l.Name)
			}
		}
		if len(ids) > 0 && len(failed) == len(ids) {
			errResponse(ctx, fasthttp.StatusBadGateway, "failed to read labels upstream")
			return
		}

		proposal := taxonomy.Discover(names)
		if string(ctx.QueryArgs().Peek("format")) == "yaml" {
			out, err := yaml.Marshal(proposal)
			if err != nil {
				errResponse(ctx, fasthttp.StatusInternalServerError, "failed to encode taxonomy")
				return
			}
			ctx.SetContentType("application/yaml")
			ctx.SetBody(out)
			return
		}
		jsonResponse(ctx, map[string]any{
			"labels":          proposal.Mapping(),
			"scanned":         len(names),
			"failed_projects": failed,
		})
	}
}
