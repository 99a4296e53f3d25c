package handlers

import (
	"context"
	"strings"
	"testing"

	"github.com/valyala/fasthttp"
)

func TestProjectHandlers(t *testing.T) {
	store := newTestStore(t)
	create := CreateProjectHandler(store)

	ctx := newCtx("POST", "/v1/projects", []byte(`{"id":7,"name":"Portal"}`))
	create(ctx)
	if ctx.Response.StatusCode() != fasthttp.StatusCreated {
		t.Fatalf("create status = %d body=%s", ctx.Response.StatusCode(), ctx.Response.Body())
	}

	ctx = newCtx("POST", "/v1/projects", []byte(`{"id":7,"name":"again"}`))
	create(ctx)
	if ctx.Response.StatusCode() != fasthttp.StatusConflict {
		t.Fatalf("duplicate status = %d", ctx.Response.StatusCode())
	}

	for _, body := range []string{`{"id":0}`, `not json`} {
		ctx = newCtx("POST", "/v1/projects", []byte(body))
		create(ctx)
		if ctx.Response.StatusCode() != fasthttp.StatusBadRequest {
			t.Fatalf("create %s status = %d", body, ctx.Response.StatusCode())
		}
	}

	ctx = newCtx("POST", "/v1/projects", []byte(`{"id":9}`))
	create(ctx)
	if p, err := store.Project(context.Background(), 9); err != nil || p.Name != "project 9" {
		t.Fatalf("unnamed project = %+v, %v", p, err)
	}

	setActive := SetProjectActiveHandler(store)
	ctx = newCtx("POST", "/v1/projects/9/active?value=false", nil)
	ctx.SetUserValue("id", "9")
	setActive(ctx)
	if ctx.Response.StatusCode() != fasthttp.StatusOK {
		t.Fatalf("deactivate status = %d", ctx.Response.StatusCode())
	}

	ctx = newCtx("POST", "/v1/projects/404/active?value=true", nil)
	ctx.SetUserValue("id", "404")
	setActive(ctx)
	if ctx.Response.StatusCode() != fasthttp.StatusNotFound {
		t.Fatalf("missing project status = %d", ctx.Response.StatusCode())
	}

	ctx = newCtx("POST", "/v1/projects/9/active?value=maybe", nil)
	ctx.SetUserValue("id", "9")
	setActive(ctx)
	if ctx.Response.StatusCode() != fasthttp.StatusBadRequest {
		t.Fatalf("bad value status = %d", ctx.Response.StatusCode())
	}

	list := ListProjectsHandler(store)
	ctx = newCtx("GET", "/v1/projects", nil)
	list(ctx)
	projects := decodeBody(t, ctx)["projects"].([]any)
	if len(projects) != 1 {
		t.Fatalf("active projects = %v", projects)
	}
	first := projects[0].(map[string]any)
	if first["name"] != "Portal" {
		t.Fatalf("summary = %v", first)
	}
	counts := first["counts"].(map[string]any)
	for _, st := range []string{"in-progress", "qa-review", "functional-review"} {
		if counts[st] != float64(0) {
			t.Fatalf("counts[%s] = %v", st, counts[st])
		}
	}

	ctx = newCtx("GET", "/v1/projects?all=true", nil)
	list(ctx)
	if all := decodeBody(t, ctx)["projects"].([]any); len(all) != 2 {
		t.Fatalf("all projects = %v", all)
	}
}

func TestImportProjectsHandler(t *testing.T) {
	store := newTestStore(t)
	h := ImportProjectsHandler(store)

	ctx := newCtx("POST", "/v1/projects/import", []byte("project_name,project_id\nPortal,7\nBilling,8\n"))
	h(ctx)
	if ctx.Response.StatusCode() != fasthttp.StatusOK {
		t.Fatalf("status = %d body=%s", ctx.Response.StatusCode(), ctx.Response.Body())
	}
	got := decodeBody(t, ctx)
	if got["created"] != float64(2) || got["renamed"] != float64(0) {
		t.Fatalf("first import = %v", got)
	}

	ctx = newCtx("POST", "/v1/projects/import", []byte("project_id,project_name\n7,Portal 2\n"))
	h(ctx)
	got = decodeBody(t, ctx)
	if got["created"] != float64(0) || got["renamed"] != float64(1) {
		t.Fatalf("second import = %v", got)
	}

	for _, body := range []string{"project_id,project_name\n", "project_id,project_name\nabc,x\n", "name\nx\n"} {
		ctx = newCtx("POST", "/v1/projects/import", []byte(body))
		h(ctx)
		if ctx.Response.StatusCode() != fasthttp.StatusBadRequest {
			t.Fatalf("import %q status = %d", strings.ReplaceAll(body, "\n", "|"), ctx.Response.StatusCode())
		}
	}
}
