package middleware

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/valyala/fasthttp"

	httpctx "taskpulse/internal/http/ctx"
)

func newCtx(method, uri string) *fasthttp.RequestCtx {
	var req fasthttp.Request
	req.Header.SetMethod(method)
	req.SetRequestURI(uri)
	ctx := &fasthttp.RequestCtx{}
	ctx.Init(&req, nil, nil)
	return ctx
}

func TestRequestIDGeneratesAndEchoes(t *testing.T) {
	var seen string
	h := RequestID(func(ctx *fasthttp.RequestCtx) {
		seen, _ = httpctx.RequestIDFromCtx(ctx)
	})

	ctx := newCtx("GET", "/v1/items")
	h(ctx)
	if len(seen) != 36 {
		t.Fatalf("generated id = %q", seen)
	}
	if got := string(ctx.Response.Header.Peek("X-Request-ID")); got != seen {
		t.Fatalf("response header = %q, want %q", got, seen)
	}

	ctx = newCtx("GET", "/v1/items")
	ctx.Request.Header.Set("X-Request-ID", "abc-123")
	h(ctx)
	if seen != "abc-123" {
		t.Fatalf("caller id not kept: %q", seen)
	}
}

func TestRequestMetricsCountsRoutes(t *testing.T) {
	reg := prometheus.NewRegistry()
	route := "/v1/sync/projects/{id}"
	mw := RequestMetrics(reg, func(*fasthttp.RequestCtx) string { return route })
	h := mw(func(ctx *fasthttp.RequestCtx) {
		ctx.SetStatusCode(fasthttp.StatusAccepted)
	})

	h(newCtx("POST", "/v1/sync/projects/7"))
	h(newCtx("POST", "/v1/sync/projects/8"))
	route = "/metrics"
	h(newCtx("GET", "/metrics"))
	route = ""
	h(newCtx("GET", "/missing"))

	n, err := testutil.GatherAndCount(reg, "taskpulse_http_requests_total")
	if err != nil || n != 1 {
		t.Fatalf("series = %d, %v", n, err)
	}
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() != "taskpulse_http_requests_total" {
			continue
		}
		m := mf.GetMetric()[0]
		if m.GetCounter().GetValue() != 2 {
			t.Fatalf("count = %v", m.GetCounter().GetValue())
		}
		for _, l := range m.GetLabel() {
			if l.GetName() == "status" && l.GetValue() != "202" {
				t.Fatalf("status label = %s", l.GetValue())
			}
		}
	}
}
