package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fasthttp/router"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/valyala/fasthttp"

	"taskpulse/internal/config"
	"taskpulse/internal/db"
	"taskpulse/internal/gitlab"
	"taskpulse/internal/http/handlers"
	appmw "taskpulse/internal/http/middleware"
	"taskpulse/internal/syncer"
	"taskpulse/internal/taxonomy"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	sqlDB, err := db.Connect(cfg)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	store := db.NewStore(sqlDB)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	importRoster(ctx, store, cfg.ProjectsCSV)

	tax := taxonomy.Default()
	if cfg.LabelsFile != "" {
		tax, err = taxonomy.LoadFile(cfg.LabelsFile)
		if err != nil {
			log.Fatalf("failed to load labels file: %v", err)
		}
	}
	log.Printf("label taxonomy: %d labels", tax.Size())

	client := gitlab.NewClient(cfg.GitLabURL, cfg.GitLabToken, gitlab.Options{
		Timeout:  cfg.GitLabTimeout,
		MaxPages: cfg.GitLabMaxPages,
		Logger:   log.Default(),
	})

	orch := syncer.New(client, store, syncer.Options{
		Taxonomy:  tax,
		SyncAudit: cfg.SyncAudit,
		Metrics:   syncer.NewMetrics(prometheus.DefaultRegisterer),
		Logger:    log.Default(),
	})

	db.StartRetentionWorker(ctx, sqlDB, cfg.RunRetentionDays)
	sched := &syncer.Scheduler{Runner: orch, Interval: cfg.SyncInterval, Logger: log.Default()}
	schedDone := make(chan struct{})
	go func() {
		defer close(schedDone)
		sched.Run(ctx)
	}()

	r := router.New()
	r.SaveMatchedRoutePath = true

	// Global middleware chain: request id, request logger, request metrics, then router
	metrics := appmw.RequestMetrics(prometheus.DefaultRegisterer, matchedRoute)
	handler := appmw.RequestID(handlers.RequestLogger(metrics(r.Handler)))

	r.GET("/healthz", func(ctx *fasthttp.RequestCtx) {
		ctx.SetStatusCode(fasthttp.StatusOK)
		ctx.SetBodyString("ok")
	})
	r.GET("/metrics", handlers.MetricsHandler(prometheus.DefaultGatherer))

	r.GET("/v1/projects", handlers.ListProjectsHandler(store))
	r.POST("/v1/projects", handlers.CreateProjectHandler(store))
	r.POST("/v1/projects/import", handlers.ImportProjectsHandler(store))
	r.POST("/v1/projects/{id}/active", handlers.SetProjectActiveHandler(store))

	r.GET("/v1/items", handlers.ItemsHandler(store))
	r.GET("/v1/audit", handlers.AuditHandler(store, time.Now))

	r.POST("/v1/sync", handlers.SyncAllHandler(orch))
	r.POST("/v1/sync/projects/{id}", handlers.SyncProjectHandler(orch))
	r.POST("/v1/sync/audit", handlers.SyncAuditHandler(orch, time.Now))
	r.GET("/v1/sync/status", handlers.SyncStatusHandler(orch))
	r.GET("/v1/sync/runs", handlers.SyncRunsHandler(store))

	r.GET("/v1/labels/discover", handlers.DiscoverLabelsHandler(store, client))

	server := &fasthttp.Server{
		Handler:      handler,
		Name:         "taskpulse",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	go func() {
		<-ctx.Done()
		log.Printf("shutting down")
		if err := server.Shutdown(); err != nil {
			log.Printf("server shutdown: %v", err)
		}
	}()

	log.Printf("taskpulse listening on %s", cfg.ListenAddr)
	if err := server.ListenAndServe(cfg.ListenAddr); err != nil {
		log.Fatalf("server error: %v", err)
	}
	<-schedDone
	orch.Wait()
	log.Printf("stopped")
}

// importRoster merges the startup CSV into the monitored projects. A missing
// file is not an error.
func importRoster(ctx context.Context, store *db.Store, path string) {
	if path == "" {
		return
	}
	projects, err := config.LoadProjects(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Printf("project roster %s not found, skipping import", path)
			return
		}
		log.Fatalf("failed to read project roster: %v", err)
	}
	res, err := store.ImportProjects(ctx, projects)
	if err != nil {
		log.Fatalf("failed to import project roster: %v", err)
	}
	log.Printf("project roster: %d projects, %d created, %d renamed", len(projects), res.Created, res.Renamed)
}

func matchedRoute(ctx *fasthttp.RequestCtx) string {
	route, _ := ctx.UserValue(router.MatchedRoutePathParam).(string)
	return route
}
