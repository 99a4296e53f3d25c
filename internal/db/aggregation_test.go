package db

import (
	"context"
	"testing"
	"time"

	"taskpulse/internal/config"
)

func TestProjectSummariesAndItemsByStatus(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	if _, err := s.ImportProjects(ctx, []config.Project{{ID: 1, Name: "Ventas"}, {ID: 2, Name: "Apagado"}}); err != nil {
		t.Fatalf("import: %v", err)
	}
	if err := s.SetProjectActive(ctx, 2, false); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	now := time.Now().UTC()
	_ = s.ReplaceProjectItems(ctx, 1, []WorkItem{
		{ID: 10, IID: 1, Status: "in-progress", Title: "a", LastUpdated: now.Add(-time.Hour)},
		{ID: 11, IID: 2, Status: "in-progress", Title: "b", LastUpdated: now},
		{ID: 12, IID: 3, Status: "qa-review", Title: "c", LastUpdated: now, Raw: []byte(`{"id":12}`)},
	})

	statuses := []string{"in-progress", "qa-review", "functional-review"}
	sums, err := s.ProjectSummaries(ctx, statuses)
	if err != nil {
		t.Fatalf("summaries: %v", err)
	}
	if len(sums) != 1 {
		t.Fatalf("expected only active projects, got %+v", sums)
	}
	if sums[0].Counts["in-progress"] != 2 || sums[0].Counts["qa-review"] != 1 || sums[0].Counts["functional-review"] != 0 || sums[0].Total != 3 {
		t.Fatalf("unexpected counts %+v", sums[0])
	}

	rows, err := s.ItemsByStatus(ctx, "in-progress", false)
	if err != nil {
		t.Fatalf("items: %v", err)
	}
	if len(rows) != 2 || rows[0].ID != 11 || rows[0].ProjectName != "Ventas" {
		t.Fatalf("unexpected rows %+v", rows)
	}
	if rows[0].Raw != nil {
		t.Fatalf("raw payload must be omitted unless requested")
	}

	rows, err = s.ItemsByStatus(ctx, "qa-review", true)
	if err != nil || len(rows) != 1 || string(rows[0].Raw) != `{"id":12}` {
		t.Fatalf("expected raw payload, got %+v (%v)", rows, err)
	}
}

func TestAuditCounts(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	at := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	onTime, late := true, false

	reviewed := auditEvent(1, "issue-reviewed", "5", "ana", at)
	reviewed.OnTime = &onTime
	lateReview := auditEvent(1, "issue-reviewed", "6", "ana", at)
	lateReview.OnTime = &late
	_, err := s.UpsertAuditEvents(ctx, []AuditEvent{
		reviewed,
		lateReview,
		auditEvent(1, "manual-created", "manual", "ana", at),
		auditEvent(2, "generic-push", "push: a @ main", "luis", at),
		auditEvent(1, "generic-push", "push: b @ main", "luis", at.AddDate(0, 1, 0)),
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	counts, err := s.AuditCounts(ctx, 3, 2026, 0)
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	if len(counts) != 2 || counts[0].Username != "ana" {
		t.Fatalf("unexpected counts %+v", counts)
	}
	ana := counts[0]
	if ana.Total != 3 || ana.Counts["issue-reviewed"] != 2 || ana.OnTime != 1 {
		t.Fatalf("unexpected ana counts %+v", ana)
	}
	if counts[1].Total != 1 {
		t.Fatalf("other months must not be counted: %+v", counts[1])
	}

	scoped, err := s.AuditCounts(ctx, 3, 2026, 2)
	if err != nil || len(scoped) != 1 || scoped[0].Username != "luis" {
		t.Fatalf("unexpected project-scoped counts %+v (%v)", scoped, err)
	}
}

func TestRecentRunsAndRetention(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	now := time.Now().UTC()
	old := &SyncRun{ID: "old", Kind: "full", StartedAt: now.AddDate(0, 0, -40), Result: "ok"}
	fresh := &SyncRun{ID: "fresh", Kind: "project", StartedAt: now, Result: "ok", FailedProjects: []int64{3}}
	for _, r := range []*SyncRun{old, fresh} {
		if err := s.SaveRun(ctx, r); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	fresh.Result = "partial"
	if err := s.SaveRun(ctx, fresh); err != nil {
		t.Fatalf("update: %v", err)
	}

	runs, err := s.RecentRuns(ctx, 10)
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "fresh" || runs[0].Result != "partial" || len(runs[0].FailedProjects) != 1 {
		t.Fatalf("unexpected runs %+v", runs)
	}

	n, err := runRetentionOnce(s.DB(), now.AddDate(0, 0, -30))
	if err != nil || n != 1 {
		t.Fatalf("expected one pruned run, got %d (%v)", n, err)
	}
	runs, _ = s.RecentRuns(ctx, 10)
	if len(runs) != 1 || runs[0].ID != "fresh" {
		t.Fatalf("unexpected runs after retention %+v", runs)
	}
}
