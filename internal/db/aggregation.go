package db

import (
	"context"
	"sort"
	"time"

	"gorm.io/datatypes"
)

// ProjectSummary is an active project with its item count per status.
type ProjectSummary struct {
	ID     int64            `json:"id"`
	Name   string           `json:"name"`
	Counts map[string]int64 `json:"counts"`
	Total  int64            `json:"total"`
}

// ProjectSummaries lists active projects with per-status item counts.
// Statuses with no items are reported as zero.
func (s *Store) ProjectSummaries(ctx context.Context, statuses []string) ([]ProjectSummary, error) {
	projects, err := s.ActiveProjects(ctx)
	if err != nil {
		return nil, err
	}

	var rows []struct {
		ProjectID int64
		Status    string
		N         int64
	}
	if err := s.db.WithContext(ctx).Model(&WorkItem{}).
		Select("project_id, status, COUNT(*) AS n").
		Group("project_id, status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	counts := make(map[int64]map[string]int64)
	for _, r := range rows {
		if counts[r.ProjectID] == nil {
			counts[r.ProjectID] = make(map[string]int64)
		}
		counts[r.ProjectID][r.Status] = r.N
	}

	out := make([]ProjectSummary, 0, len(projects))
	for _, p := range projects {
		sum := ProjectSummary{ID: p.ID, Name: p.Name, Counts: make(map[string]int64, len(statuses))}
		for _, st := range statuses {
			sum.Counts[st] = 0
		}
		for st, n := range counts[p.ID] {
			sum.Counts[st] = n
			sum.Total += n
		}
		out = append(out, sum)
	}
	return out, nil
}

// ItemRow is a work item joined with its project's name.
type ItemRow struct {
	ID             int64          `json:"id"`
	IID            int64          `json:"iid"`
	ProjectID      int64          `json:"project_id"`
	ProjectName    string         `json:"project_name"`
	Status         string         `json:"status"`
	Title          string         `json:"title"`
	WebURL         string         `json:"web_url"`
	LastUpdated    time.Time      `json:"last_updated"`
	ExecutionDays  int            `json:"execution_days"`
	ReviewDays     int            `json:"review_days"`
	FunctionalDays int            `json:"functional_days"`
	Raw            datatypes.JSON `json:"raw,omitempty"`
}

// ItemsByStatus lists items with the given status (all statuses when empty),
// most recently updated first.
func (s *Store) ItemsByStatus(ctx context.Context, status string, withRaw bool) ([]ItemRow, error) {
	cols := "work_items.id, work_items.iid, work_items.project_id, monitored_projects.name AS project_name, " +
		"work_items.status, work_items.title, work_items.web_url, work_items.last_updated, " +
		"work_items.execution_days, work_items.review_days, work_items.functional_days"
	if withRaw {
		cols += ", work_items.raw"
	}
	q := s.db.WithContext(ctx).Table("work_items").
		Select(cols).
		Joins("JOIN monitored_projects ON monitored_projects.id = work_items.project_id")
	if status != "" {
		q = q.Where("work_items.status = ?", status)
	}
	out := make([]ItemRow, 0)
	err := q.Order("work_items.last_updated DESC, work_items.id").Scan(&out).Error
	return out, err
}

// UserAudit is one user's activity in a month.
type UserAudit struct {
	Username string           `json:"username"`
	Counts   map[string]int64 `json:"counts"`
	OnTime   int64            `json:"on_time"`
	Total    int64            `json:"total"`
}

// AuditCounts aggregates a month per user and event type. projectID 0 covers
// every project.
func (s *Store) AuditCounts(ctx context.Context, month, year int, projectID int64) ([]UserAudit, error) {
	q := s.db.WithContext(ctx).Model(&AuditEvent{}).
		Select("username, event_type, COUNT(*) AS n, SUM(CASE WHEN on_time = ? THEN 1 ELSE 0 END) AS on_time", true).
		Where("event_month = ? AND event_year = ?", month, year)
	if projectID != 0 {
		q = q.Where("project_id = ?", projectID)
	}
	var rows []struct {
		Username  string
		EventType string
		N         int64
		OnTime    int64
	}
	if err := q.Group("username, event_type").Scan(&rows).Error; err != nil {
		return nil, err
	}

	byUser := make(map[string]*UserAudit)
	for _, r := range rows {
		u := byUser[r.Username]
		if u == nil {
			u = &UserAudit{Username: r.Username, Counts: make(map[string]int64)}
			byUser[r.Username] = u
		}
		u.Counts[r.EventType] = r.N
		u.OnTime += r.OnTime
		u.Total += r.N
	}
	out := make([]UserAudit, 0, len(byUser))
	for _, u := range byUser {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].Username < out[j].Username
	})
	return out, nil
}

// RecentRuns returns the latest sync runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]SyncRun, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	var out []SyncRun
	err := s.db.WithContext(ctx).Order("started_at DESC").Limit(limit).Find(&out).Error
	return out, err
}
