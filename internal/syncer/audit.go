package syncer

import (
	"context"
	"fmt"
	"sort"
	"time"

	"taskpulse/internal/classify"
	"taskpulse/internal/db"
	"taskpulse/internal/gitlab"
)

// Window returns the first instant of a month and of the month after it.
func Window(month, year int) (time.Time, time.Time) {
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}

type auditKey struct {
	typ      classify.EventType
	ref      string
	username string
}

// syncAuditWindow classifies the project's activity for one month and
// upserts the result. Re-running a window never duplicates rows.
func (o *Orchestrator) syncAuditWindow(ctx context.Context, projectID int64, month, year int) (int, error) {
	o.setPhase(projectID, PhaseFetchingIssues)
	start, end := Window(month, year)
	// The feed filters are exclusive whole days.
	events, err := o.api.Events(ctx, projectID, start.AddDate(0, 0, -1), end)
	if err != nil {
		o.upstreamFailure(projectID, err)
		if len(events) == 0 {
			o.setPhase(projectID, PhaseFailed)
			return 0, fmt.Errorf("activity feed: %w", err)
		}
		o.logf("syncer: project %d: activity feed incomplete, keeping %d events: %v", projectID, len(events), err)
	}

	o.setPhase(projectID, PhaseClassifying)
	rows := make(map[auditKey]db.AuditEvent)
	dueDates := make(map[int64]*time.Time)
	for _, ev := range events {
		meta := ev.Meta()
		at := meta.CreatedAt.UTC()
		if at.Before(start) || !at.Before(end) {
			continue
		}
		d := classify.Classify(ev)
		if d.Discard {
			continue
		}
		key := auditKey{typ: d.Type, ref: d.ReferenceID, username: meta.Username}
		if prev, ok := rows[key]; ok && !at.After(prev.EventDate) {
			continue
		}
		row := db.AuditEvent{
			ProjectID:   projectID,
			EventType:   string(d.Type),
			ReferenceID: d.ReferenceID,
			Username:    meta.Username,
			EventDate:   at,
			EventYear:   year,
			EventMonth:  month,
		}
		if d.Type == classify.IssueReviewed {
			if ie, ok := ev.(*gitlab.IssueEvent); ok {
				row.OnTime = o.onTime(ctx, projectID, ie.IssueIID, at, dueDates)
			}
		}
		rows[key] = row
	}

	o.setPhase(projectID, PhaseUpserting)
	batch := make([]db.AuditEvent, 0, len(rows))
	perType := make(map[string]int)
	for _, row := range rows {
		batch = append(batch, row)
		perType[row.EventType]++
	}
	sort.Slice(batch, func(i, j int) bool {
		a, b := batch[i], batch[j]
		if a.EventType != b.EventType {
			return a.EventType < b.EventType
		}
		if a.ReferenceID != b.ReferenceID {
			return a.ReferenceID < b.ReferenceID
		}
		return a.Username < b.Username
	})
	n, err := o.store.UpsertAuditEvents(ctx, batch)
	if err != nil {
		o.setPhase(projectID, PhaseFailed)
		return 0, fmt.Errorf("store audit events: %w", err)
	}
	for typ, c := range perType {
		o.metrics.addEvents(projectID, typ, c)
	}

	removed, err := o.store.SupersedeUpdates(ctx, projectID, month, year, supersessionPairs())
	if err != nil {
		o.setPhase(projectID, PhaseFailed)
		return n, fmt.Errorf("supersede updates: %w", err)
	}
	if removed > 0 {
		o.logf("syncer: project %d %02d/%d: %d updates superseded by creations", projectID, month, year, removed)
	}
	o.setPhase(projectID, PhaseDone)
	return n, nil
}

// onTime reports whether an issue closed at closedAt met its due date. It
// is nil when the issue has no due date or cannot be fetched.
func (o *Orchestrator) onTime(ctx context.Context, projectID, iid int64, closedAt time.Time, cache map[int64]*time.Time) *bool {
	if iid == 0 {
		return nil
	}
	due, ok := cache[iid]
	if !ok {
		issue, err := o.api.Issue(ctx, projectID, iid)
		if err != nil {
			o.upstreamFailure(projectID, err)
			o.logf("syncer: project %d issue %d: due date: %v", projectID, iid, err)
		} else {
			due = issue.DueDate
		}
		cache[iid] = due
	}
	if due == nil {
		return nil
	}
	v := !closedAt.After(*due)
	return &v
}

func supersessionPairs() map[string]string {
	pairs := make(map[string]string)
	for _, t := range classify.EventTypes() {
		if up := t.Superseded(); up != "" {
			pairs[string(t)] = string(up)
		}
	}
	return pairs
}
