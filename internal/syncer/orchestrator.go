// Package syncer pulls issues and activity from the upstream server into the
// store. At most one run (full sweep, single project or audit window) is in
// flight at any time.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"taskpulse/internal/cycle"
	"taskpulse/internal/db"
	"taskpulse/internal/gitlab"
	"taskpulse/internal/taxonomy"
)

// ErrSyncInProgress rejects a start request while another run holds the lock.
var ErrSyncInProgress = errors.New("sync already in progress")

// ErrInvalidWindow rejects audit windows outside 1..12 / 2000..9999.
var ErrInvalidWindow = errors.New("invalid audit window")

// ErrAllProjectsFailed fails a sweep in which no project could be synced.
var ErrAllProjectsFailed = errors.New("every project failed")

// API is the slice of the upstream gateway the orchestrator uses.
type API interface {
	IssuesByLabel(ctx context.Context, projectID int64, label string) ([]gitlab.Issue, error)
	Issue(ctx context.Context, projectID, iid int64) (gitlab.Issue, error)
	LabelEvents(ctx context.Context, projectID, iid int64) ([]gitlab.LabelEvent, error)
	Events(ctx context.Context, projectID int64, after, before time.Time) ([]gitlab.Event, error)
}

type Logger interface {
	Printf(format string, args ...any)
}

// Run kinds as stored in the sync run log.
const (
	KindFull    = "full"
	KindProject = "project"
	KindAudit   = "audit"
)

// Run results.
const (
	ResultRunning = "running"
	ResultOK      = "ok"
	ResultPartial = "partial"
	ResultFailed  = "failed"
)

// Phase is where a project is within the current or last run.
type Phase string

const (
	PhaseIdle           Phase = "idle"
	PhaseFetchingIssues Phase = "fetching-issues"
	PhaseClassifying    Phase = "classifying"
	PhaseUpserting      Phase = "upserting"
	PhaseDone           Phase = "done"
	PhaseFailed         Phase = "failed"
)

type Options struct {
	Taxonomy *taxonomy.Taxonomy
	// SyncAudit adds the current month's audit window to full sweeps.
	SyncAudit bool
	Metrics   *Metrics
	Logger    Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

type Orchestrator struct {
	api       API
	store     *db.Store
	tax       *taxonomy.Taxonomy
	syncAudit bool
	metrics   *Metrics
	logger    Logger
	now       func() time.Time

	running atomic.Bool
	wg      sync.WaitGroup

	mu       sync.Mutex
	kind     string
	lastSync *time.Time
	phases   map[int64]Phase
}

func New(api API, store *db.Store, opts Options) *Orchestrator {
	if opts.Taxonomy == nil {
		opts.Taxonomy = taxonomy.Default()
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Orchestrator{
		api:       api,
		store:     store,
		tax:       opts.Taxonomy,
		syncAudit: opts.SyncAudit,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
		now:       opts.Now,
		phases:    make(map[int64]Phase),
	}
}

// Status is the externally visible state of the engine.
type Status struct {
	InProgress   bool            `json:"in_progress"`
	Kind         string          `json:"kind,omitempty"`
	LastSync     *time.Time      `json:"last_sync,omitempty"`
	LastFullSync *time.Time      `json:"last_full_sync,omitempty"`
	Projects     map[int64]Phase `json:"projects"`
}

func (o *Orchestrator) Status(ctx context.Context) (Status, error) {
	o.mu.Lock()
	st := Status{
		InProgress: o.running.Load(),
		Kind:       o.kind,
		LastSync:   o.lastSync,
		Projects:   make(map[int64]Phase, len(o.phases)),
	}
	for id, p := range o.phases {
		st.Projects[id] = p
	}
	o.mu.Unlock()

	last, err := o.store.LastFullSync(ctx)
	if err != nil {
		return st, err
	}
	st.LastFullSync = last
	return st, nil
}

// InProgress reports whether a run holds the lock.
func (o *Orchestrator) InProgress() bool { return o.running.Load() }

// Wait blocks until runs launched by the Start methods have finished.
func (o *Orchestrator) Wait() { o.wg.Wait() }

func (o *Orchestrator) acquire(kind string) bool {
	if !o.running.CompareAndSwap(false, true) {
		return false
	}
	o.mu.Lock()
	o.kind = kind
	o.mu.Unlock()
	return true
}

func (o *Orchestrator) release() {
	now := o.now()
	o.mu.Lock()
	o.kind = ""
	o.lastSync = &now
	o.mu.Unlock()
	o.running.Store(false)
}

func (o *Orchestrator) setPhase(projectID int64, p Phase) {
	o.mu.Lock()
	o.phases[projectID] = p
	o.mu.Unlock()
}

// RunFull syncs every active project and, when enabled, the current month's
// audit window, then records the completion time. Project failures are
// contained and reported in the returned run; when every project fails the
// run fails with ErrAllProjectsFailed and the completion time is not moved.
func (o *Orchestrator) RunFull(ctx context.Context) (*db.SyncRun, error) {
	if !o.acquire(KindFull) {
		return nil, ErrSyncInProgress
	}
	defer o.release()
	run := o.begin(ctx, KindFull, nil, 0, 0)
	return run, o.full(ctx, run)
}

// StartFull takes the lock and runs a full sweep in the background.
func (o *Orchestrator) StartFull() (string, error) {
	if !o.acquire(KindFull) {
		return "", ErrSyncInProgress
	}
	ctx := context.Background()
	run := o.begin(ctx, KindFull, nil, 0, 0)
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer o.release()
		_ = o.full(ctx, run)
	}()
	return run.ID, nil
}

// RunProject syncs the work items of one project.
func (o *Orchestrator) RunProject(ctx context.Context, projectID int64) (*db.SyncRun, error) {
	if _, err := o.store.Project(ctx, projectID); err != nil {
		return nil, err
	}
	if !o.acquire(KindProject) {
		return nil, ErrSyncInProgress
	}
	defer o.release()
	run := o.begin(ctx, KindProject, &projectID, 0, 0)
	return run, o.project(ctx, run, projectID)
}

func (o *Orchestrator) StartProject(ctx context.Context, projectID int64) (string, error) {
	if _, err := o.store.Project(ctx, projectID); err != nil {
		return "", err
	}
	if !o.acquire(KindProject) {
		return "", ErrSyncInProgress
	}
	bg := context.Background()
	run := o.begin(bg, KindProject, &projectID, 0, 0)
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer o.release()
		_ = o.project(bg, run, projectID)
	}()
	return run.ID, nil
}

// RunAudit syncs the audit window (month, year) of one project, or of every
// active project when projectID is 0.
func (o *Orchestrator) RunAudit(ctx context.Context, month, year int, projectID int64) (*db.SyncRun, error) {
	if err := validWindow(month, year); err != nil {
		return nil, err
	}
	if projectID != 0 {
		if _, err := o.store.Project(ctx, projectID); err != nil {
			return nil, err
		}
	}
	if !o.acquire(KindAudit) {
		return nil, ErrSyncInProgress
	}
	defer o.release()
	run := o.begin(ctx, KindAudit, optionalID(projectID), month, year)
	return run, o.audit(ctx, run, month, year, projectID)
}

func (o *Orchestrator) StartAudit(ctx context.Context, month, year int, projectID int64) (string, error) {
	if err := validWindow(month, year); err != nil {
		return "", err
	}
	if projectID != 0 {
		if _, err := o.store.Project(ctx, projectID); err != nil {
			return "", err
		}
	}
	if !o.acquire(KindAudit) {
		return "", ErrSyncInProgress
	}
	bg := context.Background()
	run := o.begin(bg, KindAudit, optionalID(projectID), month, year)
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer o.release()
		_ = o.audit(bg, run, month, year, projectID)
	}()
	return run.ID, nil
}

func (o *Orchestrator) full(ctx context.Context, run *db.SyncRun) error {
	projects, err := o.store.ActiveProjects(ctx)
	if err != nil {
		o.finish(ctx, run, err)
		return err
	}
	for _, p := range projects {
		o.setPhase(p.ID, PhaseIdle)
	}
	for _, p := range projects {
		n, err := o.syncProject(ctx, p.ID)
		run.ItemsSynced += n
		if err != nil {
			o.logf("syncer: project %d (%s) failed: %v", p.ID, p.Name, err)
			run.FailedProjects = appendFailed(run.FailedProjects, p.ID)
		}
	}
	if o.syncAudit {
		now := o.now()
		for _, p := range projects {
			n, err := o.syncAuditWindow(ctx, p.ID, int(now.Month()), now.Year())
			run.EventsUpserted += n
			if err != nil {
				o.logf("syncer: project %d audit %02d/%d failed: %v", p.ID, int(now.Month()), now.Year(), err)
				run.FailedProjects = appendFailed(run.FailedProjects, p.ID)
			}
		}
	}
	if err := allFailed(run, len(projects)); err != nil {
		o.finish(ctx, run, err)
		return err
	}
	if err := o.store.SetLastFullSync(ctx, o.now()); err != nil {
		o.finish(ctx, run, err)
		return err
	}
	o.finish(ctx, run, nil)
	return nil
}

func (o *Orchestrator) project(ctx context.Context, run *db.SyncRun, projectID int64) error {
	o.setPhase(projectID, PhaseIdle)
	n, err := o.syncProject(ctx, projectID)
	run.ItemsSynced = n
	if err != nil {
		run.FailedProjects = appendFailed(run.FailedProjects, projectID)
	}
	o.finish(ctx, run, err)
	return err
}

func (o *Orchestrator) audit(ctx context.Context, run *db.SyncRun, month, year int, projectID int64) error {
	var ids []int64
	if projectID != 0 {
		ids = []int64{projectID}
	} else {
		projects, err := o.store.ActiveProjects(ctx)
		if err != nil {
			o.finish(ctx, run, err)
			return err
		}
		for _, p := range projects {
			ids = append(ids, p.ID)
		}
	}
	var lastErr error
	for _, id := range ids {
		o.setPhase(id, PhaseIdle)
		n, err := o.syncAuditWindow(ctx, id, month, year)
		run.EventsUpserted += n
		if err != nil {
			o.logf("syncer: project %d audit %02d/%d failed: %v", id, month, year, err)
			run.FailedProjects = appendFailed(run.FailedProjects, id)
			lastErr = err
		}
	}
	if projectID != 0 {
		o.finish(ctx, run, lastErr)
		return lastErr
	}
	if err := allFailed(run, len(ids)); err != nil {
		err = fmt.Errorf("%w: %v", err, lastErr)
		o.finish(ctx, run, err)
		return err
	}
	o.finish(ctx, run, nil)
	return nil
}

// syncProject fetches every accepted spelling of every status, merges the
// results per issue, resolves statuses, computes cycle metrics and replaces
// the project's stored items. When every upstream call fails the stored rows
// are kept and an error is returned.
func (o *Orchestrator) syncProject(ctx context.Context, projectID int64) (int, error) {
	o.setPhase(projectID, PhaseFetchingIssues)
	merged := make(map[int64]gitlab.Issue)
	calls, failures := 0, 0
	var lastErr error
	for _, status := range taxonomy.Statuses() {
		for _, label := range o.tax.Labels(status) {
			calls++
			issues, err := o.api.IssuesByLabel(ctx, projectID, label)
			if err != nil {
				failures++
				lastErr = err
				o.upstreamFailure(projectID, err)
				o.logf("syncer: project %d label %q: %v", projectID, label, err)
			}
			for _, issue := range issues {
				if _, seen := merged[issue.ID]; !seen {
					merged[issue.ID] = issue
				}
			}
		}
	}
	if calls > 0 && failures == calls {
		o.setPhase(projectID, PhaseFailed)
		return 0, fmt.Errorf("every upstream call failed: %w", lastErr)
	}

	o.setPhase(projectID, PhaseClassifying)
	now := o.now()
	ids := make([]int64, 0, len(merged))
	for id := range merged {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	items := make([]db.WorkItem, 0, len(ids))
	counts := make(map[string]int, 3)
	for _, s := range taxonomy.Statuses() {
		counts[s.String()] = 0
	}
	for _, id := range ids {
		issue := merged[id]
		status, ok := o.tax.Resolve(issue.Labels)
		if !ok {
			continue
		}
		m := o.metricsFor(ctx, projectID, issue, now)
		items = append(items, db.WorkItem{
			ID:             issue.ID,
			IID:            issue.IID,
			ProjectID:      projectID,
			Status:         status.String(),
			Title:          issue.Title,
			WebURL:         issue.WebURL,
			LastUpdated:    issue.UpdatedAt,
			SyncedAt:       now,
			Raw:            []byte(issue.Raw),
			ExecutionDays:  m.ExecutionDays,
			ReviewDays:     m.ReviewDays,
			FunctionalDays: m.FunctionalDays,
		})
		counts[status.String()]++
	}

	o.setPhase(projectID, PhaseUpserting)
	if err := o.store.ReplaceProjectItems(ctx, projectID, items); err != nil {
		o.setPhase(projectID, PhaseFailed)
		return 0, fmt.Errorf("store items: %w", err)
	}
	o.metrics.setWorkItems(projectID, counts)
	o.setPhase(projectID, PhaseDone)
	return len(items), nil
}

// metricsFor is best effort: a failed history fetch yields zero metrics.
func (o *Orchestrator) metricsFor(ctx context.Context, projectID int64, issue gitlab.Issue, now time.Time) cycle.Metrics {
	events, err := o.api.LabelEvents(ctx, projectID, issue.IID)
	if err != nil {
		o.upstreamFailure(projectID, err)
		o.logf("syncer: project %d issue %d: label history: %v", projectID, issue.IID, err)
		return cycle.Metrics{}
	}
	history := make([]cycle.Change, 0, len(events))
	for _, ev := range events {
		if ev.Label == "" {
			continue
		}
		history = append(history, cycle.Change{Action: ev.Action, Label: ev.Label, At: ev.CreatedAt})
	}
	return cycle.Compute(issue.CreatedAt, now, history, o.tax)
}

func (o *Orchestrator) begin(ctx context.Context, kind string, projectID *int64, month, year int) *db.SyncRun {
	run := &db.SyncRun{
		ID:        uuid.NewString(),
		Kind:      kind,
		ProjectID: projectID,
		Month:     month,
		Year:      year,
		StartedAt: o.now(),
		Result:    ResultRunning,
	}
	if err := o.store.SaveRun(ctx, run); err != nil {
		o.logf("syncer: record run %s: %v", run.ID, err)
	}
	o.logf("syncer: %s run %s started", kind, run.ID)
	return run
}

func (o *Orchestrator) finish(ctx context.Context, run *db.SyncRun, err error) {
	finished := o.now()
	run.FinishedAt = &finished
	switch {
	case err != nil:
		run.Result = ResultFailed
		run.Error = err.Error()
	case len(run.FailedProjects) > 0:
		run.Result = ResultPartial
	default:
		run.Result = ResultOK
	}
	if err := o.store.SaveRun(ctx, run); err != nil {
		o.logf("syncer: record run %s: %v", run.ID, err)
	}
	took := finished.Sub(run.StartedAt)
	o.metrics.observeRun(run.Kind, run.Result, took)
	o.logf("syncer: %s run %s %s items=%d events=%d failed=%v (%s)",
		run.Kind, run.ID, run.Result, run.ItemsSynced, run.EventsUpserted, []int64(run.FailedProjects), took)
}

func (o *Orchestrator) upstreamFailure(projectID int64, err error) {
	kind := gitlab.KindOf(err).String()
	o.metrics.upstreamFailure(projectID, kind)
}

func (o *Orchestrator) logf(format string, args ...any) {
	o.logger.Printf(format, args...)
}

func appendFailed(list []int64, id int64) []int64 {
	for _, v := range list {
		if v == id {
			return list
		}
	}
	return append(list, id)
}

// allFailed reports ErrAllProjectsFailed when every one of the swept projects
// is in the run's failed list.
func allFailed(run *db.SyncRun, swept int) error {
	if swept == 0 || len(run.FailedProjects) < swept {
		return nil
	}
	return fmt.Errorf("%w (%d of %d)", ErrAllProjectsFailed, len(run.FailedProjects), swept)
}

func optionalID(id int64) *int64 {
	if id == 0 {
		return nil
	}
	return &id
}

func validWindow(month, year int) error {
	if month < 1 || month > 12 || year < 2000 || year > 9999 {
		return fmt.Errorf("%w: %d/%d", ErrInvalidWindow, month, year)
	}
	return nil
}
