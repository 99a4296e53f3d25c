package syncer

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"taskpulse/internal/config"
	"taskpulse/internal/db"
	"taskpulse/internal/gitlab"
)

type fakeAPI struct {
	mu         sync.Mutex
	issues     map[string][]gitlab.Issue // "<project>/<label>"
	issueErrs  map[string]error
	failAll    error
	history    map[int64][]gitlab.LabelEvent
	historyErr error
	events     map[int64][]gitlab.Event
	eventErrs  map[int64]error
	due        map[int64]*time.Time
	after      time.Time
	before     time.Time
	labelCalls int

	// When set, IssuesByLabel signals entered once and then waits for release.
	entered     chan struct{}
	release     chan struct{}
	enteredOnce sync.Once
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		issues:    make(map[string][]gitlab.Issue),
		issueErrs: make(map[string]error),
		history:   make(map[int64][]gitlab.LabelEvent),
		events:    make(map[int64][]gitlab.Event),
		eventErrs: make(map[int64]error),
		due:       make(map[int64]*time.Time),
	}
}

func issueKey(projectID int64, label string) string {
	return fmt.Sprintf("%d/%s", projectID, label)
}

func (f *fakeAPI) addIssue(projectID int64, label string, issue gitlab.Issue) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := issueKey(projectID, label)
	f.issues[k] = append(f.issues[k], issue)
}

func (f *fakeAPI) IssuesByLabel(ctx context.Context, projectID int64, label string) ([]gitlab.Issue, error) {
	if f.release != nil {
		f.enteredOnce.Do(func() { close(f.entered) })
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.labelCalls++
	if f.failAll != nil {
		return nil, f.failAll
	}
	k := issueKey(projectID, label)
	if err := f.issueErrs[k]; err != nil {
		return nil, err
	}
	return append([]gitlab.Issue(nil), f.issues[k]...), nil
}

func (f *fakeAPI) Issue(ctx context.Context, projectID, iid int64) (gitlab.Issue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	due, ok := f.due[iid]
	if !ok {
		return gitlab.Issue{}, &gitlab.Error{Kind: gitlab.KindStatus, StatusCode: 404}
	}
	return gitlab.Issue{ID: iid * 100, IID: iid, DueDate: due}, nil
}

func (f *fakeAPI) LabelEvents(ctx context.Context, projectID, iid int64) ([]gitlab.LabelEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	return f.history[iid], nil
}

func (f *fakeAPI) Events(ctx context.Context, projectID int64, after, before time.Time) ([]gitlab.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.after, f.before = after, before
	if f.failAll != nil {
		return nil, f.failAll
	}
	if err := f.eventErrs[projectID]; err != nil {
		return nil, err
	}
	return f.events[projectID], nil
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}

func newTestStore(t *testing.T, projects ...config.Project) *db.Store {
	t.Helper()
	gdb, err := db.OpenSQLite(filepath.Join(t.TempDir(), "syncer_test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	store := db.NewStore(gdb)
	if len(projects) > 0 {
		if _, err := store.ImportProjects(context.Background(), projects); err != nil {
			t.Fatalf("import: %v", err)
		}
	}
	return store
}
