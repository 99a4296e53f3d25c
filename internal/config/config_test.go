package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"APP_LISTEN_ADDR", "APP_GITLAB_TIMEOUT", "APP_GITLAB_MAX_PAGES", "APP_SYNC_INTERVAL", "APP_SYNC_AUDIT", "APP_PROJECTS_CSV", "APP_RUN_RETENTION_DAYS"} {
		t.Setenv(key, "")
	}
	cfg := Load()
	if cfg.ListenAddr != ":8080" || cfg.GitLabTimeout != 10*time.Second || cfg.GitLabMaxPages != 50 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.SyncInterval != 10*time.Minute || !cfg.SyncAudit || cfg.ProjectsCSV != "projects.csv" || cfg.RunRetentionDays != 30 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadOverridesAndBadValues(t *testing.T) {
	t.Setenv("APP_SYNC_INTERVAL", "1h")
	t.Setenv("APP_SYNC_AUDIT", "false")
	t.Setenv("APP_GITLAB_TIMEOUT", "soon")
	t.Setenv("APP_GITLAB_MAX_PAGES", "-3")
	cfg := Load()
	if cfg.SyncInterval != time.Hour || cfg.SyncAudit {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.GitLabTimeout != 10*time.Second || cfg.GitLabMaxPages != 50 {
		t.Fatalf("bad values should fall back to defaults: %+v", cfg)
	}
}

func TestValidate(t *testing.T) {
	cfg := &Config{}
	err := cfg.Validate()
	if err == nil {
		t.Fatalf("expected missing settings to be reported")
	}
	for _, key := range []string{"APP_DATABASE_URL", "APP_GITLAB_URL", "APP_GITLAB_TOKEN"} {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("expected %s in %v", key, err)
		}
	}
	cfg = &Config{DatabaseURL: "sqlite://x.db", GitLabURL: "https://git.example", GitLabToken: "t"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestParseProjects(t *testing.T) {
	in := "\ufeffproject_name, project_id ,owner\n" +
		"Portal Ventas, 12,ana\n" +
		"\n" +
		"Inventario,7\n" +
		"Portal Ventas v2,12,ana\n" +
		",30\n"
	got, err := ParseProjects(strings.NewReader(in))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := []Project{{ID: 12, Name: "Portal Ventas v2"}, {ID: 7, Name: "Inventario"}, {ID: 30, Name: "project 30"}}
	if len(got) != len(want) {
		t.Fatalf("expected %d projects, got %+v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("project %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}
}

func TestParseProjectsErrors(t *testing.T) {
	cases := map[string]string{
		"empty":      "",
		"bad header": "id,name\n1,a\n",
		"bad id":     "project_id,project_name\nabc,Portal\n",
	}
	for name, in := range cases {
		if _, err := ParseProjects(strings.NewReader(in)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestLoadProjectsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "projects.csv")
	if err := os.WriteFile(path, []byte("project_id,project_name\n5,Docs\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := LoadProjects(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 1 || got[0].ID != 5 || got[0].Name != "Docs" {
		t.Fatalf("unexpected projects %+v", got)
	}
	if _, err := LoadProjects(filepath.Join(t.TempDir(), "missing.csv")); err == nil {
		t.Fatalf("expected error for a missing file")
	}
}
