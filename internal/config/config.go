package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the core runtime configuration for the service.
// Values are primarily sourced from environment variables, with
// sensible defaults where appropriate. See .env.example.
type Config struct {
	DatabaseURL string
	ListenAddr  string

	// GitLabURL is the upstream base URL; "/api/v4" is appended by the client.
	GitLabURL      string
	GitLabToken    string
	GitLabTimeout  time.Duration
	GitLabMaxPages int

	SyncInterval time.Duration
	// SyncAudit makes scheduled sweeps also refresh the current month's audit window.
	SyncAudit bool

	// ProjectsCSV is imported at startup when the file exists.
	ProjectsCSV string
	// LabelsFile is the YAML taxonomy; empty means built-in defaults.
	LabelsFile string

	// RunRetentionDays bounds how long sync run logs are kept.
	RunRetentionDays int
}

// Load reads configuration from environment variables and applies
// defaults. Unparseable values fall back to the default.
func Load() *Config {
	cfg := &Config{
		DatabaseURL:      os.Getenv("APP_DATABASE_URL"),
		ListenAddr:       getenv("APP_LISTEN_ADDR", ":8080"),
		GitLabURL:        strings.TrimSpace(os.Getenv("APP_GITLAB_URL")),
		GitLabToken:      strings.TrimSpace(os.Getenv("APP_GITLAB_TOKEN")),
		GitLabTimeout:    durationEnv("APP_GITLAB_TIMEOUT", 10*time.Second),
		GitLabMaxPages:   intEnv("APP_GITLAB_MAX_PAGES", 50),
		SyncInterval:     durationEnv("APP_SYNC_INTERVAL", 10*time.Minute),
		SyncAudit:        boolEnv("APP_SYNC_AUDIT", true),
		ProjectsCSV:      getenv("APP_PROJECTS_CSV", "projects.csv"),
		LabelsFile:       os.Getenv("APP_LABELS_FILE"),
		RunRetentionDays: intEnv("APP_RUN_RETENTION_DAYS", 30),
	}
	return cfg
}

// Validate reports missing settings the sync engine cannot run without.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.DatabaseURL) == "" {
		errs = append(errs, errors.New("APP_DATABASE_URL is required"))
	}
	if c.GitLabURL == "" {
		errs = append(errs, errors.New("APP_GITLAB_URL is required"))
	}
	if c.GitLabToken == "" {
		errs = append(errs, errors.New("APP_GITLAB_TOKEN is required"))
	}
	return errors.Join(errs...)
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func durationEnv(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func intEnv(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func boolEnv(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
