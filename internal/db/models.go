package db

import (
	"time"

	"gorm.io/datatypes"
)

// MonitoredProject is one entry of the project roster. Projects are never
// deleted, only deactivated.
type MonitoredProject struct {
	ID        int64     `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Name      string    `gorm:"not null" json:"name"`
	Active    bool      `gorm:"not null;default:true;index" json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// WorkItem is an open issue under a tracked label. The rows of a project are
// replaced wholesale on every status sync.
type WorkItem struct {
	ID        int64  `gorm:"primaryKey;autoIncrement:false"` // upstream issue id
	IID       int64  `gorm:"not null"`
	ProjectID int64  `gorm:"index;not null"`
	Status    string `gorm:"index;not null"`
	Title     string
	WebURL    string
	// LastUpdated is the upstream updated_at of the issue.
	LastUpdated time.Time
	SyncedAt    time.Time

	// Raw is the full upstream issue document.
	Raw datatypes.JSON

	ExecutionDays  int `gorm:"not null;default:0"`
	ReviewDays     int `gorm:"not null;default:0"`
	FunctionalDays int `gorm:"not null;default:0"`
}

// AuditEvent records that a user touched an artifact within a month. The
// composite unique index is the upsert target.
type AuditEvent struct {
	ID uint `gorm:"primaryKey"`

	ProjectID   int64  `gorm:"uniqueIndex:idx_audit_event_unique,priority:1;index:idx_audit_event_window,priority:1;not null"`
	EventType   string `gorm:"uniqueIndex:idx_audit_event_unique,priority:2;size:32;not null"`
	ReferenceID string `gorm:"uniqueIndex:idx_audit_event_unique,priority:3;size:255;not null"`
	Username    string `gorm:"uniqueIndex:idx_audit_event_unique,priority:4;size:255;not null"`

	// The key has no month: a later event for the same artifact refreshes
	// EventDate, while EventYear/EventMonth keep the bucket of the first write.
	EventDate  time.Time `gorm:"not null"`
	EventYear  int       `gorm:"index:idx_audit_event_window,priority:2;not null"`
	EventMonth int       `gorm:"index:idx_audit_event_window,priority:3;not null"`

	// OnTime is only set for issue-reviewed events with a known due date.
	OnTime *bool
}

// SystemMetadata is a single row (ID 1).
type SystemMetadata struct {
	ID           uint `gorm:"primaryKey"`
	LastFullSync *time.Time
}

// SyncRun is the log entry of one synchronization run.
type SyncRun struct {
	ID             string                     `gorm:"primaryKey;size:36" json:"id"`
	Kind           string                     `gorm:"index;size:16;not null" json:"kind"`
	ProjectID      *int64                     `json:"project_id,omitempty"`
	Month          int                        `json:"month,omitempty"`
	Year           int                        `json:"year,omitempty"`
	StartedAt      time.Time                  `gorm:"index;not null" json:"started_at"`
	FinishedAt     *time.Time                 `json:"finished_at,omitempty"`
	Result         string                     `gorm:"size:16;not null" json:"result"`
	ItemsSynced    int                        `json:"items_synced"`
	EventsUpserted int                        `json:"events_upserted"`
	FailedProjects datatypes.JSONSlice[int64] `json:"failed_projects,omitempty"`
	Error          string                     `json:"error,omitempty"`
}
