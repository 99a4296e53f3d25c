package db

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"taskpulse/internal/config"
)

var (
	ErrProjectExists   = errors.New("project already exists")
	ErrProjectNotFound = errors.New("project not found")
)

// Store wraps the database for the sync engine (writer) and the query
// service (reader).
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle for health checks.
func (s *Store) DB() *gorm.DB { return s.db }

// ImportResult summarizes a roster import.
type ImportResult struct {
	Created int `json:"created"`
	Renamed int `json:"renamed"`
}

// ImportProjects inserts unknown projects as active and refreshes the display
// name of known ones. The active flag of existing rows is left alone.
func (s *Store) ImportProjects(ctx context.Context, projects []config.Project) (ImportResult, error) {
	var res ImportResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, p := range projects {
			var existing MonitoredProject
			err := tx.Where("id = ?", p.ID).Limit(1).Find(&existing).Error
			if err != nil {
				return err
			}
			if existing.ID == 0 {
				if err := tx.Create(&MonitoredProject{ID: p.ID, Name: p.Name, Active: true}).Error; err != nil {
					return err
				}
				res.Created++
				continue
			}
			if existing.Name != p.Name && p.Name != "" {
				if err := tx.Model(&existing).Update("name", p.Name).Error; err != nil {
					return err
				}
				res.Renamed++
			}
		}
		return nil
	})
	return res, err
}

// CreateProject adds one active project.
func (s *Store) CreateProject(ctx context.Context, id int64, name string) (MonitoredProject, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&MonitoredProject{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return MonitoredProject{}, err
	}
	if count > 0 {
		return MonitoredProject{}, ErrProjectExists
	}
	p := MonitoredProject{ID: id, Name: name, Active: true}
	if err := s.db.WithContext(ctx).Create(&p).Error; err != nil {
		return MonitoredProject{}, err
	}
	return p, nil
}

// SetProjectActive toggles whether a project takes part in syncs.
func (s *Store) SetProjectActive(ctx context.Context, id int64, active bool) error {
	res := s.db.WithContext(ctx).Model(&MonitoredProject{}).Where("id = ?", id).Update("active", active)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrProjectNotFound
	}
	return nil
}

// Project returns one project or ErrProjectNotFound.
func (s *Store) Project(ctx context.Context, id int64) (MonitoredProject, error) {
	var p MonitoredProject
	if err := s.db.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&p).Error; err != nil {
		return MonitoredProject{}, err
	}
	if p.ID == 0 {
		return MonitoredProject{}, ErrProjectNotFound
	}
	return p, nil
}

func (s *Store) Projects(ctx context.Context) ([]MonitoredProject, error) {
	var out []MonitoredProject
	err := s.db.WithContext(ctx).Order("id").Find(&out).Error
	return out, err
}

func (s *Store) ActiveProjects(ctx context.Context) ([]MonitoredProject, error) {
	var out []MonitoredProject
	err := s.db.WithContext(ctx).Where("active = ?", true).Order("id").Find(&out).Error
	return out, err
}

// ReplaceProjectItems deletes every work item of the project and inserts
// items in one transaction. Readers see either the old or the new set.
func (s *Store) ReplaceProjectItems(ctx context.Context, projectID int64, items []WorkItem) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("project_id = ?", projectID).Delete(&WorkItem{}).Error; err != nil {
			return err
		}
		if len(items) == 0 {
			return nil
		}
		for i := range items {
			items[i].ProjectID = projectID
		}
		// An issue moved between projects still has a single row.
		return tx.Clauses(clause.OnConflict{UpdateAll: true}).CreateInBatches(&items, 100).Error
	})
}

// ProjectItems returns the stored items of one project.
func (s *Store) ProjectItems(ctx context.Context, projectID int64) ([]WorkItem, error) {
	var out []WorkItem
	err := s.db.WithContext(ctx).Where("project_id = ?", projectID).Order("id").Find(&out).Error
	return out, err
}

var auditKey = []clause.Column{{Name: "project_id"}, {Name: "event_type"}, {Name: "reference_id"}, {Name: "username"}}

// UpsertAuditEvents inserts events keyed by (project, type, reference,
// username). On conflict only the event date and on-time flag change; the
// month bucket of the existing row stays as first written.
func (s *Store) UpsertAuditEvents(ctx context.Context, events []AuditEvent) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   auditKey,
		DoUpdates: clause.AssignmentColumns([]string{"event_date", "on_time"}),
	}).CreateInBatches(&events, 200).Error
	if err != nil {
		return 0, err
	}
	return len(events), nil
}

// SupersedeUpdates removes "updated" rows of a project's month when the same
// user has a "created" row for the same artifact in that month. pairs maps
// each created type to the updated type it replaces.
func (s *Store) SupersedeUpdates(ctx context.Context, projectID int64, month, year int, pairs map[string]string) (int64, error) {
	var removed int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for created, updated := range pairs {
			res := tx.Where("project_id = ? AND event_year = ? AND event_month = ? AND event_type = ?",
				projectID, year, month, updated).
				Where(`EXISTS (SELECT 1 FROM audit_events c
					WHERE c.project_id = audit_events.project_id
					AND c.reference_id = audit_events.reference_id
					AND c.username = audit_events.username
					AND c.event_year = audit_events.event_year
					AND c.event_month = audit_events.event_month
					AND c.event_type = ?)`, created).
				Delete(&AuditEvent{})
			if res.Error != nil {
				return res.Error
			}
			removed += res.RowsAffected
		}
		return nil
	})
	return removed, err
}

// AuditEvents returns the stored events of a project's month.
func (s *Store) AuditEvents(ctx context.Context, projectID int64, month, year int) ([]AuditEvent, error) {
	var out []AuditEvent
	err := s.db.WithContext(ctx).
		Where("project_id = ? AND event_year = ? AND event_month = ?", projectID, year, month).
		Order("event_type, reference_id, username").
		Find(&out).Error
	return out, err
}

// SetLastFullSync stores the completion time of a full sweep.
func (s *Store) SetLastFullSync(ctx context.Context, at time.Time) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_full_sync"}),
	}).Create(&SystemMetadata{ID: 1, LastFullSync: &at}).Error
}

// LastFullSync returns nil until a full sweep has completed.
func (s *Store) LastFullSync(ctx context.Context) (*time.Time, error) {
	var meta SystemMetadata
	if err := s.db.WithContext(ctx).Where("id = ?", 1).Limit(1).Find(&meta).Error; err != nil {
		return nil, err
	}
	return meta.LastFullSync, nil
}

// SaveRun inserts or updates a run log entry.
func (s *Store) SaveRun(ctx context.Context, run *SyncRun) error {
	return s.db.WithContext(ctx).Save(run).Error
}
