package db

import (
	"context"
	"log"
	"time"

	"gorm.io/gorm"
)

// runRetentionOnce deletes sync run log entries started before the cutoff.
func runRetentionOnce(db *gorm.DB, cutoff time.Time) (int64, error) {
	res := db.Where("started_at < ?", cutoff).Delete(&SyncRun{})
	return res.RowsAffected, res.Error
}

// StartRetentionWorker launches a background goroutine that prunes the sync
// run log once at startup and then once per day, until ctx is done. Entries
// older than days are removed; days <= 0 disables the worker.
func StartRetentionWorker(ctx context.Context, db *gorm.DB, days int) {
	if days <= 0 {
		return
	}
	keep := time.Duration(days) * 24 * time.Hour
	go func() {
		if _, err := runRetentionOnce(db, time.Now().Add(-keep)); err != nil {
			log.Printf("retention cleanup error (startup): %v", err)
		}

		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := runRetentionOnce(db, time.Now().Add(-keep))
				if err != nil {
					log.Printf("retention cleanup error: %v", err)
					continue
				}
				if n > 0 {
					log.Printf("retention: pruned %d sync runs", n)
				}
			}
		}
	}()
}
