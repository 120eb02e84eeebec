package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"inbox-janitor-go/internal/apperrors"
	"inbox-janitor-go/internal/model"
)

// ScanRepository persists scan records.
type ScanRepository struct {
	db *gorm.DB
}

// NewScanRepository creates a scan repository.
func NewScanRepository(db *gorm.DB) *ScanRepository {
	return &ScanRepository{db: db}
}

// Create inserts a new scan record.
func (r *ScanRepository) Create(ctx context.Context, scan *model.ScanRecord) error {
	if err := r.db.WithContext(ctx).Create(scan).Error; err != nil {
		return fmt.Errorf("failed to create scan: %w", err)
	}
	return nil
}

// Update saves the full scan record.
func (r *ScanRepository) Update(ctx context.Context, scan *model.ScanRecord) error {
	if err := r.db.WithContext(ctx).Save(scan).Error; err != nil {
		return fmt.Errorf("failed to update scan: %w", err)
	}
	return nil
}

// Get loads a scan owned by the given user.
func (r *ScanRepository) Get(ctx context.Context, scanID, userID string) (*model.ScanRecord, error) {
	var scan model.ScanRecord
	err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", scanID, userID).First(&scan).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFoundf("scan %s", scanID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load scan: %w", err)
	}
	return &scan, nil
}

// UpdatePhase sets the scan phase and optional error message.
func (r *ScanRepository) UpdatePhase(ctx context.Context, scanID string, phase model.ScanPhase, errMsg string) error {
	updates := map[string]interface{}{"phase": phase}
	if errMsg != "" {
		updates["error_msg"] = errMsg
	}
	if err := r.db.WithContext(ctx).Model(&model.ScanRecord{}).Where("id = ?", scanID).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to update scan phase: %w", err)
	}
	return nil
}

// ListByPhase returns scans currently in the given phase.
func (r *ScanRepository) ListByPhase(ctx context.Context, phase model.ScanPhase) ([]model.ScanRecord, error) {
	var scans []model.ScanRecord
	if err := r.db.WithContext(ctx).Where("phase = ?", phase).Find(&scans).Error; err != nil {
		return nil, fmt.Errorf("failed to list scans: %w", err)
	}
	return scans, nil
}

// ApplyBatch commits one processed batch atomically: it advances
// processed_count from fromCount to toCount, merges aggregates, moves the
// phase, and inserts the batch's action records. The row is locked for the
// duration; a concurrent call that already advanced the count loses the
// race and gets applied=false with the current state. Replays never
// re-insert action records: the (scan_id, email_id) unique index plus a
// do-nothing conflict clause make the insert idempotent.
func (r *ScanRepository) ApplyBatch(ctx context.Context, scanID string, fromCount, toCount int, phase model.ScanPhase, delta model.ScanAggregates, actions []model.ActionRecord) (bool, *model.ScanRecord, error) {
	applied := false
	var scan model.ScanRecord

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", scanID).First(&scan).Error; err != nil {
			return fmt.Errorf("failed to lock scan: %w", err)
		}

		if scan.ProcessedCount != fromCount {
			return nil // lost the race; caller returns current state
		}

		scan.ProcessedCount = toCount
		scan.Phase = phase
		scan.Aggregates.Merge(delta)

		if err := tx.Save(&scan).Error; err != nil {
			return fmt.Errorf("failed to update scan: %w", err)
		}

		if len(actions) > 0 {
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&actions).Error; err != nil {
				return fmt.Errorf("failed to insert action records: %w", err)
			}
		}

		applied = true
		return nil
	})
	if err != nil {
		return false, nil, err
	}
	return applied, &scan, nil
}
