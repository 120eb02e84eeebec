package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"inbox-janitor-go/internal/apperrors"
	"inbox-janitor-go/internal/model"
)

// queryChunkSize bounds IN clauses to respect query-size limits.
const queryChunkSize = 100

// ActionRepository persists action records.
type ActionRepository struct {
	db *gorm.DB
}

// NewActionRepository creates an action repository.
func NewActionRepository(db *gorm.DB) *ActionRepository {
	return &ActionRepository{db: db}
}

// GetPendingByIDs loads the referenced records that are still pending and
// owned by the caller. Reads are chunked to respect query-size limits.
func (r *ActionRepository) GetPendingByIDs(ctx context.Context, userID string, ids []uint) ([]model.ActionRecord, error) {
	var records []model.ActionRecord
	for start := 0; start < len(ids); start += queryChunkSize {
		end := start + queryChunkSize
		if end > len(ids) {
			end = len(ids)
		}
		var chunk []model.ActionRecord
		err := r.db.WithContext(ctx).
			Where("id IN ? AND user_id = ? AND status = ?", ids[start:end], userID, model.StatusPending).
			Find(&chunk).Error
		if err != nil {
			return nil, fmt.Errorf("failed to load pending actions: %w", err)
		}
		records = append(records, chunk...)
	}
	return records, nil
}

// MarkExecuted transitions a pending record to executed, stamping the
// effective action type and execution batch.
func (r *ActionRepository) MarkExecuted(ctx context.Context, id uint, effectiveType model.ActionType, batchID string, executedAt time.Time) error {
	result := r.db.WithContext(ctx).Model(&model.ActionRecord{}).
		Where("id = ? AND status = ?", id, model.StatusPending).
		Updates(map[string]interface{}{
			"status":        model.StatusExecuted,
			"action_type":   effectiveType,
			"exec_batch_id": batchID,
			"executed_at":   executedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to mark action executed: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.NotFoundf("pending action %d", id)
	}
	return nil
}

// MarkRejected transitions a pending record to rejected.
func (r *ActionRepository) MarkRejected(ctx context.Context, userID string, id uint) error {
	result := r.db.WithContext(ctx).Model(&model.ActionRecord{}).
		Where("id = ? AND user_id = ? AND status = ?", id, userID, model.StatusPending).
		Update("status", model.StatusRejected)
	if result.Error != nil {
		return fmt.Errorf("failed to reject action: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		var record model.ActionRecord
		err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&record).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.NotFoundf("action %d", id)
		}
		if err != nil {
			return fmt.Errorf("failed to load action: %w", err)
		}
		return apperrors.Validationf("action %d is %s, only pending actions can be rejected", id, record.Status)
	}
	return nil
}

// GetBatch loads the records executed under one batch id for the caller.
func (r *ActionRepository) GetBatch(ctx context.Context, userID, batchID string) ([]model.ActionRecord, error) {
	var records []model.ActionRecord
	err := r.db.WithContext(ctx).
		Where("exec_batch_id = ? AND user_id = ?", batchID, userID).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load batch: %w", err)
	}
	if len(records) == 0 {
		return nil, apperrors.NotFoundf("batch %s", batchID)
	}
	return records, nil
}

// MarkUndone moves an executed record back to pending, exactly once. The
// batch check guards against records re-touched by later activity.
func (r *ActionRepository) MarkUndone(ctx context.Context, id uint, batchID string) error {
	result := r.db.WithContext(ctx).Model(&model.ActionRecord{}).
		Where("id = ? AND exec_batch_id = ? AND status = ? AND undone = ?", id, batchID, model.StatusExecuted, false).
		Updates(map[string]interface{}{
			"status": model.StatusPending,
			"undone": true,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to mark action undone: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.NotFoundf("undoable action %d in batch %s", id, batchID)
	}
	return nil
}
