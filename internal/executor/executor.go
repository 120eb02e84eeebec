// Package executor applies user-approved actions against the mailbox
// provider in grouped, chunked batches with partial-failure tracking and a
// time-boxed undo.
package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"inbox-janitor-go/internal/apperrors"
	"inbox-janitor-go/internal/gateway"
	"inbox-janitor-go/internal/metrics"
	"inbox-janitor-go/internal/model"
)

// ActionStore is the persistence surface the executor needs.
type ActionStore interface {
	GetPendingByIDs(ctx context.Context, userID string, ids []uint) ([]model.ActionRecord, error)
	MarkExecuted(ctx context.Context, id uint, effectiveType model.ActionType, batchID string, executedAt time.Time) error
	MarkRejected(ctx context.Context, userID string, id uint) error
	GetBatch(ctx context.Context, userID, batchID string) ([]model.ActionRecord, error)
	MarkUndone(ctx context.Context, id uint, batchID string) error
}

// Options configure an Executor.
type Options struct {
	Gateway    gateway.Gateway
	Store      ActionStore
	ChunkLimit int
	UndoWindow time.Duration
	MaxIDs     int
	Metrics    *metrics.Metrics
}

// Executor executes, rejects and undoes persisted actions.
type Executor struct {
	gateway    gateway.Gateway
	store      ActionStore
	chunkLimit int
	undoWindow time.Duration
	maxIDs     int
	metrics    *metrics.Metrics
	now        func() time.Time
}

// ItemError reports one failed item of a partially-failed batch.
type ItemError struct {
	ActionID uint   `json:"action_id"`
	EmailID  string `json:"email_id,omitempty"`
	Message  string `json:"message"`
}

// ExecuteResult reports the outcome of one execute call. Partial success
// is a normal outcome, not an error state.
type ExecuteResult struct {
	BatchID  string      `json:"batch_id"`
	Executed int         `json:"executed"`
	Failed   int         `json:"failed"`
	Errors   []ItemError `json:"errors,omitempty"`
}

// UndoResult reports the outcome of one undo call.
type UndoResult struct {
	Undone int `json:"undone"`
	Failed int `json:"failed"`
}

// New creates an action executor.
func New(opts Options) *Executor {
	chunkLimit := opts.ChunkLimit
	if chunkLimit <= 0 {
		chunkLimit = 50
	}
	undoWindow := opts.UndoWindow
	if undoWindow <= 0 {
		undoWindow = 5 * time.Minute
	}
	maxIDs := opts.MaxIDs
	if maxIDs <= 0 {
		maxIDs = 500
	}
	return &Executor{
		gateway:    opts.Gateway,
		store:      opts.Store,
		chunkLimit: chunkLimit,
		undoWindow: undoWindow,
		maxIDs:     maxIDs,
		metrics:    opts.Metrics,
		now:        time.Now,
	}
}

// Execute applies the referenced pending actions. An optional override
// replaces every record's stored type. Work is grouped by effective type
// and chunked to the provider limit; a failing chunk or item never aborts
// sibling work.
func (e *Executor) Execute(ctx context.Context, userID string, actionIDs []uint, override *model.ActionType) (*ExecuteResult, error) {
	if len(actionIDs) == 0 {
		return nil, apperrors.Validationf("action_ids must not be empty")
	}
	if len(actionIDs) > e.maxIDs {
		return nil, apperrors.Validationf("at most %d action_ids per call", e.maxIDs)
	}
	if override != nil {
		if _, ok := model.ParseActionType(string(*override)); !ok {
			return nil, apperrors.Validationf("unknown action type override %q", *override)
		}
	}

	records, err := e.store.GetPendingByIDs(ctx, userID, actionIDs)
	if err != nil {
		return nil, err
	}

	result := &ExecuteResult{BatchID: uuid.NewString()}
	var mu sync.Mutex

	loaded := make(map[uint]bool, len(records))
	groups := make(map[model.ActionType][]model.ActionRecord)
	for _, record := range records {
		loaded[record.ID] = true
		effective := record.ActionType
		if override != nil {
			effective = *override
		}
		if record.Category.IsProtected() && effective.IsDestructive() {
			result.Failed++
			result.Errors = append(result.Errors, ItemError{
				ActionID: record.ID,
				EmailID:  record.EmailID,
				Message:  fmt.Sprintf("category %s is protected from destructive actions", record.Category),
			})
			continue
		}
		groups[effective] = append(groups[effective], record)
	}
	for _, id := range actionIDs {
		if !loaded[id] {
			result.Failed++
			result.Errors = append(result.Errors, ItemError{
				ActionID: id,
				Message:  "not found, not pending, or not owned by caller",
			})
		}
	}

	executedAt := e.now()
	var wg sync.WaitGroup
	for actionType, group := range groups {
		wg.Add(1)
		go func(actionType model.ActionType, group []model.ActionRecord) {
			defer wg.Done()
			e.executeGroup(ctx, actionType, group, result.BatchID, executedAt, result, &mu)
		}(actionType, group)
	}
	wg.Wait()

	logrus.Infof("Execute batch %s: %d executed, %d failed", result.BatchID, result.Executed, result.Failed)
	return result, nil
}

// executeGroup executes one action-type group, chunked to the provider
// limit. Provider calls run sequentially within the group to respect
// external rate limits.
func (e *Executor) executeGroup(ctx context.Context, actionType model.ActionType, group []model.ActionRecord, batchID string, executedAt time.Time, result *ExecuteResult, mu *sync.Mutex) {
	for start := 0; start < len(group); start += e.chunkLimit {
		end := start + e.chunkLimit
		if end > len(group) {
			end = len(group)
		}
		chunk := group[start:end]

		switch actionType {
		case model.ActionMoveToTrash:
			// The provider has no bulk trash; items go one by one.
			for _, record := range chunk {
				err := e.gateway.TrashMessage(ctx, record.EmailID)
				e.finishItem(ctx, record, actionType, batchID, executedAt, err, result, mu)
			}

		case model.ActionArchive, model.ActionMarkRead:
			add, remove := labelChanges(actionType)
			ids := emailIDs(chunk)
			err := e.gateway.BatchModifyLabels(ctx, ids, add, remove)
			for _, record := range chunk {
				e.finishItem(ctx, record, actionType, batchID, executedAt, err, result, mu)
			}

		default:
			// keep and unsubscribe need no provider mutation.
			for _, record := range chunk {
				e.finishItem(ctx, record, actionType, batchID, executedAt, nil, result, mu)
			}
		}
	}
}

// finishItem records one item's outcome: success transitions the record to
// executed and emits the audit line; failure leaves it pending.
func (e *Executor) finishItem(ctx context.Context, record model.ActionRecord, actionType model.ActionType, batchID string, executedAt time.Time, provErr error, result *ExecuteResult, mu *sync.Mutex) {
	if provErr == nil {
		provErr = e.store.MarkExecuted(ctx, record.ID, actionType, batchID, executedAt)
	}

	mu.Lock()
	defer mu.Unlock()

	if provErr != nil {
		result.Failed++
		result.Errors = append(result.Errors, ItemError{
			ActionID: record.ID,
			EmailID:  record.EmailID,
			Message:  provErr.Error(),
		})
		if e.metrics != nil {
			e.metrics.ActionsFailed.Inc()
		}
		logrus.Warnf("Action %d (%s) on %s failed: %v", record.ID, actionType, record.EmailID, provErr)
		return
	}

	result.Executed++
	if e.metrics != nil {
		e.metrics.ActionsExecuted.Inc()
	}
	logrus.Infof("Action %d executed: %s on %s (category=%s confidence=%.2f)",
		record.ID, actionType, record.EmailID, record.Category, record.Confidence)
}

// Reject transitions a single pending action to rejected.
func (e *Executor) Reject(ctx context.Context, userID string, actionID uint) error {
	if actionID == 0 {
		return apperrors.Validationf("action id is required")
	}
	return e.store.MarkRejected(ctx, userID, actionID)
}

// Undo reverts every undoable item of one execution batch, but only within
// the undo window; past it the call fails with an expired condition and
// performs no provider calls.
func (e *Executor) Undo(ctx context.Context, userID, batchID string) (*UndoResult, error) {
	if batchID == "" {
		return nil, apperrors.Validationf("batch id is required")
	}

	records, err := e.store.GetBatch(ctx, userID, batchID)
	if err != nil {
		return nil, err
	}

	for _, record := range records {
		if record.ExecutedAt != nil && e.now().Sub(*record.ExecutedAt) > e.undoWindow {
			if e.metrics != nil {
				e.metrics.UndoExpired.Inc()
			}
			return nil, fmt.Errorf("%w: batch %s executed more than %s ago",
				apperrors.ErrUndoExpired, batchID, e.undoWindow)
		}
	}

	result := &UndoResult{}
	for _, record := range records {
		if record.Status != model.StatusExecuted || record.Undone {
			// Re-touched by later activity or already undone once.
			result.Failed++
			continue
		}

		if err := e.revert(ctx, record); err != nil {
			logrus.Warnf("Undo of action %d on %s failed: %v", record.ID, record.EmailID, err)
			result.Failed++
			continue
		}
		if err := e.store.MarkUndone(ctx, record.ID, batchID); err != nil {
			logrus.Warnf("Undo of action %d not recorded: %v", record.ID, err)
			result.Failed++
			continue
		}

		result.Undone++
		if e.metrics != nil {
			e.metrics.ActionsUndone.Inc()
		}
	}

	logrus.Infof("Undo batch %s: %d undone, %d failed", batchID, result.Undone, result.Failed)
	return result, nil
}

// revert applies the inverse provider mutation for one executed action.
func (e *Executor) revert(ctx context.Context, record model.ActionRecord) error {
	switch record.ActionType {
	case model.ActionMoveToTrash:
		return e.gateway.UntrashMessage(ctx, record.EmailID)
	case model.ActionArchive, model.ActionMarkRead:
		add, remove := labelChanges(record.ActionType)
		// Re-apply in reverse: what was removed gets added back.
		return e.gateway.BatchModifyLabels(ctx, []string{record.EmailID}, remove, add)
	default:
		return nil
	}
}

// labelChanges maps a label-based action to its add/remove label sets.
func labelChanges(actionType model.ActionType) (add, remove []string) {
	switch actionType {
	case model.ActionArchive:
		return nil, []string{gateway.LabelInbox}
	case model.ActionMarkRead:
		return nil, []string{gateway.LabelUnread}
	}
	return nil, nil
}

func emailIDs(records []model.ActionRecord) []string {
	ids := make([]string, len(records))
	for i, record := range records {
		ids[i] = record.EmailID
	}
	return ids
}
