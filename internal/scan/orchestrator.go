// Package scan drives the resumable scan pipeline: list, extract,
// categorize, plan, persist. Each batch call is independent and idempotent;
// that, not locking, is the correctness mechanism for client retries.
package scan

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"inbox-janitor-go/internal/apperrors"
	"inbox-janitor-go/internal/extractor"
	"inbox-janitor-go/internal/gateway"
	"inbox-janitor-go/internal/metrics"
	"inbox-janitor-go/internal/model"
)

// ScanStore is the persistence surface the orchestrator needs.
type ScanStore interface {
	Create(ctx context.Context, scan *model.ScanRecord) error
	Update(ctx context.Context, scan *model.ScanRecord) error
	Get(ctx context.Context, scanID, userID string) (*model.ScanRecord, error)
	UpdatePhase(ctx context.Context, scanID string, phase model.ScanPhase, errMsg string) error
	ApplyBatch(ctx context.Context, scanID string, fromCount, toCount int, phase model.ScanPhase, delta model.ScanAggregates, actions []model.ActionRecord) (bool, *model.ScanRecord, error)
}

// Classifier resolves categories for a batch of records and reports the
// LLM provider usage actually incurred doing so.
type Classifier interface {
	Classify(ctx context.Context, userID string, records []model.EmailRecord) ([]model.CategorizationResult, model.ClassifyStats)
}

// Options configure an Orchestrator.
type Options struct {
	Gateway     gateway.Gateway
	Store       ScanStore
	Classifier  Classifier
	BatchSize   int
	MaxItems    int
	CostPerItem int64 // micro-USD per LLM-classified item
	Metrics     *metrics.Metrics
}

// Orchestrator composes the gateway, extractor, engine and planner into
// the offset-indexed batch state machine.
type Orchestrator struct {
	gateway     gateway.Gateway
	store       ScanStore
	classifier  Classifier
	batchSize   int
	maxItems    int
	costPerItem int64
	metrics     *metrics.Metrics
}

// BatchResult is the state returned to the caller after each batch call.
type BatchResult struct {
	ScanID         string          `json:"scan_id"`
	Phase          model.ScanPhase `json:"phase"`
	ProcessedCount int             `json:"processed_count"`
	TotalIDs       int             `json:"total_ids"`
	NextOffset     int             `json:"next_offset"`
}

// NewOrchestrator creates a scan orchestrator.
func NewOrchestrator(opts Options) *Orchestrator {
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = 30
	}
	maxItems := opts.MaxItems
	if maxItems <= 0 {
		maxItems = 1000
	}
	return &Orchestrator{
		gateway:     opts.Gateway,
		store:       opts.Store,
		classifier:  opts.Classifier,
		batchSize:   batchSize,
		maxItems:    maxItems,
		costPerItem: opts.CostPerItem,
		metrics:     opts.Metrics,
	}
}

// StartScan lists candidate ids and persists a new scan record. A listing
// failure is fatal for the scan: the record moves to failed and a new scan
// must be started.
func (o *Orchestrator) StartScan(ctx context.Context, userID, filter string, maxItems int) (*model.ScanRecord, error) {
	if maxItems <= 0 || maxItems > o.maxItems {
		return nil, apperrors.Validationf("max_items must be within 1..%d", o.maxItems)
	}
	if len(filter) > 500 {
		return nil, apperrors.Validationf("filter exceeds 500 characters")
	}

	scan := &model.ScanRecord{
		ID:         uuid.NewString(),
		UserID:     userID,
		Filter:     filter,
		Phase:      model.PhaseListing,
		Aggregates: model.NewScanAggregates(),
	}
	if err := o.store.Create(ctx, scan); err != nil {
		return nil, err
	}
	if o.metrics != nil {
		o.metrics.ScansStarted.Inc()
	}

	ids, err := o.gateway.ListMessageIDs(ctx, filter, maxItems)
	if err != nil {
		o.failScan(ctx, scan.ID, "listing failed: "+err.Error())
		return nil, apperrors.Providerf("listing failed: %v", err)
	}

	scan.MessageIDs = ids
	scan.TotalIDs = len(ids)
	if len(ids) == 0 {
		scan.Phase = model.PhaseCompleted
	} else {
		scan.Phase = model.PhaseProcessing
	}
	if err := o.store.Update(ctx, scan); err != nil {
		return nil, err
	}

	logrus.Infof("Scan %s started for %s: %d candidates", scan.ID, userID, scan.TotalIDs)
	return scan, nil
}

// GetScan returns the current state of a scan owned by the caller.
func (o *Orchestrator) GetScan(ctx context.Context, userID, scanID string) (*model.ScanRecord, error) {
	return o.store.Get(ctx, scanID, userID)
}

// ProcessNextBatch consumes one batch starting at offset. A stale offset
// (already processed) is a no-op returning the current state; an offset
// ahead of the stored count means the client is out of sync and is
// rejected before any side effect.
func (o *Orchestrator) ProcessNextBatch(ctx context.Context, userID, scanID string, offset int) (*BatchResult, error) {
	if offset < 0 {
		return nil, apperrors.Validationf("offset must not be negative")
	}

	scan, err := o.store.Get(ctx, scanID, userID)
	if err != nil {
		return nil, err
	}

	if scan.Phase == model.PhaseCompleted || scan.Phase == model.PhaseFailed {
		return o.result(scan), nil
	}
	if offset < scan.ProcessedCount {
		// Safe retry of an already-applied batch.
		return o.result(scan), nil
	}
	if offset > scan.ProcessedCount {
		// An offset ahead of the stored count means the client skipped a
		// batch or is reading someone else's progress; treating it as a
		// silent no-op would hide the desync, so it is rejected instead.
		return nil, apperrors.Validationf("offset %d is ahead of processed count %d", offset, scan.ProcessedCount)
	}

	end := offset + o.batchSize
	if end > scan.TotalIDs {
		end = scan.TotalIDs
	}
	if offset >= end {
		// Nothing left to consume; finalize.
		if err := o.store.UpdatePhase(ctx, scanID, model.PhaseCompleted, ""); err != nil {
			return nil, err
		}
		scan.Phase = model.PhaseCompleted
		o.logCompletion(scan)
		return o.result(scan), nil
	}

	ids := scan.MessageIDs[offset:end]
	raws, err := o.gateway.BatchGetMessages(ctx, ids)
	if err != nil {
		o.failScan(ctx, scanID, "metadata fetch failed: "+err.Error())
		return nil, apperrors.Providerf("metadata fetch failed: %v", err)
	}

	records := make([]model.EmailRecord, len(raws))
	for i, raw := range raws {
		records[i] = extractor.Extract(raw)
	}

	classifyStart := time.Now()
	results, stats := o.classifier.Classify(ctx, userID, records)
	if o.metrics != nil {
		o.metrics.ClassifyDuration.Observe(time.Since(classifyStart).Seconds())
	}
	actions, delta := o.buildActions(scan, records, results)

	// Cost follows actual provider usage; degraded fallbacks that never got
	// a successful LLM response are free.
	delta.LLMBatches = stats.LLMBatches
	delta.LLMItems = stats.LLMItems
	delta.CostMicro = stats.LLMItems * o.costPerItem

	phase := model.PhaseProcessing
	if end >= scan.TotalIDs {
		phase = model.PhaseCompleted
	}

	applied, updated, err := o.store.ApplyBatch(ctx, scanID, offset, end, phase, delta, actions)
	if err != nil {
		o.failScan(ctx, scanID, "batch persist failed: "+err.Error())
		return nil, apperrors.Providerf("batch persist failed: %v", err)
	}
	if !applied {
		// A concurrent call for the same offset won the race.
		return o.result(updated), nil
	}

	if o.metrics != nil {
		o.metrics.ScanBatches.Inc()
	}
	if updated.Phase == model.PhaseCompleted {
		o.logCompletion(updated)
	}
	return o.result(updated), nil
}

// buildActions turns classification results into pending action records and
// the aggregate delta for this batch.
func (o *Orchestrator) buildActions(scan *model.ScanRecord, records []model.EmailRecord, results []model.CategorizationResult) ([]model.ActionRecord, model.ScanAggregates) {
	byID := make(map[string]model.EmailRecord, len(records))
	for _, r := range records {
		byID[r.ID] = r
	}

	delta := model.NewScanAggregates()
	actions := make([]model.ActionRecord, 0, len(results))

	for _, result := range results {
		primary := result.PrimaryAction()
		if result.Category.IsProtected() && primary.Type.IsDestructive() {
			// Hard safety invariant; the planner already guarantees this.
			primary = model.SuggestedAction{Type: model.ActionKeep, Reason: "Protected category", Priority: 0}
		}

		delta.ByCategory[string(result.Category)]++
		delta.BySource[string(result.Source)]++

		actions = append(actions, model.ActionRecord{
			UserID:        scan.UserID,
			ScanID:        scan.ID,
			EmailID:       result.EmailID,
			SenderAddress: byID[result.EmailID].Sender.Address,
			Status:        model.StatusPending,
			ActionType:    primary.Type,
			Category:      result.Category,
			Confidence:    result.Confidence,
			Source:        result.Source,
			Reason:        primary.Reason,
		})
	}

	return actions, delta
}

func (o *Orchestrator) failScan(ctx context.Context, scanID, msg string) {
	if o.metrics != nil {
		o.metrics.ScanFailures.Inc()
	}
	if err := o.store.UpdatePhase(ctx, scanID, model.PhaseFailed, msg); err != nil {
		logrus.Errorf("Failed to mark scan %s failed: %v", scanID, err)
	}
}

func (o *Orchestrator) logCompletion(scan *model.ScanRecord) {
	logrus.Infof("Scan %s completed: %d emails, %d via LLM, cost %dµ$",
		scan.ID, scan.ProcessedCount, scan.Aggregates.LLMItems, scan.Aggregates.CostMicro)
}

func (o *Orchestrator) result(scan *model.ScanRecord) *BatchResult {
	next := scan.ProcessedCount
	if next > scan.TotalIDs {
		next = scan.TotalIDs
	}
	return &BatchResult{
		ScanID:         scan.ID,
		Phase:          scan.Phase,
		ProcessedCount: scan.ProcessedCount,
		TotalIDs:       scan.TotalIDs,
		NextOffset:     next,
	}
}
