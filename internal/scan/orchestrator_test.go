package scan

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inbox-janitor-go/internal/apperrors"
	"inbox-janitor-go/internal/gateway"
	"inbox-janitor-go/internal/model"
)

type fakeStore struct {
	scans   map[string]*model.ScanRecord
	actions map[string]model.ActionRecord // keyed scanID+emailID
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		scans:   make(map[string]*model.ScanRecord),
		actions: make(map[string]model.ActionRecord),
	}
}

func (s *fakeStore) Create(ctx context.Context, scan *model.ScanRecord) error {
	copied := *scan
	s.scans[scan.ID] = &copied
	return nil
}

func (s *fakeStore) Update(ctx context.Context, scan *model.ScanRecord) error {
	copied := *scan
	s.scans[scan.ID] = &copied
	return nil
}

func (s *fakeStore) Get(ctx context.Context, scanID, userID string) (*model.ScanRecord, error) {
	scan, ok := s.scans[scanID]
	if !ok || scan.UserID != userID {
		return nil, apperrors.NotFoundf("scan %s not found", scanID)
	}
	copied := *scan
	return &copied, nil
}

func (s *fakeStore) UpdatePhase(ctx context.Context, scanID string, phase model.ScanPhase, errMsg string) error {
	scan, ok := s.scans[scanID]
	if !ok {
		return apperrors.NotFoundf("scan %s not found", scanID)
	}
	scan.Phase = phase
	scan.ErrorMsg = errMsg
	return nil
}

func (s *fakeStore) ApplyBatch(ctx context.Context, scanID string, fromCount, toCount int, phase model.ScanPhase, delta model.ScanAggregates, actions []model.ActionRecord) (bool, *model.ScanRecord, error) {
	scan, ok := s.scans[scanID]
	if !ok {
		return false, nil, apperrors.NotFoundf("scan %s not found", scanID)
	}
	if scan.ProcessedCount != fromCount {
		copied := *scan
		return false, &copied, nil
	}
	scan.ProcessedCount = toCount
	scan.Phase = phase
	scan.Aggregates.Merge(delta)
	for _, action := range actions {
		key := action.ScanID + "/" + action.EmailID
		if _, exists := s.actions[key]; !exists {
			s.actions[key] = action
		}
	}
	copied := *scan
	return true, &copied, nil
}

type fakeGateway struct {
	ids        []string
	listErr    error
	getErr     error
	getCalls   int
	fetchedIDs [][]string
}

func (g *fakeGateway) ListMessageIDs(ctx context.Context, filter string, max int) ([]string, error) {
	if g.listErr != nil {
		return nil, g.listErr
	}
	if len(g.ids) > max {
		return g.ids[:max], nil
	}
	return g.ids, nil
}

func (g *fakeGateway) BatchGetMessages(ctx context.Context, ids []string) ([]gateway.RawMessage, error) {
	g.getCalls++
	g.fetchedIDs = append(g.fetchedIDs, ids)
	if g.getErr != nil {
		return nil, g.getErr
	}
	raws := make([]gateway.RawMessage, len(ids))
	for i, id := range ids {
		raws[i] = gateway.RawMessage{
			ID:      id,
			Headers: map[string]string{"From": fmt.Sprintf("sender-%s@x.example", id)},
		}
	}
	return raws, nil
}

func (g *fakeGateway) BatchModifyLabels(ctx context.Context, ids []string, add, remove []string) error {
	return nil
}
func (g *fakeGateway) TrashMessage(ctx context.Context, id string) error   { return nil }
func (g *fakeGateway) UntrashMessage(ctx context.Context, id string) error { return nil }
func (g *fakeGateway) Close() error                                        { return nil }

type fakeClassifier struct {
	category model.Category
	source   model.ResolutionSource
	action   model.ActionType
	billLLM  bool // report provider usage for every record
}

func (c *fakeClassifier) Classify(ctx context.Context, userID string, records []model.EmailRecord) ([]model.CategorizationResult, model.ClassifyStats) {
	results := make([]model.CategorizationResult, len(records))
	for i, record := range records {
		results[i] = model.CategorizationResult{
			EmailID:    record.ID,
			Category:   c.category,
			Confidence: 0.9,
			Source:     c.source,
			Actions: []model.SuggestedAction{{
				Type:     c.action,
				Reason:   "test",
				Priority: 100,
			}},
		}
	}
	var stats model.ClassifyStats
	if c.billLLM && len(records) > 0 {
		stats.LLMBatches = 1
		stats.LLMItems = int64(len(records))
	}
	return results, stats
}

func messageIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("msg-%03d", i)
	}
	return ids
}

func newTestOrchestrator(gw *fakeGateway, store *fakeStore, classifier Classifier) *Orchestrator {
	return NewOrchestrator(Options{
		Gateway:     gw,
		Store:       store,
		Classifier:  classifier,
		BatchSize:   30,
		MaxItems:    1000,
		CostPerItem: 150,
	})
}

func TestStartScanHappyPath(t *testing.T) {
	store := newFakeStore()
	gw := &fakeGateway{ids: messageIDs(120)}
	o := newTestOrchestrator(gw, store, &fakeClassifier{category: model.CategoryNewsletter, source: model.SourceHeuristic, action: model.ActionArchive})

	scan, err := o.StartScan(context.Background(), "u1", "", 500)
	require.NoError(t, err)
	assert.Equal(t, model.PhaseProcessing, scan.Phase)
	assert.Equal(t, 120, scan.TotalIDs)
	assert.Equal(t, 0, scan.ProcessedCount)
}

func TestStartScanValidation(t *testing.T) {
	store := newFakeStore()
	o := newTestOrchestrator(&fakeGateway{}, store, &fakeClassifier{})

	_, err := o.StartScan(context.Background(), "u1", "", 0)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = o.StartScan(context.Background(), "u1", "", 5000)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestStartScanEmptyMailboxCompletes(t *testing.T) {
	store := newFakeStore()
	o := newTestOrchestrator(&fakeGateway{}, store, &fakeClassifier{})

	scan, err := o.StartScan(context.Background(), "u1", "", 100)
	require.NoError(t, err)
	assert.Equal(t, model.PhaseCompleted, scan.Phase)
}

func TestStartScanListingFailureMarksFailed(t *testing.T) {
	store := newFakeStore()
	gw := &fakeGateway{listErr: errors.New("gateway down")}
	o := newTestOrchestrator(gw, store, &fakeClassifier{})

	_, err := o.StartScan(context.Background(), "u1", "", 100)
	require.ErrorIs(t, err, apperrors.ErrProviderUnavailable)

	require.Len(t, store.scans, 1)
	for _, scan := range store.scans {
		assert.Equal(t, model.PhaseFailed, scan.Phase)
		assert.NotEmpty(t, scan.ErrorMsg)
	}
}

func TestProcessBatchesToCompletion(t *testing.T) {
	store := newFakeStore()
	gw := &fakeGateway{ids: messageIDs(120)}
	o := newTestOrchestrator(gw, store, &fakeClassifier{category: model.CategoryNewsletter, source: model.SourceHeuristic, action: model.ActionArchive})
	ctx := context.Background()

	scan, err := o.StartScan(ctx, "u1", "", 500)
	require.NoError(t, err)

	// 120 candidates at batch size 30 means exactly four calls.
	expected := []int{30, 60, 90, 120}
	for i, want := range expected {
		result, err := o.ProcessNextBatch(ctx, "u1", scan.ID, want-30)
		require.NoError(t, err, "batch %d", i)
		assert.Equal(t, want, result.ProcessedCount)
		if want < 120 {
			assert.Equal(t, model.PhaseProcessing, result.Phase)
		} else {
			assert.Equal(t, model.PhaseCompleted, result.Phase)
		}
	}

	assert.Equal(t, 4, gw.getCalls)
	assert.Len(t, store.actions, 120)

	final, err := o.GetScan(ctx, "u1", scan.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), final.Aggregates.LLMItems)
	assert.Equal(t, int64(120), final.Aggregates.ByCategory[string(model.CategoryNewsletter)])
}

func TestProcessBatchIdempotentReplay(t *testing.T) {
	store := newFakeStore()
	gw := &fakeGateway{ids: messageIDs(60)}
	o := newTestOrchestrator(gw, store, &fakeClassifier{category: model.CategoryNewsletter, source: model.SourceHeuristic, action: model.ActionArchive})
	ctx := context.Background()

	scan, err := o.StartScan(ctx, "u1", "", 500)
	require.NoError(t, err)

	_, err = o.ProcessNextBatch(ctx, "u1", scan.ID, 0)
	require.NoError(t, err)
	fetchesAfterFirst := gw.getCalls

	// Replaying a consumed offset is a no-op returning current state.
	result, err := o.ProcessNextBatch(ctx, "u1", scan.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, 30, result.ProcessedCount)
	assert.Equal(t, fetchesAfterFirst, gw.getCalls)
	assert.Len(t, store.actions, 30)
}

func TestProcessBatchOffsetAheadRejected(t *testing.T) {
	store := newFakeStore()
	gw := &fakeGateway{ids: messageIDs(60)}
	o := newTestOrchestrator(gw, store, &fakeClassifier{category: model.CategoryNewsletter, source: model.SourceHeuristic, action: model.ActionArchive})
	ctx := context.Background()

	scan, err := o.StartScan(ctx, "u1", "", 500)
	require.NoError(t, err)

	_, err = o.ProcessNextBatch(ctx, "u1", scan.ID, 30)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Zero(t, gw.getCalls)
}

func TestProcessBatchNegativeOffsetRejected(t *testing.T) {
	o := newTestOrchestrator(&fakeGateway{}, newFakeStore(), &fakeClassifier{})

	_, err := o.ProcessNextBatch(context.Background(), "u1", "s1", -1)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestProcessBatchOnTerminalScanReturnsState(t *testing.T) {
	store := newFakeStore()
	gw := &fakeGateway{ids: messageIDs(30)}
	o := newTestOrchestrator(gw, store, &fakeClassifier{category: model.CategoryNewsletter, source: model.SourceHeuristic, action: model.ActionArchive})
	ctx := context.Background()

	scan, err := o.StartScan(ctx, "u1", "", 500)
	require.NoError(t, err)

	result, err := o.ProcessNextBatch(ctx, "u1", scan.ID, 0)
	require.NoError(t, err)
	require.Equal(t, model.PhaseCompleted, result.Phase)

	again, err := o.ProcessNextBatch(ctx, "u1", scan.ID, 30)
	require.NoError(t, err)
	assert.Equal(t, model.PhaseCompleted, again.Phase)
	assert.Equal(t, 1, gw.getCalls)
}

func TestProcessBatchFetchFailureMarksFailed(t *testing.T) {
	store := newFakeStore()
	gw := &fakeGateway{ids: messageIDs(60)}
	o := newTestOrchestrator(gw, store, &fakeClassifier{category: model.CategoryNewsletter, source: model.SourceHeuristic, action: model.ActionArchive})
	ctx := context.Background()

	scan, err := o.StartScan(ctx, "u1", "", 500)
	require.NoError(t, err)

	gw.getErr = errors.New("metadata fetch exploded")
	_, err = o.ProcessNextBatch(ctx, "u1", scan.ID, 0)
	require.ErrorIs(t, err, apperrors.ErrProviderUnavailable)

	stored, err := o.GetScan(ctx, "u1", scan.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PhaseFailed, stored.Phase)
}

func TestProcessBatchWrongUserRejected(t *testing.T) {
	store := newFakeStore()
	gw := &fakeGateway{ids: messageIDs(30)}
	o := newTestOrchestrator(gw, store, &fakeClassifier{category: model.CategoryNewsletter, source: model.SourceHeuristic, action: model.ActionArchive})
	ctx := context.Background()

	scan, err := o.StartScan(ctx, "u1", "", 500)
	require.NoError(t, err)

	_, err = o.ProcessNextBatch(ctx, "intruder", scan.ID, 0)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestProtectedCategoryNeverGetsDestructiveAction(t *testing.T) {
	store := newFakeStore()
	gw := &fakeGateway{ids: messageIDs(30)}
	// A broken classifier suggesting trash for an important email.
	classifier := &fakeClassifier{category: model.CategoryImportant, source: model.SourceLLM, action: model.ActionMoveToTrash}
	o := newTestOrchestrator(gw, store, classifier)
	ctx := context.Background()

	scan, err := o.StartScan(ctx, "u1", "", 500)
	require.NoError(t, err)

	_, err = o.ProcessNextBatch(ctx, "u1", scan.ID, 0)
	require.NoError(t, err)

	require.Len(t, store.actions, 30)
	for _, action := range store.actions {
		assert.Equal(t, model.ActionKeep, action.ActionType)
	}
}

func TestLLMCostAccounting(t *testing.T) {
	store := newFakeStore()
	gw := &fakeGateway{ids: messageIDs(30)}
	classifier := &fakeClassifier{category: model.CategorySocial, source: model.SourceLLM, action: model.ActionArchive, billLLM: true}
	o := newTestOrchestrator(gw, store, classifier)
	ctx := context.Background()

	scan, err := o.StartScan(ctx, "u1", "", 500)
	require.NoError(t, err)

	_, err = o.ProcessNextBatch(ctx, "u1", scan.ID, 0)
	require.NoError(t, err)

	stored, err := o.GetScan(ctx, "u1", scan.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(30), stored.Aggregates.LLMItems)
	assert.Equal(t, int64(30*150), stored.Aggregates.CostMicro)
	assert.Equal(t, int64(1), stored.Aggregates.LLMBatches)
}

func TestDegradedClassificationNotBilled(t *testing.T) {
	store := newFakeStore()
	gw := &fakeGateway{ids: messageIDs(30)}
	// A total provider outage degrades every record to unknown; the results
	// still carry the llm source but no provider usage was incurred.
	classifier := &fakeClassifier{category: model.CategoryUnknown, source: model.SourceLLM, action: model.ActionKeep}
	o := newTestOrchestrator(gw, store, classifier)
	ctx := context.Background()

	scan, err := o.StartScan(ctx, "u1", "", 500)
	require.NoError(t, err)

	_, err = o.ProcessNextBatch(ctx, "u1", scan.ID, 0)
	require.NoError(t, err)

	stored, err := o.GetScan(ctx, "u1", scan.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stored.Aggregates.LLMItems)
	assert.Equal(t, int64(0), stored.Aggregates.CostMicro)
	assert.Equal(t, int64(0), stored.Aggregates.LLMBatches)
	assert.Equal(t, int64(30), stored.Aggregates.BySource[string(model.SourceLLM)])
}
