// Package engine resolves email categories through three layers: header
// heuristics, the sender reputation cache, and LLM classification with
// dual-provider failover.
package engine

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"inbox-janitor-go/internal/apperrors"
	"inbox-janitor-go/internal/llm"
	"inbox-janitor-go/internal/metrics"
	"inbox-janitor-go/internal/model"
	"inbox-janitor-go/internal/planner"
	"inbox-janitor-go/internal/repcache"
)

// Engine is the categorization engine. It owns its circuit-breaker-wrapped
// providers; nothing here is process-global.
type Engine struct {
	reputation *repcache.Reputation
	primary    llm.Provider
	fallback   llm.Provider
	batchSize  int
	userEmail  string
	metrics    *metrics.Metrics
	now        func() time.Time
}

// Options configure an Engine.
type Options struct {
	Reputation *repcache.Reputation
	Primary    llm.Provider
	Fallback   llm.Provider // optional
	BatchSize  int
	UserEmail  string
	Metrics    *metrics.Metrics // optional
}

// New creates a categorization engine.
func New(opts Options) *Engine {
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = 20
	}
	return &Engine{
		reputation: opts.Reputation,
		primary:    opts.Primary,
		fallback:   opts.Fallback,
		batchSize:  batchSize,
		userEmail:  opts.UserEmail,
		metrics:    opts.Metrics,
		now:        time.Now,
	}
}

// Classify resolves a category for every input record. It returns exactly
// one result per record in input order and never fails: a total provider
// outage degrades to category unknown with a keep action. The stats count
// actual provider usage, not degraded fallbacks.
func (e *Engine) Classify(ctx context.Context, userID string, records []model.EmailRecord) ([]model.CategorizationResult, model.ClassifyStats) {
	results := make([]model.CategorizationResult, len(records))
	pendingIdx := make(map[string]int)
	var stats model.ClassifyStats

	var pending []model.EmailRecord
	for i, record := range records {
		if result, ok := e.heuristic(record); ok {
			results[i] = result
			continue
		}

		if entry, decayed, found := e.reputation.Lookup(ctx, userID, record.Sender.Address); found && e.reputation.Reusable(decayed) {
			e.countSource(model.SourceCache)
			if e.metrics != nil {
				e.metrics.CacheHits.Inc()
			}
			results[i] = model.CategorizationResult{
				EmailID:    record.ID,
				Category:   entry.Category,
				Confidence: decayed,
				Source:     model.SourceCache,
				Reasoning:  "Known sender reputation",
			}
			continue
		}

		if e.metrics != nil {
			e.metrics.CacheMisses.Inc()
		}
		pendingIdx[record.ID] = i
		pending = append(pending, record)
	}

	for start := 0; start < len(pending); start += e.batchSize {
		end := start + e.batchSize
		if end > len(pending) {
			end = len(pending)
		}
		batch := pending[start:end]

		batchResults, batchStats := e.classifyBatch(ctx, userID, batch)
		stats.LLMBatches += batchStats.LLMBatches
		stats.LLMItems += batchStats.LLMItems
		for _, result := range batchResults {
			// Only slots that went to a provider may be filled here; an
			// id the provider echoes for an already-resolved record must
			// never displace the heuristic or cache result.
			if i, ok := pendingIdx[result.EmailID]; ok {
				results[i] = result
			}
		}
	}

	for i, record := range records {
		if results[i].EmailID == "" {
			results[i] = e.defaultResult(record)
		}
		if results[i].Source == model.SourceHeuristic {
			e.countSource(model.SourceHeuristic)
		}
		results[i].Actions = planner.Plan(results[i].Category, record, e.now())
	}

	return results, stats
}

// classifyBatch sends one batch through the provider chain: primary, then
// fallback, then the unknown default. Returns one result per input record
// plus the provider usage actually incurred.
func (e *Engine) classifyBatch(ctx context.Context, userID string, batch []model.EmailRecord) ([]model.CategorizationResult, model.ClassifyStats) {
	items := make([]llm.Item, len(batch))
	for i, record := range batch {
		items[i] = toItem(record, e.now())
	}

	raw, err := e.callProvider(ctx, e.primary, items)
	if err != nil && e.fallback != nil {
		if !errors.Is(err, apperrors.ErrCircuitOpen) {
			logrus.Warnf("Primary classification provider failed, trying fallback: %v", err)
		}
		raw, err = e.callProvider(ctx, e.fallback, items)
	}

	var stats model.ClassifyStats
	results := make([]model.CategorizationResult, 0, len(batch))
	if err != nil {
		logrus.Warnf("All classification providers unavailable for batch of %d: %v", len(batch), err)
		for _, record := range batch {
			results = append(results, e.defaultResult(record))
		}
		return results, stats
	}
	stats.LLMBatches = 1

	byID := make(map[string]llm.Result, len(raw))
	for _, r := range raw {
		byID[r.EmailID] = r
	}

	for _, record := range batch {
		r, ok := byID[record.ID]
		if !ok {
			results = append(results, e.defaultResult(record))
			continue
		}
		stats.LLMItems++

		category, valid := model.ParseCategory(r.Category)
		if !valid {
			category = model.CategoryUnknown
		}
		confidence := clamp(r.Confidence)

		result := model.CategorizationResult{
			EmailID:    record.ID,
			Category:   category,
			Confidence: confidence,
			Source:     model.SourceLLM,
			Reasoning:  r.Reasoning,
		}
		e.countSource(model.SourceLLM)

		if valid && category != model.CategoryUnknown {
			e.reputation.Store(ctx, userID, record.Sender.Address, category, confidence, model.SourceLLM)
		}
		results = append(results, result)
	}
	return results, stats
}

// callProvider runs one breaker-guarded, retry-wrapped provider call.
func (e *Engine) callProvider(ctx context.Context, provider llm.Provider, items []llm.Item) ([]llm.Result, error) {
	if provider == nil {
		return nil, apperrors.ErrCircuitOpen
	}
	if e.metrics != nil {
		e.metrics.LLMCalls.WithLabelValues(provider.Name()).Inc()
	}
	results, err := provider.Classify(ctx, items)
	if err != nil {
		if e.metrics != nil {
			e.metrics.LLMFailures.WithLabelValues(provider.Name()).Inc()
		}
		return nil, err
	}
	return results, nil
}

// defaultResult is the safe fallback: unknown category, keep action.
func (e *Engine) defaultResult(record model.EmailRecord) model.CategorizationResult {
	e.countSource(model.SourceLLM)
	return model.CategorizationResult{
		EmailID:    record.ID,
		Category:   model.CategoryUnknown,
		Confidence: 0,
		Source:     model.SourceLLM,
		Reasoning:  "Classification unavailable",
	}
}

func (e *Engine) countSource(source model.ResolutionSource) {
	if e.metrics != nil {
		e.metrics.EmailsClassified.WithLabelValues(string(source)).Inc()
	}
}

func toItem(record model.EmailRecord, now time.Time) llm.Item {
	ageDays := 0
	if !record.Date.IsZero() {
		ageDays = int(now.Sub(record.Date).Hours() / 24)
	}
	return llm.Item{
		EmailID:         record.ID,
		Sender:          record.Sender.Address,
		Subject:         record.Subject,
		Snippet:         record.Snippet,
		ListUnsubscribe: record.Header.HasListUnsubscribe,
		BulkPrecedence:  record.Header.HasBulkPrecedence,
		CampaignID:      record.Header.HasCampaignID,
		NoReply:         record.Header.IsNoReply,
		UnsubscribeText: record.Body.HasUnsubscribeText,
		AgeDays:         ageDays,
		Read:            record.Read,
	}
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
