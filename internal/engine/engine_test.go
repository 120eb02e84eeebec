package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inbox-janitor-go/internal/gateway"
	"inbox-janitor-go/internal/llm"
	"inbox-janitor-go/internal/model"
	"inbox-janitor-go/internal/repcache"
)

type fakeProvider struct {
	name    string
	calls   int
	batches [][]llm.Item
	results map[string]llm.Result
	extra   []llm.Result // returned on every call regardless of the request
	err     error
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) Classify(ctx context.Context, items []llm.Item) ([]llm.Result, error) {
	p.calls++
	p.batches = append(p.batches, items)
	if p.err != nil {
		return nil, p.err
	}
	out := make([]llm.Result, 0, len(items)+len(p.extra))
	for _, item := range items {
		if r, ok := p.results[item.EmailID]; ok {
			out = append(out, r)
		}
	}
	out = append(out, p.extra...)
	return out, nil
}

func newTestEngine(primary, fallback llm.Provider) (*Engine, *repcache.Reputation) {
	reputation := repcache.NewReputation(repcache.NewMemoryCache(100), repcache.DefaultOptions())
	e := New(Options{
		Reputation: reputation,
		Primary:    primary,
		Fallback:   fallback,
		BatchSize:  20,
		UserEmail:  "me@example.com",
	})
	return e, reputation
}

func TestClassifyStarredIsImportantKeep(t *testing.T) {
	provider := &fakeProvider{name: "p"}
	e, _ := newTestEngine(provider, nil)

	results, _ := e.Classify(context.Background(), "u1", []model.EmailRecord{{
		ID:     "m1",
		Sender: model.Sender{Address: "boss@corp.example"},
		Labels: []string{gateway.LabelStarred},
	}})

	require.Len(t, results, 1)
	assert.Equal(t, model.CategoryImportant, results[0].Category)
	assert.Equal(t, model.SourceHeuristic, results[0].Source)
	assert.GreaterOrEqual(t, results[0].Confidence, 0.95)
	assert.Equal(t, model.ActionKeep, results[0].PrimaryAction().Type)
	assert.Zero(t, provider.calls)
}

func TestClassifyMarketingHeuristic(t *testing.T) {
	provider := &fakeProvider{name: "p"}
	e, _ := newTestEngine(provider, nil)

	results, _ := e.Classify(context.Background(), "u1", []model.EmailRecord{{
		ID:     "m1",
		Sender: model.Sender{Address: "deals@mail.example", Domain: "sendgrid.net"},
		Header: model.HeaderFlags{HasListUnsubscribe: true},
	}})

	require.Len(t, results, 1)
	assert.Equal(t, model.CategoryMarketing, results[0].Category)
	assert.GreaterOrEqual(t, results[0].Confidence, 0.85)
	assert.Equal(t, model.ActionMoveToTrash, results[0].PrimaryAction().Type)
	assert.Zero(t, provider.calls)
}

func TestClassifyOwnAddressIsPersonal(t *testing.T) {
	provider := &fakeProvider{name: "p"}
	e, _ := newTestEngine(provider, nil)

	results, _ := e.Classify(context.Background(), "u1", []model.EmailRecord{{
		ID:     "m1",
		Sender: model.Sender{Address: "me@example.com", Domain: "example.com"},
	}})

	require.Len(t, results, 1)
	assert.Equal(t, model.CategoryPersonal, results[0].Category)
	assert.Equal(t, model.ActionKeep, results[0].PrimaryAction().Type)
}

func TestClassifyCacheReuseSkipsProvider(t *testing.T) {
	provider := &fakeProvider{name: "p"}
	e, reputation := newTestEngine(provider, nil)
	ctx := context.Background()

	reputation.Store(ctx, "u1", "news@acme.com", model.CategoryNewsletter, 0.92, model.SourceLLM)

	results, _ := e.Classify(ctx, "u1", []model.EmailRecord{{
		ID:     "m1",
		Sender: model.Sender{Address: "news@acme.com", Domain: "acme.com"},
	}})

	require.Len(t, results, 1)
	assert.Equal(t, model.CategoryNewsletter, results[0].Category)
	assert.Equal(t, model.SourceCache, results[0].Source)
	assert.Zero(t, provider.calls)
}

func TestClassifyLLMPathStoresReputation(t *testing.T) {
	provider := &fakeProvider{
		name: "p",
		results: map[string]llm.Result{
			"m1": {EmailID: "m1", Category: "social", Confidence: 0.77, Reasoning: "social network"},
		},
	}
	e, reputation := newTestEngine(provider, nil)
	ctx := context.Background()

	results, stats := e.Classify(ctx, "u1", []model.EmailRecord{{
		ID:     "m1",
		Sender: model.Sender{Address: "updates@social.example", Domain: "social.example"},
	}})

	require.Len(t, results, 1)
	assert.Equal(t, model.CategorySocial, results[0].Category)
	assert.Equal(t, model.SourceLLM, results[0].Source)
	assert.Equal(t, 1, provider.calls)
	assert.Equal(t, model.ClassifyStats{LLMBatches: 1, LLMItems: 1}, stats)

	entry, _, found := reputation.Lookup(ctx, "u1", "updates@social.example")
	require.True(t, found)
	assert.Equal(t, model.CategorySocial, entry.Category)
}

func TestClassifyFallbackOnPrimaryFailure(t *testing.T) {
	primary := &fakeProvider{name: "primary", err: errors.New("connection refused")}
	fallback := &fakeProvider{
		name: "fallback",
		results: map[string]llm.Result{
			"m1": {EmailID: "m1", Category: "spam", Confidence: 0.9},
		},
	}
	e, _ := newTestEngine(primary, fallback)

	results, _ := e.Classify(context.Background(), "u1", []model.EmailRecord{{
		ID:     "m1",
		Sender: model.Sender{Address: "x@y.example"},
	}})

	require.Len(t, results, 1)
	assert.Equal(t, model.CategorySpam, results[0].Category)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, fallback.calls)
}

func TestClassifyTotalOutageDegradesToUnknownKeep(t *testing.T) {
	primary := &fakeProvider{name: "primary", err: errors.New("down")}
	fallback := &fakeProvider{name: "fallback", err: errors.New("down too")}
	e, _ := newTestEngine(primary, fallback)

	records := []model.EmailRecord{
		{ID: "m1", Sender: model.Sender{Address: "a@x.example"}},
		{ID: "m2", Sender: model.Sender{Address: "b@x.example"}},
	}
	results, stats := e.Classify(context.Background(), "u1", records)

	require.Len(t, results, 2)
	for i, result := range results {
		assert.Equal(t, records[i].ID, result.EmailID)
		assert.Equal(t, model.CategoryUnknown, result.Category)
		assert.Equal(t, model.ActionKeep, result.PrimaryAction().Type)
	}

	// Degraded fallbacks incur no provider usage.
	assert.Equal(t, model.ClassifyStats{}, stats)
}

func TestClassifyProviderEchoForResolvedRecordIgnored(t *testing.T) {
	// A malformed provider response echoing an id that the heuristic layer
	// already resolved must not displace that result.
	provider := &fakeProvider{
		name: "p",
		results: map[string]llm.Result{
			"m2": {EmailID: "m2", Category: "newsletter", Confidence: 0.85},
		},
		extra: []llm.Result{
			{EmailID: "m1", Category: "marketing", Confidence: 0.99},
		},
	}
	e, _ := newTestEngine(provider, nil)

	results, stats := e.Classify(context.Background(), "u1", []model.EmailRecord{
		{ID: "m1", Labels: []string{gateway.LabelStarred}},
		{ID: "m2", Sender: model.Sender{Address: "news@acme.com", Domain: "acme.com"}},
	})

	require.Len(t, results, 2)
	assert.Equal(t, model.CategoryImportant, results[0].Category)
	assert.Equal(t, model.SourceHeuristic, results[0].Source)
	assert.Equal(t, model.ActionKeep, results[0].PrimaryAction().Type)

	assert.Equal(t, model.CategoryNewsletter, results[1].Category)
	assert.Equal(t, model.SourceLLM, results[1].Source)

	// Only the record actually sent counts as provider usage.
	assert.Equal(t, model.ClassifyStats{LLMBatches: 1, LLMItems: 1}, stats)
	require.Len(t, provider.batches, 1)
	require.Len(t, provider.batches[0], 1)
	assert.Equal(t, "m2", provider.batches[0][0].EmailID)
}

func TestClassifyInvalidCategoryClamped(t *testing.T) {
	provider := &fakeProvider{
		name: "p",
		results: map[string]llm.Result{
			"m1": {EmailID: "m1", Category: "totally-made-up", Confidence: 1.7},
		},
	}
	e, reputation := newTestEngine(provider, nil)
	ctx := context.Background()

	results, _ := e.Classify(ctx, "u1", []model.EmailRecord{{
		ID:     "m1",
		Sender: model.Sender{Address: "odd@x.example"},
	}})

	require.Len(t, results, 1)
	assert.Equal(t, model.CategoryUnknown, results[0].Category)
	assert.LessOrEqual(t, results[0].Confidence, 1.0)

	// Invalid classifications never poison the sender cache.
	_, _, found := reputation.Lookup(ctx, "u1", "odd@x.example")
	assert.False(t, found)
}

func TestClassifyBatchesBySize(t *testing.T) {
	provider := &fakeProvider{name: "p", results: map[string]llm.Result{}}
	reputation := repcache.NewReputation(repcache.NewMemoryCache(100), repcache.DefaultOptions())
	e := New(Options{Reputation: reputation, Primary: provider, BatchSize: 5})

	var records []model.EmailRecord
	for i := 0; i < 12; i++ {
		records = append(records, model.EmailRecord{
			ID:     string(rune('a' + i)),
			Sender: model.Sender{Address: "s@x.example"},
		})
	}

	results, _ := e.Classify(context.Background(), "u1", records)

	assert.Len(t, results, 12)
	require.Len(t, provider.batches, 3)
	assert.Len(t, provider.batches[0], 5)
	assert.Len(t, provider.batches[1], 5)
	assert.Len(t, provider.batches[2], 2)
}

func TestClassifyOneResultPerRecordInOrder(t *testing.T) {
	provider := &fakeProvider{
		name: "p",
		results: map[string]llm.Result{
			"m2": {EmailID: "m2", Category: "newsletter", Confidence: 0.8},
		},
	}
	e, _ := newTestEngine(provider, nil)

	records := []model.EmailRecord{
		{ID: "m1", Labels: []string{gateway.LabelStarred}},
		{ID: "m2", Sender: model.Sender{Address: "a@x.example"}},
		{ID: "m3", Sender: model.Sender{Address: "b@x.example"}},
	}
	results, _ := e.Classify(context.Background(), "u1", records)

	require.Len(t, results, 3)
	for i := range records {
		assert.Equal(t, records[i].ID, results[i].EmailID)
		assert.NotEmpty(t, results[i].Actions)
	}
	// m3 got no provider result and falls back to the safe default.
	assert.Equal(t, model.CategoryUnknown, results[2].Category)
}

func TestClassifyAgeDaysInItem(t *testing.T) {
	provider := &fakeProvider{name: "p", results: map[string]llm.Result{}}
	e, _ := newTestEngine(provider, nil)
	base := time.Now()
	e.now = func() time.Time { return base }

	e.Classify(context.Background(), "u1", []model.EmailRecord{{
		ID:     "m1",
		Sender: model.Sender{Address: "s@x.example"},
		Date:   base.Add(-72 * time.Hour),
	}})

	require.Len(t, provider.batches, 1)
	require.Len(t, provider.batches[0], 1)
	assert.Equal(t, 3, provider.batches[0][0].AgeDays)
}
