package repcache

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"inbox-janitor-go/internal/model"
)

// Options tune decay and reuse behavior of the reputation layer.
type Options struct {
	TTL            time.Duration
	DecayPerDay    float64
	MaxDecay       float64
	ReuseThreshold float64
}

// DefaultOptions: 30 day TTL, confidence decays 0.01 per day of age capped
// at 0.30 total, entries reusable while decayed confidence stays >= 0.80.
func DefaultOptions() Options {
	return Options{
		TTL:            30 * 24 * time.Hour,
		DecayPerDay:    0.01,
		MaxDecay:       0.30,
		ReuseThreshold: 0.80,
	}
}

// Reputation maps (user, sender address) to the last known classification,
// biasing stale entries toward re-classification via confidence decay.
type Reputation struct {
	cache Cache
	opts  Options
	now   func() time.Time
}

// NewReputation builds the reputation layer on the given cache backend.
func NewReputation(cache Cache, opts Options) *Reputation {
	if opts.TTL <= 0 {
		opts = DefaultOptions()
	}
	return &Reputation{cache: cache, opts: opts, now: time.Now}
}

func cacheKey(userID, senderAddress string) string {
	return "senderrep:" + userID + ":" + strings.ToLower(senderAddress)
}

// Lookup returns the cached entry for the sender together with its decayed
// confidence. The second return is false when there is no usable entry.
func (r *Reputation) Lookup(ctx context.Context, userID, senderAddress string) (model.SenderCacheEntry, float64, bool) {
	if senderAddress == "" {
		return model.SenderCacheEntry{}, 0, false
	}

	value, found, err := r.cache.Get(ctx, cacheKey(userID, senderAddress))
	if err != nil {
		// A cache outage degrades to re-classification, never to failure.
		logrus.Warnf("Sender cache lookup failed for %s: %v", senderAddress, err)
		return model.SenderCacheEntry{}, 0, false
	}
	if !found {
		return model.SenderCacheEntry{}, 0, false
	}

	var entry model.SenderCacheEntry
	if err := json.Unmarshal([]byte(value), &entry); err != nil {
		logrus.Warnf("Corrupt sender cache entry for %s, dropping: %v", senderAddress, err)
		r.cache.Delete(ctx, cacheKey(userID, senderAddress))
		return model.SenderCacheEntry{}, 0, false
	}

	return entry, r.DecayedConfidence(entry), true
}

// Reusable reports whether the entry's decayed confidence clears the reuse
// threshold.
func (r *Reputation) Reusable(decayedConfidence float64) bool {
	return decayedConfidence >= r.opts.ReuseThreshold
}

// DecayedConfidence applies monotone, capped age decay to the stored
// confidence.
func (r *Reputation) DecayedConfidence(entry model.SenderCacheEntry) float64 {
	ageDays := entry.Age(r.now()).Hours() / 24
	if ageDays < 0 {
		ageDays = 0
	}
	decay := ageDays * r.opts.DecayPerDay
	if decay > r.opts.MaxDecay {
		decay = r.opts.MaxDecay
	}
	confidence := entry.Confidence - decay
	if confidence < 0 {
		confidence = 0
	}
	return confidence
}

// Store overwrites the sender's entry with a fresh non-cache classification.
func (r *Reputation) Store(ctx context.Context, userID, senderAddress string, category model.Category, confidence float64, source model.ResolutionSource) {
	if senderAddress == "" || source == model.SourceCache {
		return
	}

	entry := model.SenderCacheEntry{
		Category:   category,
		Confidence: confidence,
		Source:     source,
		CachedAt:   r.now(),
	}
	value, err := json.Marshal(entry)
	if err != nil {
		return
	}
	if err := r.cache.Set(ctx, cacheKey(userID, senderAddress), string(value), r.opts.TTL); err != nil {
		logrus.Warnf("Sender cache store failed for %s: %v", senderAddress, err)
	}
}
