// Package llm implements the classification provider layer: a pluggable
// HTTP provider, bounded retry, and a per-provider circuit breaker.
package llm

import (
	"context"
	"errors"
	"fmt"
)

// Item is one email summary sent to a provider for classification. Only
// sanitized metadata leaves the process.
type Item struct {
	EmailID          string `json:"email_id"`
	Sender           string `json:"sender"`
	Subject          string `json:"subject"`
	Snippet          string `json:"snippet"`
	ListUnsubscribe  bool   `json:"list_unsubscribe"`
	BulkPrecedence   bool   `json:"bulk_precedence"`
	CampaignID       bool   `json:"campaign_id"`
	NoReply          bool   `json:"noreply"`
	UnsubscribeText  bool   `json:"unsubscribe_text"`
	AgeDays          int    `json:"age_days"`
	Read             bool   `json:"read"`
}

// Result is one provider classification. Category and confidence are
// validated and clamped by the caller.
type Result struct {
	EmailID    string  `json:"email_id"`
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// Provider classifies a batch of email summaries.
type Provider interface {
	Name() string
	Classify(ctx context.Context, items []Item) ([]Result, error)
}

// StatusError carries the HTTP status of a failed provider call so the
// retry classifier can separate terminal from transient failures.
type StatusError struct {
	Provider string
	Code     int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("provider %s returned status %d", e.Provider, e.Code)
}

// Retryable reports whether an error is worth retrying: network errors and
// 408/429/5xx are transient, other HTTP statuses (bad credentials,
// malformed request) are terminal.
func Retryable(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code == 408 || statusErr.Code == 429 || statusErr.Code >= 500
	}
	return true
}
