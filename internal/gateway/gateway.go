// Package gateway defines the mailbox provider capability interface and its
// adapters. All calls are chunked by the caller to provider-imposed limits.
package gateway

import (
	"context"
	"time"
)

// Well-known provider labels.
const (
	LabelInbox   = "INBOX"
	LabelUnread  = "UNREAD"
	LabelStarred = "STARRED"
)

// RawMessage is the provider-specific message shape handed to the extractor.
type RawMessage struct {
	ID           string
	ThreadID     string
	Headers      map[string]string
	Labels       []string
	Snippet      string
	InternalDate time.Time
	SizeEstimate int64
}

// Gateway is the capability interface a mailbox provider must implement.
type Gateway interface {
	// ListMessageIDs lists up to max message ids matching the filter.
	ListMessageIDs(ctx context.Context, filter string, max int) ([]string, error)
	// BatchGetMessages fetches metadata for the given ids.
	BatchGetMessages(ctx context.Context, ids []string) ([]RawMessage, error)
	// BatchModifyLabels adds and removes labels on the given ids in one call.
	BatchModifyLabels(ctx context.Context, ids []string, add, remove []string) error
	// TrashMessage moves a single message to trash.
	TrashMessage(ctx context.Context, id string) error
	// UntrashMessage restores a single message from trash.
	UntrashMessage(ctx context.Context, id string) error
	// Close releases the underlying connection.
	Close() error
}
