package gateway

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"inbox-janitor-go/internal/config"
)

// metadataHeaders are the headers requested from the Gmail API. They cover
// the sender identity plus the bulk-mail signals the extractor derives
// flags from.
var metadataHeaders = []string{
	"From", "To", "Subject", "Date", "Reply-To", "Return-Path",
	"List-Unsubscribe", "List-Id", "Precedence", "Auto-Submitted",
	"X-Campaign-ID", "X-Campaign-Id", "Feedback-ID",
	"X-MC-User", "X-SG-EID", "X-SES-Outgoing", "X-Mailgun-Variables", "X-PM-Message-Id",
}

// GmailGateway implements Gateway using the Gmail API.
type GmailGateway struct {
	service   *gmail.Service
	userEmail string
}

// NewGmailGateway creates a Gmail-backed gateway from OAuth2 credentials.
func NewGmailGateway(cfg *config.MailboxConfig) (*GmailGateway, error) {
	ctx := context.Background()

	oauth2Config := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Scopes:       []string{gmail.GmailModifyScope},
		Endpoint:     google.Endpoint,
	}

	token := &oauth2.Token{
		RefreshToken: cfg.RefreshToken,
	}

	tokenSource := oauth2Config.TokenSource(ctx, token)

	service, err := gmail.NewService(ctx, option.WithTokenSource(tokenSource))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}

	return &GmailGateway{
		service:   service,
		userEmail: cfg.UserEmail,
	}, nil
}

// ListMessageIDs lists up to max message ids matching the Gmail query.
func (g *GmailGateway) ListMessageIDs(ctx context.Context, filter string, max int) ([]string, error) {
	var ids []string
	pageToken := ""

	for len(ids) < max {
		pageSize := int64(max - len(ids))
		if pageSize > 500 {
			pageSize = 500
		}

		call := g.service.Users.Messages.List(g.userEmail).MaxResults(pageSize).Context(ctx)
		if filter != "" {
			call = call.Q(filter)
		}
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		response, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("failed to list messages: %w", err)
		}

		for _, msg := range response.Messages {
			ids = append(ids, msg.Id)
			if len(ids) == max {
				break
			}
		}

		pageToken = response.NextPageToken
		if pageToken == "" {
			break
		}
	}

	return ids, nil
}

// BatchGetMessages fetches message metadata one id at a time; the Gmail API
// has no bulk metadata read.
func (g *GmailGateway) BatchGetMessages(ctx context.Context, ids []string) ([]RawMessage, error) {
	messages := make([]RawMessage, 0, len(ids))

	for _, id := range ids {
		msg, err := g.service.Users.Messages.Get(g.userEmail, id).
			Format("metadata").
			MetadataHeaders(metadataHeaders...).
			Context(ctx).
			Do()
		if err != nil {
			return nil, fmt.Errorf("failed to get message %s: %w", id, err)
		}
		messages = append(messages, g.toRawMessage(msg))
	}

	return messages, nil
}

// toRawMessage converts a Gmail API message into the provider-neutral shape.
func (g *GmailGateway) toRawMessage(msg *gmail.Message) RawMessage {
	raw := RawMessage{
		ID:           msg.Id,
		ThreadID:     msg.ThreadId,
		Headers:      make(map[string]string),
		Labels:       msg.LabelIds,
		Snippet:      msg.Snippet,
		InternalDate: time.UnixMilli(msg.InternalDate),
		SizeEstimate: msg.SizeEstimate,
	}
	if msg.Payload != nil {
		for _, header := range msg.Payload.Headers {
			raw.Headers[header.Name] = header.Value
		}
	}
	return raw
}

// BatchModifyLabels applies one bulk label mutation to the given ids.
func (g *GmailGateway) BatchModifyLabels(ctx context.Context, ids []string, add, remove []string) error {
	request := &gmail.BatchModifyMessagesRequest{
		Ids:            ids,
		AddLabelIds:    add,
		RemoveLabelIds: remove,
	}

	if err := g.service.Users.Messages.BatchModify(g.userEmail, request).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to batch modify labels: %w", err)
	}
	return nil
}

// TrashMessage moves a single message to trash. The Gmail API has no bulk
// trash operation.
func (g *GmailGateway) TrashMessage(ctx context.Context, id string) error {
	if _, err := g.service.Users.Messages.Trash(g.userEmail, id).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to trash message %s: %w", id, err)
	}
	return nil
}

// UntrashMessage restores a single message from trash.
func (g *GmailGateway) UntrashMessage(ctx context.Context, id string) error {
	if _, err := g.service.Users.Messages.Untrash(g.userEmail, id).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to untrash message %s: %w", id, err)
	}
	return nil
}

// Close closes the gateway (no-op for the Gmail API)
func (g *GmailGateway) Close() error {
	return nil
}
