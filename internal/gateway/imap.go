package gateway

import (
	"context"
	"fmt"
	"strconv"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message"
	"github.com/sirupsen/logrus"

	"inbox-janitor-go/internal/config"
)

// keywordArchived marks an archived message on servers without a real
// archive mailbox semantic. Trash is flag-based as well; expunge is left
// to the mail client.
const keywordArchived = "Archived"

// IMAPGateway implements Gateway over a plain IMAP connection. Message ids
// are INBOX UIDs rendered as decimal strings, so all mutations are
// flag-based to keep ids stable.
type IMAPGateway struct {
	client *client.Client
}

// NewIMAPGateway connects and authenticates an IMAP-backed gateway.
func NewIMAPGateway(cfg *config.MailboxConfig) (*IMAPGateway, error) {
	c, err := client.DialTLS(fmt.Sprintf("%s:%d", cfg.IMAPHost, cfg.IMAPPort), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to IMAP server: %w", err)
	}

	if err := c.Login(cfg.IMAPUser, cfg.IMAPPassword); err != nil {
		c.Logout()
		return nil, fmt.Errorf("failed to login to IMAP server: %w", err)
	}

	return &IMAPGateway{client: c}, nil
}

// ListMessageIDs searches INBOX and returns up to max of the most recent
// matching UIDs.
func (g *IMAPGateway) ListMessageIDs(ctx context.Context, filter string, max int) ([]string, error) {
	if _, err := g.client.Select("INBOX", false); err != nil {
		return nil, fmt.Errorf("failed to select INBOX: %w", err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.DeletedFlag}
	if filter != "" {
		criteria.Text = []string{filter}
	}

	uids, err := g.client.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("failed to search messages: %w", err)
	}

	// UIDs come back ascending; keep the newest ones.
	if len(uids) > max {
		uids = uids[len(uids)-max:]
	}

	ids := make([]string, 0, len(uids))
	for _, uid := range uids {
		ids = append(ids, strconv.FormatUint(uint64(uid), 10))
	}
	return ids, nil
}

// BatchGetMessages fetches headers, flags and sizes for the given UIDs.
func (g *IMAPGateway) BatchGetMessages(ctx context.Context, ids []string) ([]RawMessage, error) {
	seqset, err := parseUIDSet(ids)
	if err != nil {
		return nil, err
	}

	section := &imap.BodySectionName{
		BodyPartName: imap.BodyPartName{Specifier: imap.HeaderSpecifier},
		Peek:         true,
	}
	items := []imap.FetchItem{
		imap.FetchUid, imap.FetchFlags, imap.FetchInternalDate,
		imap.FetchRFC822Size, section.FetchItem(),
	}

	messages := make(chan *imap.Message, len(ids))
	done := make(chan error, 1)
	go func() {
		done <- g.client.UidFetch(seqset, items, messages)
	}()

	var raws []RawMessage
	for msg := range messages {
		raw, err := g.toRawMessage(msg, section)
		if err != nil {
			logrus.Warnf("Failed to parse IMAP message %d: %v", msg.Uid, err)
			continue
		}
		raws = append(raws, raw)
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}
	return raws, nil
}

// toRawMessage converts an IMAP message into the provider-neutral shape.
func (g *IMAPGateway) toRawMessage(msg *imap.Message, section *imap.BodySectionName) (RawMessage, error) {
	raw := RawMessage{
		ID:           strconv.FormatUint(uint64(msg.Uid), 10),
		Headers:      make(map[string]string),
		InternalDate: msg.InternalDate,
		SizeEstimate: int64(msg.Size),
	}

	raw.Labels = append(raw.Labels, LabelInbox)
	seen := false
	for _, flag := range msg.Flags {
		switch flag {
		case imap.SeenFlag:
			seen = true
		case imap.FlaggedFlag:
			raw.Labels = append(raw.Labels, LabelStarred)
		}
	}
	if !seen {
		raw.Labels = append(raw.Labels, LabelUnread)
	}

	r := msg.GetBody(section)
	if r == nil {
		return raw, fmt.Errorf("no header section in fetch response")
	}
	entity, err := message.Read(r)
	if err != nil && !message.IsUnknownCharset(err) {
		return raw, fmt.Errorf("failed to read header: %w", err)
	}
	for _, name := range metadataHeaders {
		if v := entity.Header.Get(name); v != "" {
			raw.Headers[name] = v
		}
	}

	return raw, nil
}

// BatchModifyLabels maps label mutations onto IMAP flag stores.
func (g *IMAPGateway) BatchModifyLabels(ctx context.Context, ids []string, add, remove []string) error {
	seqset, err := parseUIDSet(ids)
	if err != nil {
		return err
	}

	addFlags, removeFlags := translateLabels(add, remove)
	if len(addFlags) > 0 {
		op := imap.FormatFlagsOp(imap.AddFlags, true)
		if err := g.client.UidStore(seqset, op, flagsToInterface(addFlags), nil); err != nil {
			return fmt.Errorf("failed to add flags: %w", err)
		}
	}
	if len(removeFlags) > 0 {
		op := imap.FormatFlagsOp(imap.RemoveFlags, true)
		if err := g.client.UidStore(seqset, op, flagsToInterface(removeFlags), nil); err != nil {
			return fmt.Errorf("failed to remove flags: %w", err)
		}
	}
	return nil
}

// translateLabels converts provider-neutral label changes into IMAP flag
// changes. Removing UNREAD sets \Seen; removing INBOX sets the archived
// keyword; STARRED maps to \Flagged.
func translateLabels(add, remove []string) (addFlags, removeFlags []string) {
	for _, label := range add {
		switch label {
		case LabelUnread:
			removeFlags = append(removeFlags, imap.SeenFlag)
		case LabelStarred:
			addFlags = append(addFlags, imap.FlaggedFlag)
		case LabelInbox:
			removeFlags = append(removeFlags, keywordArchived)
		}
	}
	for _, label := range remove {
		switch label {
		case LabelUnread:
			addFlags = append(addFlags, imap.SeenFlag)
		case LabelStarred:
			removeFlags = append(removeFlags, imap.FlaggedFlag)
		case LabelInbox:
			addFlags = append(addFlags, keywordArchived)
		}
	}
	return addFlags, removeFlags
}

// TrashMessage flags a single message as deleted without expunging.
func (g *IMAPGateway) TrashMessage(ctx context.Context, id string) error {
	seqset, err := parseUIDSet([]string{id})
	if err != nil {
		return err
	}
	op := imap.FormatFlagsOp(imap.AddFlags, true)
	if err := g.client.UidStore(seqset, op, flagsToInterface([]string{imap.DeletedFlag}), nil); err != nil {
		return fmt.Errorf("failed to trash message %s: %w", id, err)
	}
	return nil
}

// UntrashMessage clears the deleted flag on a single message.
func (g *IMAPGateway) UntrashMessage(ctx context.Context, id string) error {
	seqset, err := parseUIDSet([]string{id})
	if err != nil {
		return err
	}
	op := imap.FormatFlagsOp(imap.RemoveFlags, true)
	if err := g.client.UidStore(seqset, op, flagsToInterface([]string{imap.DeletedFlag}), nil); err != nil {
		return fmt.Errorf("failed to untrash message %s: %w", id, err)
	}
	return nil
}

// Close logs out of the IMAP session.
func (g *IMAPGateway) Close() error {
	return g.client.Logout()
}

func parseUIDSet(ids []string) (*imap.SeqSet, error) {
	seqset := new(imap.SeqSet)
	for _, id := range ids {
		uid, err := strconv.ParseUint(id, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid IMAP uid %q: %w", id, err)
		}
		seqset.AddNum(uint32(uid))
	}
	return seqset, nil
}

func flagsToInterface(flags []string) []interface{} {
	out := make([]interface{}, len(flags))
	for i, f := range flags {
		out[i] = f
	}
	return out
}
