package model

import "time"

// Category is the closed set of semantic categories an email can resolve to.
type Category string

const (
	CategoryNewsletter    Category = "newsletter"
	CategoryMarketing     Category = "marketing"
	CategoryTransactional Category = "transactional"
	CategorySocial        Category = "social"
	CategoryNotification  Category = "notification"
	CategorySpam          Category = "spam"
	CategoryPersonal      Category = "personal"
	CategoryImportant     Category = "important"
	CategoryUnknown       Category = "unknown"
)

var validCategories = map[Category]bool{
	CategoryNewsletter:    true,
	CategoryMarketing:     true,
	CategoryTransactional: true,
	CategorySocial:        true,
	CategoryNotification:  true,
	CategorySpam:          true,
	CategoryPersonal:      true,
	CategoryImportant:     true,
	CategoryUnknown:       true,
}

// ParseCategory validates a category string against the closed set.
func ParseCategory(s string) (Category, bool) {
	c := Category(s)
	return c, validCategories[c]
}

// IsProtected reports whether the category is permanently action-protected:
// no automated destructive action may ever be suggested or executed for it.
func (c Category) IsProtected() bool {
	return c == CategoryPersonal || c == CategoryImportant
}

// ResolutionSource identifies which layer produced a categorization result.
type ResolutionSource string

const (
	SourceHeuristic    ResolutionSource = "heuristic"
	SourceCache        ResolutionSource = "cache"
	SourceLLM          ResolutionSource = "llm"
	SourceUserOverride ResolutionSource = "user_override"
)

// ActionType is the closed set of cleanup actions.
type ActionType string

const (
	ActionArchive     ActionType = "archive"
	ActionMoveToTrash ActionType = "move_to_trash"
	ActionMarkRead    ActionType = "mark_read"
	ActionKeep        ActionType = "keep"
	ActionUnsubscribe ActionType = "unsubscribe"
)

var validActionTypes = map[ActionType]bool{
	ActionArchive:     true,
	ActionMoveToTrash: true,
	ActionMarkRead:    true,
	ActionKeep:        true,
	ActionUnsubscribe: true,
}

// ParseActionType validates an action type string against the closed set.
func ParseActionType(s string) (ActionType, bool) {
	t := ActionType(s)
	return t, validActionTypes[t]
}

// IsDestructive reports whether the action removes a message from the inbox.
func (t ActionType) IsDestructive() bool {
	return t == ActionMoveToTrash || t == ActionArchive
}

// Sender identifies the origin of an email.
type Sender struct {
	Address     string `json:"address"`
	DisplayName string `json:"display_name"`
	Domain      string `json:"domain"`
}

// HeaderFlags are boolean signals derived from message headers.
type HeaderFlags struct {
	HasListUnsubscribe   bool `json:"has_list_unsubscribe"`
	HasBulkPrecedence    bool `json:"has_bulk_precedence"`
	HasCampaignID        bool `json:"has_campaign_id"`
	IsNoReply            bool `json:"is_noreply"`
	SenderDomainMismatch bool `json:"sender_domain_mismatch"`
}

// BodyStats are counters derived from the message body or snippet.
type BodyStats struct {
	Length             int  `json:"length"`
	LinkCount          int  `json:"link_count"`
	ImageCount         int  `json:"image_count"`
	HasUnsubscribeText bool `json:"has_unsubscribe_text"`
}

// EmailRecord is the canonical, immutable snapshot of a message's metadata.
// It is created once per scan by the extractor and never mutated afterwards.
type EmailRecord struct {
	ID       string      `json:"id"`
	ThreadID string      `json:"thread_id"`
	Sender   Sender      `json:"sender"`
	Subject  string      `json:"subject"`
	Snippet  string      `json:"snippet"`
	Date     time.Time   `json:"date"`
	Read     bool        `json:"read"`
	Labels   []string    `json:"labels"`
	Header   HeaderFlags `json:"header"`
	Body     BodyStats   `json:"body"`
}

// HasLabel reports whether the provider assigned the given label.
func (r EmailRecord) HasLabel(name string) bool {
	for _, l := range r.Labels {
		if l == name {
			return true
		}
	}
	return false
}

// SuggestedAction is one ranked cleanup suggestion; the highest priority
// entry in a result is the primary action.
type SuggestedAction struct {
	Type     ActionType `json:"type"`
	Reason   string     `json:"reason"`
	Priority int        `json:"priority"`
}

// CategorizationResult is the outcome of classifying a single email.
// Exactly one result exists per email per scan.
type CategorizationResult struct {
	EmailID    string            `json:"email_id"`
	Category   Category          `json:"category"`
	Confidence float64           `json:"confidence"`
	Source     ResolutionSource  `json:"source"`
	Reasoning  string            `json:"reasoning"`
	Actions    []SuggestedAction `json:"actions"`
}

// PrimaryAction returns the highest-priority suggested action, or a keep
// action when the list is empty.
func (r CategorizationResult) PrimaryAction() SuggestedAction {
	if len(r.Actions) == 0 {
		return SuggestedAction{Type: ActionKeep, Reason: "no suggestion", Priority: 0}
	}
	best := r.Actions[0]
	for _, a := range r.Actions[1:] {
		if a.Priority > best.Priority {
			best = a
		}
	}
	return best
}

// SenderCacheEntry is the cached reputation for one sender of one user.
type SenderCacheEntry struct {
	Category   Category         `json:"category"`
	Confidence float64          `json:"confidence"`
	Source     ResolutionSource `json:"source"`
	CachedAt   time.Time        `json:"cached_at"`
}

// Age returns how long ago the entry was cached.
func (e SenderCacheEntry) Age(now time.Time) time.Duration {
	return now.Sub(e.CachedAt)
}
