package engine

import (
	"strings"

	"inbox-janitor-go/internal/gateway"
	"inbox-janitor-go/internal/model"
)

// marketingPlatformDomains are sending domains of bulk marketing platforms.
// Mail from these with an unsubscribe header is marketing with near
// certainty.
var marketingPlatformDomains = map[string]bool{
	"mailchimp.com":       true,
	"mcsv.net":            true,
	"rsgsv.net":           true,
	"sendgrid.net":        true,
	"mailgun.org":         true,
	"mailgun.net":         true,
	"constantcontact.com": true,
	"hubspotemail.net":    true,
	"klaviyomail.com":     true,
	"exacttarget.com":     true,
	"braze.com":           true,
	"sailthru.com":        true,
}

// heuristic applies the high-precision header rules that resolve a record
// without touching the cache or an LLM. Only near-certain rules belong
// here; everything else falls through. Rule order: important > personal >
// marketing > newsletter.
func (e *Engine) heuristic(record model.EmailRecord) (model.CategorizationResult, bool) {
	if record.HasLabel(gateway.LabelStarred) {
		return model.CategorizationResult{
			EmailID:    record.ID,
			Category:   model.CategoryImportant,
			Confidence: 0.95,
			Source:     model.SourceHeuristic,
			Reasoning:  "Starred by the user",
		}, true
	}

	if e.userEmail != "" && record.Sender.Address == strings.ToLower(e.userEmail) {
		return model.CategorizationResult{
			EmailID:    record.ID,
			Category:   model.CategoryPersonal,
			Confidence: 0.90,
			Source:     model.SourceHeuristic,
			Reasoning:  "Sent from the user's own address",
		}, true
	}

	if record.Header.HasListUnsubscribe &&
		(marketingPlatformDomains[record.Sender.Domain] || record.Header.HasCampaignID) {
		return model.CategorizationResult{
			EmailID:    record.ID,
			Category:   model.CategoryMarketing,
			Confidence: 0.90,
			Source:     model.SourceHeuristic,
			Reasoning:  "Marketing platform sender with unsubscribe header",
		}, true
	}

	if record.Header.HasListUnsubscribe && record.Header.HasBulkPrecedence {
		return model.CategorizationResult{
			EmailID:    record.ID,
			Category:   model.CategoryNewsletter,
			Confidence: 0.85,
			Source:     model.SourceHeuristic,
			Reasoning:  "Bulk precedence with unsubscribe header",
		}, true
	}

	return model.CategorizationResult{}, false
}
