// Package extractor normalizes provider-specific raw messages into
// canonical, immutable email records.
package extractor

import (
	"net/mail"
	"regexp"
	"strings"
	"time"

	"inbox-janitor-go/internal/gateway"
	"inbox-janitor-go/internal/model"
)

const (
	maxSubjectLen = 200
	maxSnippetLen = 100
)

var (
	htmlTagRe     = regexp.MustCompile(`<[^>]*>`)
	emailAddrRe   = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	longDigitRe   = regexp.MustCompile(`\d{6,}`)
	linkRe        = regexp.MustCompile(`https?://`)
	imageRe       = regexp.MustCompile(`(?i)<img[\s>]|\.(png|jpe?g|gif)\b`)
	noreplyRe     = regexp.MustCompile(`(?i)^(no[.-]?reply|do[.-]?not[.-]?reply|notifications?)[@+.]`)
	unsubscribeRe = regexp.MustCompile(`(?i)unsubscribe|opt[ -]?out|manage (your )?preferences`)
)

// Extract builds an EmailRecord from a raw provider message. The record is
// a one-time snapshot; it is never updated after this call.
func Extract(raw gateway.RawMessage) model.EmailRecord {
	sender := parseSender(raw.Headers["From"])

	record := model.EmailRecord{
		ID:       raw.ID,
		ThreadID: raw.ThreadID,
		Sender:   sender,
		Subject:  Sanitize(raw.Headers["Subject"], maxSubjectLen),
		Snippet:  Sanitize(raw.Snippet, maxSnippetLen),
		Date:     normalizeDate(raw),
		Read:     !hasLabel(raw.Labels, gateway.LabelUnread),
		Labels:   append([]string(nil), raw.Labels...),
		Header:   deriveHeaderFlags(raw.Headers, sender),
		Body:     deriveBodyStats(raw),
	}

	return record
}

// Sanitize strips HTML, redacts PII (email addresses and long digit runs)
// and truncates to the given rune limit.
func Sanitize(s string, limit int) string {
	s = htmlTagRe.ReplaceAllString(s, " ")
	s = emailAddrRe.ReplaceAllString(s, "[email]")
	s = longDigitRe.ReplaceAllString(s, "[number]")
	s = strings.Join(strings.Fields(s), " ")

	runes := []rune(s)
	if len(runes) > limit {
		s = string(runes[:limit])
	}
	return s
}

// parseSender splits a From header into address, display name and domain.
func parseSender(from string) model.Sender {
	sender := model.Sender{}
	if from == "" {
		return sender
	}

	addr, err := mail.ParseAddress(from)
	if err != nil {
		// Malformed From header; fall back to the raw value.
		sender.Address = strings.ToLower(strings.TrimSpace(from))
	} else {
		sender.Address = strings.ToLower(addr.Address)
		sender.DisplayName = addr.Name
	}

	if at := strings.LastIndex(sender.Address, "@"); at >= 0 && at < len(sender.Address)-1 {
		sender.Domain = sender.Address[at+1:]
	}
	return sender
}

// normalizeDate prefers the provider's internal timestamp and falls back to
// the Date header.
func normalizeDate(raw gateway.RawMessage) time.Time {
	if !raw.InternalDate.IsZero() {
		return raw.InternalDate.UTC()
	}
	if d := raw.Headers["Date"]; d != "" {
		if t, err := mail.ParseDate(d); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// deriveHeaderFlags computes the boolean header signals used by the
// heuristic classification layer.
func deriveHeaderFlags(headers map[string]string, sender model.Sender) model.HeaderFlags {
	flags := model.HeaderFlags{
		HasListUnsubscribe: headers["List-Unsubscribe"] != "",
		HasBulkPrecedence:  strings.EqualFold(headers["Precedence"], "bulk") || strings.EqualFold(headers["Precedence"], "list"),
		IsNoReply:          noreplyRe.MatchString(sender.Address),
	}

	for _, h := range []string{"X-Campaign-ID", "X-Campaign-Id", "Feedback-ID", "X-MC-User", "X-SG-EID", "X-Mailgun-Variables", "X-PM-Message-Id", "X-SES-Outgoing"} {
		if headers[h] != "" {
			flags.HasCampaignID = true
			break
		}
	}

	if rp := headers["Return-Path"]; rp != "" && sender.Domain != "" {
		rpAddr := strings.Trim(rp, "<> ")
		if at := strings.LastIndex(rpAddr, "@"); at >= 0 && at < len(rpAddr)-1 {
			rpDomain := strings.ToLower(rpAddr[at+1:])
			flags.SenderDomainMismatch = rpDomain != sender.Domain && !strings.HasSuffix(rpDomain, "."+sender.Domain)
		}
	}

	return flags
}

// deriveBodyStats computes counters from the snippet; only metadata is
// available, full bodies are never fetched.
func deriveBodyStats(raw gateway.RawMessage) model.BodyStats {
	return model.BodyStats{
		Length:             int(raw.SizeEstimate),
		LinkCount:          len(linkRe.FindAllString(raw.Snippet, -1)),
		ImageCount:         len(imageRe.FindAllString(raw.Snippet, -1)),
		HasUnsubscribeText: unsubscribeRe.MatchString(raw.Snippet),
	}
}

func hasLabel(labels []string, name string) bool {
	for _, l := range labels {
		if l == name {
			return true
		}
	}
	return false
}
