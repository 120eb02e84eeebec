package extractor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"inbox-janitor-go/internal/gateway"
)

func TestSanitizeStripsHTML(t *testing.T) {
	out := Sanitize("<p>Hello <b>world</b></p>", 200)
	assert.Equal(t, "Hello world", out)
}

func TestSanitizeRedactsPII(t *testing.T) {
	out := Sanitize("Contact jane.doe@example.com, order 123456789", 200)
	assert.NotContains(t, out, "jane.doe@example.com")
	assert.NotContains(t, out, "123456789")
	assert.Contains(t, out, "[email]")
	assert.Contains(t, out, "[number]")
}

func TestSanitizeTruncatesRunes(t *testing.T) {
	long := ""
	for i := 0; i < 50; i++ {
		long += "héllo "
	}
	out := Sanitize(long, 10)
	assert.Equal(t, 10, len([]rune(out)))
}

func TestSanitizeKeepsShortDigits(t *testing.T) {
	out := Sanitize("Your code is 42", 200)
	assert.Contains(t, out, "42")
}

func TestExtractSubjectAndSnippetCaps(t *testing.T) {
	longSubject := ""
	for i := 0; i < 30; i++ {
		longSubject += "0123456789"
	}

	record := Extract(gateway.RawMessage{
		ID:      "m1",
		Headers: map[string]string{"Subject": longSubject, "From": "a@b.com"},
		Snippet: longSubject,
	})

	assert.LessOrEqual(t, len([]rune(record.Subject)), 200)
	assert.LessOrEqual(t, len([]rune(record.Snippet)), 100)
}

func TestExtractParsesSender(t *testing.T) {
	record := Extract(gateway.RawMessage{
		ID:      "m1",
		Headers: map[string]string{"From": `"Acme News" <News@Acme.COM>`},
	})

	assert.Equal(t, "news@acme.com", record.Sender.Address)
	assert.Equal(t, "Acme News", record.Sender.DisplayName)
	assert.Equal(t, "acme.com", record.Sender.Domain)
}

func TestExtractMalformedFromFallsBack(t *testing.T) {
	record := Extract(gateway.RawMessage{
		ID:      "m1",
		Headers: map[string]string{"From": "not an address"},
	})

	assert.Equal(t, "not an address", record.Sender.Address)
	assert.Empty(t, record.Sender.Domain)
}

func TestExtractHeaderFlags(t *testing.T) {
	record := Extract(gateway.RawMessage{
		ID: "m1",
		Headers: map[string]string{
			"From":             "no-reply@shop.example",
			"List-Unsubscribe": "<mailto:unsub@shop.example>",
			"Precedence":       "bulk",
			"X-Campaign-ID":    "c-123",
			"Return-Path":      "<bounce@mailer.other>",
		},
	})

	assert.True(t, record.Header.HasListUnsubscribe)
	assert.True(t, record.Header.HasBulkPrecedence)
	assert.True(t, record.Header.HasCampaignID)
	assert.True(t, record.Header.IsNoReply)
	assert.True(t, record.Header.SenderDomainMismatch)
}

func TestExtractReturnPathSubdomainIsNotMismatch(t *testing.T) {
	record := Extract(gateway.RawMessage{
		ID: "m1",
		Headers: map[string]string{
			"From":        "news@acme.com",
			"Return-Path": "<bounce@mail.acme.com>",
		},
	})

	assert.False(t, record.Header.SenderDomainMismatch)
}

func TestExtractReadFromLabels(t *testing.T) {
	unread := Extract(gateway.RawMessage{ID: "m1", Labels: []string{gateway.LabelInbox, gateway.LabelUnread}})
	read := Extract(gateway.RawMessage{ID: "m2", Labels: []string{gateway.LabelInbox}})

	assert.False(t, unread.Read)
	assert.True(t, read.Read)
}

func TestExtractDatePrefersInternal(t *testing.T) {
	internal := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	record := Extract(gateway.RawMessage{
		ID:           "m1",
		InternalDate: internal,
		Headers:      map[string]string{"Date": "Mon, 05 Jan 2026 10:00:00 +0000"},
	})
	assert.Equal(t, internal, record.Date)
}

func TestExtractDateHeaderFallback(t *testing.T) {
	record := Extract(gateway.RawMessage{
		ID:      "m1",
		Headers: map[string]string{"Date": "Mon, 05 Jan 2026 10:00:00 +0000"},
	})
	assert.Equal(t, 2026, record.Date.Year())
	assert.Equal(t, time.January, record.Date.Month())
}

func TestExtractBodyStats(t *testing.T) {
	record := Extract(gateway.RawMessage{
		ID:           "m1",
		Snippet:      "Big sale! https://a.example https://b.example Unsubscribe anytime",
		SizeEstimate: 2048,
	})

	assert.Equal(t, 2048, record.Body.Length)
	assert.Equal(t, 2, record.Body.LinkCount)
	assert.True(t, record.Body.HasUnsubscribeText)
}
