package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"inbox-janitor-go/internal/config"
)

// HTTPProvider classifies email batches against a JSON-over-HTTP
// classification endpoint.
type HTTPProvider struct {
	name       string
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewHTTPProvider builds a provider from its endpoint configuration.
func NewHTTPProvider(cfg config.LLMProviderConfig) *HTTPProvider {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	name := cfg.Name
	if name == "" {
		name = cfg.BaseURL
	}
	return &HTTPProvider{
		name:    name,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Name returns the configured provider name.
func (p *HTTPProvider) Name() string {
	return p.name
}

type classifyRequest struct {
	Model  string `json:"model,omitempty"`
	Emails []Item `json:"emails"`
}

type classifyResponse struct {
	Results []Result `json:"results"`
}

// Classify sends one batch to the provider and parses the structured
// response, repairing malformed output best-effort before giving up.
func (p *HTTPProvider) Classify(ctx context.Context, items []Item) ([]Result, error) {
	body, err := json.Marshal(classifyRequest{Model: p.model, Emails: items})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal classify request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/classify", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build classify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("classify call to %s failed: %w", p.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{Provider: p.name, Code: resp.StatusCode}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read classify response: %w", err)
	}

	results, err := ParseResults(raw)
	if err != nil {
		return nil, fmt.Errorf("provider %s returned malformed results: %w", p.name, err)
	}
	return results, nil
}

// ParseResults decodes a provider response, repairing the usual LLM output
// defects (code fences, prose around the JSON, trailing commas) before
// failing.
func ParseResults(raw []byte) ([]Result, error) {
	var response classifyResponse
	if err := json.Unmarshal(raw, &response); err == nil && response.Results != nil {
		return response.Results, nil
	}

	repaired := RepairJSON(string(raw))

	if err := json.Unmarshal([]byte(repaired), &response); err == nil && response.Results != nil {
		return response.Results, nil
	}

	// Some providers return a bare array instead of a results envelope.
	var list []Result
	if err := json.Unmarshal([]byte(repaired), &list); err == nil {
		return list, nil
	}

	logrus.Debugf("Unrepairable classify payload: %.200s", string(raw))
	return nil, fmt.Errorf("no parsable results in payload")
}

// RepairJSON strips markdown code fences, trims surrounding prose down to
// the outermost JSON value, and removes trailing commas.
func RepairJSON(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}

	start := strings.IndexAny(s, "{[")
	if start > 0 {
		s = s[start:]
	}
	endObj := strings.LastIndex(s, "}")
	endArr := strings.LastIndex(s, "]")
	end := endObj
	if endArr > end {
		end = endArr
	}
	if end >= 0 && end < len(s)-1 {
		s = s[:end+1]
	}

	s = strings.ReplaceAll(s, ",]", "]")
	s = strings.ReplaceAll(s, ",}", "}")
	s = strings.ReplaceAll(s, ", ]", "]")
	s = strings.ReplaceAll(s, ", }", "}")

	return s
}
