package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Request pairs the raw HTML of a successful probe with its source URL.
type Request struct {
	URL  string
	HTML string
}

// Record is one validated hackathon event. Name is the only required field;
// URL falls back to the source page when the model finds nothing better.
type Record struct {
	Name      string `json:"name"`
	URL       string `json:"url"`
	Dates     string `json:"dates"`
	Summary   string `json:"summary"`
	SourceURL string `json:"source_url"`
}

// Error is a failed extraction attempt. Failures are carried as data by the
// coordinator; they never abort sibling extractions.
type Error struct {
	URL    string
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extraction failed for %s: %s: %v", e.URL, e.Reason, e.Err)
	}
	return fmt.Sprintf("extraction failed for %s: %s", e.URL, e.Reason)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Options is the immutable per-run extraction configuration.
type Options struct {
	Endpoint    string
	Model       string
	APIKey      string
	Temperature float64
	MaxTokens   int
	CharBudget  int
	Timeout     time.Duration
}

// Extractor turns probed HTML into structured event records via an external
// chat-completions endpoint.
type Extractor struct {
	client *http.Client
	opts   Options
}

func NewExtractor(client *http.Client, opts Options) (*Extractor, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("extraction API key is not set (set %s or extraction.api_key)", "NIM_API_KEY")
	}
	if opts.CharBudget <= 0 {
		return nil, fmt.Errorf("char budget must be greater than 0")
	}
	return &Extractor{
		client: client,
		opts:   opts,
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Extract performs a single extraction attempt. Any transport failure,
// non-2xx status, non-JSON model output or missing name field yields an
// *Error; a partially populated record never stands in for failure.
func (e *Extractor) Extract(ctx context.Context, req Request) (Record, error) {
	prompt := e.BuildPrompt(req)

	payload, err := json.Marshal(chatRequest{
		Model:       e.opts.Model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: e.opts.Temperature,
		MaxTokens:   e.opts.MaxTokens,
	})
	if err != nil {
		return Record{}, &Error{URL: req.URL, Reason: "failed to encode request", Err: err}
	}

	callCtx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(callCtx, http.MethodPost, e.opts.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return Record{}, &Error{URL: req.URL, Reason: "failed to create request", Err: err}
	}
	httpReq.Header.Set("Authorization", "Bearer "+e.opts.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return Record{}, &Error{URL: req.URL, Reason: "transport failure", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return Record{}, &Error{URL: req.URL, Reason: fmt.Sprintf("model endpoint returned HTTP %d", resp.StatusCode)}
	}

	var chat chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
		return Record{}, &Error{URL: req.URL, Reason: "malformed endpoint response", Err: err}
	}

	if len(chat.Choices) == 0 {
		return Record{}, &Error{URL: req.URL, Reason: "endpoint response contained no choices"}
	}

	return e.parseRecord(req.URL, chat.Choices[0].Message.Content)
}

// BuildPrompt embeds the truncated HTML and the response contract. The HTML
// is cut to exactly CharBudget characters; shorter pages pass unmodified.
func (e *Extractor) BuildPrompt(req Request) string {
	return fmt.Sprintf(`You are a hackathon finder. Given HTML from the page "%s", extract the hackathon it describes.

Respond with a single JSON object with exactly these fields:
- "name": hackathon name
- "url": most specific URL for the hackathon (use "%s" if no better link found)
- "dates": date or date range as a string (e.g. "March 15-17, 2025"), or "Unknown" if not found
- "summary": one sentence describing the hackathon

If the page does not describe a hackathon, respond with {"name": ""}.
Respond with ONLY the JSON object, no other text.

HTML:
%s`, req.URL, req.URL, Truncate(req.HTML, e.opts.CharBudget))
}

// Truncate cuts s to at most budget characters (runes, to never split a
// multi-byte sequence mid-way).
func Truncate(s string, budget int) string {
	if budget <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= budget {
		return s
	}
	return string(runes[:budget])
}

func (e *Extractor) parseRecord(url, text string) (Record, error) {
	clean := stripFences(text)

	var record Record
	if err := json.Unmarshal([]byte(clean), &record); err != nil {
		return Record{}, &Error{URL: url, Reason: "model returned non-JSON output", Err: err}
	}

	if strings.TrimSpace(record.Name) == "" {
		return Record{}, &Error{URL: url, Reason: "no hackathon found (empty name)"}
	}

	if record.URL == "" {
		record.URL = url
	}
	record.SourceURL = url

	return record, nil
}

// stripFences removes markdown code fences the model may wrap around the
// JSON despite instructions.
func stripFences(text string) string {
	clean := strings.TrimSpace(text)
	clean = strings.TrimPrefix(clean, "```json")
	clean = strings.TrimPrefix(clean, "```")
	clean = strings.TrimSuffix(clean, "```")
	return strings.TrimSpace(clean)
}
