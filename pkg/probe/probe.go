package probe

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Candidate is one subdomain label to probe, tagged with the source that
// produced it. The "@" label means the zone apex.
type Candidate struct {
	Name   string
	Source string
}

// OutcomeKind is the tri-state result of a single probe attempt.
type OutcomeKind int

const (
	// OutcomeSuccess: a 2xx response with a readable body.
	OutcomeSuccess OutcomeKind = iota
	// OutcomeHTTPError: the server answered with a non-2xx status.
	OutcomeHTTPError
	// OutcomeNetworkError: DNS, connect, TLS or timeout failure.
	OutcomeNetworkError
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeHTTPError:
		return "http_error"
	case OutcomeNetworkError:
		return "network_error"
	}
	return "unknown"
}

// Outcome holds the fields of exactly one OutcomeKind. StatusCode is set for
// Success and HTTPError, Body and Title only for Success, Message only for
// NetworkError.
type Outcome struct {
	Kind       OutcomeKind
	StatusCode int
	Body       string
	Title      string
	Message    string
}

// Result is the terminal outcome for one candidate. Created once by the
// prober and never mutated afterwards.
type Result struct {
	Candidate Candidate
	URL       string
	Outcome   Outcome
}

// Prober issues single HTTP GET attempts against candidate subdomains.
type Prober struct {
	client  *http.Client
	domain  string
	scheme  string
	timeout time.Duration
}

func NewProber(client *http.Client, domain, scheme string, timeout time.Duration) *Prober {
	return &Prober{
		client:  client,
		domain:  domain,
		scheme:  scheme,
		timeout: timeout,
	}
}

// URL composes the probe target for a candidate name.
func (p *Prober) URL(name string) string {
	if name == "@" || name == "" {
		return p.scheme + "://" + p.domain
	}
	return p.scheme + "://" + name + "." + p.domain
}

// Probe performs one GET with the prober's timeout. One attempt is
// authoritative for the run; there are no retries at any layer.
func (p *Prober) Probe(ctx context.Context, candidate Candidate) Result {
	url := p.URL(candidate.Name)

	result := Result{
		Candidate: candidate,
		URL:       url,
	}

	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodGet, url, nil)
	if err != nil {
		result.Outcome = Outcome{Kind: OutcomeNetworkError, Message: err.Error()}
		return result
	}

	resp, err := p.client.Do(req)
	if err != nil {
		result.Outcome = Outcome{Kind: OutcomeNetworkError, Message: err.Error()}
		return result
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Drain so the connection can be reused.
		io.Copy(io.Discard, resp.Body)
		result.Outcome = Outcome{Kind: OutcomeHTTPError, StatusCode: resp.StatusCode}
		return result
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		result.Outcome = Outcome{Kind: OutcomeNetworkError, Message: err.Error()}
		return result
	}

	result.Outcome = Outcome{
		Kind:       OutcomeSuccess,
		StatusCode: resp.StatusCode,
		Body:       string(body),
		Title:      extractTitle(string(body)),
	}
	return result
}

// extractTitle pulls the page <title> for reporting. Best effort only.
func extractTitle(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}
