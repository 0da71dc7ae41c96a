package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"
)

func TestProberURL(t *testing.T) {
	tests := []struct {
		name     string
		label    string
		expected string
	}{
		{"plain label", "hackmit", "http://hackmit.example.com"},
		{"apex marker", "@", "http://example.com"},
		{"empty label", "", "http://example.com"},
		{"nested label", "go.events", "http://go.events.example.com"},
	}

	p := NewProber(http.DefaultClient, "example.com", "http", time.Second)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.URL(tt.label); got != tt.expected {
				t.Errorf("URL(%q) = %q, want %q", tt.label, got, tt.expected)
			}
		})
	}
}

// hostTransport routes requests to handlers by host name, so probes against
// composed URLs never touch the network.
type hostTransport struct {
	handlers map[string]http.HandlerFunc
}

func (t *hostTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	handler, ok := t.handlers[req.URL.Host]
	if !ok {
		// Unknown host: block until the per-call deadline fires.
		<-req.Context().Done()
		return nil, &url.Error{Op: "Get", URL: req.URL.String(), Err: req.Context().Err()}
	}

	rec := httptest.NewRecorder()
	handler(rec, req)
	resp := rec.Result()
	resp.Request = req
	return resp, nil
}

func newTestProber(handlers map[string]http.HandlerFunc, timeout time.Duration) *Prober {
	client := &http.Client{Transport: &hostTransport{handlers: handlers}}
	return NewProber(client, "example.com", "http", timeout)
}

func TestProbeSuccess(t *testing.T) {
	p := newTestProber(map[string]http.HandlerFunc{
		"hackmit.example.com": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("<html><head><title>HackMIT 2026</title></head><body>hi</body></html>"))
		},
	}, time.Second)

	result := p.Probe(context.Background(), Candidate{Name: "hackmit", Source: "test"})

	if result.Outcome.Kind != OutcomeSuccess {
		t.Fatalf("Outcome.Kind = %v, want OutcomeSuccess", result.Outcome.Kind)
	}
	if result.Outcome.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want 200", result.Outcome.StatusCode)
	}
	if !strings.Contains(result.Outcome.Body, "HackMIT") {
		t.Errorf("Body missing page content: %q", result.Outcome.Body)
	}
	if result.Outcome.Title != "HackMIT 2026" {
		t.Errorf("Title = %q, want %q", result.Outcome.Title, "HackMIT 2026")
	}
	if result.URL != "http://hackmit.example.com" {
		t.Errorf("URL = %q", result.URL)
	}
	if result.Candidate.Name != "hackmit" {
		t.Errorf("Candidate.Name = %q", result.Candidate.Name)
	}
}

func TestProbeHTTPError(t *testing.T) {
	p := newTestProber(map[string]http.HandlerFunc{
		"gone.example.com": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte("not found"))
		},
	}, time.Second)

	result := p.Probe(context.Background(), Candidate{Name: "gone"})

	if result.Outcome.Kind != OutcomeHTTPError {
		t.Fatalf("Outcome.Kind = %v, want OutcomeHTTPError", result.Outcome.Kind)
	}
	if result.Outcome.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want 404", result.Outcome.StatusCode)
	}
	if result.Outcome.Body != "" {
		t.Errorf("non-2xx body should be discarded, got %q", result.Outcome.Body)
	}
}

func TestProbeNetworkError(t *testing.T) {
	p := newTestProber(map[string]http.HandlerFunc{}, 50*time.Millisecond)

	start := time.Now()
	result := p.Probe(context.Background(), Candidate{Name: "nonexistent-xyz"})
	elapsed := time.Since(start)

	if result.Outcome.Kind != OutcomeNetworkError {
		t.Fatalf("Outcome.Kind = %v, want OutcomeNetworkError", result.Outcome.Kind)
	}
	if result.Outcome.Message == "" {
		t.Error("NetworkError should carry a descriptive message")
	}
	if elapsed > time.Second {
		t.Errorf("timeout took %v, should honor the 50ms deadline", elapsed)
	}
}

func TestProbeRedirectStatusIsHTTPError(t *testing.T) {
	// 3xx without a Location the client can follow lands as a non-2xx.
	p := newTestProber(map[string]http.HandlerFunc{
		"moved.example.com": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotModified)
		},
	}, time.Second)

	result := p.Probe(context.Background(), Candidate{Name: "moved"})

	if result.Outcome.Kind != OutcomeHTTPError {
		t.Fatalf("Outcome.Kind = %v, want OutcomeHTTPError", result.Outcome.Kind)
	}
	if result.Outcome.StatusCode != http.StatusNotModified {
		t.Errorf("StatusCode = %d, want 304", result.Outcome.StatusCode)
	}
}

func TestExtractTitle(t *testing.T) {
	tests := []struct {
		name     string
		html     string
		expected string
	}{
		{"plain title", "<html><head><title>Big Hack</title></head></html>", "Big Hack"},
		{"whitespace", "<title>  padded  </title>", "padded"},
		{"no title", "<html><body>nothing</body></html>", ""},
		{"not html", "just some text", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractTitle(tt.html); got != tt.expected {
				t.Errorf("extractTitle() = %q, want %q", got, tt.expected)
			}
		})
	}
}
