package orchestrator

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/thelorax67/HackClub-Events-Radar/pkg/config"
	"github.com/thelorax67/HackClub-Events-Radar/pkg/probe"
	"github.com/thelorax67/HackClub-Events-Radar/pkg/session"
)

func testOrchestrator(cfg *config.Config) *Orchestrator {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(&customFormatter{})
	return &Orchestrator{
		config: cfg,
		logger: logger,
	}
}

func registryServer(t *testing.T, yaml string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, yaml)
	}))
}

func TestCollectCandidatesDedup(t *testing.T) {
	srv := registryServer(t, "hackmit:\n  cname: x\nAssemble:\n  cname: y\nhackmit:\n  cname: z\n")
	defer srv.Close()

	cfg := config.Default()
	cfg.Registry.URL = srv.URL
	cfg.Registry.Domain = "example.com"

	o := testOrchestrator(cfg)
	sess, err := session.New(cfg)
	if err != nil {
		t.Fatal(err)
	}

	candidates, _, err := o.collectCandidates(sess, "example.com", ScanOptions{})
	if err != nil {
		t.Fatalf("collectCandidates: %v", err)
	}

	if len(candidates) != 2 {
		t.Fatalf("got %d candidates, want 2 after case-insensitive dedup: %+v", len(candidates), candidates)
	}
	// First occurrence wins, document order preserved.
	if candidates[0].Name != "hackmit" || candidates[1].Name != "assemble" {
		t.Errorf("candidates = %+v", candidates)
	}
	for _, c := range candidates {
		if c.Source != "dnsregistry" {
			t.Errorf("candidate %q source = %q", c.Name, c.Source)
		}
	}
}

func TestCollectCandidatesMergesFileList(t *testing.T) {
	srv := registryServer(t, "hackmit:\n  cname: x\n")
	defer srv.Close()

	listPath := filepath.Join(t.TempDir(), "extra.txt")
	if err := os.WriteFile(listPath, []byte("hackmit\nzephyr\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.Registry.URL = srv.URL
	cfg.Registry.Domain = "example.com"

	o := testOrchestrator(cfg)
	sess, err := session.New(cfg)
	if err != nil {
		t.Fatal(err)
	}

	candidates, _, err := o.collectCandidates(sess, "example.com", ScanOptions{CandidateFile: listPath})
	if err != nil {
		t.Fatalf("collectCandidates: %v", err)
	}

	names := map[string]bool{}
	for _, c := range candidates {
		names[c.Name] = true
	}
	if len(candidates) != 2 || !names["hackmit"] || !names["zephyr"] {
		t.Errorf("candidates = %+v, want hackmit and zephyr exactly once", candidates)
	}
}

func TestCollectCandidatesEmptyIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := config.Default()
	cfg.Registry.URL = srv.URL
	cfg.Registry.Domain = "example.com"

	o := testOrchestrator(cfg)
	sess, err := session.New(cfg)
	if err != nil {
		t.Fatal(err)
	}

	if _, _, err := o.collectCandidates(sess, "example.com", ScanOptions{}); err == nil {
		t.Fatal("expected a fatal error when no candidates are collected")
	}
}

func TestRunScanMissingAPIKeyFailsBeforeProbing(t *testing.T) {
	var registryHits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		registryHits++
		fmt.Fprint(w, "hackmit:\n  cname: x\n")
	}))
	defer srv.Close()

	cfg := config.Default()
	cfg.Registry.URL = srv.URL
	cfg.Extraction.Enabled = true
	cfg.Extraction.APIKey = ""

	o := testOrchestrator(cfg)
	_, err := o.RunScan(ScanOptions{})
	if err == nil {
		t.Fatal("expected an error when extraction is enabled without a key")
	}
	if !strings.Contains(err.Error(), config.APIKeyEnvVar) {
		t.Errorf("error should name %s: %v", config.APIKeyEnvVar, err)
	}
	if registryHits != 0 {
		t.Errorf("registry was fetched %d times before the credential check", registryHits)
	}
}

func TestRunScanNoExtract(t *testing.T) {
	srv := registryServer(t, "hackmit:\n  cname: x\nzephyr:\n  cname: y\n")
	defer srv.Close()

	cfg := config.Default()
	cfg.Registry.URL = srv.URL
	// Reserved TLD: every probe resolves to a fast network error without
	// leaving the resolver.
	cfg.Registry.Domain = "radar-test.invalid"
	cfg.Probe.TimeoutSeconds = 2
	cfg.Extraction.APIKey = ""

	o := testOrchestrator(cfg)
	result, err := o.RunScan(ScanOptions{NoExtract: true})
	if err != nil {
		t.Fatalf("RunScan: %v", err)
	}

	if len(result.ProbeResults) != len(result.Candidates) {
		t.Errorf("%d probe results for %d candidates", len(result.ProbeResults), len(result.Candidates))
	}
	if len(result.Candidates) != 2 {
		t.Errorf("got %d candidates, want 2", len(result.Candidates))
	}
	for _, pr := range result.ProbeResults {
		if pr.Outcome.Kind != probe.OutcomeNetworkError {
			t.Errorf("probe of %s = %v, want OutcomeNetworkError", pr.URL, pr.Outcome.Kind)
		}
	}
	if len(result.Records) != 0 || len(result.Drops) != 0 {
		t.Errorf("extraction ran despite --no-extract: records=%d drops=%d", len(result.Records), len(result.Drops))
	}
	if result.Duration <= 0 {
		t.Error("scan duration not recorded")
	}
}

func TestRunEnumerationSourceErrorsAreNotFatal(t *testing.T) {
	srv := registryServer(t, "hackmit:\n  cname: x\n")
	defer srv.Close()

	cfg := config.Default()
	cfg.Registry.URL = srv.URL

	sess, err := session.New(cfg)
	if err != nil {
		t.Fatal(err)
	}

	logger := logrus.New()
	logger.SetFormatter(&customFormatter{})

	// The file list source fails to open; the registry source still streams.
	engine := NewEngine(sess, logger, filepath.Join(t.TempDir(), "missing.txt"))

	var values []string
	for enumResult := range engine.RunEnumeration(context.Background(), "example.com", false) {
		if enumResult.Stats != nil {
			continue
		}
		values = append(values, enumResult.Result.Value)
	}

	if len(values) != 1 || values[0] != "hackmit" {
		t.Errorf("values = %v, want the registry candidate to survive a failing sibling source", values)
	}
}
