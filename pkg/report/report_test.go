package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/thelorax67/HackClub-Events-Radar/pkg/extract"
	"github.com/thelorax67/HackClub-Events-Radar/pkg/orchestrator"
	"github.com/thelorax67/HackClub-Events-Radar/pkg/probe"
)

func sampleResults() []probe.Result {
	return []probe.Result{
		{
			Candidate: probe.Candidate{Name: "hackmit", Source: "dnsregistry"},
			URL:       "http://hackmit.example.com",
			Outcome: probe.Outcome{
				Kind:       probe.OutcomeSuccess,
				StatusCode: 200,
				Body:       "<html><title>HackMIT</title></html>",
				Title:      "HackMIT",
			},
		},
		{
			Candidate: probe.Candidate{Name: "gone", Source: "dnsregistry"},
			URL:       "http://gone.example.com",
			Outcome:   probe.Outcome{Kind: probe.OutcomeHTTPError, StatusCode: 404},
		},
		{
			Candidate: probe.Candidate{Name: "nonexistent-xyz", Source: "filelist"},
			URL:       "http://nonexistent-xyz.example.com",
			Outcome:   probe.Outcome{Kind: probe.OutcomeNetworkError, Message: "no such host"},
		},
	}
}

func TestEntries(t *testing.T) {
	entries := Entries(sampleResults())
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}

	success := entries[0]
	if success.Outcome != "success" || success.Status != 200 || success.Title != "HackMIT" {
		t.Errorf("success entry = %+v", success)
	}
	if success.Bytes != len("<html><title>HackMIT</title></html>") {
		t.Errorf("success Bytes = %d", success.Bytes)
	}
	if success.Error != "" {
		t.Errorf("success entry carries an error: %q", success.Error)
	}

	httpErr := entries[1]
	if httpErr.Outcome != "http_error" || httpErr.Status != 404 || httpErr.Bytes != 0 {
		t.Errorf("http error entry = %+v", httpErr)
	}

	netErr := entries[2]
	if netErr.Outcome != "network_error" || netErr.Error != "no such host" || netErr.Status != 0 {
		t.Errorf("network error entry = %+v", netErr)
	}
	if netErr.Source != "filelist" {
		t.Errorf("Source = %q", netErr.Source)
	}
}

func TestSuccesses(t *testing.T) {
	successes := Successes(sampleResults())
	if len(successes) != 1 {
		t.Fatalf("got %d successes, want 1", len(successes))
	}
	if successes[0].URL != "http://hackmit.example.com" || successes[0].Title != "HackMIT" {
		t.Errorf("success = %+v", successes[0])
	}
	if successes[0].Content == "" {
		t.Error("success should carry the page content")
	}
}

func TestWriteArtifacts(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "output")

	results := sampleResults()
	scan := &orchestrator.ScanResult{
		Domain:       "example.com",
		ProbeResults: results,
		Successes:    results[:1],
		Records: []extract.Record{
			{Name: "HackMIT", URL: "https://hackmit.org", Dates: "Sep 14-15", Summary: "s", SourceURL: "http://hackmit.example.com"},
		},
		Drops: []extract.Drop{
			{URL: "http://other.example.com", Reason: "no hackathon found (empty name)"},
		},
	}

	summaryPath, err := WriteArtifacts(dir, scan)
	if err != nil {
		t.Fatalf("WriteArtifacts: %v", err)
	}
	if summaryPath != filepath.Join(dir, "summary.json") {
		t.Errorf("summaryPath = %q", summaryPath)
	}

	var entries []Entry
	readJSON(t, filepath.Join(dir, "results.json"), &entries)
	if len(entries) != 3 {
		t.Errorf("results.json has %d entries, want 3", len(entries))
	}

	var successes []Success
	readJSON(t, filepath.Join(dir, "successes.json"), &successes)
	if len(successes) != 1 {
		t.Errorf("successes.json has %d entries, want 1", len(successes))
	}

	var summary Summary
	readJSON(t, summaryPath, &summary)
	if summary.Domain != "example.com" {
		t.Errorf("summary.Domain = %q", summary.Domain)
	}
	if len(summary.Events) != 1 || summary.Events[0].Name != "HackMIT" {
		t.Errorf("summary.Events = %+v", summary.Events)
	}
	if len(summary.Dropped) != 1 {
		t.Errorf("summary.Dropped = %+v", summary.Dropped)
	}
}

func TestWriteArtifactsEmptyRun(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "output")

	scan := &orchestrator.ScanResult{Domain: "example.com"}
	summaryPath, err := WriteArtifacts(dir, scan)
	if err != nil {
		t.Fatalf("WriteArtifacts: %v", err)
	}

	// events must serialize as [] rather than null.
	data, err := os.ReadFile(summaryPath)
	if err != nil {
		t.Fatal(err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}
	if string(raw["events"]) == "null" {
		t.Error(`summary.json "events" is null, want []`)
	}
}

func readJSON(t *testing.T, path string, v interface{}) {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		t.Fatalf("parsing %s: %v", path, err)
	}
}
