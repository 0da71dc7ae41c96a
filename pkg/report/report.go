package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/thelorax67/HackClub-Events-Radar/pkg/extract"
	"github.com/thelorax67/HackClub-Events-Radar/pkg/orchestrator"
	"github.com/thelorax67/HackClub-Events-Radar/pkg/probe"
)

// Entry is one probe attempt in results.json.
type Entry struct {
	Subdomain string `json:"subdomain"`
	URL       string `json:"url"`
	Source    string `json:"source"`
	Outcome   string `json:"outcome"`
	Status    int    `json:"status,omitempty"`
	Bytes     int    `json:"bytes,omitempty"`
	Title     string `json:"title,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Success is one live page in successes.json.
type Success struct {
	URL     string `json:"url"`
	Title   string `json:"title,omitempty"`
	Content string `json:"content"`
}

// Summary is the top-level shape of summary.json.
type Summary struct {
	Domain  string           `json:"domain"`
	Events  []extract.Record `json:"events"`
	Dropped []extract.Drop   `json:"dropped,omitempty"`
}

// Entries converts probe results into their serializable form, with
// exhaustive handling per outcome kind.
func Entries(results []probe.Result) []Entry {
	entries := make([]Entry, 0, len(results))
	for _, r := range results {
		entry := Entry{
			Subdomain: r.Candidate.Name,
			URL:       r.URL,
			Source:    r.Candidate.Source,
			Outcome:   r.Outcome.Kind.String(),
		}

		switch r.Outcome.Kind {
		case probe.OutcomeSuccess:
			entry.Status = r.Outcome.StatusCode
			entry.Bytes = len(r.Outcome.Body)
			entry.Title = r.Outcome.Title
		case probe.OutcomeHTTPError:
			entry.Status = r.Outcome.StatusCode
		case probe.OutcomeNetworkError:
			entry.Error = r.Outcome.Message
		}

		entries = append(entries, entry)
	}
	return entries
}

// Successes converts Success outcomes into their serializable form.
func Successes(results []probe.Result) []Success {
	successes := make([]Success, 0, len(results))
	for _, r := range results {
		if r.Outcome.Kind != probe.OutcomeSuccess {
			continue
		}
		successes = append(successes, Success{
			URL:     r.URL,
			Title:   r.Outcome.Title,
			Content: r.Outcome.Body,
		})
	}
	return successes
}

// WriteArtifacts writes results.json, successes.json and summary.json into
// dir, creating it if needed. Returns the summary path for user messaging.
func WriteArtifacts(dir string, result *orchestrator.ScanResult) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := writeJSON(filepath.Join(dir, "results.json"), Entries(result.ProbeResults)); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(dir, "successes.json"), Successes(result.Successes)); err != nil {
		return "", err
	}

	summaryPath := filepath.Join(dir, "summary.json")
	summary := Summary{
		Domain:  result.Domain,
		Events:  result.Records,
		Dropped: result.Drops,
	}
	if summary.Events == nil {
		summary.Events = []extract.Record{}
	}
	if err := writeJSON(summaryPath, summary); err != nil {
		return "", err
	}

	return summaryPath, nil
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}

// PrintSummary renders the run outcome to the console.
func PrintSummary(result *orchestrator.ScanResult) {
	var httpErrors, networkErrors int
	for _, r := range result.ProbeResults {
		switch r.Outcome.Kind {
		case probe.OutcomeHTTPError:
			httpErrors++
		case probe.OutcomeNetworkError:
			networkErrors++
		case probe.OutcomeSuccess:
		}
	}

	fmt.Println()
	color.Green("Scan completed for %s in %v", result.Domain, result.Duration.Round(time.Millisecond))
	color.Cyan("Probed %d candidates: %d live, %d http errors, %d unreachable",
		len(result.ProbeResults), len(result.Successes), httpErrors, networkErrors)

	if len(result.Records) == 0 {
		fmt.Println("\nNo hackathons found.")
		return
	}

	color.Cyan("Extracted %d hackathon(s), dropped %d page(s)", len(result.Records), len(result.Drops))
	fmt.Println()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tDATES\tURL")
	for _, record := range result.Records {
		fmt.Fprintf(w, "%s\t%s\t%s\n", record.Name, record.Dates, record.URL)
	}
	w.Flush()

	fmt.Println()
	for _, record := range result.Records {
		if record.Summary != "" {
			fmt.Printf("  %s: %s\n", record.Name, record.Summary)
		}
	}
}
