package sources

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"gopkg.in/yaml.v3"

	"github.com/thelorax67/HackClub-Events-Radar/pkg/session"
)

// DNSRegistry reads candidate names from a community DNS registry: a YAML
// document whose root mapping keys are the subdomain labels of the base
// domain. Key order in the document is preserved.
type DNSRegistry struct {
	// URL overrides the configured registry URL when set. Used by tests.
	URL string
}

func (d *DNSRegistry) Name() string {
	return "dnsregistry"
}

func (d *DNSRegistry) Run(ctx context.Context, domain string, s *session.Session) <-chan Result {
	results := make(chan Result)

	go func() {
		defer close(results)

		url := d.URL
		if url == "" {
			url = s.Config.Registry.URL
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			results <- Result{Source: d.Name(), Error: fmt.Errorf("failed to create registry request: %w", err)}
			return
		}

		resp, err := s.Client.Do(req)
		if err != nil {
			results <- Result{Source: d.Name(), Error: fmt.Errorf("failed to fetch registry: %w", err)}
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			results <- Result{Source: d.Name(), Error: fmt.Errorf("registry returned HTTP %d", resp.StatusCode)}
			return
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			results <- Result{Source: d.Name(), Error: fmt.Errorf("failed to read registry body: %w", err)}
			return
		}

		names, err := parseRegistry(body)
		if err != nil {
			results <- Result{Source: d.Name(), Error: err}
			return
		}

		for _, name := range names {
			select {
			case results <- Result{Source: d.Name(), Value: name}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return results
}

// parseRegistry extracts the root mapping keys of the registry document in
// document order. The "@" key (zone apex) is kept as-is; the prober resolves
// it to the bare domain.
func parseRegistry(data []byte) ([]string, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse registry YAML: %w", err)
	}

	if len(doc.Content) == 0 {
		return nil, fmt.Errorf("registry document is empty")
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("expected a YAML mapping at registry root, got %v", root.Kind)
	}

	var names []string
	for i := 0; i+1 < len(root.Content); i += 2 {
		key := root.Content[i].Value
		if key == "" {
			continue
		}
		names = append(names, key)
	}

	return names, nil
}
