package sources

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/thelorax67/HackClub-Events-Radar/pkg/session"
)

// FileList reads candidate names from a newline-delimited file. Blank lines
// and '#' comments are skipped. Entries may be bare labels ("hackmit") or
// fully qualified hosts ("hackmit.hackclub.com"); the latter are reduced to
// their label relative to the base domain.
type FileList struct {
	Path string
}

func (f *FileList) Name() string {
	return "filelist"
}

func (f *FileList) Run(ctx context.Context, domain string, s *session.Session) <-chan Result {
	results := make(chan Result)

	go func() {
		defer close(results)

		file, err := os.Open(f.Path)
		if err != nil {
			results <- Result{Source: f.Name(), Error: fmt.Errorf("failed to open candidate file: %w", err)}
			return
		}
		defer file.Close()

		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}

			name := strings.ToLower(line)
			if suffix := "." + strings.ToLower(domain); strings.HasSuffix(name, suffix) {
				name = strings.TrimSuffix(name, suffix)
			}
			if name == strings.ToLower(domain) {
				name = "@"
			}

			select {
			case results <- Result{Source: f.Name(), Value: name}:
			case <-ctx.Done():
				return
			}
		}

		if err := scanner.Err(); err != nil {
			results <- Result{Source: f.Name(), Error: fmt.Errorf("error reading candidate file: %w", err)}
		}
	}()

	return results
}
