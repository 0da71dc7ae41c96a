package sources

import (
	"context"

	"github.com/thelorax67/HackClub-Events-Radar/pkg/session"
)

// Result is one candidate subdomain (or an error) produced by a source.
// Errors are carried as data so one failing source never aborts another.
type Result struct {
	Source string
	Value  string
	Error  error
}

// Source supplies candidate subdomain names for a base domain.
type Source interface {
	// Run starts the source and streams results until done. The returned
	// channel is closed when the source finishes or ctx is cancelled.
	Run(ctx context.Context, domain string, s *session.Session) <-chan Result

	// Name returns the source identifier used in stats and output.
	Name() string
}
