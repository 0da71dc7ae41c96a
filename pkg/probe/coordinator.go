package probe

import (
	"context"
	"sync"
)

// Coordinator fans probing out over a fixed pool of workers. As soon as one
// probe finishes the next queued candidate starts; the ceiling bounds how
// many are in flight at any instant. A failed probe never blocks or delays
// the others, and the run completes only once every candidate has produced
// exactly one Result. Output order is unspecified; correlate by candidate.
type Coordinator struct {
	prober      *Prober
	concurrency int

	// OnProgress, when set, is called after each completed probe with the
	// number done so far and the total. Called from the collector only.
	OnProgress func(done, total int)
}

func NewCoordinator(prober *Prober, concurrency int) *Coordinator {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Coordinator{
		prober:      prober,
		concurrency: concurrency,
	}
}

func (c *Coordinator) Run(ctx context.Context, candidates []Candidate) []Result {
	total := len(candidates)
	if total == 0 {
		return nil
	}

	jobs := make(chan Candidate)
	out := make(chan Result)

	var wg sync.WaitGroup
	for i := 0; i < c.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for candidate := range jobs {
				out <- c.prober.Probe(ctx, candidate)
			}
		}()
	}

	feederDone := make(chan struct{})
	go func() {
		defer close(feederDone)
		defer close(jobs)
		for _, candidate := range candidates {
			select {
			case jobs <- candidate:
			case <-ctx.Done():
				// Unscheduled candidates still get a terminal outcome.
				out <- Result{
					Candidate: candidate,
					URL:       c.prober.URL(candidate.Name),
					Outcome:   Outcome{Kind: OutcomeNetworkError, Message: ctx.Err().Error()},
				}
			}
		}
	}()

	go func() {
		<-feederDone
		wg.Wait()
		close(out)
	}()

	results := make([]Result, 0, total)
	for result := range out {
		results = append(results, result)
		if c.OnProgress != nil {
			c.OnProgress(len(results), total)
		}
	}

	return results
}
