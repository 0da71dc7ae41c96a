package extract

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Drop records why one request produced no record.
type Drop struct {
	URL    string `json:"url"`
	Reason string `json:"reason"`
}

// Coordinator fans extraction out over a fixed worker pool, additionally
// throttled by a shared token-bucket limiter: the endpoint enforces its own
// rate limit (roughly one completion per second in practice), which is an
// expected condition, not a failure. Failed extractions become Drops; the
// run completes once every request has either a record or a drop, and
// len(records)+len(drops) always equals len(requests).
type Coordinator struct {
	extractor   *Extractor
	concurrency int
	limiter     *rate.Limiter

	OnProgress func(done, total int)
}

// NewCoordinator builds a coordinator with the given ceiling and a
// per-minute request budget. ratePerMinute <= 0 disables throttling.
func NewCoordinator(extractor *Extractor, concurrency, ratePerMinute int) *Coordinator {
	if concurrency < 1 {
		concurrency = 1
	}

	var limiter *rate.Limiter
	if ratePerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(ratePerMinute)/60.0), 1)
	}

	return &Coordinator{
		extractor:   extractor,
		concurrency: concurrency,
		limiter:     limiter,
	}
}

type outcome struct {
	record Record
	drop   *Drop
}

func (c *Coordinator) Run(ctx context.Context, requests []Request) ([]Record, []Drop) {
	total := len(requests)
	if total == 0 {
		return nil, nil
	}

	jobs := make(chan Request)
	out := make(chan outcome)

	var wg sync.WaitGroup
	for i := 0; i < c.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for req := range jobs {
				out <- c.extractOne(ctx, req)
			}
		}()
	}

	feederDone := make(chan struct{})
	go func() {
		defer close(feederDone)
		defer close(jobs)
		for _, req := range requests {
			select {
			case jobs <- req:
			case <-ctx.Done():
				out <- outcome{drop: &Drop{URL: req.URL, Reason: ctx.Err().Error()}}
			}
		}
	}()

	go func() {
		<-feederDone
		wg.Wait()
		close(out)
	}()

	records := make([]Record, 0, total)
	var drops []Drop
	done := 0
	for o := range out {
		done++
		if o.drop != nil {
			drops = append(drops, *o.drop)
		} else {
			records = append(records, o.record)
		}
		if c.OnProgress != nil {
			c.OnProgress(done, total)
		}
	}

	return records, drops
}

func (c *Coordinator) extractOne(ctx context.Context, req Request) outcome {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return outcome{drop: &Drop{URL: req.URL, Reason: err.Error()}}
		}
	}

	record, err := c.extractor.Extract(ctx, req)
	if err != nil {
		reason := err.Error()
		if extractErr, ok := err.(*Error); ok {
			reason = extractErr.Reason
		}
		return outcome{drop: &Drop{URL: req.URL, Reason: reason}}
	}

	return outcome{record: record}
}
