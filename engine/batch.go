package engine

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// =============================================================================
// BATCH RUNS - many employees, one period
// =============================================================================

// BatchItem is the result of one request in a batch. Exactly one of
// Outcome and Err is set.
type BatchItem struct {
	Request CalculationRequest
	Outcome *Outcome
	Err     error
}

// RunBatch calculates every request on at most workers goroutines. An item
// failing never aborts the others. Once ctx is cancelled no new items are
// started and the unstarted ones carry ctx.Err(). Items are returned in
// input order.
func RunBatch(ctx context.Context, calc Calculator, reqs []CalculationRequest, workers int) []BatchItem {
	if workers < 1 {
		workers = 1
	}
	items := make([]BatchItem, len(reqs))

	var g errgroup.Group
	g.SetLimit(workers)
	for i := range reqs {
		items[i].Request = reqs[i]
		if err := ctx.Err(); err != nil {
			items[i].Err = err
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				items[i].Err = err
				return nil
			}
			items[i].Outcome, items[i].Err = calc.Calculate(ctx, reqs[i])
			return nil
		})
	}
	_ = g.Wait()
	return items
}

// BatchSummary counts a batch's outcomes by OutcomeLabel.
func BatchSummary(items []BatchItem) map[string]int {
	counts := make(map[string]int)
	for _, it := range items {
		counts[OutcomeLabel(it.Err)]++
	}
	return counts
}
