package convert

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// WorkItem is one discovered source queued for conversion.
type WorkItem struct {
	Seq    int
	Source string // VCF path
	Output string // deterministic document path
	Reuse  bool   // output is known to exist or is claimed by an earlier source
}

// WorkResult is the outcome of converting a single source.
type WorkResult struct {
	Seq       int
	Source    string
	Output    string
	Existed   bool // conversion skipped, output already present
	CallCount int
	Skipped   int // malformed lines
	Err       error
}

// ParallelConvert converts work items using a pool of workers.
// Results are sent to the returned channel in arrival order (not sequence order).
// Use OrderedCollect to consume results in sequence-number order.
// If workers is 0, runtime.NumCPU() is used.
func (c *Converter) ParallelConvert(ctx context.Context, items <-chan WorkItem, workers int) <-chan WorkResult {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	results := make(chan WorkResult, 2*workers)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for item := range items {
				if err := gctx.Err(); err != nil {
					results <- WorkResult{Seq: item.Seq, Source: item.Source, Output: item.Output, Err: err}
					continue
				}
				results <- c.convertOne(item)
			}
			return nil
		})
	}

	go func() {
		g.Wait()
		close(results)
	}()

	return results
}

// OrderedCollect calls fn for each result in sequence-number order.
// It buffers out-of-order results in a pending map and emits them
// as soon as the next expected sequence number is available.
// Blocks until the results channel is closed.
func OrderedCollect(results <-chan WorkResult, fn func(WorkResult) error) error {
	pending := make(map[int]WorkResult)
	nextSeq := 0

	for r := range results {
		pending[r.Seq] = r

		for {
			rr, ok := pending[nextSeq]
			if !ok {
				break
			}
			delete(pending, nextSeq)
			nextSeq++
			if err := fn(rr); err != nil {
				// Drain remaining results to unblock workers.
				for range results {
				}
				return err
			}
		}
	}

	return nil
}
