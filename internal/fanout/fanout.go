// Package fanout runs bounded concurrent fan-outs over indexed work items.
//
// Two collection modes exist because the pipeline's fan-out sites have
// different failure semantics: identifier resolution aborts the whole batch
// on any failure, while per-issue summarization drops the failing item and
// keeps the rest.
package fanout

import (
	"context"
	"sync"
)

// All runs fn over indices [0, n) with at most limit workers. If any call
// fails, All waits for outstanding work, then returns the error of the lowest
// failing index; otherwise results are returned at their input index.
func All[T any](ctx context.Context, limit, n int, fn func(ctx context.Context, i int) (T, error)) ([]T, error) {
	results := make([]T, n)
	errs := make([]error, n)
	run(ctx, limit, n, func(ctx context.Context, i int) {
		results[i], errs[i] = fn(ctx, i)
	})
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}

// Collect runs fn over indices [0, n) with at most limit workers, reporting
// each failure to onErr and dropping that item. Surviving results are
// returned in input order regardless of completion order.
func Collect[T any](ctx context.Context, limit, n int, fn func(ctx context.Context, i int) (T, error), onErr func(i int, err error)) []T {
	results := make([]T, n)
	errs := make([]error, n)
	run(ctx, limit, n, func(ctx context.Context, i int) {
		results[i], errs[i] = fn(ctx, i)
	})
	out := make([]T, 0, n)
	for i := 0; i < n; i++ {
		if errs[i] != nil {
			if onErr != nil {
				onErr(i, errs[i])
			}
			continue
		}
		out = append(out, results[i])
	}
	return out
}

func run(ctx context.Context, limit, n int, fn func(ctx context.Context, i int)) {
	if limit <= 0 {
		limit = n
	}
	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			fn(ctx, i)
		}(i)
	}
	wg.Wait()
}
