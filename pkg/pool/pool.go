// Package pool provides a bounded worker pool: a task queue consumed by a
// fixed number of workers, with one result per task.
package pool

import (
	"context"
	"sync"
)

// Run executes fn for every task over at most workers goroutines and
// returns exactly one result per task, in completion order. Workers block
// on their task's I/O; there is no cooperative cancellation beyond what fn
// derives from ctx.
func Run[T, R any](ctx context.Context, workers int, tasks []T, fn func(context.Context, T) R) []R {
	if len(tasks) == 0 {
		return nil
	}
	if workers <= 0 {
		workers = 1
	}
	if workers > len(tasks) {
		workers = len(tasks)
	}

	taskCh := make(chan T)
	resultCh := make(chan R)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range taskCh {
				resultCh <- fn(ctx, task)
			}
		}()
	}

	go func() {
		for _, task := range tasks {
			taskCh <- task
		}
		close(taskCh)
	}()

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	results := make([]R, 0, len(tasks))
	for r := range resultCh {
		results = append(results, r)
	}
	return results
}
