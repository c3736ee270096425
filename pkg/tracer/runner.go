package tracer

import (
	"context"

	"github.com/hbagdi/tracepulse/pkg/pool"
)

type keyedResult struct {
	target    string
	breakdown *TimingBreakdown
}

// TraceConcurrent probes every target repetitions times through a bounded
// worker pool and groups results by target. Each target's list holds
// exactly repetitions entries in completion order; probes finish out of
// sequence depending on per-task network latency. A failed probe
// contributes a breakdown carrying its error, never a dropped task.
func (t *Tracer) TraceConcurrent(ctx context.Context, targets []string, template Request, repetitions, workers int) map[string][]*TimingBreakdown {
	if repetitions <= 0 {
		repetitions = 1
	}
	if workers <= 0 {
		workers = DefaultWorkers
	}

	tasks := make([]string, 0, len(targets)*repetitions)
	for _, target := range targets {
		for i := 0; i < repetitions; i++ {
			tasks = append(tasks, target)
		}
	}

	results := pool.Run(ctx, workers, tasks, func(ctx context.Context, target string) keyedResult {
		req := template
		req.URL = target
		return keyedResult{target: target, breakdown: t.Trace(ctx, req)}
	})

	grouped := make(map[string][]*TimingBreakdown, len(targets))
	for _, target := range targets {
		if _, ok := grouped[target]; !ok {
			grouped[target] = make([]*TimingBreakdown, 0, repetitions)
		}
	}
	for _, r := range results {
		grouped[r.target] = append(grouped[r.target], r.breakdown)
	}
	return grouped
}
