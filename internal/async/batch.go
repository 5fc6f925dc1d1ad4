package async

import (
	"context"
	"sort"

	"github.com/google/uuid"
)

// RunBatch enqueues every path under one run ID, shuts the queue down and
// returns the results in input order. The queue cannot be reused afterwards.
func RunBatch(ctx context.Context, q *ProcessorQueue, paths []string) (uuid.UUID, []Result, error) {
	run := uuid.New()
	order := make(map[uuid.UUID]int, len(paths))

	collected := make(chan []Result, 1)
	go func() {
		var out []Result
		for r := range q.Results() {
			out = append(out, r)
		}
		collected <- out
	}()

	var enqueueErr error
	for i, p := range paths {
		job := NewJob(run, p)
		order[job.ID] = i
		if err := q.Enqueue(ctx, job); err != nil {
			enqueueErr = err
			break
		}
	}
	q.Shutdown(ctx)

	var results []Result
	select {
	case results = <-collected:
	case <-ctx.Done():
		return run, nil, ctx.Err()
	}
	sort.SliceStable(results, func(i, j int) bool {
		return order[results[i].Job.ID] < order[results[j].Job.ID]
	})
	return run, results, enqueueErr
}
