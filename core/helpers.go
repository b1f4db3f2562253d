package orchestration

import (
	"context"
	"fmt"
)

type workerRun func(context.Context) error

func panicSafeNamedWorker(name string, run func(context.Context) error) workerRun {
	return func(ctx context.Context) (err error) {
		defer func() {
			if recovered := recover(); recovered != nil {
				err = fmt.Errorf("%s worker panicked: %v", name, recovered)
			}
		}()

		if err = run(ctx); err != nil {
			return fmt.Errorf("%s worker failed: %w", name, err)
		}

		return nil
	}
}

// goWorker runs a panic-safe worker on its own goroutine and logs its
// failure. done, when not nil, is closed once the worker returns.
func goWorker(ctx context.Context, name string, run func(context.Context) error, done chan<- struct{}) {
	worker := panicSafeNamedWorker(name, run)
	go func() {
		if done != nil {
			defer close(done)
		}
		if err := worker(ctx); err != nil {
			logger.Error("worker stopped", "worker", name, "error", err)
		}
	}()
}

func clamp01(v float64) float64 {
	if v != v || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
