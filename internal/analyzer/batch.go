package analyzer

import (
	"context"
	"errors"
	"sync"

	"github.com/virail/studio/internal/model"
)

// maxBatch caps how many inputs a single batch may analyze.
const maxBatch = 100

// ErrBatchTooLarge is returned when a batch exceeds maxBatch inputs.
var ErrBatchTooLarge = errors.New("analyzer: too many inputs in one batch")

// BatchOutcome is the result of one input of a batch. Exactly one of Result
// and Err is set.
type BatchOutcome struct {
	Input  Input
	Result *model.AnalysisResult
	Err    error
}

// Batch analyzes many inputs with a bounded pool of controllers.
type Batch struct {
	// NewController returns the controller a worker uses for its inputs.
	NewController func() *Controller
	Concurrency   int
	Retry         RetryPolicy
}

// Run analyzes inputs and returns their outcomes in input order.
func (b Batch) Run(ctx context.Context, inputs []Input) ([]BatchOutcome, error) {
	if len(inputs) > maxBatch {
		return nil, ErrBatchTooLarge
	}
	outcomes := make([]BatchOutcome, len(inputs))
	if len(inputs) == 0 {
		return outcomes, nil
	}

	jobs := make(chan int, len(inputs))
	numWorkers := min(len(inputs), max(b.Concurrency, 1))

	var wg sync.WaitGroup
	for range numWorkers {
		wg.Go(func() {
			// A controller runs one analysis at a time, so each worker owns one.
			ctrl := b.NewController()
			for i := range jobs {
				in := inputs[i]
				result, err := RunWithRetries(ctx, ctrl, in, b.Retry)
				outcomes[i] = BatchOutcome{Input: in, Result: result, Err: err}
			}
		})
	}

	for i := range inputs {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return outcomes, nil
}
