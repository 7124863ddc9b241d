package analyzer

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/virail/studio/internal/model"
	"github.com/virail/studio/internal/notify"
	"github.com/virail/studio/internal/platform/errs"
	"github.com/virail/studio/internal/platform/requestid"
	"github.com/virail/studio/internal/present"
)

var (
	// ErrAlreadyRunning is returned by Start while another run is in flight.
	ErrAlreadyRunning = errors.New("analyzer: analysis already running")

	// ErrReset is returned by Start when Reset is called before the run
	// finishes. The outcome of the abandoned run is discarded.
	ErrReset = errors.New("analyzer: analysis was reset")
)

// Phase is the position of a controller in its run lifecycle.
type Phase int

const (
	Idle Phase = iota
	Running
	Succeeded
	Failed
)

func (p Phase) String() string {
	switch p {
	case Running:
		return "running"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return "idle"
	}
}

// State is a snapshot of a controller. Result is set only when Phase is
// Succeeded and LastError only when Phase is Failed. Simulated marks a
// Progress value that came from the timer rather than the backend.
type State struct {
	Phase     Phase
	Progress  int
	Simulated bool
	Result    *model.AnalysisResult
	LastError *errs.AnalysisError
}

// Controller runs one analysis at a time and tracks its progress.
type Controller struct {
	exec     Executor
	logger   *zap.Logger
	notifier notify.Notifier
	metrics  MetricsRecorder
	sim      simConfig

	mu      sync.Mutex
	state   State
	gen     uint64
	stopSim func()
	cancel  context.CancelFunc
	subs    map[chan State]struct{}
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithLogger sets the controller logger.
func WithLogger(logger *zap.Logger) ControllerOption {
	return func(c *Controller) { c.logger = logger }
}

// WithNotifier sets where failure toasts go.
func WithNotifier(n notify.Notifier) ControllerOption {
	return func(c *Controller) { c.notifier = n }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m MetricsRecorder) ControllerOption {
	return func(c *Controller) { c.metrics = m }
}

// WithTickInterval sets how often simulated progress advances.
func WithTickInterval(d time.Duration) ControllerOption {
	return func(c *Controller) { c.sim.interval = d }
}

// WithMaxIncrement bounds a single simulated step.
func WithMaxIncrement(n int) ControllerOption {
	return func(c *Controller) { c.sim.maxIncrement = n }
}

// WithCeiling sets the highest value simulated progress may reach. It is
// clamped to 99.
func WithCeiling(n int) ControllerOption {
	return func(c *Controller) { c.sim.ceiling = min(max(n, 0), 99) }
}

// WithRand replaces the source of simulated increments. intN must return a
// value in [0, n).
func WithRand(intN func(n int) int) ControllerOption {
	return func(c *Controller) { c.sim.intN = intN }
}

// WithTicker replaces the timer that drives simulated progress.
func WithTicker(newTicker func(time.Duration) Ticker) ControllerOption {
	return func(c *Controller) { c.sim.newTicker = newTicker }
}

// NewController returns an idle controller running analyses through exec.
func NewController(exec Executor, opts ...ControllerOption) *Controller {
	c := &Controller{
		exec:     exec,
		logger:   zap.NewNop(),
		notifier: notify.Nop{},
		metrics:  NoopMetrics{},
		sim:      defaultSimConfig(),
		subs:     make(map[chan State]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.Named("analysis")
	return c
}

// State returns a snapshot of the controller.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subscribe returns a channel receiving every state change, starting with the
// current state. A slow subscriber misses intermediate states but always sees
// the most recent one. cancel releases the subscription and closes the channel.
func (c *Controller) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 16)

	c.mu.Lock()
	c.subs[ch] = struct{}{}
	ch <- c.state
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, ch)
			c.mu.Unlock()
			close(ch)
		})
	}
}

// publishLocked delivers the current state to subscribers, dropping the
// oldest buffered state when a subscriber is full.
func (c *Controller) publishLocked() {
	for ch := range c.subs {
		for {
			select {
			case ch <- c.state:
			default:
				select {
				case <-ch:
				default:
				}
				continue
			}
			break
		}
	}
}

// Start runs an analysis of in and blocks until it finishes. Progress is
// simulated while the backend call is in flight. On failure the error is
// classified, stored as LastError, reported through the notifier, and
// returned as an *errs.AnalysisError.
func (c *Controller) Start(ctx context.Context, in Input) (*model.AnalysisResult, error) {
	in, err := in.normalize()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.mu.Lock()
	if c.state.Phase == Running {
		c.mu.Unlock()
		return nil, ErrAlreadyRunning
	}
	c.gen++
	gen := c.gen
	c.state = State{Phase: Running, Progress: 0, Simulated: true}
	c.cancel = cancel
	c.stopSim = c.sim.simulate(func() bool { return c.tick(gen) })
	c.publishLocked()
	c.mu.Unlock()

	ctx, reqID := requestid.Ensure(ctx)
	logger := c.logger.With(
		zap.String("subject", in.Subject()),
		zap.String("input_type", in.Type()),
		zap.String("request_id", reqID),
	)
	logger.Debug("analysis started")

	began := time.Now()
	result, err := execute(ctx, c.exec, in)
	elapsed := time.Since(began)

	var aerr *errs.AnalysisError
	if err != nil {
		aerr = classify(err, in)
	}

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		logger.Debug("analysis outcome discarded after reset")
		return nil, ErrReset
	}
	c.stopSim()
	c.stopSim, c.cancel = nil, nil
	if aerr == nil {
		c.state = State{Phase: Succeeded, Progress: 100, Result: result}
	} else {
		c.state = State{Phase: Failed, Progress: 0, LastError: aerr}
	}
	c.publishLocked()
	c.mu.Unlock()

	c.metrics.RecordAnalysis(ctx, in.Type(), elapsed, aerr)
	if aerr != nil {
		c.report(ctx, logger, aerr, true)
		return nil, aerr
	}
	logger.Info("analysis complete", zap.String("id", result.ID), zap.Duration("elapsed", elapsed))
	return result, nil
}

// tick advances simulated progress for run gen. It reports false once the
// run is no longer current so the simulator can exit.
func (c *Controller) tick(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.gen != gen || c.state.Phase != Running {
		return false
	}
	next := c.sim.step(c.state.Progress)
	if next != c.state.Progress {
		c.state.Progress = next
		c.publishLocked()
	}
	return true
}

// Reset returns the controller to Idle, abandoning any run in flight.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gen++
	if c.stopSim != nil {
		c.stopSim()
	}
	if c.cancel != nil {
		c.cancel()
	}
	c.stopSim, c.cancel = nil, nil
	c.state = State{Phase: Idle}
	c.publishLocked()
}

// Retry clears a retryable failure so Start can be called again. It reports
// whether the retry was accepted; a rejected retry changes nothing.
func (c *Controller) Retry() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !CanRetry(c.state) {
		return false
	}
	c.state = Retry(c.state)
	c.publishLocked()
	return true
}

// HandleError classifies raw and, when show is set, notifies the user. It
// never changes the controller state.
func (c *Controller) HandleError(ctx context.Context, raw any, show bool) *errs.AnalysisError {
	aerr := errs.Classify(raw, "")
	c.report(ctx, c.logger, aerr, show)
	return aerr
}

func (c *Controller) report(ctx context.Context, logger *zap.Logger, aerr *errs.AnalysisError, show bool) {
	logger.Error("analysis failed",
		zap.Stringer("kind", aerr.Kind),
		zap.Bool("retryable", aerr.Retryable),
		zap.String("original_error", aerr.OriginalError),
	)
	if !show {
		return
	}
	if err := c.notifier.Notify(ctx, present.Present(aerr).Toast()); err != nil {
		logger.Warn("failed to deliver notification", zap.Error(err))
	}
}

// classify names the subject of in inside the message. Only URL inputs carry
// a URL the user can open.
func classify(err error, in Input) *errs.AnalysisError {
	aerr := errs.Classify(err, in.Subject())
	if in.File != nil {
		aerr.URL = ""
	}
	return aerr
}
