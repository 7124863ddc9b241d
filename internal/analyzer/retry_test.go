package analyzer

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/virail/studio/internal/model"
	"github.com/virail/studio/internal/platform/errs"
)

// scriptedExecutor returns its outcomes in order, repeating the last one.
type scriptedExecutor struct {
	mu       sync.Mutex
	outcomes []outcome
	calls    int
}

func (s *scriptedExecutor) next() (*model.AnalysisResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := s.outcomes[min(s.calls, len(s.outcomes)-1)]
	s.calls++
	return o.result, o.err
}

func (s *scriptedExecutor) AnalyzeWebsite(context.Context, string) (*model.AnalysisResult, error) {
	return s.next()
}

func (s *scriptedExecutor) AnalyzeFile(context.Context, string, io.Reader) (*model.AnalysisResult, error) {
	return s.next()
}

func (s *scriptedExecutor) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func failedState(kind errs.Kind) State {
	return State{Phase: Failed, LastError: &errs.AnalysisError{Kind: kind, Retryable: kind.Retryable()}}
}

func TestCanRetry(t *testing.T) {
	tests := []struct {
		name  string
		state State
		want  bool
	}{
		{"idle", State{Phase: Idle}, false},
		{"running", State{Phase: Running, Progress: 30}, false},
		{"succeeded", State{Phase: Succeeded, Progress: 100}, false},
		{"failed without error", State{Phase: Failed}, false},
		{"network", failedState(errs.Network), true},
		{"server", failedState(errs.Server), true},
		{"unknown", failedState(errs.Unknown), true},
		{"compatibility", failedState(errs.Compatibility), false},
		{"content", failedState(errs.Content), false},
		{"quota", failedState(errs.Quota), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanRetry(tt.state))
		})
	}
}

func TestRetry_ClearsRetryableFailure(t *testing.T) {
	got := Retry(failedState(errs.Server))

	assert.Equal(t, State{Phase: Idle}, got)
	assert.False(t, CanRetry(got))
}

func TestRetry_RejectedLeavesStateUnchanged(t *testing.T) {
	s := failedState(errs.Quota)

	got := Retry(s)

	assert.Equal(t, s, got)
	assert.Same(t, s.LastError, got.LastError)
}

func TestControllerRetry(t *testing.T) {
	exec := &scriptedExecutor{outcomes: []outcome{{err: errors.New("HTTP 422: unprocessable")}}}
	ctrl := NewController(exec, WithTickInterval(time.Hour))

	_, err := ctrl.Start(context.Background(), WebsiteInput("https://example.com"))
	require.Error(t, err)
	before := ctrl.State().LastError

	assert.False(t, ctrl.Retry())
	assert.Same(t, before, ctrl.State().LastError)
	assert.Equal(t, Failed, ctrl.State().Phase)

	exec.outcomes = []outcome{{err: errors.New("502 Bad Gateway")}}
	_, err = ctrl.Start(context.Background(), WebsiteInput("https://example.com"))
	require.Error(t, err)

	assert.True(t, ctrl.Retry())
	assert.Equal(t, State{Phase: Idle}, ctrl.State())
}

func TestRunWithRetries_RecoversFromTransientFailure(t *testing.T) {
	exec := &scriptedExecutor{outcomes: []outcome{
		{err: errors.New("connection timed out")},
		{err: errors.New("503 Service Unavailable")},
		{result: &model.AnalysisResult{ID: "a1"}},
	}}
	ctrl := NewController(exec, WithTickInterval(time.Hour))

	result, err := RunWithRetries(context.Background(), ctrl, WebsiteInput("https://example.com"), RetryPolicy{Attempts: 3})

	require.NoError(t, err)
	assert.Equal(t, "a1", result.ID)
	assert.Equal(t, 3, exec.callCount())
	assert.Equal(t, Succeeded, ctrl.State().Phase)
}

func TestRunWithRetries_StopsOnNonRetryable(t *testing.T) {
	exec := &scriptedExecutor{outcomes: []outcome{{err: errors.New("blocked by captcha")}}}
	ctrl := NewController(exec, WithTickInterval(time.Hour))

	_, err := RunWithRetries(context.Background(), ctrl, WebsiteInput("https://example.com"), RetryPolicy{Attempts: 5})

	var aerr *errs.AnalysisError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, errs.Compatibility, aerr.Kind)
	assert.Equal(t, 1, exec.callCount())
	assert.Equal(t, Failed, ctrl.State().Phase)
}

func TestRunWithRetries_ExhaustsAttempts(t *testing.T) {
	exec := &scriptedExecutor{outcomes: []outcome{{err: errors.New("500 Internal Server Error")}}}
	ctrl := NewController(exec, WithTickInterval(time.Hour))

	_, err := RunWithRetries(context.Background(), ctrl, WebsiteInput("https://example.com"),
		RetryPolicy{Attempts: 2, Backoff: time.Millisecond})

	require.Error(t, err)
	assert.Equal(t, 3, exec.callCount())
	assert.True(t, CanRetry(ctrl.State()))
}

func TestRunWithRetries_BackoffHonoursContext(t *testing.T) {
	exec := &scriptedExecutor{outcomes: []outcome{{err: errors.New("500 Internal Server Error")}}}
	ctrl := NewController(exec, WithTickInterval(time.Hour))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := RunWithRetries(ctx, ctrl, WebsiteInput("https://example.com"),
		RetryPolicy{Attempts: 3, Backoff: time.Hour})

	require.Error(t, err)
	assert.Equal(t, 1, exec.callCount())

	st := ctrl.State()
	assert.Equal(t, Failed, st.Phase)
	require.NotNil(t, st.LastError)
	assert.Equal(t, errs.Server, st.LastError.Kind)
}
