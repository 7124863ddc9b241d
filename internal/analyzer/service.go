package analyzer

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/virail/studio/internal/model"
	"github.com/virail/studio/internal/platform/errs"
	"github.com/virail/studio/internal/platform/requestid"
)

// Service runs stateless analyses for concurrent callers such as the HTTP
// proxy. Unlike a Controller it tracks no progress and allows any number of
// runs at once.
type Service struct {
	exec    Executor
	logger  *zap.Logger
	metrics MetricsRecorder
}

// NewService creates a Service backed by the given executor.
func NewService(exec Executor, logger *zap.Logger, metrics MetricsRecorder) *Service {
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	return &Service{exec: exec, logger: logger, metrics: metrics}
}

// Analyze delegates to the executor and logs the outcome. Failures are
// returned as *errs.AnalysisError; invalid input returns ErrInvalidInput.
func (s *Service) Analyze(ctx context.Context, in Input) (*model.AnalysisResult, error) {
	in, err := in.normalize()
	if err != nil {
		return nil, err
	}
	logger := s.logger.With(
		zap.String("subject", in.Subject()),
		zap.String("input_type", in.Type()),
		zap.String("request_id", requestid.FromContext(ctx)),
	)

	began := time.Now()
	result, err := execute(ctx, s.exec, in)
	elapsed := time.Since(began)

	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, context.DeadlineExceeded) {
			err = errors.Join(err, ctx.Err())
		}
		aerr := classify(err, in)
		s.metrics.RecordAnalysis(ctx, in.Type(), elapsed, aerr)

		fields := []zap.Field{
			zap.Stringer("kind", aerr.Kind),
			zap.Bool("retryable", aerr.Retryable),
			zap.Error(err),
		}
		var apiErr *errs.APIError
		if errors.As(err, &apiErr) {
			fields = append(fields, zap.Int("upstream_status", apiErr.StatusCode))
		}
		logger.Error("analysis failed", fields...)
		return nil, aerr
	}

	s.metrics.RecordAnalysis(ctx, in.Type(), elapsed, nil)
	logger.Info("analysis complete",
		zap.String("id", result.ID),
		zap.String("status", result.Status),
		zap.Float64("score", result.Score),
		zap.Duration("elapsed", elapsed),
	)
	return result, nil
}
