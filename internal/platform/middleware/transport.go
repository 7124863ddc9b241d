package middleware

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/virail/studio/internal/platform/requestid"
)

// RoundTripperFunc adapts a function to http.RoundTripper.
type RoundTripperFunc func(*http.Request) (*http.Response, error)

// RoundTrip implements http.RoundTripper.
func (f RoundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

// PropagateRequestID wraps an outgoing transport so every request carries the
// request ID from its context, generating one when the context has none.
func PropagateRequestID(next http.RoundTripper) http.RoundTripper {
	return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
		if r.Header.Get(requestid.Header) != "" {
			return next.RoundTrip(r)
		}
		ctx, id := requestid.Ensure(r.Context())
		r = r.Clone(ctx)
		r.Header.Set(requestid.Header, id)
		return next.RoundTrip(r)
	})
}

// LogRoundTrips wraps an outgoing transport and logs every backend call at
// debug level, and transport failures at warn level.
func LogRoundTrips(logger *zap.Logger, next http.RoundTripper) http.RoundTripper {
	return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
		start := time.Now()
		resp, err := next.RoundTrip(r)

		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", r.Header.Get(requestid.Header)),
		}
		if err != nil {
			logger.Warn("backend call failed", append(fields, zap.Error(err))...)
			return nil, err
		}
		logger.Debug("backend call", append(fields, zap.Int("status", resp.StatusCode))...)
		return resp, nil
	})
}
