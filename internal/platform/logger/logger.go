package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a structured JSON logger with caller location enabled.
// Level should be a valid level string: DEBUG, INFO, WARN, ERROR.
// Unrecognized values default to ERROR.
func New(level string) *zap.Logger {
	return NewWithSink(level, zapcore.Lock(os.Stderr))
}

// NewWithSink is New writing to the given sink.
func NewWithSink(level string, sink zapcore.WriteSyncer) *zap.Logger {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.ErrorLevel
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "time"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), sink, lvl)
	return zap.New(core, zap.AddCaller())
}
