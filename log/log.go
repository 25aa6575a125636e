// Package log is the structured logger of the service, backed by zap.
package log

import (
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type (
	// Logger is a contract for the logger.
	Logger interface {
		Debugf(format string, args ...interface{})
		Infof(format string, args ...interface{})
		Info(args ...interface{})
		Warnf(format string, args ...interface{})
		Errorf(format string, args ...interface{})
		Error(args ...interface{})
		Fatalf(format string, args ...interface{})
		Fatal(args ...interface{})
		With(args ...interface{}) Logger
		Flush() error
	}

	// Option tunes the logger built by New.
	Option func(*options)

	options struct {
		out      zapcore.WriteSyncer
		console  bool
		sampling bool
	}

	zapLogger struct {
		sugar *zap.SugaredLogger
	}
)

// WithOutput sends entries to w instead of stdout.
func WithOutput(w zapcore.WriteSyncer) Option {
	return func(o *options) { o.out = w }
}

// WithConsole switches from JSON lines to the human readable console encoder.
func WithConsole() Option {
	return func(o *options) { o.console = true }
}

// WithSampling keeps the first 100 identical entries per second and every 100th after that, so a
// controller pushing telemetry in a tight loop can't flood the output.
func WithSampling() Option {
	return func(o *options) { o.sampling = true }
}

// New initializes and returns a new instance of a logger. An unknown level falls back to info.
func New(appID, logLevel string, opts ...Option) *zapLogger { //nolint
	o := options{out: zapcore.Lock(os.Stdout)}
	for _, opt := range opts {
		opt(&o)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	enc := zapcore.NewJSONEncoder(encCfg)
	if o.console {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	lvl, lvlErr := zapcore.ParseLevel(logLevel)
	if lvlErr != nil || logLevel == "" {
		lvl = zapcore.InfoLevel
	}

	core := zapcore.NewCore(enc, o.out, zap.NewAtomicLevelAt(lvl))
	if o.sampling {
		core = zapcore.NewSamplerWithOptions(core, time.Second, 100, 100)
	}

	l := &zapLogger{sugar: zap.New(core).Sugar().With("svc", appID)}
	if lvlErr != nil && logLevel != "" {
		l.Warnf("invalid log level [%s], using info", logLevel)
	}
	return l
}

// NewNop returns a logger that discards everything.
func NewNop() Logger {
	return &zapLogger{sugar: zap.NewNop().Sugar()}
}

func (l *zapLogger) Debugf(format string, args ...interface{}) { l.sugar.Debugf(format, args...) }
func (l *zapLogger) Infof(format string, args ...interface{}) { l.sugar.Infof(format, args...) }
func (l *zapLogger) Info(args ...interface{}) { l.sugar.Info(args...) }
func (l *zapLogger) Warnf(format string, args ...interface{}) { l.sugar.Warnf(format, args...) }
func (l *zapLogger) Errorf(format string, args ...interface{}) { l.sugar.Errorf(format, args...) }
func (l *zapLogger) Error(args ...interface{}) { l.sugar.Error(args...) }
func (l *zapLogger) Fatalf(format string, args ...interface{}) { l.sugar.Fatalf(format, args...) }
func (l *zapLogger) Fatal(args ...interface{}) { l.sugar.Fatal(args...) }

// With returns a child logger carrying the given key-value pairs.
func (l *zapLogger) With(args ...interface{}) Logger {
	return &zapLogger{sugar: l.sugar.With(args...)}
}

// Flush writes out buffered entries.
func (l *zapLogger) Flush() error {
	return l.sugar.Sync()
}
