package repository

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type options struct {
	log        *zap.Logger
	tracer     trace.TracerProvider
	migrations []Migration
}

type Option func(*options)

func WithLogger(log *zap.Logger) Option {
	return func(o *options) {
		if log != nil {
			o.log = log
		}
	}
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		if tp != nil {
			o.tracer = tp
		}
	}
}

// WithMigrations appends migrations applied by EnsureCreated, in order.
func WithMigrations(m ...Migration) Option {
	return func(o *options) {
		o.migrations = append(o.migrations, m...)
	}
}

func buildOptions(opts []Option) options {
	o := options{
		log:    zap.NewNop(),
		tracer: otel.GetTracerProvider(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
