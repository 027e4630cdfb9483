package repository

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/shuldan/cqrs-sqlite"

var (
	attrAggregate = attribute.Key("repository.aggregate")
	attrOperation = attribute.Key("repository.operation")
	attrAffected  = attribute.Key("repository.affected_rows")
)

func startSpan(ctx context.Context, tracer trace.Tracer, aggregate, op string) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{attrOperation.String(op)}
	if aggregate != "" {
		attrs = append(attrs, attrAggregate.String(aggregate))
	}
	return tracer.Start(ctx, "repository."+op, trace.WithAttributes(attrs...))
}

// endSpan records err on span and ends it. It returns err unchanged.
func endSpan(span trace.Span, err error) error {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
	return err
}
