// Package provisioning creates work emails and ride-service accounts for hires.
package provisioning

//go:generate mockgen -source=provisioning.go -destination=mocks/mocks.go -package=mocks Directory,RideClient

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"onboard/internal/platform/metrics"
)

// Directory is the mail directory. IsActive reports whether an address belongs
// to an active account. Commit creates the mailbox and records it on the roster
// record; it returns sentinel.ErrDuplicateConflict when the address is held by a
// retired account and sentinel.ErrAlreadyExists when the record already has it.
type Directory interface {
	IsActive(ctx context.Context, address string) (bool, error)
	Commit(ctx context.Context, recordID, address string) error
}

type RideRequest struct {
	RecordID string
	Name     string
	Phone    string
	RuleID   string
}

type RideResult struct {
	AccountID      string
	AlreadyExisted bool
}

// RideClient opens accounts on the ride-service platform. An existing account
// for the same phone is reported as sentinel.ErrAlreadyExists.
type RideClient interface {
	CreateAccount(ctx context.Context, req RideRequest) (RideResult, error)
}

type options struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

type Option func(*options)

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(o *options) {
		o.tracer = t
	}
}

func newOptions(opts []Option) options {
	o := options{
		logger: slog.Default(),
		tracer: otel.Tracer("onboard/provisioning"),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func endSpan(span trace.Span, err error, attrs ...attribute.KeyValue) {
	span.SetAttributes(attrs...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
