package provisioning

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"onboard/internal/notify/action"
	"onboard/pkg/platform/sentinel"
)

// Gate spaces calls to the ride-service platform.
type Gate interface {
	Wait(ctx context.Context) error
}

// RideService opens ride-service accounts through a shared throttle gate.
type RideService struct {
	client RideClient
	gate   Gate
	options
}

func NewRideService(client RideClient, gate Gate, opts ...Option) (*RideService, error) {
	if client == nil {
		return nil, errors.New("ride client is required")
	}
	if gate == nil {
		return nil, errors.New("throttle gate is required")
	}
	return &RideService{client: client, gate: gate, options: newOptions(opts)}, nil
}

// Provision opens an account for the target. An account that already exists
// counts as success.
func (s *RideService) Provision(ctx context.Context, target action.RideTarget) (result RideResult, err error) {
	ctx, span := s.tracer.Start(ctx, "provisioning.ride")
	start := time.Now()
	defer func() {
		s.metrics.ObserveProvision(string(action.KindProvisionRide), err == nil, time.Since(start))
		endSpan(span, err,
			attribute.String("record_id", target.RecordID),
			attribute.String("rule_id", target.RuleID),
			attribute.Bool("already_existed", result.AlreadyExisted),
		)
	}()

	if err := s.gate.Wait(ctx); err != nil {
		return RideResult{}, err
	}

	result, err = s.client.CreateAccount(ctx, RideRequest{
		RecordID: target.RecordID,
		Name:     target.Name,
		Phone:    target.Phone,
		RuleID:   target.RuleID,
	})
	if errors.Is(err, sentinel.ErrAlreadyExists) {
		s.logger.InfoContext(ctx, "ride account already exists", "record_id", target.RecordID)
		return RideResult{AccountID: result.AccountID, AlreadyExisted: true}, nil
	}
	if err != nil {
		s.logger.WarnContext(ctx, "ride provisioning failed",
			"record_id", target.RecordID,
			"rule_id", target.RuleID,
			"error", err,
		)
		return RideResult{}, err
	}
	s.logger.InfoContext(ctx, "ride account opened", "record_id", target.RecordID, "account_id", result.AccountID)
	return result, nil
}
