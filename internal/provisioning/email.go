package provisioning

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"onboard/internal/identity"
	"onboard/internal/notify/action"
	"onboard/pkg/platform/sentinel"
)

var ErrInvalidHandle = errors.New("handle is not a valid mailbox name")

// EmailService allocates and commits work email addresses.
type EmailService struct {
	directory Directory
	allocator *identity.Allocator
	domain    string
	options
}

func NewEmailService(directory Directory, allocator *identity.Allocator, domain string, opts ...Option) (*EmailService, error) {
	if directory == nil {
		return nil, errors.New("directory is required")
	}
	if allocator == nil {
		return nil, errors.New("allocator is required")
	}
	domain = strings.TrimPrefix(domain, "@")
	if domain == "" {
		return nil, errors.New("email domain is required")
	}
	return &EmailService{
		directory: directory,
		allocator: allocator,
		domain:    domain,
		options:   newOptions(opts),
	}, nil
}

// Address turns a handle into a full address.
func (s *EmailService) Address(handle string) string {
	return handle + "@" + s.domain
}

// Provision claims the first free handle for the target and returns the address.
func (s *EmailService) Provision(ctx context.Context, target action.EmailTarget) (address string, err error) {
	ctx, span := s.tracer.Start(ctx, "provisioning.email")
	start := time.Now()
	defer func() {
		s.metrics.ObserveProvision(string(action.KindProvisionEmail), err == nil, time.Since(start))
		endSpan(span, err, attribute.String("record_id", target.RecordID), attribute.String("address", address))
	}()

	probe := func(ctx context.Context, handle string) (bool, error) {
		return s.directory.IsActive(ctx, s.Address(handle))
	}
	handle, err := s.allocator.Claim(ctx, target.Name, probe, s.commitFor(target.RecordID))
	if err != nil {
		s.logger.WarnContext(ctx, "email provisioning failed",
			"record_id", target.RecordID,
			"error", err,
		)
		return "", err
	}

	address = s.Address(handle)
	s.logger.InfoContext(ctx, "email provisioned", "record_id", target.RecordID, "address", address)
	return address, nil
}

// Assign commits an operator-chosen handle in a single attempt. A conflict is
// returned as is; no suffix search happens.
func (s *EmailService) Assign(ctx context.Context, target action.EmailTarget, handle string) (address string, err error) {
	ctx, span := s.tracer.Start(ctx, "provisioning.email.assign")
	start := time.Now()
	defer func() {
		s.metrics.ObserveProvision(string(action.KindAssignEmail), err == nil, time.Since(start))
		endSpan(span, err, attribute.String("record_id", target.RecordID), attribute.String("address", address))
	}()

	normalized := identity.Slug(handle)
	if normalized == "" || normalized != strings.ToLower(strings.TrimSpace(handle)) {
		return "", fmt.Errorf("%w: %q", ErrInvalidHandle, handle)
	}
	if err := s.commitFor(target.RecordID)(ctx, normalized); err != nil {
		s.logger.WarnContext(ctx, "email assignment failed",
			"record_id", target.RecordID,
			"handle", normalized,
			"error", err,
		)
		return "", err
	}
	return s.Address(normalized), nil
}

func (s *EmailService) commitFor(recordID string) identity.CommitFunc {
	return func(ctx context.Context, handle string) error {
		err := s.directory.Commit(ctx, recordID, s.Address(handle))
		if errors.Is(err, sentinel.ErrAlreadyExists) {
			s.logger.InfoContext(ctx, "email already provisioned", "record_id", recordID, "handle", handle)
			return nil
		}
		return err
	}
}
