package provisioning_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"onboard/internal/identity"
	"onboard/internal/notify/action"
	"onboard/internal/platform/throttle"
	"onboard/internal/provisioning"
	"onboard/internal/provisioning/mocks"
	"onboard/pkg/platform/sentinel"
)

// =============================================================================
// Email Service Test Suite
// =============================================================================

type EmailServiceSuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	directory *mocks.MockDirectory
	service   *provisioning.EmailService
	ctx       context.Context
}

func TestEmailServiceSuite(t *testing.T) {
	suite.Run(t, new(EmailServiceSuite))
}

func (s *EmailServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.directory = mocks.NewMockDirectory(s.ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	var err error
	s.service, err = provisioning.NewEmailService(s.directory, identity.New(), "@example.com", provisioning.WithLogger(logger))
	s.Require().NoError(err)
	s.ctx = context.Background()
}

func (s *EmailServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

var lee = action.EmailTarget{RecordID: "rec-1", Name: "Lee Wei"}

func (s *EmailServiceSuite) TestNew() {
	s.Run("nil directory returns error", func() {
		_, err := provisioning.NewEmailService(nil, identity.New(), "example.com")
		s.ErrorContains(err, "directory is required")
	})
	s.Run("empty domain returns error", func() {
		_, err := provisioning.NewEmailService(s.directory, identity.New(), "@")
		s.ErrorContains(err, "domain is required")
	})
}

func (s *EmailServiceSuite) TestProvision_FreeBase() {
	s.directory.EXPECT().IsActive(gomock.Any(), "lee.wei@example.com").Return(false, nil)
	s.directory.EXPECT().Commit(gomock.Any(), "rec-1", "lee.wei@example.com").Return(nil)

	addr, err := s.service.Provision(s.ctx, lee)
	s.Require().NoError(err)
	s.Equal("lee.wei@example.com", addr)
}

func (s *EmailServiceSuite) TestProvision_SkipsActiveAndRetiredHandles() {
	gomock.InOrder(
		s.directory.EXPECT().IsActive(gomock.Any(), "lee.wei@example.com").Return(true, nil),
		s.directory.EXPECT().IsActive(gomock.Any(), "lee.wei1@example.com").Return(false, nil),
		s.directory.EXPECT().Commit(gomock.Any(), "rec-1", "lee.wei1@example.com").Return(sentinel.ErrDuplicateConflict),
		s.directory.EXPECT().IsActive(gomock.Any(), "lee.wei3@example.com").Return(false, nil),
		s.directory.EXPECT().Commit(gomock.Any(), "rec-1", "lee.wei3@example.com").Return(nil),
	)

	addr, err := s.service.Provision(s.ctx, lee)
	s.Require().NoError(err)
	s.Equal("lee.wei3@example.com", addr)
}

func (s *EmailServiceSuite) TestProvision_AlreadyProvisionedIsSuccess() {
	s.directory.EXPECT().IsActive(gomock.Any(), gomock.Any()).Return(false, nil)
	s.directory.EXPECT().Commit(gomock.Any(), "rec-1", "lee.wei@example.com").Return(sentinel.ErrAlreadyExists)

	addr, err := s.service.Provision(s.ctx, lee)
	s.Require().NoError(err)
	s.Equal("lee.wei@example.com", addr)
}

func (s *EmailServiceSuite) TestProvision_PermanentErrorAborts() {
	boom := errors.New("directory quota exceeded")
	s.directory.EXPECT().IsActive(gomock.Any(), gomock.Any()).Return(false, nil)
	s.directory.EXPECT().Commit(gomock.Any(), gomock.Any(), gomock.Any()).Return(boom)

	_, err := s.service.Provision(s.ctx, lee)
	s.ErrorIs(err, boom)
}

func (s *EmailServiceSuite) TestAssign() {
	s.Run("commits the chosen handle once", func() {
		s.directory.EXPECT().Commit(gomock.Any(), "rec-1", "lee.w@example.com").Return(nil)
		addr, err := s.service.Assign(s.ctx, lee, "Lee.W")
		s.Require().NoError(err)
		s.Equal("lee.w@example.com", addr)
	})

	s.Run("conflict is not retried", func() {
		s.directory.EXPECT().Commit(gomock.Any(), "rec-1", "lee.w@example.com").Return(sentinel.ErrDuplicateConflict)
		_, err := s.service.Assign(s.ctx, lee, "lee.w")
		s.ErrorIs(err, sentinel.ErrDuplicateConflict)
	})

	s.Run("invalid handle rejected without calls", func() {
		_, err := s.service.Assign(s.ctx, lee, "lee w@x")
		s.ErrorIs(err, provisioning.ErrInvalidHandle)
	})
}

// =============================================================================
// Ride Service Test Suite
// =============================================================================

type RideServiceSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	client  *mocks.MockRideClient
	service *provisioning.RideService
}

func TestRideServiceSuite(t *testing.T) {
	suite.Run(t, new(RideServiceSuite))
}

func (s *RideServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.client = mocks.NewMockRideClient(s.ctrl)
	var err error
	s.service, err = provisioning.NewRideService(s.client, throttle.New(0))
	s.Require().NoError(err)
}

var rideTarget = action.RideTarget{RecordID: "rec-1", Name: "Lee Wei", Phone: "13800001234", RuleID: "rule-9"}

func (s *RideServiceSuite) TestProvision_Opens() {
	s.client.EXPECT().CreateAccount(gomock.Any(), provisioning.RideRequest{
		RecordID: "rec-1", Name: "Lee Wei", Phone: "13800001234", RuleID: "rule-9",
	}).Return(provisioning.RideResult{AccountID: "acc-1"}, nil)

	res, err := s.service.Provision(context.Background(), rideTarget)
	s.Require().NoError(err)
	s.Equal("acc-1", res.AccountID)
	s.False(res.AlreadyExisted)
}

func (s *RideServiceSuite) TestProvision_AlreadyExistsIsSuccess() {
	s.client.EXPECT().CreateAccount(gomock.Any(), gomock.Any()).
		Return(provisioning.RideResult{}, sentinel.ErrAlreadyExists)

	res, err := s.service.Provision(context.Background(), rideTarget)
	s.Require().NoError(err)
	s.True(res.AlreadyExisted)
}

func (s *RideServiceSuite) TestProvision_Failure() {
	s.client.EXPECT().CreateAccount(gomock.Any(), gomock.Any()).
		Return(provisioning.RideResult{}, sentinel.ErrUnavailable)

	_, err := s.service.Provision(context.Background(), rideTarget)
	s.ErrorIs(err, sentinel.ErrUnavailable)
}

func (s *RideServiceSuite) TestProvision_GateCancelled() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	svc, err := provisioning.NewRideService(s.client, blockedGate{})
	s.Require().NoError(err)

	_, err = svc.Provision(ctx, rideTarget)
	s.ErrorIs(err, context.Canceled)
}

type blockedGate struct{}

func (blockedGate) Wait(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}
