package directory

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"onboard/internal/platform/upstream"
	"onboard/pkg/platform/sentinel"
)

const base = "https://mail.vendor.test"

type DirectorySuite struct {
	suite.Suite
	mt     *httpmock.MockTransport
	client *Client
}

func (s *DirectorySuite) SetupTest() {
	s.mt = httpmock.NewMockTransport()
	api := upstream.New("directory", base,
		upstream.WithHTTPClient(&http.Client{Transport: s.mt}),
		upstream.WithRetry(1, time.Millisecond),
	)
	var err error
	s.client, err = New(api)
	s.Require().NoError(err)
}

func TestDirectorySuite(t *testing.T) {
	suite.Run(t, new(DirectorySuite))
}

func (s *DirectorySuite) TestIsActive() {
	s.mt.RegisterResponder(http.MethodGet, base+mailboxesPath+"/liwei@example.com",
		httpmock.NewStringResponder(200, `{"code":0,"data":{"address":"liwei@example.com","status":"active"}}`))
	s.mt.RegisterResponder(http.MethodGet, base+mailboxesPath+"/liwei1@example.com",
		httpmock.NewStringResponder(200, `{"code":0,"data":{"address":"liwei1@example.com","status":"suspended"}}`))
	s.mt.RegisterResponder(http.MethodGet, base+mailboxesPath+"/liwei2@example.com",
		httpmock.NewStringResponder(404, `{"code":1234008,"msg":"mailbox not found"}`))

	ctx := context.Background()
	active, err := s.client.IsActive(ctx, "liwei@example.com")
	s.Require().NoError(err)
	s.True(active)

	active, err = s.client.IsActive(ctx, "liwei1@example.com")
	s.Require().NoError(err)
	s.False(active)

	active, err = s.client.IsActive(ctx, "liwei2@example.com")
	s.Require().NoError(err)
	s.False(active)
}

func (s *DirectorySuite) TestIsActive_OutageIsAnError() {
	s.mt.RegisterResponder(http.MethodGet, base+mailboxesPath+"/x@example.com",
		httpmock.NewStringResponder(503, `oops`))

	_, err := s.client.IsActive(context.Background(), "x@example.com")
	s.ErrorIs(err, sentinel.ErrUnavailable)
}

func (s *DirectorySuite) TestCommit_SendsRecordReference() {
	s.mt.RegisterResponder(http.MethodPost, base+mailboxesPath, func(req *http.Request) (*http.Response, error) {
		var body createMailbox
		s.Require().NoError(json.NewDecoder(req.Body).Decode(&body))
		s.Equal("liwei@example.com", body.Address)
		s.Equal("rec-1", body.ExternalRef)
		return httpmock.NewStringResponse(200, `{"code":0,"data":{"address":"liwei@example.com","status":"active"}}`), nil
	})

	s.NoError(s.client.Commit(context.Background(), "rec-1", "liwei@example.com"))
}

func (s *DirectorySuite) TestCommit_TranslatesVendorCodes() {
	cases := []struct {
		status int
		body   string
		want   error
	}{
		{200, `{"code":1234021,"msg":"address retained"}`, sentinel.ErrDuplicateConflict},
		{409, `{"code":1234021,"msg":"address retained"}`, sentinel.ErrDuplicateConflict},
		{400, `{"code":1234022,"msg":"already bound"}`, sentinel.ErrAlreadyExists},
		{409, `not json`, sentinel.ErrDuplicateConflict},
	}
	for _, tc := range cases {
		s.mt.RegisterResponder(http.MethodPost, base+mailboxesPath, httpmock.NewStringResponder(tc.status, tc.body))
		err := s.client.Commit(context.Background(), "rec-1", "liwei@example.com")
		s.ErrorIs(err, tc.want, "status %d body %s", tc.status, tc.body)
	}
}

func TestNew_RequiresClient(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required")
}
