// Package ride adapts the ride-service enterprise API to provisioning.RideClient
// and exposes its policy rules for matching.
package ride

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"onboard/internal/adapters/vendorapi"
	"onboard/internal/platform/upstream"
	"onboard/internal/provisioning"
	"onboard/internal/rules"
	"onboard/pkg/platform/sentinel"
)

const (
	membersPath = "/river/Member/create"
	rulesPath   = "/river/Regulation/get"

	codePhoneRegistered = 50202
	codeRuleMissing     = 50301
	codeQuotaExceeded   = 50010

	ruleStateActive = 1
)

var codes = vendorapi.CodeMap{
	codePhoneRegistered: sentinel.ErrAlreadyExists,
	codeRuleMissing:     sentinel.ErrNotFound,
	codeQuotaExceeded:   sentinel.ErrUnavailable,
}

type createMember struct {
	Phone        string `json:"phone"`
	RealName     string `json:"realname"`
	EmployeeNo   string `json:"employee_number"`
	RegulationID string `json:"regulation_id"`
}

type member struct {
	MemberID string `json:"member_id"`
}

type regulation struct {
	ID        string `json:"regulation_id"`
	Name      string `json:"regulation_name"`
	Category  string `json:"scene_type"`
	State     int    `json:"regulation_status"`
	IsDefault bool   `json:"is_default"`
}

type Client struct {
	api *upstream.Client
}

func New(api *upstream.Client) (*Client, error) {
	if api == nil {
		return nil, fmt.Errorf("upstream client is required")
	}
	return &Client{api: api}, nil
}

// CreateAccount registers the hire under the rule. A phone that is already
// registered yields sentinel.ErrAlreadyExists with the existing member id when
// the vendor reports one.
func (c *Client) CreateAccount(ctx context.Context, req provisioning.RideRequest) (provisioning.RideResult, error) {
	m, err := vendorapi.Call[member](ctx, c.api, codes, http.MethodPost, membersPath, createMember{
		Phone:        req.Phone,
		RealName:     req.Name,
		EmployeeNo:   req.RecordID,
		RegulationID: req.RuleID,
	})
	if errors.Is(err, sentinel.ErrAlreadyExists) {
		return provisioning.RideResult{AccountID: m.MemberID, AlreadyExisted: true}, err
	}
	if err != nil {
		return provisioning.RideResult{}, fmt.Errorf("create member for %s: %w", req.RecordID, err)
	}
	return provisioning.RideResult{AccountID: m.MemberID}, nil
}

// ListRules returns every regulation, active or not.
func (c *Client) ListRules(ctx context.Context) ([]rules.Rule, error) {
	regs, err := vendorapi.Call[[]regulation](ctx, c.api, codes, http.MethodGet, rulesPath, nil)
	if err != nil {
		return nil, fmt.Errorf("list regulations: %w", err)
	}
	out := make([]rules.Rule, 0, len(regs))
	for _, r := range regs {
		out = append(out, rules.Rule{
			ID:       r.ID,
			Name:     r.Name,
			Category: r.Category,
			Active:   r.State == ruleStateActive,
			Default:  r.IsDefault,
		})
	}
	return out, nil
}
