// Package directory adapts the mail directory API to provisioning.Directory.
package directory

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"onboard/internal/adapters/vendorapi"
	"onboard/internal/platform/upstream"
	"onboard/pkg/platform/sentinel"
)

const (
	mailboxesPath = "/open-apis/mail/v1/mailboxes"

	codeMailboxMissing  = 1234008
	codeAddressRetained = 1234021 // address still reserved by a departed account
	codeAddressBound    = 1234022 // record already owns this address
)

var codes = vendorapi.CodeMap{
	codeMailboxMissing:  sentinel.ErrNotFound,
	codeAddressRetained: sentinel.ErrDuplicateConflict,
	codeAddressBound:    sentinel.ErrAlreadyExists,
}

type mailbox struct {
	Address string `json:"address"`
	Status  string `json:"status"`
}

type createMailbox struct {
	Address     string `json:"address"`
	ExternalRef string `json:"external_ref"`
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

// IsActive reports whether address belongs to an active mailbox. Missing and
// suspended mailboxes are both reported as inactive.
func (c *Client) IsActive(ctx context.Context, address string) (bool, error) {
	mb, err := vendorapi.Call[mailbox](ctx, c.api, codes, http.MethodGet, mailboxesPath+"/"+url.PathEscape(address), nil)
	if errors.Is(err, sentinel.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup %s: %w", address, err)
	}
	return mb.Status == "active", nil
}

// Commit creates the mailbox and binds it to the roster record.
func (c *Client) Commit(ctx context.Context, recordID, address string) error {
	_, err := vendorapi.Call[mailbox](ctx, c.api, codes, http.MethodPost, mailboxesPath,
		createMailbox{Address: address, ExternalRef: recordID})
	if err != nil {
		return fmt.Errorf("create %s for %s: %w", address, recordID, err)
	}
	return nil
}
