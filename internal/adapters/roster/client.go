// Package roster adapts the HR roster API to roster.Source and
// roster.LocationResolver.
package roster

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"onboard/internal/adapters/vendorapi"
	"onboard/internal/platform/upstream"
	"onboard/internal/roster/models"
	"onboard/pkg/platform/sentinel"
)

const (
	hiresPath     = "/open-apis/corehr/v1/pre_hires"
	locationsPath = "/open-apis/corehr/v1/locations/batch_get"

	codeCategoryUnknown = 1161001
	codeLocationMissing = 1161404

	// vendor onboarding states
	statePreparing = 1
	stateReady     = 2

	defaultPageSize = 100
)

var codes = vendorapi.CodeMap{
	codeCategoryUnknown: sentinel.ErrNotFound,
	codeLocationMissing: sentinel.ErrNotFound,
}

type hire struct {
	ID         string `json:"pre_hire_id"`
	Name       string `json:"name"`
	Mobile     string `json:"mobile"`
	LocationID string `json:"work_location_id"`
	State      int    `json:"onboarding_status"`
	OnboardOn  string `json:"onboarding_date"`
	WorkEmail  string `json:"work_email"`
}

type hirePage struct {
	Items     []hire `json:"items"`
	HasMore   bool   `json:"has_more"`
	PageToken string `json:"page_token"`
}

type location struct {
	ID   string `json:"location_id"`
	Name string `json:"name"`
}

type locationPage struct {
	Items []location `json:"items"`
}

type Client struct {
	api      *upstream.Client
	pageSize int
	loc      *time.Location
}

type Option func(*Client)

func WithPageSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// WithLocation sets the zone onboarding dates are interpreted in.
func WithLocation(loc *time.Location) Option {
	return func(c *Client) {
		if loc != nil {
			c.loc = loc
		}
	}
}

func New(api *upstream.Client, opts ...Option) (*Client, error) {
	if api == nil {
		return nil, fmt.Errorf("upstream client is required")
	}
	c := &Client{api: api, pageSize: defaultPageSize, loc: time.UTC}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// FetchRoster pages through every hire of category.
func (c *Client) FetchRoster(ctx context.Context, category models.Category) ([]models.Record, error) {
	var out []models.Record
	token := ""
	for {
		q := url.Values{}
		q.Set("category", string(category))
		q.Set("page_size", strconv.Itoa(c.pageSize))
		if token != "" {
			q.Set("page_token", token)
		}
		page, err := vendorapi.Call[hirePage](ctx, c.api, codes, http.MethodGet, hiresPath+"?"+q.Encode(), nil)
		if err != nil {
			return nil, fmt.Errorf("fetch %s roster: %w", category, err)
		}
		for _, h := range page.Items {
			rec, err := c.toRecord(h, category)
			if err != nil {
				return nil, err
			}
			out = append(out, rec)
		}
		if !page.HasMore || page.PageToken == "" {
			return out, nil
		}
		token = page.PageToken
	}
}

func (c *Client) toRecord(h hire, category models.Category) (models.Record, error) {
	target, err := time.ParseInLocation("2006-01-02", h.OnboardOn, c.loc)
	if err != nil {
		return models.Record{}, fmt.Errorf("hire %s: onboarding date %q: %w", h.ID, h.OnboardOn, err)
	}
	status := models.StatusCompleted
	if h.State == statePreparing || h.State == stateReady {
		status = models.StatusPending
	}
	return models.Record{
		ID:         h.ID,
		Name:       strings.TrimSpace(h.Name),
		Phone:      strings.TrimPrefix(h.Mobile, "+86"),
		Location:   h.LocationID,
		Category:   category,
		Status:     status,
		TargetDate: target,
		HasEmail:   h.WorkEmail != "",
	}, nil
}

// ResolveLocations looks up the location names of one page of records.
func (c *Client) ResolveLocations(ctx context.Context, page []models.Record) (map[string]string, error) {
	seen := make(map[string]struct{}, len(page))
	var ids []string
	for _, r := range page {
		if r.Location == "" {
			continue
		}
		if _, ok := seen[r.Location]; !ok {
			seen[r.Location] = struct{}{}
			ids = append(ids, r.Location)
		}
	}
	if len(ids) == 0 {
		return map[string]string{}, nil
	}

	resp, err := vendorapi.Call[locationPage](ctx, c.api, codes, http.MethodPost, locationsPath,
		map[string][]string{"location_ids": ids})
	if err != nil {
		return nil, fmt.Errorf("resolve locations: %w", err)
	}
	names := make(map[string]string, len(resp.Items))
	for _, l := range resp.Items {
		names[l.ID] = l.Name
	}

	out := make(map[string]string, len(page))
	for _, r := range page {
		if name, ok := names[r.Location]; ok {
			out[r.ID] = name
		}
	}
	return out, nil
}
