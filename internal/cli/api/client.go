package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// ErrNotFound is returned when the tenant has no stored config.
var ErrNotFound = errors.New("tenant config not found")

// Client is the interface for the server's admin API
type Client interface {
	GetConfig(ctx context.Context, tenantID string) (*TenantConfig, error)
	SetConfig(ctx context.Context, tenantID string, req *SetConfigRequest) (*TenantConfig, error)
	DeleteConfig(ctx context.Context, tenantID string) error
}

// HTTPClient talks to the admin API over HTTP.
type HTTPClient struct {
	r *resty.Client
}

func NewHTTPClient() *HTTPClient {
	return &HTTPClient{r: resty.New().SetTimeout(30 * time.Second)}
}

// Configure sets the server URL and admin token. Called once flags are parsed.
func (c *HTTPClient) Configure(serverURL, token string) {
	c.r.SetBaseURL(strings.TrimRight(serverURL, "/"))
	if token != "" {
		c.r.SetAuthToken(token)
	}
}

const configPath = "/admin/tenants/{tenantID}/config"

func (c *HTTPClient) GetConfig(ctx context.Context, tenantID string) (*TenantConfig, error) {
	var out TenantConfig
	resp, err := c.r.R().
		SetContext(ctx).
		SetPathParam("tenantID", tenantID).
		SetResult(&out).
		Get(configPath)
	if err != nil {
		return nil, fmt.Errorf("get config: %w", err)
	}
	if err := checkResponse(resp); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) SetConfig(ctx context.Context, tenantID string, req *SetConfigRequest) (*TenantConfig, error) {
	var out TenantConfig
	var verr ValidationError
	resp, err := c.r.R().
		SetContext(ctx).
		SetPathParam("tenantID", tenantID).
		SetBody(req).
		SetResult(&out).
		SetError(&verr).
		Put(configPath)
	if err != nil {
		return nil, fmt.Errorf("set config: %w", err)
	}
	if resp.StatusCode() == http.StatusUnprocessableEntity {
		return nil, fmt.Errorf("%s: %s", verr.Field, verr.Error)
	}
	if err := checkResponse(resp); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) DeleteConfig(ctx context.Context, tenantID string) error {
	resp, err := c.r.R().
		SetContext(ctx).
		SetPathParam("tenantID", tenantID).
		Delete(configPath)
	if err != nil {
		return fmt.Errorf("delete config: %w", err)
	}
	return checkResponse(resp)
}

func checkResponse(resp *resty.Response) error {
	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return ErrNotFound
	case resp.IsError():
		return fmt.Errorf("server returned %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
	}
	return nil
}
