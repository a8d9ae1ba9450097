// Package openstack implements platform.Provider against the Keystone v2
// identity API and the Nova v2 compute API.
package openstack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/juju/errors"

	"tenant-backup/src/platform"
)

const authHeader = "X-Auth-Token"

// Credentials authenticate against the identity service.
type Credentials struct {
	Username      string
	Password      string
	DefaultTenant string
}

// Client talks to Keystone and Nova over HTTP.
type Client struct {
	IdentityURL string
	ComputeURL  string
	Creds       Credentials
	HTTP        *http.Client
	Logger      *slog.Logger
}

// New returns a client with a bounded per-request timeout.
func New(identityURL, computeURL string, creds Credentials, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		IdentityURL: strings.TrimRight(identityURL, "/"),
		ComputeURL:  strings.TrimRight(computeURL, "/"),
		Creds:       creds,
		HTTP:        &http.Client{Timeout: 2 * time.Minute},
		Logger:      logger.With("component", "openstack"),
	}
}

var _ platform.Provider = (*Client)(nil)

type passwordCredentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type authRequest struct {
	Auth struct {
		TenantName          string              `json:"tenantName,omitempty"`
		TenantID            string              `json:"tenantId,omitempty"`
		PasswordCredentials passwordCredentials `json:"passwordCredentials"`
	} `json:"auth"`
}

type authResponse struct {
	Access struct {
		Token struct {
			ID     string `json:"id"`
			Tenant struct {
				ID string `json:"id"`
			} `json:"tenant"`
		} `json:"token"`
	} `json:"access"`
}

// Authenticate exchanges the configured credentials for a token scoped to
// scope, or to the default tenant when scope is empty.
func (c *Client) Authenticate(ctx context.Context, scope platform.Scope) (platform.Session, error) {
	var req authRequest
	req.Auth.PasswordCredentials = passwordCredentials{Username: c.Creds.Username, Password: c.Creds.Password}
	switch {
	case scope.TenantID != "":
		req.Auth.TenantID = scope.TenantID
	case scope.TenantName != "":
		req.Auth.TenantName = scope.TenantName
	default:
		req.Auth.TenantName = c.Creds.DefaultTenant
	}
	c.Logger.Debug("getting auth token", "tenant_id", req.Auth.TenantID, "tenant_name", req.Auth.TenantName)

	var resp authResponse
	if _, err := c.do(ctx, http.MethodPost, c.IdentityURL+"/tokens", "", req, &resp, http.StatusOK); err != nil {
		return platform.Session{}, errors.Annotate(err, "authenticate")
	}
	if resp.Access.Token.ID == "" {
		return platform.Session{}, errors.Unauthorizedf("identity service returned no token")
	}
	return platform.Session{Token: resp.Access.Token.ID, TenantID: resp.Access.Token.Tenant.ID}, nil
}

type tenantsResponse struct {
	Tenants []struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		Description string `json:"description"`
	} `json:"tenants"`
}

// ListTenants returns every tenant visible to the session.
func (c *Client) ListTenants(ctx context.Context, s platform.Session) ([]platform.RemoteTenant, error) {
	c.Logger.Debug("getting tenant list")
	var resp tenantsResponse
	if _, err := c.do(ctx, http.MethodGet, c.IdentityURL+"/tenants", s.Token, nil, &resp, http.StatusOK); err != nil {
		return nil, errors.Annotate(err, "list tenants")
	}
	out := make([]platform.RemoteTenant, 0, len(resp.Tenants))
	for _, t := range resp.Tenants {
		out = append(out, platform.RemoteTenant{ID: t.ID, Name: t.Name, Description: t.Description})
	}
	return out, nil
}

type serversResponse struct {
	Servers []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
		Host string `json:"OS-EXT-SRV-ATTR:host"`
	} `json:"servers"`
}

func (c *Client) ListInstances(ctx context.Context, s platform.Session) ([]platform.Server, error) {
	var resp serversResponse
	url := fmt.Sprintf("%s/%s/servers", c.ComputeURL, s.TenantID)
	if _, err := c.do(ctx, http.MethodGet, url, s.Token, nil, &resp, http.StatusOK); err != nil {
		return nil, errors.Annotatef(err, "list servers for tenant %s", s.TenantID)
	}
	out := make([]platform.Server, 0, len(resp.Servers))
	for _, srv := range resp.Servers {
		out = append(out, platform.Server{ID: srv.ID, Name: srv.Name, Host: srv.Host})
	}
	return out, nil
}

type createImageRequest struct {
	CreateImage struct {
		Name string `json:"name"`
	} `json:"createImage"`
}

// CreateImage posts a createImage action and returns the Location header
// referencing the new image.
func (c *Client) CreateImage(ctx context.Context, s platform.Session, serverID, name string) (string, error) {
	var req createImageRequest
	req.CreateImage.Name = name
	url := fmt.Sprintf("%s/%s/servers/%s/action", c.ComputeURL, s.TenantID, serverID)
	hdr, err := c.do(ctx, http.MethodPost, url, s.Token, req, nil, http.StatusAccepted, http.StatusOK)
	if err != nil {
		return "", errors.Annotatef(err, "create image %s", name)
	}
	loc := hdr.Get("Location")
	if loc == "" {
		return "", errors.Errorf("create image %s: response has no Location header", name)
	}
	return loc, nil
}

type imageResponse struct {
	Image struct {
		Status   string `json:"status"`
		Progress int    `json:"progress"`
	} `json:"image"`
}

func (c *Client) ImageStatus(ctx context.Context, s platform.Session, location string) (platform.ImageStatus, error) {
	var resp imageResponse
	if _, err := c.do(ctx, http.MethodGet, location, s.Token, nil, &resp, http.StatusOK); err != nil {
		return platform.ImageStatus{}, errors.Annotate(err, "query image")
	}
	return platform.ImageStatus{Status: resp.Image.Status, Progress: resp.Image.Progress}, nil
}

// DeleteImage removes an image. An image that is already gone is not an error.
func (c *Client) DeleteImage(ctx context.Context, s platform.Session, imageID string) error {
	url := fmt.Sprintf("%s/%s/images/%s", c.ComputeURL, s.TenantID, imageID)
	_, err := c.do(ctx, http.MethodDelete, url, s.Token, nil, nil, http.StatusNoContent, http.StatusOK, http.StatusAccepted)
	if errors.Is(err, errors.NotFound) {
		return nil
	}
	return errors.Annotatef(err, "delete image %s", imageID)
}

func (c *Client) do(ctx context.Context, method, url, token string, in, out any, expect ...int) (http.Header, error) {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, errors.Trace(err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, errors.Trace(err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set(authHeader, token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer resp.Body.Close()

	if !expected(resp.StatusCode, expect) {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return resp.Header, statusError(method, url, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.Header, errors.Annotatef(err, "decode %s %s", method, url)
		}
	}
	return resp.Header, nil
}

func expected(code int, expect []int) bool {
	for _, e := range expect {
		if code == e {
			return true
		}
	}
	return false
}

func statusError(method, url string, code int, body string) error {
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return errors.Unauthorizedf("%s %s: %d %s", method, url, code, body)
	case http.StatusNotFound:
		return errors.NotFoundf("%s %s", method, url)
	default:
		return errors.Errorf("%s %s: unexpected status %d: %s", method, url, code, body)
	}
}
