// Copyright (c) 2026 WashPass. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package identity is the HTTP client of the identity backend.

One Client serves one identity domain; the customer and partner domains
differ only by their auth path and default role. Every endpoint answers with
the `{"data": ...}` / `{"error", "code"}` envelope.
*/
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/taibuivan/washpass/internal/platform/constants"
	"github.com/taibuivan/washpass/internal/platform/sec"
	"github.com/taibuivan/washpass/internal/session"
	"github.com/taibuivan/washpass/internal/session/store"
)

// maxErrorBody caps how much of a failure body is read.
const maxErrorBody = 1 << 20

// Client implements [session.IdentityClient] over HTTP.
type Client struct {
	baseURL     string
	authPath    string
	defaultRole sec.Role
	httpClient  *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

// WithTimeout sets the per-request timeout of the default http.Client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = timeout }
}

// WithDefaultRole assigns role to principals the backend returns without one.
// The partner backend omits it.
func WithDefaultRole(role sec.Role) Option {
	return func(c *Client) { c.defaultRole = role }
}

// New creates a client for the domain mounted at baseURL+authPath.
func New(baseURL, authPath string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		authPath:   "/" + strings.Trim(authPath, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ session.IdentityClient = (*Client)(nil)

// # Wire Types

type grantPayload struct {
	AccessToken  string            `json:"access_token"`
	RefreshToken string            `json:"refresh_token"`
	User         *session.Principal `json:"user"`
}

type envelope[T any] struct {
	Data *T `json:"data"`
}

// # Endpoints

// Login exchanges email and password for a session grant.
func (c *Client) Login(ctx context.Context, input session.LoginInput) (session.Grant, error) {
	grant, err := c.authenticate(ctx, "/login", input)
	if err != nil {
		return session.Grant{}, fmt.Errorf("identity.Login: %w", err)
	}
	return grant, nil
}

// Register enrolls a new account and returns its session grant.
func (c *Client) Register(ctx context.Context, input session.RegisterInput) (session.Grant, error) {
	grant, err := c.authenticate(ctx, "/register", input)
	if err != nil {
		return session.Grant{}, fmt.Errorf("identity.Register: %w", err)
	}
	return grant, nil
}

// FetchCurrentPrincipal returns the principal that token belongs to.
func (c *Client) FetchCurrentPrincipal(ctx context.Context, token string) (session.Principal, error) {
	var out envelope[session.Principal]
	if err := c.doRequest(ctx, http.MethodGet, "/me", token, nil, &out); err != nil {
		return session.Principal{}, fmt.Errorf("identity.FetchCurrentPrincipal: %w", err)
	}
	if out.Data == nil || out.Data.ID == 0 {
		return session.Principal{}, fmt.Errorf("identity.FetchCurrentPrincipal: %w", ErrMalformedResponse)
	}
	return c.principal(*out.Data), nil
}

// Logout tells the backend the token is no longer in use.
func (c *Client) Logout(ctx context.Context, token string) error {
	if err := c.doRequest(ctx, http.MethodPost, "/logout", token, nil, nil); err != nil {
		return fmt.Errorf("identity.Logout: %w", err)
	}
	return nil
}

// # Internal Helpers

func (c *Client) authenticate(ctx context.Context, endpoint string, body any) (session.Grant, error) {
	var out envelope[grantPayload]
	if err := c.doRequest(ctx, http.MethodPost, endpoint, "", body, &out); err != nil {
		return session.Grant{}, err
	}

	if out.Data == nil || out.Data.AccessToken == "" || out.Data.User == nil || out.Data.User.ID == 0 {
		return session.Grant{}, ErrMalformedResponse
	}

	return session.Grant{
		Principal: c.principal(*out.Data.User),
		Credentials: store.Credentials{
			AccessToken:  out.Data.AccessToken,
			RefreshToken: out.Data.RefreshToken,
		},
	}, nil
}

func (c *Client) principal(p session.Principal) session.Principal {
	if p.Role == "" {
		p.Role = c.defaultRole
	}
	p.Role = p.Role.Normalize()
	return p
}

func (c *Client) doRequest(ctx context.Context, method, endpoint, token string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+c.authPath+endpoint, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set(constants.HeaderAuthorization, "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return readError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}

func readError(resp *http.Response) error {
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return &HTTPError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("failed to read body: %v", err)}
	}

	var apiErr struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error != "" {
		return &HTTPError{StatusCode: resp.StatusCode, Code: apiErr.Code, Message: apiErr.Error}
	}
	return &HTTPError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(respBody))}
}
