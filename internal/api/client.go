// Package api speaks the time-tracking service's HTTPS/JSON protocol: the
// CSRF sign-in handshake, the four clock-screen actions, and the credential
// and token normalization rules.
package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/ovrk/shiftwatch/internal/status"
)

// Client is the single entry point the engine talks to. It authenticates
// lazily and re-uses cached tokens until they are invalidated.
type Client struct {
	http *http.Client
	auth *authenticator
}

func New(baseURL string, st TokenStore) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("server url %q must include scheme and host", baseURL)
	}
	return &Client{
		http: &http.Client{Timeout: requestTimeout},
		auth: newAuthenticator(u, st),
	}, nil
}

// FetchStatus retrieves and parses the clock-screen status payload.
func (c *Client) FetchStatus(ctx context.Context) (status.Report, error) {
	raw, err := c.do(ctx, ActionStatus, nil)
	if err != nil {
		return status.Report{}, err
	}
	return status.Parse(raw)
}

// ClockIn starts a shift.
func (c *Client) ClockIn(ctx context.Context) error {
	_, err := c.do(ctx, ActionStart, nil)
	return err
}

// ClockOut finishes the open shift.
func (c *Client) ClockOut(ctx context.Context) error {
	_, err := c.do(ctx, ActionStop, nil)
	return err
}

// AssignProject attaches the running shift's work log to a project.
func (c *Client) AssignProject(ctx context.Context, projectID int64) error {
	_, err := c.do(ctx, ActionSpecifyProject, map[string]int64{"projectId": projectID})
	return err
}

// Invalidate drops cached session tokens, in memory and in the store. The next
// call re-authenticates.
func (c *Client) Invalidate() {
	c.auth.invalidate()
}

func (c *Client) do(ctx context.Context, action Action, body any) ([]byte, error) {
	tokens, err := c.auth.ensureSession(ctx)
	if err != nil {
		return nil, err
	}
	return c.send(ctx, action, tokens, body)
}
