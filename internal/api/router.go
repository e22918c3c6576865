package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
)

// Action is one of the four logical calls the engine can issue.
type Action int

const (
	ActionStatus Action = iota
	ActionStart
	ActionSpecifyProject
	ActionStop
)

type descriptor struct {
	label  string
	method string
	path   string
}

var descriptors = map[Action]descriptor{
	ActionStatus:         {label: "status", method: http.MethodPost, path: "clock-screen/get"},
	ActionStart:          {label: "clock-in", method: http.MethodPost, path: "clock-screen/clock-in"},
	ActionSpecifyProject: {label: "specify-project", method: http.MethodPost, path: "clockin/workloging/from-beginning"},
	ActionStop:           {label: "clock-out", method: http.MethodPost, path: "clock-screen/clock-out"},
}

// send issues one action against the service with the given session tokens and
// returns the response body. Non-2xx responses and transport failures come
// back as *StatusCodeError and *RequestError respectively.
func (c *Client) send(ctx context.Context, action Action, tokens Tokens, body any) ([]byte, error) {
	d := descriptors[action]

	if body == nil {
		body = struct{}{}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, d.method, c.auth.endpoint(d.path), bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	c.auth.setBrowserHeaders(req)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(csrfHeaderName, tokens.CSRF)
	req.Header.Set("Cookie", tokens.CookieHeader())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &RequestError{Label: d.label, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RequestError{Label: d.label, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusCodeError{Label: d.label, Code: resp.StatusCode, Body: string(raw)}
	}
	return raw, nil
}
