package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	csrfCookieName    = "_csrf_token"
	sessionCookieName = "session"
	csrfHeaderName    = "x-csrf-token"

	requestTimeout = 15 * time.Second

	// The service rejects sign-ins without a browser-shaped User-Agent.
	userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	companyInfoPath = "auth/company-info"
	signInPath      = "auth/sign-in"
)

// TokenStore is the slice of the persistent store the authenticator needs.
type TokenStore interface {
	Credentials() (email, password string, err error)
	Tokens() (csrf, session string, err error)
	SetTokens(csrf, session string) error
	ClearTokens() error
}

// authenticator turns stored credentials into a valid session via the
// two-step CSRF handshake, caching tokens in memory and in the store.
type authenticator struct {
	base  *url.URL
	store TokenStore

	mu     sync.Mutex
	tokens Tokens
}

func newAuthenticator(base *url.URL, st TokenStore) *authenticator {
	a := &authenticator{base: base, store: st}
	if csrf, session, err := st.Tokens(); err == nil {
		a.tokens = NewTokens(csrf, session)
	}
	return a
}

// ensureSession returns cached tokens when they are valid, otherwise runs the
// handshake with the stored credentials. Any handshake failure comes back as
// *AuthError; a missing credential pair as ErrCredentialsMissing.
func (a *authenticator) ensureSession(ctx context.Context) (Tokens, error) {
	a.mu.Lock()
	cached := a.tokens
	a.mu.Unlock()
	if cached.Valid() {
		return cached, nil
	}

	email, password, err := a.store.Credentials()
	if err != nil {
		return Tokens{}, &AuthError{Reason: err}
	}
	creds := NewCredentials(email, password)
	if !creds.Valid() {
		return Tokens{}, ErrCredentialsMissing
	}

	tokens, err := a.handshake(ctx, creds)
	if err != nil {
		return Tokens{}, &AuthError{Reason: err}
	}

	a.mu.Lock()
	a.tokens = tokens
	a.mu.Unlock()
	if err := a.store.SetTokens(tokens.CSRF, tokens.Session); err != nil {
		return Tokens{}, &AuthError{Reason: fmt.Errorf("persist tokens: %w", err)}
	}
	return tokens, nil
}

// invalidate drops the cached tokens in memory and in the store.
func (a *authenticator) invalidate() {
	a.mu.Lock()
	a.tokens = Tokens{}
	a.mu.Unlock()
	a.store.ClearTokens()
}

// handshake performs the two-step sign-in. It uses a fresh client with no
// cookie jar so the CSRF bootstrap always starts cookie-less.
func (a *authenticator) handshake(ctx context.Context, creds Credentials) (Tokens, error) {
	client := &http.Client{Timeout: requestTimeout}

	csrf, err := a.fetchCSRFToken(ctx, client)
	if err != nil {
		return Tokens{}, err
	}

	session, err := a.signIn(ctx, client, csrf, creds)
	if err != nil {
		return Tokens{}, err
	}

	return NewTokens(csrf, session), nil
}

// fetchCSRFToken GETs the unauthenticated company-info endpoint and reads the
// CSRF token the service plants in a Set-Cookie header.
func (a *authenticator) fetchCSRFToken(ctx context.Context, client *http.Client) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.endpoint(companyInfoPath), nil)
	if err != nil {
		return "", err
	}
	a.setBrowserHeaders(req)

	resp, err := client.Do(req)
	if err != nil {
		return "", &RequestError{Label: "company-info", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &StatusCodeError{Label: "company-info", Code: resp.StatusCode}
	}

	csrf := cookieValue(resp, csrfCookieName)
	if csrf == "" {
		return "", &MissingCookieError{Label: "company-info", Name: csrfCookieName}
	}
	return csrf, nil
}

// signIn POSTs the credentials, carrying the CSRF token as both header and
// cookie, and reads the session cookie from the response.
func (a *authenticator) signIn(ctx context.Context, client *http.Client, csrf string, creds Credentials) (string, error) {
	body, err := json.Marshal(map[string]string{
		"domain":   firstHostLabel(a.base),
		"login":    creds.Email,
		"password": creds.Password,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint(signInPath), bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	a.setBrowserHeaders(req)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(csrfHeaderName, csrf)
	req.Header.Set("Cookie", csrfCookieName+"="+csrf)

	resp, err := client.Do(req)
	if err != nil {
		return "", &RequestError{Label: "sign-in", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &StatusCodeError{Label: "sign-in", Code: resp.StatusCode}
	}

	session := cookieValue(resp, sessionCookieName)
	if session == "" {
		return "", &MissingCookieError{Label: "sign-in", Name: sessionCookieName}
	}
	return session, nil
}

func (a *authenticator) endpoint(path string) string {
	return strings.TrimRight(a.base.String(), "/") + "/" + path
}

func (a *authenticator) setBrowserHeaders(req *http.Request) {
	origin := a.base.Scheme + "://" + a.base.Host
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Origin", origin)
	req.Header.Set("Referer", origin+"/")
}

// firstHostLabel derives the tenant domain from the host: "acme" for
// "acme.example.com".
func firstHostLabel(u *url.URL) string {
	host := u.Hostname()
	if i := strings.IndexByte(host, '.'); i > 0 {
		return host[:i]
	}
	return host
}

func cookieValue(resp *http.Response, name string) string {
	for _, c := range resp.Cookies() {
		if c.Name == name && c.Value != "" {
			return c.Value
		}
	}
	return ""
}
