package api

import (
	"strconv"
	"strings"
)

// Credentials is a normalized email/password pair.
type Credentials struct {
	Email    string
	Password string
}

// NewCredentials trims and unescapes both fields.
func NewCredentials(email, password string) Credentials {
	return Credentials{
		Email:    Normalize(email),
		Password: Normalize(password),
	}
}

func (c Credentials) Valid() bool {
	return c.Email != "" && c.Password != ""
}

// Tokens is a CSRF token plus session cookie value, the proof of an
// authenticated session.
type Tokens struct {
	CSRF    string
	Session string
}

func NewTokens(csrf, session string) Tokens {
	return Tokens{
		CSRF:    Normalize(csrf),
		Session: Normalize(session),
	}
}

func (t Tokens) Valid() bool {
	return t.CSRF != "" && t.Session != ""
}

// CookieHeader renders the combined cookie header the service expects.
func (t Tokens) CookieHeader() string {
	return csrfCookieName + "=" + t.CSRF + "; " + sessionCookieName + "=" + t.Session
}

// Normalize trims the string and, if it contains a backslash, decodes it as a
// Go-quoted string (hex and unicode escapes). Values that fail to decode pass
// through trimmed but otherwise unchanged, so a literal backslash in a stored
// password survives.
func Normalize(s string) string {
	s = strings.TrimSpace(s)
	if !strings.Contains(s, `\`) {
		return s
	}
	quoted := `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
	decoded, err := strconv.Unquote(quoted)
	if err != nil {
		return s
	}
	return decoded
}
