// Package auth provides credential helpers for the begin-session login and
// the admin surface.
//
// It intentionally avoids storage concerns.
package auth

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
)

var (
	ErrUnauthorized       = errors.New("auth: unauthorized")
	ErrMissingCredentials = errors.New("auth: missing credentials")
)

// Credentials decorate an outbound login request.
type Credentials interface {
	Apply(req *http.Request) error
}

// Basic authenticates with a username and password.
type Basic struct {
	Username string
	Password string
}

func (b Basic) Apply(req *http.Request) error {
	if strings.TrimSpace(b.Username) == "" || b.Password == "" {
		return ErrMissingCredentials
	}
	req.SetBasicAuth(b.Username, b.Password)
	return nil
}

// Bearer authenticates with a pre-issued API token.
type Bearer struct {
	Token string
}

func (b Bearer) Apply(req *http.Request) error {
	if strings.TrimSpace(b.Token) == "" {
		return ErrMissingCredentials
	}
	req.Header.Set("Authorization", "Bearer "+b.Token)
	return nil
}

// CredentialsFunc adapts a function into Credentials.
type CredentialsFunc func(req *http.Request) error

func (f CredentialsFunc) Apply(req *http.Request) error {
	return f(req)
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(req *http.Request) string {
	v := strings.TrimSpace(req.Header.Get("Authorization"))
	scheme, token, ok := strings.Cut(v, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// StaticToken guards an endpoint with a single shared token.
type StaticToken struct {
	Token string
}

func (s StaticToken) Validate(token string) error {
	if s.Token == "" {
		return ErrUnauthorized
	}
	if subtle.ConstantTimeCompare([]byte(s.Token), []byte(token)) != 1 {
		return ErrUnauthorized
	}
	return nil
}
