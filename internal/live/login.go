package live

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/danmuck/ryverlive/internal/auth"
	"github.com/danmuck/ryverlive/internal/protocol/session"
)

const (
	DefaultLoginClient = "ryverlive"

	maxLoginBody = 1 << 20
)

// LoginURL returns the begin-session endpoint for an organization.
func LoginURL(org, client string) string {
	if client == "" {
		client = DefaultLoginClient
	}
	return fmt.Sprintf("https://%s.ryver.com/api/1/odata.svc/User.Login(client='%s')",
		url.PathEscape(strings.TrimSpace(org)), url.PathEscape(client))
}

// HTTPLogin is the default Handshaker: it POSTs to the organization's
// User.Login endpoint and reads the session token and chat endpoint.
type HTTPLogin struct {
	URL         string
	Credentials auth.Credentials
	Client      *http.Client
}

func NewHTTPLogin(org string, creds auth.Credentials) *HTTPLogin {
	return &HTTPLogin{
		URL:         LoginURL(org, DefaultLoginClient),
		Credentials: creds,
		Client:      &http.Client{Timeout: 30 * time.Second},
	}
}

func (h *HTTPLogin) BeginSession(ctx context.Context) (session.LoginInfo, error) {
	if h.Credentials == nil {
		return session.LoginInfo{}, auth.ErrMissingCredentials
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.URL, nil)
	if err != nil {
		return session.LoginInfo{}, err
	}
	req.Header.Set("Accept", "application/json")
	if err := h.Credentials.Apply(req); err != nil {
		return session.LoginInfo{}, err
	}

	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return session.LoginInfo{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxLoginBody))
	if err != nil {
		return session.LoginInfo{}, err
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return session.LoginInfo{}, fmt.Errorf("%w: login status=%d", auth.ErrUnauthorized, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return session.LoginInfo{}, fmt.Errorf("login status=%d body=%q", resp.StatusCode, truncate(string(body), 256))
	}
	return session.ParseLoginResponse(body)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
