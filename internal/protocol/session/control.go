package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	TypeAuth     = "auth"
	TypePing     = "ping"
	TypeChat     = "chat"
	TypePresence = "presence_change"
	TypeTyping   = "user_typing"

	FieldAuthorization = "authorization"
	FieldAgent         = "agent"
	FieldResource      = "resource"
	FieldTo            = "to"
	FieldText          = "text"
	FieldState         = "state"
	FieldPresence      = "presence"

	TypingComposing = "composing"
	TypingDone      = "done"

	authorizationScheme = "Session "
)

var (
	ErrInvalidLoginInfo = errors.New("session: invalid login info")
	ErrInvalidAuth      = errors.New("session: invalid auth")
	ErrInvalidPresence  = errors.New("session: invalid presence")
)

// LoginInfo is what the begin-session handshake yields.
type LoginInfo struct {
	SessionToken string
	Endpoint     string
}

func (l LoginInfo) Validate() error {
	if strings.TrimSpace(l.SessionToken) == "" {
		return fmt.Errorf("%w: missing session token", ErrInvalidLoginInfo)
	}
	if strings.TrimSpace(l.Endpoint) == "" {
		return fmt.Errorf("%w: missing endpoint", ErrInvalidLoginInfo)
	}
	if _, err := url.Parse(l.Endpoint); err != nil {
		return fmt.Errorf("%w: endpoint: %v", ErrInvalidLoginInfo, err)
	}
	return nil
}

// loginEnvelope is the odata response shape of User.Login.
type loginEnvelope struct {
	D *struct {
		SessionID string `json:"sessionId"`
		Services  struct {
			Chat string `json:"chat"`
		} `json:"services"`
	} `json:"d"`
}

// ParseLoginResponse extracts the session token and chat endpoint.
func ParseLoginResponse(body []byte) (LoginInfo, error) {
	var env loginEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return LoginInfo{}, fmt.Errorf("%w: %v", ErrInvalidLoginInfo, err)
	}
	if env.D == nil {
		return LoginInfo{}, fmt.Errorf("%w: missing d", ErrInvalidLoginInfo)
	}
	info := LoginInfo{
		SessionToken: env.D.SessionID,
		Endpoint:     env.D.Services.Chat,
	}
	if err := info.Validate(); err != nil {
		return LoginInfo{}, err
	}
	return info, nil
}

// Auth is the first frame sent on a fresh link.
type Auth struct {
	Authorization string
	Agent         string
	Resource      string
}

// NewAuth builds the auth frame for a session token at time now.
func NewAuth(cfg Config, token string, now time.Time) Auth {
	return Auth{
		Authorization: authorizationScheme + token,
		Agent:         cfg.Agent,
		Resource:      cfg.ResourcePrefix + strconv.FormatInt(now.UnixMilli(), 10),
	}
}

func (a Auth) Validate() error {
	if strings.TrimSpace(strings.TrimPrefix(a.Authorization, authorizationScheme)) == "" {
		return fmt.Errorf("%w: missing authorization", ErrInvalidAuth)
	}
	if strings.TrimSpace(a.Agent) == "" {
		return fmt.Errorf("%w: missing agent", ErrInvalidAuth)
	}
	if strings.TrimSpace(a.Resource) == "" {
		return fmt.Errorf("%w: missing resource", ErrInvalidAuth)
	}
	return nil
}

func (a Auth) Fields() map[string]any {
	return map[string]any{
		FieldAuthorization: a.Authorization,
		FieldAgent:         a.Agent,
		FieldResource:      a.Resource,
	}
}

// Presence is the global user presence.
type Presence string

const (
	PresenceAvailable    Presence = "available"
	PresenceAway         Presence = "away"
	PresenceDoNotDisturb Presence = "dnd"
	PresenceOffline      Presence = "unavailable"
)

func (p Presence) Validate() error {
	switch p {
	case PresenceAvailable, PresenceAway, PresenceDoNotDisturb, PresenceOffline:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidPresence, string(p))
	}
}

func ChatFields(to, text string) map[string]any {
	return map[string]any{
		FieldTo:   to,
		FieldText: text,
	}
}

func TypingFields(to, state string) map[string]any {
	return map[string]any{
		FieldTo:    to,
		FieldState: state,
	}
}

func PresenceFields(p Presence) map[string]any {
	return map[string]any{
		FieldPresence: string(p),
	}
}
