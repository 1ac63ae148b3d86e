package session

import (
	"encoding/json"
	"fmt"

	"github.com/danmuck/ryverlive/internal/protocol/frame"
)

const (
	TypeChatUpdated = "chat_updated"
	TypeChatDeleted = "chat_deleted"
	TypeEvent       = "event"

	SubtypeChatMessage       = "chat"
	SubtypeTopicAnnouncement = "topic_share"
	SubtypeTaskAnnouncement  = "task_share"
)

// Event topics carried inside the generic "event" message type.
const (
	EventReactionAdded   = "/api/reaction/added"
	EventReactionRemoved = "/api/reaction/removed"
	EventTopicChanged    = "/api/activityfeed/posts/changed"
	EventTaskChanged     = "/api/activityfeed/tasks/changed"
	EventEntityChanged   = "/api/entity/changed"
)

// Payload is the typed body of an inbound non-ack frame.
type Payload interface {
	MessageType() string
}

// Creator overrides the displayed author of a chat message.
type Creator struct {
	DisplayName string `json:"displayName"`
	Avatar      string `json:"avatar"`
}

type chatExtras struct {
	File json.RawMessage `json:"file,omitempty"`
}

// ChatMessage is a new chat message.
type ChatMessage struct {
	MessageID  string          `json:"key"`
	From       string          `json:"from"`
	To         string          `json:"to"`
	Text       string          `json:"text"`
	Subtype    string          `json:"subtype"`
	Attachment json.RawMessage `json:"-"`
	Creator    *Creator        `json:"createSource,omitempty"`
	Extras     *chatExtras     `json:"extras,omitempty"`
}

func (ChatMessage) MessageType() string { return TypeChat }

// ChatUpdated is an edited chat message. Text may be empty in rare cases.
type ChatUpdated ChatMessage

func (ChatUpdated) MessageType() string { return TypeChatUpdated }

type ChatDeleted ChatMessage

func (ChatDeleted) MessageType() string { return TypeChatDeleted }

type PresenceChanged struct {
	Presence  Presence `json:"presence"`
	From      string   `json:"from"`
	Client    string   `json:"client"`
	Timestamp string   `json:"received"`
}

func (PresenceChanged) MessageType() string { return TypePresence }

type UserTyping struct {
	From  string `json:"from"`
	To    string `json:"to"`
	State string `json:"state"`
}

func (UserTyping) MessageType() string { return TypeTyping }

// Event wraps a topic-addressed notification.
type Event struct {
	Topic string         `json:"topic"`
	Data  map[string]any `json:"data"`
}

func (Event) MessageType() string { return TypeEvent }

// Generic carries any message type without a dedicated shape.
type Generic struct {
	Type   string
	Fields map[string]any
}

func (g Generic) MessageType() string { return g.Type }

// DecodePayload maps a frame onto its typed payload.
func DecodePayload(f frame.Frame) (Payload, error) {
	switch f.Type {
	case TypeChat:
		return decodeChat(f)
	case TypeChatUpdated:
		msg, err := decodeChat(f)
		return ChatUpdated(msg), err
	case TypeChatDeleted:
		msg, err := decodeChat(f)
		return ChatDeleted(msg), err
	case TypePresence:
		var p PresenceChanged
		if err := unmarshalFrame(f, &p); err != nil {
			return nil, err
		}
		return p, nil
	case TypeTyping:
		var p UserTyping
		if err := unmarshalFrame(f, &p); err != nil {
			return nil, err
		}
		return p, nil
	case TypeEvent:
		var p Event
		if err := unmarshalFrame(f, &p); err != nil {
			return nil, err
		}
		return p, nil
	default:
		return Generic{Type: f.Type, Fields: f.Fields}, nil
	}
}

func decodeChat(f frame.Frame) (ChatMessage, error) {
	var msg ChatMessage
	if err := unmarshalFrame(f, &msg); err != nil {
		return ChatMessage{}, err
	}
	if msg.Subtype == "" {
		msg.Subtype = SubtypeChatMessage
	}
	if msg.Extras != nil && len(msg.Extras.File) > 0 && string(msg.Extras.File) != "null" {
		msg.Attachment = msg.Extras.File
	}
	msg.Extras = nil
	return msg, nil
}

func unmarshalFrame(f frame.Frame, out any) error {
	if err := json.Unmarshal(f.Raw, out); err != nil {
		return fmt.Errorf("session: decode %s payload: %w", f.Type, err)
	}
	return nil
}
