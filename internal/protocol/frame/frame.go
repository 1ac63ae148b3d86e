package frame

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
)

const (
	FieldType      = "type"
	FieldID        = "id"
	FieldReplyTo   = "reply_to"
	FieldReplyType = "reply_type"
	FieldTopic     = "topic"

	TypeAck = "ack"

	IDLength = 9
)

const idChars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Kind is the transport-level message kind a frame arrived in.
type Kind int

const (
	KindText Kind = iota
	KindBinary
	KindControl
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindBinary:
		return "binary"
	case KindControl:
		return "control"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

var (
	ErrUnexpectedFrameKind = errors.New("frame: unexpected transport frame kind")
	ErrMissingType         = errors.New("frame: missing type")
	ErrMissingReply        = errors.New("frame: ack missing reply_to/reply_type")
)

// DecodeError reports an inbound frame that could not be parsed. It is
// recoverable: the frame is dropped and the link stays up.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return "frame: decode: " + e.Err.Error()
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Frame is one decoded application message.
type Frame struct {
	Type      string
	ID        string
	ReplyTo   string
	ReplyType string
	Topic     string
	Fields    map[string]any
	Raw       json.RawMessage
}

func (f Frame) IsAck() bool {
	return f.Type == TypeAck
}

// String returns a string field, or "" when absent or not a string.
func (f Frame) String(key string) string {
	v, _ := f.Fields[key].(string)
	return v
}

// NewID returns a random alphanumeric correlation id.
func NewID() string {
	b := make([]byte, IDLength)
	for i := range b {
		b[i] = idChars[rand.IntN(len(idChars))]
	}
	return string(b)
}

// Encode serializes an outbound frame with a fresh correlation id. The id is
// returned so the caller can register for the ack before the send.
func Encode(msgType string, fields map[string]any) (string, []byte, error) {
	if msgType == "" {
		return "", nil, ErrMissingType
	}
	id := NewID()
	out := make(map[string]any, len(fields)+2)
	for k, v := range fields {
		out[k] = v
	}
	out[FieldType] = msgType
	out[FieldID] = id
	data, err := json.Marshal(out)
	if err != nil {
		return "", nil, fmt.Errorf("frame: encode %s: %w", msgType, err)
	}
	return id, data, nil
}

// Decode parses one inbound text frame.
func Decode(data []byte) (Frame, error) {
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return Frame{}, &DecodeError{Err: err}
	}
	if fields == nil {
		return Frame{}, &DecodeError{Err: errors.New("not a json object")}
	}
	f := Frame{
		Fields: fields,
		Raw:    json.RawMessage(append([]byte(nil), data...)),
	}
	f.Type = f.String(FieldType)
	if f.Type == "" {
		return Frame{}, &DecodeError{Err: ErrMissingType}
	}
	f.ID = f.String(FieldID)
	f.Topic = f.String(FieldTopic)
	if f.IsAck() {
		f.ReplyTo = f.String(FieldReplyTo)
		f.ReplyType = f.String(FieldReplyType)
		if f.ReplyTo == "" || f.ReplyType == "" {
			return Frame{}, &DecodeError{Err: ErrMissingReply}
		}
	}
	return f, nil
}

// DecodeMessage rejects anything other than text before decoding.
func DecodeMessage(kind Kind, data []byte) (Frame, error) {
	if kind != KindText {
		return Frame{}, fmt.Errorf("%w: %s", ErrUnexpectedFrameKind, kind)
	}
	return Decode(data)
}
