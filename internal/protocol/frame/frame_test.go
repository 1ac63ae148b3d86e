package frame

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestEncodeAttachesTypeAndFreshID(t *testing.T) {
	id, data, err := Encode("chat", map[string]any{"to": "room+123@ryver", "text": "hi"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(id) != IDLength {
		t.Fatalf("unexpected id length: %q", id)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out["type"] != "chat" || out["id"] != id || out["to"] != "room+123@ryver" || out["text"] != "hi" {
		t.Fatalf("unexpected wire shape: %v", out)
	}

	id2, _, err := Encode("chat", nil)
	if err != nil {
		t.Fatalf("encode second: %v", err)
	}
	if id2 == id {
		t.Fatalf("expected distinct ids, got=%q twice", id)
	}
}

func TestEncodeDoesNotMutateFields(t *testing.T) {
	fields := map[string]any{"presence": "away"}
	if _, _, err := Encode("presence_change", fields); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(fields) != 1 {
		t.Fatalf("fields mutated: %v", fields)
	}
}

func TestEncodeRequiresType(t *testing.T) {
	if _, _, err := Encode("", nil); !errors.Is(err, ErrMissingType) {
		t.Fatalf("expected ErrMissingType, got %v", err)
	}
}

func TestDecodeAck(t *testing.T) {
	f, err := Decode([]byte(`{"type":"ack","reply_to":"abc123XYZ","reply_type":"ping"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !f.IsAck() || f.ReplyTo != "abc123XYZ" || f.ReplyType != "ping" {
		t.Fatalf("unexpected ack: %+v", f)
	}
}

func TestDecodeEventCarriesTopic(t *testing.T) {
	f, err := Decode([]byte(`{"type":"event","topic":"/api/reaction/added","data":{"reaction":"tada"}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if f.Type != "event" || f.Topic != "/api/reaction/added" {
		t.Fatalf("unexpected event: %+v", f)
	}
	if len(f.Raw) == 0 {
		t.Fatalf("expected raw bytes retained")
	}
}

func TestDecodeMalformedIsRecoverable(t *testing.T) {
	cases := []string{
		`{not json`,
		`null`,
		`{"id":"x"}`,
		`{"type":"ack","reply_to":"x"}`,
	}
	for _, raw := range cases {
		_, err := Decode([]byte(raw))
		var decErr *DecodeError
		if !errors.As(err, &decErr) {
			t.Fatalf("input=%q expected DecodeError, got %v", raw, err)
		}
	}
}

func TestDecodeMessageRejectsNonText(t *testing.T) {
	_, err := DecodeMessage(KindBinary, []byte(`{"type":"chat"}`))
	if !errors.Is(err, ErrUnexpectedFrameKind) {
		t.Fatalf("expected ErrUnexpectedFrameKind, got %v", err)
	}
	var decErr *DecodeError
	if errors.As(err, &decErr) {
		t.Fatalf("unexpected frame kind must not be a DecodeError")
	}
	if _, err := DecodeMessage(KindText, []byte(`{"type":"chat"}`)); err != nil {
		t.Fatalf("text frame: %v", err)
	}
}
