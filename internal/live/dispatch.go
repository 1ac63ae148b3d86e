package live

import (
	"sync"

	"github.com/danmuck/ryverlive/internal/observability"
	"github.com/danmuck/ryverlive/internal/protocol/frame"
	"github.com/danmuck/ryverlive/internal/protocol/session"
	"github.com/rs/zerolog"
)

// Message is one inbound non-ack frame with its typed payload.
type Message struct {
	Frame   frame.Frame
	Payload session.Payload
}

func (m Message) Type() string { return m.Frame.Type }

// MessageHandler consumes one inbound message. Handlers run on their own
// goroutine and may block.
type MessageHandler func(Message)

// CatchAll is the discriminator that matches anything without an exact
// registration in its namespace.
const CatchAll = ""

// Dispatcher routes inbound messages by message type, and event messages by
// topic first.
type Dispatcher struct {
	mu      sync.RWMutex
	byType  map[string]MessageHandler
	byTopic map[string]MessageHandler
	log     zerolog.Logger
}

func NewDispatcher(logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		byType:  make(map[string]MessageHandler),
		byTopic: make(map[string]MessageHandler),
		log:     logger,
	}
}

// Register replaces the handler for msgType. A nil handler unregisters.
func (d *Dispatcher) Register(msgType string, h MessageHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if h == nil {
		delete(d.byType, msgType)
		return
	}
	d.byType[msgType] = h
}

func (d *Dispatcher) Unregister(msgType string) {
	d.Register(msgType, nil)
}

// RegisterEvent replaces the handler for an event topic. A nil handler
// unregisters.
func (d *Dispatcher) RegisterEvent(topic string, h MessageHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if h == nil {
		delete(d.byTopic, topic)
		return
	}
	d.byTopic[topic] = h
}

func (d *Dispatcher) UnregisterEvent(topic string) {
	d.RegisterEvent(topic, nil)
}

// lookup picks the handler for f. Events consult the topic namespace
// (exact, then catch-all) and fall through to the message-type namespace.
func (d *Dispatcher) lookup(f frame.Frame) (MessageHandler, string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if f.Type == session.TypeEvent {
		if h, ok := d.byTopic[f.Topic]; ok {
			return h, "event:" + f.Topic, true
		}
		if h, ok := d.byTopic[CatchAll]; ok {
			return h, "event:*", true
		}
	}
	if h, ok := d.byType[f.Type]; ok {
		return h, f.Type, true
	}
	if h, ok := d.byType[CatchAll]; ok {
		return h, "*", true
	}
	return nil, "", false
}

// Dispatch hands f to its handler on a new goroutine and reports whether a
// handler was found. It never blocks on handler work.
func (d *Dispatcher) Dispatch(f frame.Frame) bool {
	h, discriminator, ok := d.lookup(f)
	if !ok {
		d.log.Debug().Str("type", f.Type).Str("topic", f.Topic).Msg("no handler for inbound message")
		return false
	}
	go d.run(discriminator, h, f)
	return true
}

func (d *Dispatcher) run(discriminator string, h MessageHandler, f frame.Frame) {
	defer func() {
		if r := recover(); r != nil {
			observability.RecordHandlerPanic(discriminator)
			d.log.Error().
				Str("handler", discriminator).
				Str("id", f.ID).
				Interface("panic", r).
				Msg("message handler panicked")
		}
	}()

	payload, err := session.DecodePayload(f)
	if err != nil {
		// Raw handlers still see the frame; typed ones skip a Generic payload.
		d.log.Warn().Err(err).Str("type", f.Type).Str("id", f.ID).Msg("payload does not match its message shape")
		payload = session.Generic{Type: f.Type, Fields: f.Fields}
	}
	h(Message{Frame: f, Payload: payload})
}

// typed narrows a handler to one payload shape. Messages whose payload
// failed to decode into T are dropped.
func typed[T session.Payload](h func(T)) MessageHandler {
	if h == nil {
		return nil
	}
	return func(m Message) {
		p, ok := m.Payload.(T)
		if !ok {
			observability.RecordFrameDropped("payload")
			return
		}
		h(p)
	}
}
