package live

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/danmuck/ryverlive/internal/protocol/frame"
	"github.com/danmuck/ryverlive/internal/protocol/session"
)

var errFakeClosed = errors.New("fake: conn closed")

const fakeEndpoint = "ws://chat.fake.test/ws"

type inbound struct {
	kind frame.Kind
	data []byte
	err  error
}

// fakeConn is an in-memory duplex link. The client writes to outbound and
// reads from in; the paired fakeServer does the opposite.
type fakeConn struct {
	in       chan inbound
	outbound chan []byte
	closed   chan struct{}
	once     sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:       make(chan inbound, 128),
		outbound: make(chan []byte, 128),
		closed:   make(chan struct{}),
	}
}

func (c *fakeConn) Send(ctx context.Context, data []byte) error {
	select {
	case <-c.closed:
		return errFakeClosed
	default:
	}
	select {
	case c.outbound <- data:
		return nil
	case <-c.closed:
		return errFakeClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *fakeConn) Receive(ctx context.Context) (frame.Kind, []byte, error) {
	select {
	case m := <-c.in:
		if m.err != nil {
			return 0, nil, m.err
		}
		return m.kind, m.data, nil
	case <-c.closed:
		return 0, nil, errFakeClosed
	}
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// ackPolicy decides whether the fake server acks an outbound frame.
type ackPolicy func(f frame.Frame) bool

func ackAll(frame.Frame) bool { return true }

func ackExcept(types ...string) ackPolicy {
	return func(f frame.Frame) bool {
		for _, t := range types {
			if f.Type == t {
				return false
			}
		}
		return true
	}
}

// fakeServer records every frame the client sends and acks by policy.
type fakeServer struct {
	conn   *fakeConn
	policy ackPolicy

	mu     sync.Mutex
	frames []frame.Frame
}

func newFakeServer(conn *fakeConn, policy ackPolicy) *fakeServer {
	s := &fakeServer{conn: conn, policy: policy}
	go s.serve()
	return s
}

func (s *fakeServer) serve() {
	for {
		select {
		case data := <-s.conn.outbound:
			f, err := frame.Decode(data)
			if err != nil {
				continue
			}
			s.mu.Lock()
			s.frames = append(s.frames, f)
			s.mu.Unlock()
			if s.policy(f) {
				s.ack(f, nil)
			}
		case <-s.conn.closed:
			return
		}
	}
}

func (s *fakeServer) ack(f frame.Frame, extra map[string]any) {
	msg := map[string]any{
		frame.FieldType:      frame.TypeAck,
		frame.FieldReplyTo:   f.ID,
		frame.FieldReplyType: f.Type,
	}
	for k, v := range extra {
		msg[k] = v
	}
	data, _ := json.Marshal(msg)
	s.push(frame.KindText, data)
}

func (s *fakeServer) push(kind frame.Kind, data []byte) {
	select {
	case s.conn.in <- inbound{kind: kind, data: data}:
	case <-s.conn.closed:
	}
}

func (s *fakeServer) pushJSON(t *testing.T, msg map[string]any) {
	t.Helper()
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s.push(frame.KindText, data)
}

// drop simulates the peer going away.
func (s *fakeServer) drop() {
	select {
	case s.conn.in <- inbound{err: errors.New("fake: peer reset")}:
	case <-s.conn.closed:
	}
}

func (s *fakeServer) framesOf(msgType string) []frame.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []frame.Frame
	for _, f := range s.frames {
		if f.Type == msgType {
			out = append(out, f)
		}
	}
	return out
}

func (s *fakeServer) all() []frame.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]frame.Frame(nil), s.frames...)
}

func (s *fakeServer) waitFrames(t *testing.T, msgType string, n int) []frame.Frame {
	t.Helper()
	var got []frame.Frame
	waitFor(t, 2*time.Second, func() bool {
		got = s.framesOf(msgType)
		return len(got) >= n
	}, "frames of type "+msgType)
	return got
}

// fakeDialer hands out one fakeServer per dial. Policy i applies to dial i;
// the last policy repeats.
type fakeDialer struct {
	mu       sync.Mutex
	policies []ackPolicy
	servers  []*fakeServer
	failNext int
	dials    atomic.Int32
}

func newFakeDialer(policies ...ackPolicy) *fakeDialer {
	if len(policies) == 0 {
		policies = []ackPolicy{ackAll}
	}
	return &fakeDialer{policies: policies}
}

func (d *fakeDialer) Dial(ctx context.Context, endpoint string) (Conn, error) {
	d.dials.Add(1)
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failNext > 0 {
		d.failNext--
		return nil, errors.New("fake: dial refused")
	}
	idx := len(d.servers)
	if idx >= len(d.policies) {
		idx = len(d.policies) - 1
	}
	conn := newFakeConn()
	d.servers = append(d.servers, newFakeServer(conn, d.policies[idx]))
	return conn, nil
}

func (d *fakeDialer) server(t *testing.T, i int) *fakeServer {
	t.Helper()
	var srv *fakeServer
	waitFor(t, 2*time.Second, func() bool {
		d.mu.Lock()
		defer d.mu.Unlock()
		if i < len(d.servers) {
			srv = d.servers[i]
			return true
		}
		return false
	}, "dialed server")
	return srv
}

func (d *fakeDialer) serverCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.servers)
}

// fakeHandshaker fails the first failFirst calls, then hands out tokens.
type fakeHandshaker struct {
	calls     atomic.Int32
	failFirst int32
	failAfter int32
}

func (h *fakeHandshaker) BeginSession(ctx context.Context) (session.LoginInfo, error) {
	n := h.calls.Add(1)
	if n <= h.failFirst {
		return session.LoginInfo{}, errors.New("fake: login unavailable")
	}
	if h.failAfter > 0 && n > h.failAfter {
		return session.LoginInfo{}, errors.New("fake: login unavailable")
	}
	return session.LoginInfo{SessionToken: "tok-1", Endpoint: fakeEndpoint}, nil
}

func testConfig() session.Config {
	cfg := session.DefaultConfig()
	cfg.HandshakeTimeout = time.Second
	cfg.WriteTimeout = 500 * time.Millisecond
	cfg.PingInterval = time.Hour
	cfg.PingTimeout = 50 * time.Millisecond
	cfg.AckTimeout = 300 * time.Millisecond
	cfg.TypingInterval = 30 * time.Millisecond
	cfg.Backoff = session.BackoffConfig{
		InitialDelay: 20 * time.Millisecond,
		Multiplier:   1.0,
		MaxDelay:     20 * time.Millisecond,
	}
	return cfg
}

func newTestSession(t *testing.T, cfg session.Config, hs Handshaker, dialer Dialer) *Session {
	t.Helper()
	s, err := NewSession(Options{Config: cfg, Handshaker: hs, Dialer: dialer})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func startTestSession(t *testing.T, cfg session.Config, policies ...ackPolicy) (*Session, *fakeDialer) {
	t.Helper()
	dialer := newFakeDialer(policies...)
	s := newTestSession(t, cfg, &fakeHandshaker{}, dialer)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	return s, dialer
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func waitState(t *testing.T, s *Session, want State) {
	t.Helper()
	waitFor(t, 2*time.Second, func() bool { return s.State() == want }, "state "+want.String())
}
