// Package transport keeps a resilient websocket session to the sign
// recognizer: it reconnects with exponential backoff, refuses outbound frames
// when the socket is backed up, and decodes inbound predictions.
package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chriscow/meetsl-go/pkg/caption"
	"github.com/chriscow/meetsl-go/pkg/rtc"
)

// Defaults
const (
	DefaultInitialBackoff   = 1 * time.Second
	DefaultMaxBackoff       = 16 * time.Second
	DefaultMaxBufferedBytes = 50 * 1024
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultQueueSize        = 256
)

var (
	// ErrClosed is returned by Run after Close.
	ErrClosed = errors.New("transport closed")

	// ErrRunning is returned by Run when the transport is already running.
	ErrRunning = errors.New("transport already running")
)

// State is the connection state.
type State int32

const (
	Offline State = iota
	Connecting
	Connected
	Reconnecting
)

func (s State) String() string {
	switch s {
	case Offline:
		return "offline"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// MarshalText renders the state name in JSON output.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Config configures a Transport.
type Config struct {
	// URL is the recognizer's session base URL, e.g. ws://host:8000/ws/session.
	URL       string
	SessionID string

	InitialBackoff   time.Duration
	MaxBackoff       time.Duration
	MaxBufferedBytes int
	HandshakeTimeout time.Duration
	QueueSize        int
}

func (c *Config) applyDefaults() {
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = DefaultInitialBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = DefaultMaxBackoff
	}
	if c.MaxBufferedBytes <= 0 {
		c.MaxBufferedBytes = DefaultMaxBufferedBytes
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.QueueSize <= 0 {
		c.QueueSize = DefaultQueueSize
	}
}

// Stats is a snapshot of transport counters.
type Stats struct {
	State         State         `json:"state"`
	Endpoint      string        `json:"endpoint"`
	Failures      int           `json:"consecutive_failures"`
	Backoff       time.Duration `json:"backoff"`
	BufferedBytes int64         `json:"buffered_bytes"`
	Sent          uint64        `json:"sent"`
	Rejected      uint64        `json:"rejected"`
}

// Transport owns the websocket to the recognizer for one session.
type Transport struct {
	cfg      Config
	endpoint string
	logger   *slog.Logger

	mu        sync.Mutex
	state     State
	backoff   *backoff
	out       chan []byte
	onMessage func(caption.Prediction)
	onState   func(State)
	cancel    context.CancelFunc
	done      chan struct{}
	closed    bool

	buffered atomic.Int64
	sent     atomic.Uint64
	rejected atomic.Uint64
}

// New creates a Transport. It does not connect until Run is called.
func New(cfg Config, logger *slog.Logger) (*Transport, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.applyDefaults()

	if cfg.SessionID == "" {
		return nil, fmt.Errorf("session id is required")
	}
	endpoint, err := url.JoinPath(cfg.URL, cfg.SessionID)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	return &Transport{
		cfg:      cfg,
		endpoint: endpoint,
		logger:   logger.With(slog.String("session", cfg.SessionID)),
		state:    Offline,
		backoff:  newBackoff(cfg.InitialBackoff, cfg.MaxBackoff),
	}, nil
}

// Endpoint returns the websocket URL for this session.
func (t *Transport) Endpoint() string {
	return t.endpoint
}

// OnMessage registers the handler for decoded predictions. It is called from
// the reader goroutine in arrival order and must not call Close.
func (t *Transport) OnMessage(fn func(caption.Prediction)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onMessage = fn
}

// OnStateChange registers the state transition handler. It must not call Close.
func (t *Transport) OnStateChange(fn func(State)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onState = fn
}

// State returns the current connection state.
func (t *Transport) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Stats returns a snapshot of the transport counters.
func (t *Transport) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Stats{
		State:         t.state,
		Endpoint:      t.endpoint,
		Failures:      t.backoff.failures,
		Backoff:       t.backoff.current,
		BufferedBytes: t.buffered.Load(),
		Sent:          t.sent.Load(),
		Rejected:      t.rejected.Load(),
	}
}

// Send queues payload for transmission. It returns false, without sending,
// when the socket is not connected or more than MaxBufferedBytes are still
// waiting to be written.
func (t *Transport) Send(payload []byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != Connected || t.out == nil {
		t.rejected.Add(1)
		return false
	}
	if t.buffered.Load() > int64(t.cfg.MaxBufferedBytes) {
		t.rejected.Add(1)
		return false
	}

	t.buffered.Add(int64(len(payload)))
	select {
	case t.out <- payload:
		t.sent.Add(1)
		return true
	default:
		t.buffered.Add(-int64(len(payload)))
		t.rejected.Add(1)
		return false
	}
}

// Run connects and keeps reconnecting until ctx is canceled or Close is
// called. It always leaves the transport Offline.
func (t *Transport) Run(ctx context.Context) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrClosed
	}
	if t.cancel != nil {
		t.mu.Unlock()
		return ErrRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	t.cancel = cancel
	t.done = done
	t.mu.Unlock()

	defer close(done)
	defer cancel()

	t.logger.Info("Starting transport", slog.String("url", t.endpoint))

	for {
		t.setState(Connecting)
		err := t.connectAndServe(ctx)
		if ctx.Err() != nil {
			break
		}
		if err != nil {
			t.logger.Warn("Transport connection lost", slog.String("error", err.Error()))
		}

		t.setState(Reconnecting)
		if err := t.backoffDelay(ctx); err != nil {
			break
		}
	}

	t.setState(Offline)
	t.logger.Info("Transport stopped")
	return nil
}

// Close tears the transport down: the reconnect wait is canceled, the socket
// closed and no further attempts are made.
func (t *Transport) Close() error {
	t.mu.Lock()
	t.closed = true
	cancel, done := t.cancel, t.done
	t.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	return nil
}

func (t *Transport) connectAndServe(ctx context.Context) error {
	conn, err := dial(ctx, t.endpoint, t.cfg.HandshakeTimeout, t.logger)
	if err != nil {
		return err
	}

	out := make(chan []byte, t.cfg.QueueSize)
	t.buffered.Store(0)
	t.mu.Lock()
	t.backoff.reset()
	t.out = out
	t.mu.Unlock()
	t.setState(Connected)

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errCh := make(chan error, 2)

	wg.Add(2)
	go func() {
		defer wg.Done()
		errCh <- t.readLoop(conn)
	}()
	go func() {
		defer wg.Done()
		errCh <- t.writeLoop(connCtx, conn, out)
	}()

	select {
	case err = <-errCh:
	case <-ctx.Done():
	}

	t.mu.Lock()
	t.out = nil
	t.mu.Unlock()

	cancel()
	if cerr := conn.close(); cerr != nil {
		t.logger.Debug("Error closing WebSocket", slog.String("error", cerr.Error()))
	}
	wg.Wait()
	t.buffered.Store(0)
	return err
}

func (t *Transport) readLoop(conn *wsConn) error {
	for {
		data, err := conn.readMessage()
		if err != nil {
			return err
		}
		t.dispatch(data)
	}
}

func (t *Transport) dispatch(data []byte) {
	pred, err := rtc.DecodePrediction(data)
	if err != nil {
		t.logger.Debug("Ignoring inbound message", slog.String("reason", err.Error()))
		return
	}

	t.mu.Lock()
	fn := t.onMessage
	t.mu.Unlock()
	if fn != nil {
		fn(pred)
	}
}

func (t *Transport) writeLoop(ctx context.Context, conn *wsConn, out <-chan []byte) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case data := <-out:
			err := conn.writeMessage(data)
			t.buffered.Add(-int64(len(data)))
			if err != nil {
				return err
			}
		}
	}
}

func (t *Transport) backoffDelay(ctx context.Context) error {
	t.mu.Lock()
	delay := t.backoff.next()
	attempt := t.backoff.failures
	t.mu.Unlock()

	t.logger.Info("Reconnecting with backoff",
		slog.Int("attempt", attempt),
		slog.Duration("delay", delay))

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Transport) setState(s State) {
	t.mu.Lock()
	if t.state == s {
		t.mu.Unlock()
		return
	}
	prev := t.state
	t.state = s
	fn := t.onState
	t.mu.Unlock()

	t.logger.Debug("Transport state changed",
		slog.String("from", prev.String()),
		slog.String("to", s.String()))
	if fn != nil {
		fn(s)
	}
}
