// Package chat keeps one plan's chat open: history pulled over REST, live
// messages pushed over STOMP, merged into a single ordered transcript.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/caravan/internal/client/api"
	"github.com/felixgeelhaar/caravan/internal/client/push"
	"github.com/felixgeelhaar/caravan/pkg/stomp"
)

// ErrNotConnected is returned by Send while the push channel is down.
// Messages are never queued for later.
var ErrNotConnected = errors.New("chat: not connected")

// State is the push channel state of a Transport.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Config configures a Transport.
type Config struct {
	WSURL          string
	HistoryLimit   int
	ReconnectDelay time.Duration
	HeartBeat      stomp.HeartBeat
	Logger         *slog.Logger
}

// DefaultConfig returns chat settings for the broker at wsURL.
func DefaultConfig(wsURL string) Config {
	return Config{
		WSURL:          wsURL,
		HistoryLimit:   100,
		ReconnectDelay: 5 * time.Second,
		HeartBeat:      stomp.HeartBeat{Send: 10 * time.Second, Receive: 10 * time.Second},
	}
}

// Transport is one open chat view.
type Transport struct {
	cfg    Config
	client *api.Client
	planID uuid.UUID
	logger *slog.Logger

	mu     sync.Mutex
	state  State
	conn   *push.Conn
	log    *transcript
	closed bool

	states   chan State
	messages chan []api.ChatMessage

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

func newTransport(cfg Config, client *api.Client, planID uuid.UUID) *Transport {
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 100
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 5 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Transport{
		cfg:      cfg,
		client:   client,
		planID:   planID,
		logger:   logger.With("plan_id", planID),
		state:    StateDisconnected,
		log:      newTranscript(),
		states:   make(chan State, 1),
		messages: make(chan []api.ChatMessage, 1),
		cancel:   func() {},
	}
}

// Open starts pulling history and connecting the push channel for planID.
// It returns at once; watch States and Messages for progress.
func Open(ctx context.Context, cfg Config, client *api.Client, planID uuid.UUID) *Transport {
	t := newTransport(cfg, client, planID)
	ctx, t.cancel = context.WithCancel(context.WithoutCancel(ctx))

	t.wg.Go(func() { t.seed(ctx) })
	t.wg.Go(func() { t.run(ctx) })
	return t
}

// States delivers the latest state after each change.
func (t *Transport) States() <-chan State { return t.states }

// Messages delivers the full ordered transcript after each change.
func (t *Transport) Messages() <-chan []api.ChatMessage { return t.messages }

// State returns the current state.
func (t *Transport) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Transcript returns the ordered messages received so far.
func (t *Transport) Transcript() []api.ChatMessage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.log.snapshot()
}

// Send publishes a text message. It fails with ErrNotConnected without
// touching the network unless the channel is connected.
func (t *Transport) Send(ctx context.Context, content string) error {
	t.mu.Lock()
	conn := t.conn
	connected := t.state == StateConnected && conn != nil
	t.mu.Unlock()
	if !connected {
		return ErrNotConnected
	}

	body, err := json.Marshal(map[string]string{"content": content, "messageType": "TEXT"})
	if err != nil {
		return err
	}
	if err := conn.Send(ctx, "/app/chat/"+t.planID.String(), "application/json", body); err != nil {
		return fmt.Errorf("send chat message: %w", err)
	}
	return nil
}

// Close releases the push channel exactly once, even while a reconnect is
// in flight, and stops all background work.
func (t *Transport) Close() {
	t.closeOnce.Do(func() {
		t.cancel()
		t.wg.Wait()

		t.mu.Lock()
		t.state = StateClosed
		t.closed = true
		replace(t.states, StateClosed)
		close(t.states)
		close(t.messages)
		t.mu.Unlock()
	})
}

func (t *Transport) seed(ctx context.Context) {
	history, err := t.client.ChatHistory(ctx, t.planID, t.cfg.HistoryLimit)
	if err != nil {
		if ctx.Err() == nil {
			t.logger.Warn("chat history unavailable", "error", err)
		}
		return
	}
	t.merge(history...)
}

func (t *Transport) run(ctx context.Context) {
	next := StateConnecting
	for {
		t.setState(next)
		err := t.connect(ctx, next == StateReconnecting)
		if ctx.Err() != nil {
			return
		}
		t.logger.Warn("chat channel lost", "error", err, "retry_in", t.cfg.ReconnectDelay)
		next = StateReconnecting
		t.setState(next)

		select {
		case <-ctx.Done():
			return
		case <-time.After(t.cfg.ReconnectDelay):
		}
	}
}

// connect holds one push session until it ends or ctx is cancelled.
func (t *Transport) connect(ctx context.Context, resumed bool) error {
	tok, err := t.client.Session().Token()
	if err != nil {
		return err
	}
	cfg := push.DefaultConfig(t.cfg.WSURL, tok.AccessToken)
	cfg.HeartBeat = t.cfg.HeartBeat
	cfg.Logger = t.logger

	conn, err := push.Dial(ctx, cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	unsubscribe, err := conn.Subscribe(ctx, "/topic/chat/"+t.planID.String(), t.onMessage)
	if err != nil {
		return err
	}
	defer func() { _ = unsubscribe() }()

	t.mu.Lock()
	t.conn = conn
	t.mu.Unlock()
	t.setState(StateConnected)
	defer func() {
		t.mu.Lock()
		t.conn = nil
		t.mu.Unlock()
	}()

	// A reconnect may have missed messages; history fills the gap.
	if resumed {
		t.wg.Go(func() { t.seed(ctx) })
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-conn.Done():
		return conn.Err()
	}
}

func (t *Transport) onMessage(f *stomp.Frame) {
	var m api.ChatMessage
	if err := json.Unmarshal(f.Body, &m); err != nil {
		t.logger.Warn("dropping malformed chat message", "error", err)
		return
	}
	t.merge(m)
}

func (t *Transport) merge(msgs ...api.ChatMessage) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	changed := false
	for _, m := range msgs {
		if t.log.add(m) {
			changed = true
		}
	}
	if changed {
		replace(t.messages, t.log.snapshot())
	}
}

func (t *Transport) setState(s State) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed || t.state == s {
		return
	}
	t.state = s
	replace(t.states, s)
}

// replace puts v in a one-slot channel, dropping any unread value. Callers
// hold t.mu, so there is a single writer.
func replace[T any](ch chan T, v T) {
	select {
	case <-ch:
	default:
	}
	ch <- v
}
