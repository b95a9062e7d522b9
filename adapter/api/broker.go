package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	chatCommands "github.com/felixgeelhaar/caravan/internal/chat/application/commands"
	chatQueries "github.com/felixgeelhaar/caravan/internal/chat/application/queries"
	chatDomain "github.com/felixgeelhaar/caravan/internal/chat/domain"
	"github.com/felixgeelhaar/caravan/internal/identity/application/auth"
	sharedApplication "github.com/felixgeelhaar/caravan/internal/shared/application"
	"github.com/felixgeelhaar/caravan/pkg/observability"
	"github.com/felixgeelhaar/caravan/pkg/stomp"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	chatTopicPrefix  = "/topic/chat/"
	planTopicPrefix  = "/topic/plans/"
	chatSendPrefix   = "/app/chat/"
	brokerServerName = "caravan/1.0"
)

// BrokerConfig tunes the STOMP endpoint.
type BrokerConfig struct {
	// HeartBeat is what the broker offers in CONNECTED.
	HeartBeat      stomp.HeartBeat
	ConnectTimeout time.Duration
	WriteTimeout   time.Duration
	// SendBuffer is the per-connection outbound queue. A subscriber that
	// falls this far behind is disconnected.
	SendBuffer     int
	AllowedOrigins []string
}

// DefaultBrokerConfig returns the default broker configuration.
func DefaultBrokerConfig() BrokerConfig {
	return BrokerConfig{
		HeartBeat:      stomp.HeartBeat{Send: 10 * time.Second, Receive: 10 * time.Second},
		ConnectTimeout: 10 * time.Second,
		WriteTimeout:   10 * time.Second,
		SendBuffer:     64,
	}
}

// Broker is a STOMP 1.2 endpoint over WebSocket. It serves plan chat and
// plan-change hints to the subscribers connected to this instance.
type Broker struct {
	cfg      BrokerConfig
	authn    Authenticator
	access   sharedApplication.PlanAccessChecker
	send     *chatCommands.SendMessageHandler
	get      *chatQueries.GetMessageHandler
	metrics  observability.Metrics
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu       sync.RWMutex
	topics   map[string]map[subscription]struct{}
	sessions map[*brokerSession]struct{}
	closed   bool

	messageSeq atomic.Uint64
}

type subscription struct {
	s  *brokerSession
	id string
}

// NewBroker creates a broker.
func NewBroker(
	cfg BrokerConfig,
	authn Authenticator,
	access sharedApplication.PlanAccessChecker,
	send *chatCommands.SendMessageHandler,
	get *chatQueries.GetMessageHandler,
	metrics observability.Metrics,
	logger *slog.Logger,
) *Broker {
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	defaults := DefaultBrokerConfig()
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = defaults.SendBuffer
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaults.ConnectTimeout
	}
	b := &Broker{
		cfg:      cfg,
		authn:    authn,
		access:   access,
		send:     send,
		get:      get,
		metrics:  metrics,
		logger:   logger.With("component", "stomp_broker"),
		topics:   make(map[string]map[subscription]struct{}),
		sessions: make(map[*brokerSession]struct{}),
	}
	// A handshake timeout also clears the deadlines http.Server left on
	// the hijacked connection.
	b.upgrader = websocket.Upgrader{
		HandshakeTimeout: cfg.ConnectTimeout,
		Subprotocols:     []string{stomp.Subprotocol, "v11.stomp", "v10.stomp"},
		CheckOrigin:      b.checkOrigin,
	}
	return b
}

func (b *Broker) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(b.cfg.AllowedOrigins) == 0 {
		return true
	}
	return slices.Contains(b.cfg.AllowedOrigins, "*") || slices.Contains(b.cfg.AllowedOrigins, origin)
}

// ServeHTTP upgrades the request and runs the STOMP session until either
// side disconnects.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	s := &brokerSession{
		b:    b,
		conn: conn,
		out:  make(chan []byte, b.cfg.SendBuffer),
		done: make(chan struct{}),
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		_ = conn.Close()
		return
	}
	b.sessions[s] = struct{}{}
	b.metrics.Gauge(observability.MetricChatSessions, float64(len(b.sessions)))
	b.mu.Unlock()

	// Request contexts end when the handler returns; the session owns
	// its own lifetime from here.
	ctx := observability.NewRequestContext(context.WithoutCancel(r.Context()), "")
	s.run(ctx)
}

// Broadcast sends body to every subscription on destination. Slow
// subscribers whose queues are full are disconnected.
func (b *Broker) Broadcast(destination string, body []byte) int {
	b.mu.RLock()
	subs := make([]subscription, 0, len(b.topics[destination]))
	for sub := range b.topics[destination] {
		subs = append(subs, sub)
	}
	b.mu.RUnlock()

	delivered := 0
	for _, sub := range subs {
		f := stomp.New(stomp.CmdMessage,
			stomp.HdrDestination, destination,
			stomp.HdrSubscription, sub.id,
			stomp.HdrMessageID, strconv.FormatUint(b.messageSeq.Add(1), 10),
			stomp.HdrContentType, "application/json",
		)
		f.Body = body
		if sub.s.enqueue(f) {
			delivered++
		}
	}
	return delivered
}

// Subscribers returns the number of subscriptions on destination.
func (b *Broker) Subscribers(destination string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[destination])
}

// Close disconnects every session and refuses new ones.
func (b *Broker) Close() {
	b.mu.Lock()
	b.closed = true
	sessions := make([]*brokerSession, 0, len(b.sessions))
	for s := range b.sessions {
		sessions = append(sessions, s)
	}
	b.mu.Unlock()
	for _, s := range sessions {
		s.close()
	}
}

func (b *Broker) subscribe(s *brokerSession, id, destination string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs, ok := b.topics[destination]
	if !ok {
		subs = make(map[subscription]struct{})
		b.topics[destination] = subs
	}
	subs[subscription{s: s, id: id}] = struct{}{}
}

func (b *Broker) unsubscribe(s *brokerSession, id, destination string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dropLocked(subscription{s: s, id: id}, destination)
}

func (b *Broker) dropLocked(sub subscription, destination string) {
	subs := b.topics[destination]
	delete(subs, sub)
	if len(subs) == 0 {
		delete(b.topics, destination)
	}
}

func (b *Broker) remove(s *brokerSession) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, destination := range s.subs {
		b.dropLocked(subscription{s: s, id: id}, destination)
	}
	delete(b.sessions, s)
	b.metrics.Gauge(observability.MetricChatSessions, float64(len(b.sessions)))
}

// errProtocol marks failures after which the connection is closed.
var errProtocol = errors.New("stomp protocol error")

type brokerSession struct {
	b         *Broker
	conn      *websocket.Conn
	out       chan []byte
	done      chan struct{}
	closeOnce sync.Once

	principal auth.Principal
	expect    time.Duration
	// subs maps subscription id to destination. Only the read loop
	// mutates it.
	subs map[string]string
}

func (s *brokerSession) run(ctx context.Context) {
	defer func() {
		s.b.remove(s)
		s.close()
	}()

	sendEvery, err := s.handshake(ctx)
	if err != nil {
		s.b.logger.DebugContext(ctx, "stomp handshake failed", "error", err)
		return
	}
	ctx = observability.WithUserID(ctx, s.principal.UserID.String())
	s.b.logger.InfoContext(ctx, "stomp session opened")

	go s.writeLoop(sendEvery)

	for {
		f, err := s.read()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) &&
				!errors.Is(err, errProtocol) {
				s.b.logger.DebugContext(ctx, "stomp read ended", "error", err)
			}
			if errors.Is(err, errProtocol) {
				s.sendError(err.Error(), "")
			}
			break
		}
		if f == nil {
			continue
		}
		if f.Command == stomp.CmdDisconnect {
			s.receipt(f)
			break
		}
		if err := s.dispatch(ctx, f); err != nil {
			if errors.Is(err, errProtocol) {
				s.sendError(err.Error(), f.Get(stomp.HdrReceipt))
				break
			}
			s.sendError(toAPIError(err).Message, f.Get(stomp.HdrReceipt))
			continue
		}
		s.receipt(f)
	}
	s.b.logger.InfoContext(ctx, "stomp session closed")
}

// handshake reads CONNECT, authenticates and answers CONNECTED.
func (s *brokerSession) handshake(ctx context.Context) (time.Duration, error) {
	if s.b.cfg.ConnectTimeout > 0 {
		_ = s.conn.SetReadDeadline(time.Now().Add(s.b.cfg.ConnectTimeout))
	}
	f, err := s.read()
	if err != nil {
		return 0, err
	}
	if f == nil || (f.Command != stomp.CmdConnect && f.Command != stomp.CmdStomp) {
		s.writeNow(errorFrame("expected CONNECT", ""))
		return 0, fmt.Errorf("%w: expected CONNECT", errProtocol)
	}
	if v := f.Get(stomp.HdrAcceptVersion); v != "" && !slices.Contains(strings.Split(v, ","), "1.2") {
		s.writeNow(errorFrame("supported protocol versions are 1.2", ""))
		return 0, fmt.Errorf("%w: unsupported versions %q", errProtocol, v)
	}

	token := bearerToken(f.Get(stomp.HdrAuthorization))
	if token == "" {
		token = f.Get(stomp.HdrPasscode)
	}
	if token == "" {
		s.writeNow(errorFrame("authentication required", ""))
		return 0, fmt.Errorf("%w: no credentials", errProtocol)
	}
	p, err := s.b.authn.Authenticate(ctx, token)
	if err != nil {
		s.writeNow(errorFrame("authentication failed", ""))
		return 0, err
	}
	s.principal = p
	s.subs = make(map[string]string)

	remote, err := stomp.ParseHeartBeat(f.Get(stomp.HdrHeartBeat))
	if err != nil {
		s.writeNow(errorFrame(err.Error(), ""))
		return 0, fmt.Errorf("%w: %v", errProtocol, err)
	}
	sendEvery, expect := stomp.Negotiate(s.b.cfg.HeartBeat, remote)
	s.expect = expect

	connected := stomp.New(stomp.CmdConnected,
		stomp.HdrVersion, "1.2",
		stomp.HdrHeartBeat, s.b.cfg.HeartBeat.String(),
		stomp.HdrServer, brokerServerName,
	)
	if err := s.writeNow(connected); err != nil {
		return 0, err
	}
	return sendEvery, nil
}

// read returns the next frame, or nil for a heart-beat.
func (s *brokerSession) read() (*stomp.Frame, error) {
	if s.expect > 0 {
		_ = s.conn.SetReadDeadline(time.Now().Add(2 * s.expect))
	} else if s.subs != nil {
		_ = s.conn.SetReadDeadline(time.Time{})
	}
	_, data, err := s.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	f, err := stomp.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errProtocol, err)
	}
	return f, nil
}

func (s *brokerSession) dispatch(ctx context.Context, f *stomp.Frame) error {
	switch f.Command {
	case stomp.CmdSubscribe:
		return s.handleSubscribe(ctx, f)
	case stomp.CmdUnsubscribe:
		if err := f.Require(stomp.HdrID); err != nil {
			return fmt.Errorf("%w: %v", errProtocol, err)
		}
		id := f.Get(stomp.HdrID)
		if destination, ok := s.subs[id]; ok {
			s.b.unsubscribe(s, id, destination)
			delete(s.subs, id)
		}
		return nil
	case stomp.CmdSend:
		return s.handleSend(ctx, f)
	case stomp.CmdAck, stomp.CmdNack:
		// Subscriptions are auto-ack.
		return nil
	default:
		return fmt.Errorf("%w: unsupported command %s", errProtocol, f.Command)
	}
}

func (s *brokerSession) handleSubscribe(ctx context.Context, f *stomp.Frame) error {
	if err := f.Require(stomp.HdrDestination, stomp.HdrID); err != nil {
		return fmt.Errorf("%w: %v", errProtocol, err)
	}
	id, destination := f.Get(stomp.HdrID), f.Get(stomp.HdrDestination)
	if _, dup := s.subs[id]; dup {
		return fmt.Errorf("%w: duplicate subscription id %q", errProtocol, id)
	}

	planID, ok := planFromDestination(destination, chatTopicPrefix)
	if !ok {
		planID, ok = planFromDestination(destination, planTopicPrefix)
	}
	if !ok {
		return badRequest("unknown destination " + destination)
	}
	if err := sharedApplication.RequireMember(ctx, s.b.access, planID, s.principal.UserID); err != nil {
		return err
	}

	s.b.subscribe(s, id, destination)
	s.subs[id] = destination
	return nil
}

type chatSendBody struct {
	Content     string `json:"content"`
	MessageType string `json:"messageType"`
}

func (s *brokerSession) handleSend(ctx context.Context, f *stomp.Frame) error {
	if err := f.Require(stomp.HdrDestination); err != nil {
		return fmt.Errorf("%w: %v", errProtocol, err)
	}
	planID, ok := planFromDestination(f.Get(stomp.HdrDestination), chatSendPrefix)
	if !ok {
		return badRequest("unknown destination " + f.Get(stomp.HdrDestination))
	}

	var body chatSendBody
	if err := json.Unmarshal(f.Body, &body); err != nil {
		return badRequest("body must be JSON {content, messageType}")
	}
	typ, err := chatDomain.ParseMessageType(body.MessageType)
	if err != nil {
		return err
	}

	msg, err := s.b.send.Handle(ctx, chatCommands.SendMessageCommand{
		PlanID:   planID,
		SenderID: s.principal.UserID,
		Content:  body.Content,
		Type:     typ,
	})
	if err != nil {
		return err
	}
	dto, err := s.b.get.Handle(ctx, msg.ID)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(dto)
	if err != nil {
		return err
	}
	n := s.b.Broadcast(chatTopicPrefix+planID.String(), payload)
	s.b.metrics.Counter(observability.MetricChatMessages, int64(n), observability.T("direction", "delivered"))
	return nil
}

func planFromDestination(destination, prefix string) (uuid.UUID, bool) {
	rest, ok := strings.CutPrefix(destination, prefix)
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(rest)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func (s *brokerSession) receipt(f *stomp.Frame) {
	if r := f.Get(stomp.HdrReceipt); r != "" {
		s.enqueue(stomp.New(stomp.CmdReceipt, stomp.HdrReceiptID, r))
	}
}

func (s *brokerSession) sendError(message, receipt string) {
	s.enqueue(errorFrame(message, receipt))
}

func errorFrame(message, receipt string) *stomp.Frame {
	f := stomp.New(stomp.CmdError, stomp.HdrMessage, message)
	if receipt != "" {
		f.Set(stomp.HdrReceiptID, receipt)
	}
	return f
}

// enqueue queues f for the write loop. It reports false when the session
// is gone or too slow, closing it in the latter case.
func (s *brokerSession) enqueue(f *stomp.Frame) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.out <- stomp.Marshal(f):
		return true
	case <-s.done:
		return false
	default:
		s.b.logger.Warn("closing slow stomp subscriber", "user_id", s.principal.UserID)
		s.close()
		return false
	}
}

// writeNow writes directly. Only used before the write loop starts.
func (s *brokerSession) writeNow(f *stomp.Frame) error {
	if s.b.cfg.WriteTimeout > 0 {
		_ = s.conn.SetWriteDeadline(time.Now().Add(s.b.cfg.WriteTimeout))
	}
	return s.conn.WriteMessage(websocket.TextMessage, stomp.Marshal(f))
}

func (s *brokerSession) writeLoop(heartBeat time.Duration) {
	var tick <-chan time.Time
	if heartBeat > 0 {
		ticker := time.NewTicker(heartBeat)
		defer ticker.Stop()
		tick = ticker.C
	}
	write := func(data []byte) bool {
		if s.b.cfg.WriteTimeout > 0 {
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.b.cfg.WriteTimeout))
		}
		return s.conn.WriteMessage(websocket.TextMessage, data) == nil
	}
	for {
		select {
		case data := <-s.out:
			if !write(data) {
				s.close()
				return
			}
		case <-tick:
			if !write([]byte("\n")) {
				s.close()
				return
			}
		case <-s.done:
			// Flush what is already queued, such as a final RECEIPT or ERROR.
			for {
				select {
				case data := <-s.out:
					if !write(data) {
						return
					}
				default:
					_ = s.conn.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
						time.Now().Add(time.Second))
					return
				}
			}
		}
	}
}

func (s *brokerSession) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		// Give the write loop a moment to flush before the socket goes.
		go func() {
			time.Sleep(100 * time.Millisecond)
			_ = s.conn.Close()
		}()
	})
}
