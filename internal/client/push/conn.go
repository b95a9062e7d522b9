// Package push is the client side of the caravan STOMP broker: one
// authenticated WebSocket session carrying any number of subscriptions.
package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/felixgeelhaar/caravan/pkg/stomp"
)

var (
	// ErrClosed is returned by operations on a closed connection.
	ErrClosed = errors.New("push: connection closed")

	// ErrRejected wraps an ERROR frame the broker answered a request with.
	ErrRejected = errors.New("push: rejected by broker")
)

// Config configures Dial.
type Config struct {
	URL   string
	Token string

	HeartBeat      stomp.HeartBeat
	ConnectTimeout time.Duration
	WriteTimeout   time.Duration
	ReceiptTimeout time.Duration

	Logger *slog.Logger
}

// DefaultConfig returns settings for the broker at url.
func DefaultConfig(url, token string) Config {
	return Config{
		URL:            url,
		Token:          token,
		HeartBeat:      stomp.HeartBeat{Send: 10 * time.Second, Receive: 10 * time.Second},
		ConnectTimeout: 10 * time.Second,
		WriteTimeout:   10 * time.Second,
		ReceiptTimeout: 10 * time.Second,
	}
}

// Handler receives MESSAGE frames for one subscription. It runs on the
// read loop and must not block.
type Handler func(*stomp.Frame)

// Conn is a connected STOMP session.
type Conn struct {
	cfg    Config
	ws     *websocket.Conn
	logger *slog.Logger

	writeMu sync.Mutex

	mu       sync.Mutex
	handlers map[string]Handler
	receipts map[string]chan error
	err      error

	seq       atomic.Uint64
	done      chan struct{}
	closeOnce sync.Once
}

// Dial opens the WebSocket, performs the CONNECT handshake and starts the
// read loop.
func Dial(ctx context.Context, cfg Config) (*Conn, error) {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.ReceiptTimeout <= 0 {
		cfg.ReceiptTimeout = 10 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	dialer := websocket.Dialer{
		Subprotocols:     []string{stomp.Subprotocol},
		HandshakeTimeout: cfg.ConnectTimeout,
		Proxy:            http.ProxyFromEnvironment,
	}
	ws, resp, err := dialer.DialContext(ctx, cfg.URL, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}

	c := &Conn{
		cfg:      cfg,
		ws:       ws,
		logger:   logger,
		handlers: make(map[string]Handler),
		receipts: make(map[string]chan error),
		done:     make(chan struct{}),
	}
	expect, err := c.handshake(ctx)
	if err != nil {
		_ = ws.Close()
		return nil, err
	}
	go c.readLoop(expect)
	return c, nil
}

func (c *Conn) handshake(ctx context.Context) (time.Duration, error) {
	connect := stomp.New(stomp.CmdConnect,
		stomp.HdrAcceptVersion, "1.2",
		stomp.HdrHost, "caravan",
		stomp.HdrHeartBeat, c.cfg.HeartBeat.String(),
	)
	if c.cfg.Token != "" {
		connect.Set(stomp.HdrAuthorization, "Bearer "+c.cfg.Token)
	}
	if err := c.write(connect); err != nil {
		return 0, fmt.Errorf("send connect: %w", err)
	}

	deadline := time.Now().Add(c.cfg.ConnectTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = c.ws.SetReadDeadline(deadline)
	f, err := c.read()
	if err != nil {
		return 0, fmt.Errorf("read connected: %w", err)
	}
	_ = c.ws.SetReadDeadline(time.Time{})

	switch f.Command {
	case stomp.CmdConnected:
	case stomp.CmdError:
		return 0, fmt.Errorf("%w: %s", ErrRejected, f.Get(stomp.HdrMessage))
	default:
		return 0, fmt.Errorf("unexpected %s frame during connect", f.Command)
	}

	remote, err := stomp.ParseHeartBeat(f.Get(stomp.HdrHeartBeat))
	if err != nil {
		return 0, err
	}
	sendEvery, expect := stomp.Negotiate(c.cfg.HeartBeat, remote)
	if sendEvery > 0 {
		go c.heartBeats(sendEvery)
	}
	return expect, nil
}

// read returns the next frame, skipping heart-beats.
func (c *Conn) read() (*stomp.Frame, error) {
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return nil, err
		}
		f, err := stomp.Unmarshal(data)
		if err != nil {
			return nil, err
		}
		if f != nil {
			return f, nil
		}
	}
}

func (c *Conn) readLoop(expect time.Duration) {
	for {
		if expect > 0 {
			// Allow for network jitter on top of the negotiated interval.
			_ = c.ws.SetReadDeadline(time.Now().Add(expect * 2))
		}
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			c.fail(err)
			return
		}
		f, err := stomp.Unmarshal(data)
		if err != nil {
			c.fail(err)
			return
		}
		if f == nil {
			continue
		}
		c.dispatch(f)
	}
}

func (c *Conn) dispatch(f *stomp.Frame) {
	switch f.Command {
	case stomp.CmdMessage:
		c.mu.Lock()
		h := c.handlers[f.Get(stomp.HdrSubscription)]
		c.mu.Unlock()
		if h != nil {
			h(f)
		}
	case stomp.CmdReceipt:
		c.settle(f.Get(stomp.HdrReceiptID), nil)
	case stomp.CmdError:
		msg := f.Get(stomp.HdrMessage)
		if id := f.Get(stomp.HdrReceiptID); id != "" && c.settle(id, fmt.Errorf("%w: %s", ErrRejected, msg)) {
			return
		}
		c.fail(fmt.Errorf("%w: %s", ErrRejected, msg))
	default:
		c.logger.Debug("ignoring frame", "command", f.Command)
	}
}

func (c *Conn) settle(id string, err error) bool {
	c.mu.Lock()
	ch, ok := c.receipts[id]
	delete(c.receipts, id)
	c.mu.Unlock()
	if ok {
		ch <- err
	}
	return ok
}

func (c *Conn) heartBeats(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if err := c.writeRaw([]byte("\n")); err != nil {
				c.fail(err)
				return
			}
		}
	}
}

func (c *Conn) write(f *stomp.Frame) error {
	return c.writeRaw(stomp.Marshal(f))
}

func (c *Conn) writeRaw(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// request sends f with a receipt header and waits for the broker's answer.
func (c *Conn) request(ctx context.Context, f *stomp.Frame) error {
	id := "r-" + strconv.FormatUint(c.seq.Add(1), 10)
	ch := make(chan error, 1)

	c.mu.Lock()
	if c.err != nil {
		err := c.err
		c.mu.Unlock()
		return err
	}
	c.receipts[id] = ch
	c.mu.Unlock()

	f.Set(stomp.HdrReceipt, id)
	if err := c.write(f); err != nil {
		c.settle(id, nil)
		c.fail(err)
		return fmt.Errorf("write %s: %w", f.Command, err)
	}

	timer := time.NewTimer(c.cfg.ReceiptTimeout)
	defer timer.Stop()
	select {
	case err := <-ch:
		return err
	case <-c.done:
		return c.Err()
	case <-ctx.Done():
		c.settle(id, nil)
		return ctx.Err()
	case <-timer.C:
		c.settle(id, nil)
		return fmt.Errorf("no receipt for %s", f.Command)
	}
}

// Subscribe registers h for destination and waits until the broker
// accepts the subscription. The returned function unsubscribes.
func (c *Conn) Subscribe(ctx context.Context, destination string, h Handler) (func() error, error) {
	id := "s-" + strconv.FormatUint(c.seq.Add(1), 10)
	c.mu.Lock()
	c.handlers[id] = h
	c.mu.Unlock()

	err := c.request(ctx, stomp.New(stomp.CmdSubscribe,
		stomp.HdrID, id,
		stomp.HdrDestination, destination,
	))
	if err != nil {
		c.mu.Lock()
		delete(c.handlers, id)
		c.mu.Unlock()
		return nil, fmt.Errorf("subscribe %s: %w", destination, err)
	}

	var once sync.Once
	return func() error {
		var err error
		once.Do(func() {
			c.mu.Lock()
			delete(c.handlers, id)
			c.mu.Unlock()
			if c.Err() == nil {
				err = c.write(stomp.New(stomp.CmdUnsubscribe, stomp.HdrID, id))
			}
		})
		return err
	}, nil
}

// Send publishes body to destination and waits for the broker to accept it.
func (c *Conn) Send(ctx context.Context, destination, contentType string, body []byte) error {
	f := stomp.New(stomp.CmdSend, stomp.HdrDestination, destination)
	if contentType != "" {
		f.Set(stomp.HdrContentType, contentType)
	}
	f.Body = body
	return c.request(ctx, f)
}

// Done is closed when the connection ends for any reason.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Err reports why the connection ended, or nil while it is open.
func (c *Conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Conn) fail(err error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		if err == nil {
			err = ErrClosed
		}
		c.err = err
		for id, ch := range c.receipts {
			ch <- err
			delete(c.receipts, id)
		}
		c.mu.Unlock()
		close(c.done)
		_ = c.ws.Close()
	})
}

// Close disconnects gracefully: it sends DISCONNECT, waits briefly for the
// receipt and closes the socket. It is safe to call more than once.
func (c *Conn) Close() error {
	if c.Err() == nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		_ = c.request(ctx, stomp.New(stomp.CmdDisconnect))
		cancel()
	}
	c.fail(ErrClosed)
	return nil
}
