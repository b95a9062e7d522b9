// Package api is the typed HTTP client for the caravan REST surface.
//
// Reads are retried with backoff on network and server failures; writes are
// attempted exactly once so a lost response never duplicates a transition.
// A circuit breaker stops hammering a server that keeps failing, and a 401
// drops the session that produced it.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/oauth2"

	"github.com/felixgeelhaar/caravan/internal/client/session"
)

// Config configures a Client.
type Config struct {
	BaseURL      string
	Timeout      time.Duration
	ReadAttempts int

	// Backoff is the first retry delay. It doubles up to MaxBackoff.
	Backoff    time.Duration
	MaxBackoff time.Duration

	// BreakerFailures consecutive transient failures open the breaker for
	// BreakerCooldown.
	BreakerFailures uint32
	BreakerCooldown time.Duration

	HTTPClient *http.Client
	Logger     *slog.Logger
}

// DefaultConfig returns client settings for baseURL.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:         baseURL,
		Timeout:         10 * time.Second,
		ReadAttempts:    3,
		Backoff:         200 * time.Millisecond,
		MaxBackoff:      2 * time.Second,
		BreakerFailures: 5,
		BreakerCooldown: 30 * time.Second,
	}
}

// Client talks to one caravan server on behalf of one session.
type Client struct {
	base    *url.URL
	cfg     Config
	http    *http.Client
	session *session.Context
	breaker *gobreaker.CircuitBreaker[struct{}]
	logger  *slog.Logger
}

// New creates a client. Authenticated calls use the token held by sess.
func New(cfg Config, sess *session.Context) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid api base url %q", cfg.BaseURL)
	}
	if cfg.ReadAttempts < 1 {
		cfg.ReadAttempts = 1
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 200 * time.Millisecond
	}
	if cfg.MaxBackoff < cfg.Backoff {
		cfg.MaxBackoff = cfg.Backoff
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = 30 * time.Second
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	c := &Client{
		base:    base,
		cfg:     cfg,
		http:    httpClient,
		session: sess,
		logger:  logger,
	}
	c.breaker = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "caravan-api",
		MaxRequests: 1,
		Timeout:     cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		// Client errors say nothing about server health.
		IsSuccessful: func(err error) bool {
			return err == nil || !Transient(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("api circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})
	return c, nil
}

// Session returns the session the client authenticates with.
func (c *Client) Session() *session.Context { return c.session }

// FileURL resolves a stored file reference to a download URL.
func (c *Client) FileURL(ref string) string {
	if ref == "" {
		return ""
	}
	return c.base.JoinPath("files", ref).String()
}

// BaseURL returns the API root the client was configured with.
func (c *Client) BaseURL() *url.URL {
	u := *c.base
	return &u
}

type request struct {
	method      string
	path        string
	query       url.Values
	body        []byte
	contentType string
	public      bool
	out         any
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, request{method: http.MethodGet, path: path, query: query, out: out})
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	req := request{method: http.MethodPost, path: path, out: out}
	if in != nil {
		body, err := jsonBody(in)
		if err != nil {
			return err
		}
		req.body = body
		req.contentType = "application/json"
	}
	return c.do(ctx, req)
}

func jsonBody(in any) ([]byte, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	return body, nil
}

// do runs req, retrying reads on transient failures.
func (c *Client) do(ctx context.Context, req request) error {
	attempts := 1
	if req.method == http.MethodGet {
		attempts = c.cfg.ReadAttempts
	}

	delay := c.cfg.Backoff
	var err error
	for attempt := 1; ; attempt++ {
		err = c.attempt(ctx, req)
		if err == nil || !Transient(err) || errors.Is(err, ErrCircuitOpen) || attempt >= attempts {
			return err
		}
		c.logger.DebugContext(ctx, "retrying read",
			"path", req.path,
			"attempt", attempt,
			"delay", delay,
			"error", err,
		)
		select {
		case <-ctx.Done():
			return &Error{Kind: KindNetwork, Err: ctx.Err()}
		case <-time.After(delay):
		}
		delay = min(delay*2, c.cfg.MaxBackoff)
	}
}

func (c *Client) attempt(ctx context.Context, req request) error {
	_, err := c.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, c.send(ctx, req)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &Error{Kind: KindNetwork, Err: ErrCircuitOpen}
	}
	return err
}

func (c *Client) send(ctx context.Context, req request) error {
	u := c.base.JoinPath(req.path)
	if len(req.query) > 0 {
		u.RawQuery = req.query.Encode()
	}

	var body io.Reader
	if req.body != nil {
		body = bytes.NewReader(req.body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.method, u.String(), body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.contentType != "" {
		httpReq.Header.Set("Content-Type", req.contentType)
	}

	client := c.http
	var tok *oauth2.Token
	if !req.public {
		tok, err = c.session.Token()
		if err != nil {
			return &Error{Kind: KindUnauthorized, Err: err}
		}
		client = c.authorized(tok)
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return &Error{Kind: KindNetwork, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := decodeError(resp)
		if apiErr.Kind == KindUnauthorized && tok != nil {
			if c.session.Invalidate(tok.AccessToken) {
				c.logger.InfoContext(ctx, "session rejected by server", "path", req.path)
			}
		}
		return apiErr
	}

	if req.out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(req.out); err != nil {
		return &Error{Kind: KindServer, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// authorized wraps the configured HTTP client in an oauth2.Transport that
// sends tok. The token is pinned per request so a 401 invalidates exactly
// the token the server saw.
func (c *Client) authorized(tok *oauth2.Token) *http.Client {
	return &http.Client{
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(tok),
			Base:   c.http.Transport,
		},
		CheckRedirect: c.http.CheckRedirect,
		Jar:           c.http.Jar,
		Timeout:       c.http.Timeout,
	}
}

func decodeError(resp *http.Response) *Error {
	var body errorBody
	_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body)
	e := &Error{
		Kind:    kindForStatus(resp.StatusCode, body.Error),
		Status:  resp.StatusCode,
		Code:    body.Error,
		Message: body.Message,
		Fields:  body.Fields,
	}
	if e.Message == "" {
		e.Message = http.StatusText(resp.StatusCode)
	}
	return e
}
