// Package session holds the signed-in user's token for every client view.
// Only this package refreshes or clears it.
package session

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// ErrNoSession is returned by Token when nobody is signed in.
var ErrNoSession = errors.New("not signed in")

// User is the signed-in account as the client knows it.
type User struct {
	ID          uuid.UUID `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
}

// EventKind says what happened to the session.
type EventKind int

const (
	EventEstablished EventKind = iota + 1
	EventInvalidated
)

func (k EventKind) String() string {
	switch k {
	case EventEstablished:
		return "established"
	case EventInvalidated:
		return "invalidated"
	default:
		return "unknown"
	}
}

// Event is delivered to subscribers on every session change.
type Event struct {
	Kind EventKind
	User User
}

// Context is the process-wide session. It satisfies oauth2.TokenSource,
// so HTTP clients built on it always send the current token.
type Context struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time

	mu        sync.RWMutex
	saved     Saved
	listeners map[chan Event]struct{}
}

var _ oauth2.TokenSource = (*Context)(nil)

// New loads any saved session from store. A missing or unreadable file
// starts signed out.
func New(store Store, logger *slog.Logger) *Context {
	if store == nil {
		store = NewMemoryStore()
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &Context{
		store:     store,
		logger:    logger,
		now:       time.Now,
		listeners: make(map[chan Event]struct{}),
	}
	saved, err := store.Load()
	switch {
	case errors.Is(err, ErrNotSaved):
	case err != nil:
		logger.Warn("ignoring unreadable saved session", "error", err)
	default:
		c.saved = saved
	}
	return c
}

// Token returns the current bearer token.
func (c *Context) Token() (*oauth2.Token, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.validLocked() {
		return nil, ErrNoSession
	}
	return &oauth2.Token{
		AccessToken: c.saved.Token,
		TokenType:   "Bearer",
		Expiry:      c.saved.ExpiresAt,
	}, nil
}

// Principal returns the signed-in user.
func (c *Context) Principal() (User, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.validLocked() {
		return User{}, false
	}
	return c.saved.User, true
}

func (c *Context) validLocked() bool {
	if c.saved.Token == "" {
		return false
	}
	return c.saved.ExpiresAt.IsZero() || c.now().Before(c.saved.ExpiresAt)
}

// SetSession replaces the session and persists it.
func (c *Context) SetSession(token string, expiresAt time.Time, user User) error {
	saved := Saved{Token: token, ExpiresAt: expiresAt, User: user}
	if err := c.store.Save(saved); err != nil {
		return err
	}
	c.mu.Lock()
	c.saved = saved
	c.mu.Unlock()
	c.emit(Event{Kind: EventEstablished, User: user})
	return nil
}

// Invalidate clears the session if token is still the current one. Views
// that see the same 401 concurrently all call it; only the first clears,
// and it reports true.
func (c *Context) Invalidate(token string) bool {
	c.mu.Lock()
	if token == "" || c.saved.Token != token {
		c.mu.Unlock()
		return false
	}
	user := c.saved.User
	c.saved = Saved{}
	c.mu.Unlock()

	if err := c.store.Clear(); err != nil {
		c.logger.Warn("failed to clear saved session", "error", err)
	}
	c.logger.Info("session invalidated", "user_id", user.ID)
	c.emit(Event{Kind: EventInvalidated, User: user})
	return true
}

// Clear signs out regardless of which token is current.
func (c *Context) Clear() {
	c.mu.RLock()
	token := c.saved.Token
	c.mu.RUnlock()
	c.Invalidate(token)
}

// Subscribe returns a channel of session events and a function that
// stops delivery. Slow listeners miss events rather than block writers.
func (c *Context) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 4)
	c.mu.Lock()
	c.listeners[ch] = struct{}{}
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.listeners, ch)
			c.mu.Unlock()
			close(ch)
		})
	}
}

func (c *Context) emit(e Event) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for ch := range c.listeners {
		select {
		case ch <- e:
		default:
		}
	}
}
