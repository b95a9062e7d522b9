// Package reconcile keeps client views eventually consistent with the
// server by re-fetching each resource on its own cadence and emitting a
// keyed diff whenever the snapshot changes. Push hints trigger an early
// refresh; polling stays as the resync fallback.
package reconcile

import (
	"context"
	"log/slog"
	"reflect"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/felixgeelhaar/caravan/internal/client/api"
)

// EventKind says what a poll produced.
type EventKind int

const (
	// EventLoaded carries the first successful snapshot.
	EventLoaded EventKind = iota + 1
	// EventChanged carries a snapshot that differs from the previous one.
	EventChanged
	// EventError reports a failed fetch. The previous snapshot stays.
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventLoaded:
		return "loaded"
	case EventChanged:
		return "changed"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is one observation of a resource.
type Event[T any] struct {
	Kind       EventKind
	Generation uint64

	Snapshot []T
	Previous []T
	Added    []T
	Removed  []T
	Changed  []T

	Err error
	// Transient is set on errors a later poll may recover from.
	Transient bool
}

// Options configures a Poller.
type Options[T any] struct {
	Name     string
	Fetch    func(ctx context.Context) ([]T, error)
	Key      func(T) string
	Equal    func(a, b T) bool
	Interval time.Duration
	Warmup   time.Duration
	Logger   *slog.Logger
}

// Poller reconciles one resource.
type Poller[T any] struct {
	opts   Options[T]
	logger *slog.Logger

	issued  atomic.Uint64
	refresh chan struct{}
	events  chan Event[T]
	wake    chan struct{}

	// mu orders application of results. Events queue in pending in that
	// order and are sent by emit without holding mu.
	mu       sync.Mutex
	applied  uint64
	loaded   bool
	snapshot []T
	pending  []Event[T]
	closed   bool
}

// NewPoller creates a poller. Key is required; Equal defaults to deep
// equality.
func NewPoller[T any](opts Options[T]) *Poller[T] {
	if opts.Equal == nil {
		opts.Equal = func(a, b T) bool { return reflect.DeepEqual(a, b) }
	}
	if opts.Interval <= 0 {
		opts.Interval = 10 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller[T]{
		opts:    opts,
		logger:  logger.With("resource", opts.Name),
		refresh: make(chan struct{}, 1),
		events:  make(chan Event[T], 16),
		wake:    make(chan struct{}, 1),
	}
}

// Name identifies the resource in logs.
func (p *Poller[T]) Name() string { return p.opts.Name }

// Events delivers loads, changes and errors in generation order. It is
// closed when Run returns.
func (p *Poller[T]) Events() <-chan Event[T] { return p.events }

// Snapshot returns the last successfully fetched snapshot and whether one
// has been loaded yet.
func (p *Poller[T]) Snapshot() ([]T, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.snapshot), p.loaded
}

// Refresh asks for a fetch now. Requests made while one is pending
// collapse into it.
func (p *Poller[T]) Refresh() {
	select {
	case p.refresh <- struct{}{}:
	default:
	}
}

// Run polls until ctx is cancelled: first after the warm-up, then on every
// interval and on every Refresh. Fetches may overlap; a result older than
// one already applied is dropped, as is anything arriving after Run ends.
func (p *Poller[T]) Run(ctx context.Context) error {
	var wg, emitter sync.WaitGroup
	emitter.Go(func() { p.emit(ctx) })
	defer func() {
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()
		wg.Wait()
		emitter.Wait()
		p.flush()
		close(p.events)
	}()

	timer := time.NewTimer(p.opts.Warmup)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
			timer.Reset(p.opts.Interval)
		case <-p.refresh:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(p.opts.Interval)
		}
		gen := p.issued.Add(1)
		wg.Go(func() { p.poll(ctx, gen) })
	}
}

// poll runs one generation. Results are applied and queued under mu so
// events leave in generation order; superseded, unchanged or late results
// are dropped.
func (p *Poller[T]) poll(ctx context.Context, gen uint64) {
	items, err := p.opts.Fetch(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || ctx.Err() != nil || gen <= p.applied {
		p.logger.Debug("discarding stale poll", "generation", gen, "applied", p.applied)
		return
	}
	p.applied = gen

	ev, ok := p.apply(gen, items, err)
	if !ok {
		return
	}
	p.pending = append(p.pending, ev)
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// emit drains pending into Events in queue order. A slow consumer holds
// up only this goroutine; polls and Snapshot keep going.
func (p *Poller[T]) emit(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.wake:
		}
		for {
			p.mu.Lock()
			if len(p.pending) == 0 {
				p.mu.Unlock()
				break
			}
			ev := p.pending[0]
			p.pending[0] = Event[T]{}
			p.pending = p.pending[1:]
			p.mu.Unlock()

			select {
			case p.events <- ev:
			case <-ctx.Done():
				p.mu.Lock()
				p.pending = append([]Event[T]{ev}, p.pending...)
				p.mu.Unlock()
				return
			}
		}
	}
}

// flush hands what is still queued to the Events buffer once Run is
// stopping, dropping whatever does not fit.
func (p *Poller[T]) flush() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ev := range p.pending {
		select {
		case p.events <- ev:
		default:
			p.logger.Debug("dropping queued event on close", "generation", ev.Generation)
		}
	}
	p.pending = nil
}

func (p *Poller[T]) apply(gen uint64, items []T, err error) (Event[T], bool) {
	if err != nil {
		transient := api.Transient(err)
		if transient {
			p.logger.Debug("poll failed, keeping last snapshot", "error", err)
		} else {
			p.logger.Warn("poll failed", "error", err)
		}
		return Event[T]{Kind: EventError, Generation: gen, Err: err, Transient: transient}, true
	}

	if !p.loaded {
		p.loaded = true
		p.snapshot = items
		return Event[T]{
			Kind:       EventLoaded,
			Generation: gen,
			Snapshot:   slices.Clone(items),
			Added:      slices.Clone(items),
		}, true
	}

	added, removed, changed := diff(p.snapshot, items, p.opts.Key, p.opts.Equal)
	if len(added) == 0 && len(removed) == 0 && len(changed) == 0 && sameOrder(p.snapshot, items, p.opts.Key) {
		return Event[T]{}, false
	}
	prev := p.snapshot
	p.snapshot = items
	return Event[T]{
		Kind:       EventChanged,
		Generation: gen,
		Snapshot:   slices.Clone(items),
		Previous:   prev,
		Added:      added,
		Removed:    removed,
		Changed:    changed,
	}, true
}

// diff compares snapshots by key. Added and changed follow the order of
// next, removed the order of prev.
func diff[T any](prev, next []T, key func(T) string, equal func(a, b T) bool) (added, removed, changed []T) {
	before := make(map[string]T, len(prev))
	for _, item := range prev {
		before[key(item)] = item
	}
	seen := make(map[string]struct{}, len(next))
	for _, item := range next {
		k := key(item)
		seen[k] = struct{}{}
		old, ok := before[k]
		switch {
		case !ok:
			added = append(added, item)
		case !equal(old, item):
			changed = append(changed, item)
		}
	}
	for _, item := range prev {
		if _, ok := seen[key(item)]; !ok {
			removed = append(removed, item)
		}
	}
	return added, removed, changed
}

func sameOrder[T any](a, b []T, key func(T) string) bool {
	return slices.EqualFunc(a, b, func(x, y T) bool { return key(x) == key(y) })
}
