package poller

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var ErrStopped = errors.New("list is no longer mounted")

type Mode int

const (
	// Replace makes every successful fetch the new list.
	Replace Mode = iota
	// Merge puts fetched records first, then keeps records appended locally
	// that no fetch has returned yet.
	Merge
)

type FetchFunc[T any] func(ctx context.Context) ([]T, error)

type KeyFunc[T any] func(T) int64

type Options struct {
	Interval time.Duration
	Mode     Mode
	Log      zerolog.Logger
}

// Snapshot is what a view renders: the last applied data plus the error of the
// most recent failed tick, if any. Stale data is kept over an empty list.
type Snapshot[T any] struct {
	Name      string     `json:"name"`
	Items     []T        `json:"items"`
	Loaded    bool       `json:"loaded"`
	Error     string     `json:"error,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
	Seq       uint64     `json:"seq"`
}

// List is one polled list. Responses are applied only when they answer the
// latest issued request and the list is still mounted.
type List[T any] struct {
	name     string
	fetch    FetchFunc[T]
	key      KeyFunc[T]
	interval time.Duration
	mode     Mode
	log      zerolog.Logger
	now      func() time.Time

	mu        sync.Mutex
	items     []T
	hidden    map[int64]struct{}
	local     map[int64]struct{}
	issued    uint64
	applied   uint64
	loaded    bool
	lastErr   error
	updatedAt time.Time
	stopped   bool
	stopTimer func()
	subs      map[chan struct{}]struct{}
}

func NewList[T any](name string, fetch FetchFunc[T], key KeyFunc[T], opts Options) *List[T] {
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Second
	}
	return &List[T]{
		name:     name,
		fetch:    fetch,
		key:      key,
		interval: opts.Interval,
		mode:     opts.Mode,
		log:      opts.Log.With().Str("list", name).Logger(),
		now:      time.Now,
		hidden:   make(map[int64]struct{}),
		local:    make(map[int64]struct{}),
		subs:     make(map[chan struct{}]struct{}),
	}
}

func (l *List[T]) Name() string {
	return l.name
}

func (l *List[T]) Interval() time.Duration {
	return l.interval
}

// Start mounts the list: one immediate fetch, then one per interval.
func (l *List[T]) Start(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped || l.stopTimer != nil {
		return
	}
	l.stopTimer = Every(ctx, l.interval, func(ctx context.Context) {
		_ = l.Refresh(ctx)
	})
}

// Stop unmounts the list. Responses arriving afterwards are dropped.
func (l *List[T]) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return
	}
	l.stopped = true
	if l.stopTimer != nil {
		l.stopTimer()
	}
	for ch := range l.subs {
		close(ch)
	}
	l.subs = make(map[chan struct{}]struct{})
}

// Refresh fetches once. A failure is recorded and logged and leaves the
// current items in place.
func (l *List[T]) Refresh(ctx context.Context) error {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return ErrStopped
	}
	l.issued++
	seq := l.issued
	l.mu.Unlock()

	items, err := l.fetch(ctx)

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.stopped {
		return nil
	}
	if seq != l.issued {
		l.log.Debug().Uint64("seq", seq).Uint64("latest", l.issued).Msg("discarding out-of-order response")
		return nil
	}
	if err != nil {
		changed := l.lastErr == nil || l.lastErr.Error() != err.Error()
		l.lastErr = err
		l.log.Warn().Err(err).Uint64("seq", seq).Msg("poll failed")
		if changed {
			l.notifyLocked()
		}
		return err
	}

	before := l.visibleLocked()
	wasLoaded, hadErr := l.loaded, l.lastErr != nil
	l.applyLocked(items)
	l.applied = seq
	l.loaded = true
	l.lastErr = nil
	l.updatedAt = l.now()
	if !wasLoaded || hadErr || !reflect.DeepEqual(before, l.visibleLocked()) {
		l.notifyLocked()
	}
	return nil
}

// Reset drops every record and local edit and invalidates requests already in
// flight. The next fetch rebuilds the list from scratch.
func (l *List[T]) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.issued++
	l.items = nil
	l.hidden = make(map[int64]struct{})
	l.local = make(map[int64]struct{})
	l.loaded = false
	l.lastErr = nil
	l.notifyLocked()
}

func (l *List[T]) applyLocked(fetched []T) {
	fetchedIDs := make(map[int64]struct{}, len(fetched))
	merged := make([]T, 0, len(fetched)+len(l.items))
	for _, item := range fetched {
		id := l.key(item)
		if _, dup := fetchedIDs[id]; dup {
			continue
		}
		fetchedIDs[id] = struct{}{}
		merged = append(merged, item)
	}

	confirmed := make(map[int64]struct{})
	for id := range l.hidden {
		if _, still := fetchedIDs[id]; !still {
			confirmed[id] = struct{}{}
			delete(l.hidden, id)
		}
	}

	for id := range l.local {
		if _, seen := fetchedIDs[id]; seen {
			delete(l.local, id)
		}
	}

	if l.mode == Merge {
		for _, item := range l.items {
			id := l.key(item)
			if _, pending := l.local[id]; !pending {
				continue
			}
			if _, gone := confirmed[id]; gone {
				delete(l.local, id)
				continue
			}
			merged = append(merged, item)
		}
	} else {
		l.local = make(map[int64]struct{})
	}

	l.items = merged
}

func (l *List[T]) visibleLocked() []T {
	items := make([]T, 0, len(l.items))
	for _, item := range l.items {
		if _, hidden := l.hidden[l.key(item)]; hidden {
			continue
		}
		items = append(items, item)
	}
	return items
}

// Remove hides id from snapshots right away. The record stays hidden while the
// API keeps returning it and is forgotten once a fetch no longer does. It
// reports whether the record was on the list.
func (l *List[T]) Remove(id int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, known := l.findLocked(id)
	l.hidden[id] = struct{}{}
	if known {
		l.notifyLocked()
	}
	return known
}

// Restore undoes Remove after the action it anticipated failed.
func (l *List[T]) Restore(id int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.hidden[id]; !ok {
		return
	}
	delete(l.hidden, id)
	l.notifyLocked()
}

// Append inserts a locally produced record at the front, replacing any record
// with the same id. In Merge mode it survives fetches until the API returns it.
func (l *List[T]) Append(item T) {
	l.mu.Lock()
	defer l.mu.Unlock()
	id := l.key(item)
	items := make([]T, 0, len(l.items)+1)
	items = append(items, item)
	for _, existing := range l.items {
		if l.key(existing) != id {
			items = append(items, existing)
		}
	}
	l.items = items
	l.local[id] = struct{}{}
	delete(l.hidden, id)
	l.notifyLocked()
}

func (l *List[T]) Find(id int64) (T, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, hidden := l.hidden[id]; hidden {
		var zero T
		return zero, false
	}
	return l.findLocked(id)
}

func (l *List[T]) findLocked(id int64) (T, bool) {
	for _, item := range l.items {
		if l.key(item) == id {
			return item, true
		}
	}
	var zero T
	return zero, false
}

func (l *List[T]) Snapshot() Snapshot[T] {
	l.mu.Lock()
	defer l.mu.Unlock()

	snap := Snapshot[T]{
		Name:   l.name,
		Items:  l.visibleLocked(),
		Loaded: l.loaded,
		Seq:    l.applied,
	}
	if l.lastErr != nil {
		snap.Error = l.lastErr.Error()
	}
	if !l.updatedAt.IsZero() {
		at := l.updatedAt
		snap.UpdatedAt = &at
	}
	return snap
}

// Subscribe returns a channel that receives a signal after every change of
// the rendered items or error. Bursts
// coalesce into one pending signal. The channel is closed when the list stops.
func (l *List[T]) Subscribe() (<-chan struct{}, func()) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ch := make(chan struct{}, 1)
	if l.stopped {
		close(ch)
		return ch, func() {}
	}
	l.subs[ch] = struct{}{}
	return ch, func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if _, ok := l.subs[ch]; ok {
			delete(l.subs, ch)
			close(ch)
		}
	}
}

func (l *List[T]) notifyLocked() {
	for ch := range l.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
