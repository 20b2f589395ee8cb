package store

import (
	"fmt"
	"log/slog"
	"sync"

	"crypto_dash/internal/domain"
)

// Listener receives the state after a patch, the patch itself, and the state before it.
type Listener func(next domain.DashboardState, delta *Delta, prev domain.DashboardState)

type subscriber struct {
	id uint64
	fn Listener
}

type notification struct {
	next  domain.DashboardState
	delta *Delta
	prev  domain.DashboardState
}

// Store owns the DashboardState. Components receive it through their constructors;
// nothing else writes the state.
type Store struct {
	mu     sync.Mutex
	state  domain.DashboardState
	subs   []subscriber
	nextID uint64

	// Notifications are delivered FIFO by whichever caller finds the queue idle.
	queue       []notification
	dispatching bool

	logger *slog.Logger
}

// New creates a store seeded with initial.
func New(initial domain.DashboardState) *Store {
	return &Store{
		state:  initial.Clone(),
		logger: slog.Default().With("module", "store"),
	}
}

// Default returns the empty session state.
func Default() domain.DashboardState {
	return domain.DashboardState{
		Theme:     domain.ThemeDark,
		Watchlist: domain.NewWatchlist(),
		Pagination: domain.PaginationState{
			PageSize:    domain.DefaultPageSize,
			CurrentPage: 1,
		},
		Detail: domain.DetailState{Range: domain.Range1D},
	}
}

// State returns a snapshot. Callers may keep it; later patches do not touch it.
func (s *Store) State() domain.DashboardState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Patch replaces the fields set on delta and notifies subscribers.
func (s *Store) Patch(delta *Delta) {
	s.Apply(func(domain.DashboardState) *Delta { return delta })
}

// Apply computes a delta from the current state and applies it atomically.
// A nil or empty delta changes nothing and notifies no one. fn runs under the
// store lock and must not call back into the store.
func (s *Store) Apply(fn func(prev domain.DashboardState) *Delta) {
	s.mu.Lock()
	prev := s.state.Clone()
	delta := fn(prev)
	if delta.Empty() {
		s.mu.Unlock()
		return
	}
	delta.applyTo(&s.state)
	// Detach from slices the caller still holds.
	s.state = s.state.Clone()
	next := s.state.Clone()

	s.queue = append(s.queue, notification{next: next, delta: delta, prev: prev})
	if s.dispatching {
		// Either a subscriber is patching re-entrantly or another goroutine is
		// draining; the active dispatcher delivers this one in order.
		s.mu.Unlock()
		return
	}
	s.dispatching = true
	s.mu.Unlock()

	s.drain()
}

func (s *Store) drain() {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.dispatching = false
			s.mu.Unlock()
			return
		}
		n := s.queue[0]
		s.queue = s.queue[1:]
		subs := make([]subscriber, len(s.subs))
		copy(subs, s.subs)
		s.mu.Unlock()

		for _, sub := range subs {
			s.notify(sub, n)
		}
	}
}

func (s *Store) notify(sub subscriber, n notification) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Subscriber panic recovered",
				slog.Uint64("subscriber", sub.id),
				slog.String("fields", fmt.Sprint(n.delta.Fields())),
				slog.Any("panic", r),
			)
		}
	}()
	sub.fn(n.next, n.delta, n.prev)
}

// Subscription is the handle returned by Subscribe.
type Subscription struct {
	store *Store
	id    uint64
	once  sync.Once
}

// Subscribe registers fn. Listeners run in registration order.
func (s *Store) Subscribe(fn Listener) *Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	s.subs = append(s.subs, subscriber{id: s.nextID, fn: fn})
	return &Subscription{store: s, id: s.nextID}
}

// Unsubscribe removes the listener. Calling it more than once is harmless.
func (h *Subscription) Unsubscribe() {
	h.once.Do(func() {
		s := h.store
		s.mu.Lock()
		defer s.mu.Unlock()

		for i, sub := range s.subs {
			if sub.id == h.id {
				s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
				return
			}
		}
	})
}

// Len reports the number of active subscribers.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}
