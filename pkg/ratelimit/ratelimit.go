package ratelimit

import (
	"sync"
	"time"

	"github.com/equitraccion/site/pkg/metrics"
)

// DefaultSweepInterval is how often expired entries are removed when no
// interval is configured.
const DefaultSweepInterval = 5 * time.Minute

// Clock returns the current time. Tests replace it to move across window boundaries.
type Clock func() time.Time

// Result is the outcome of a single Check call.
type Result struct {
	Allowed   bool
	Remaining int
	ResetTime time.Time
}

// entry holds the counter of one key for the current window
type entry struct {
	count     int
	resetTime time.Time
}

// Store keeps fixed-window counters keyed by an arbitrary string.
//
// A window starts with the first request for a key and lasts exactly the
// requested duration; it is never extended by later requests. Once the window
// has passed the next request replaces the entry instead of merging into it.
// Counters live in process memory only, so every instance of the server keeps
// its own view.
type Store struct {
	mu            sync.Mutex
	entries       map[string]*entry
	now           Clock
	sweepInterval time.Duration
	done          chan struct{}
	stopOnce      sync.Once
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces the time source.
func WithClock(clock Clock) Option {
	return func(s *Store) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithSweepInterval sets how often the background sweeper runs.
func WithSweepInterval(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.sweepInterval = d
		}
	}
}

// NewStore creates an empty store. Call Start to run the background sweeper.
func NewStore(opts ...Option) *Store {
	s := &Store{
		entries:       make(map[string]*entry),
		now:           time.Now,
		sweepInterval: DefaultSweepInterval,
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Check counts one request for key and reports whether it fits into the
// current window of maxRequests per window.
func (s *Store) Check(key string, maxRequests int, window time.Duration) Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	e, exists := s.entries[key]
	if !exists || now.After(e.resetTime) {
		e = &entry{count: 1, resetTime: now.Add(window)}
		s.entries[key] = e
		return Result{
			Allowed:   maxRequests >= 1,
			Remaining: max(maxRequests-1, 0),
			ResetTime: e.resetTime,
		}
	}

	e.count++
	if e.count > maxRequests {
		return Result{Allowed: false, Remaining: 0, ResetTime: e.resetTime}
	}
	return Result{
		Allowed:   true,
		Remaining: maxRequests - e.count,
		ResetTime: e.resetTime,
	}
}

// Sweep removes entries whose window has passed and returns how many were removed.
// Lookups never depend on it: an expired entry is replaced on its next Check anyway.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for key, e := range s.entries {
		if now.After(e.resetTime) {
			delete(s.entries, key)
			removed++
		}
	}
	if removed > 0 {
		metrics.RateLimitEntriesSwept.Add(float64(removed))
	}
	return removed
}

// Reset drops all counters.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]*entry)
}

// Len returns the current number of tracked keys (for testing/metrics)
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Now returns the store's notion of the current time.
func (s *Store) Now() time.Time {
	return s.now()
}

// Start launches the background sweeper. It returns immediately.
func (s *Store) Start() {
	go s.sweepLoop()
}

// Stop stops the background sweeper. It is safe to call more than once.
func (s *Store) Stop() {
	s.stopOnce.Do(func() { close(s.done) })
}

func (s *Store) sweepLoop() {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}
