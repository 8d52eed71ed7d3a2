package ratelimit

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeClock is a manually advanced time source
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func TestStoreCheck(t *testing.T) {
	t.Run("first request creates a window", func(t *testing.T) {
		clock := newFakeClock()
		s := NewStore(WithClock(clock.Now))

		res := s.Check("k", 3, time.Minute)
		assert.True(t, res.Allowed)
		assert.Equal(t, 2, res.Remaining)
		assert.Equal(t, clock.Now().Add(time.Minute), res.ResetTime)
		assert.Equal(t, 1, s.Len())
	})

	t.Run("N+1th request in the window is the first denied", func(t *testing.T) {
		clock := newFakeClock()
		s := NewStore(WithClock(clock.Now))

		for i := 1; i <= 3; i++ {
			res := s.Check("k", 3, time.Minute)
			require.True(t, res.Allowed, "request %d should be allowed", i)
			assert.Equal(t, 3-i, res.Remaining)
		}

		for i := 0; i < 5; i++ {
			clock.Advance(5 * time.Second)
			res := s.Check("k", 3, time.Minute)
			assert.False(t, res.Allowed)
			assert.Equal(t, 0, res.Remaining)
		}
	})

	t.Run("reset time is never extended", func(t *testing.T) {
		clock := newFakeClock()
		s := NewStore(WithClock(clock.Now))

		first := s.Check("k", 10, time.Minute)
		clock.Advance(30 * time.Second)
		second := s.Check("k", 10, time.Minute)
		assert.Equal(t, first.ResetTime, second.ResetTime)
	})

	t.Run("request exactly at reset time still belongs to the window", func(t *testing.T) {
		clock := newFakeClock()
		s := NewStore(WithClock(clock.Now))

		s.Check("k", 1, time.Minute)
		clock.Advance(time.Minute)
		res := s.Check("k", 1, time.Minute)
		assert.False(t, res.Allowed)
	})

	t.Run("window resets once reset time has passed", func(t *testing.T) {
		clock := newFakeClock()
		s := NewStore(WithClock(clock.Now))

		for i := 0; i < 5; i++ {
			s.Check("k", 3, time.Minute)
		}
		clock.Advance(time.Minute + time.Millisecond)

		res := s.Check("k", 3, time.Minute)
		assert.True(t, res.Allowed)
		assert.Equal(t, 2, res.Remaining)
		assert.Equal(t, clock.Now().Add(time.Minute), res.ResetTime)
	})

	t.Run("keys are independent", func(t *testing.T) {
		clock := newFakeClock()
		s := NewStore(WithClock(clock.Now))

		s.Check("a", 1, time.Minute)
		assert.False(t, s.Check("a", 1, time.Minute).Allowed)
		assert.True(t, s.Check("b", 1, time.Minute).Allowed)
	})

	t.Run("zero quota denies everything", func(t *testing.T) {
		s := NewStore()
		res := s.Check("k", 0, time.Minute)
		assert.False(t, res.Allowed)
		assert.Equal(t, 0, res.Remaining)
	})
}

func TestStoreConcurrentCheckNeverOverAdmits(t *testing.T) {
	s := NewStore()
	const limit = 50

	var allowed atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 500; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.Check("shared", limit, time.Hour).Allowed {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(limit), allowed.Load())
}

func TestStoreSweepAndReset(t *testing.T) {
	clock := newFakeClock()
	s := NewStore(WithClock(clock.Now))

	s.Check("short", 5, time.Minute)
	s.Check("long", 5, time.Hour)
	require.Equal(t, 2, s.Len())

	assert.Equal(t, 0, s.Sweep(), "nothing has expired yet")

	clock.Advance(2 * time.Minute)
	assert.Equal(t, 1, s.Sweep())
	assert.Equal(t, 1, s.Len())

	s.Reset()
	assert.Equal(t, 0, s.Len())
}

func TestStoreBackgroundSweeper(t *testing.T) {
	clock := newFakeClock()
	s := NewStore(WithClock(clock.Now), WithSweepInterval(10*time.Millisecond))
	s.Start()
	defer s.Stop()

	s.Check("k", 1, time.Second)
	clock.Advance(2 * time.Second)

	assert.Eventually(t, func() bool { return s.Len() == 0 }, time.Second, 10*time.Millisecond)
}

func TestStoreStopIsIdempotent(t *testing.T) {
	s := NewStore()
	s.Start()
	s.Stop()
	assert.NotPanics(t, s.Stop)
}

func TestPolicies(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		assert.Equal(t, Policy{Prefix: "login", MaxRequests: 5, Window: 15 * time.Minute}, LoginPolicy())
		assert.Equal(t, Policy{Prefix: "contact", MaxRequests: 3, Window: time.Hour}, ContactPolicy())
		assert.Equal(t, Policy{Prefix: "api", MaxRequests: 100, Window: 15 * time.Minute}, APIPolicy(0, 0))
		assert.Equal(t, Policy{Prefix: "api", MaxRequests: 20, Window: time.Minute}, APIPolicy(20, time.Minute))
	})

	t.Run("same identifier under different policies does not share quota", func(t *testing.T) {
		s := NewStore()
		p := NewPolicies(s, 100, 15*time.Minute)

		for i := 0; i < 3; i++ {
			require.True(t, p.Contact.Check("1.2.3.4").Allowed)
		}
		assert.False(t, p.Contact.Check("1.2.3.4").Allowed)
		assert.True(t, p.Login.Check("1.2.3.4").Allowed)
		assert.True(t, p.API.Check("1.2.3.4").Allowed)
	})

	t.Run("login allows exactly five attempts per window", func(t *testing.T) {
		clock := newFakeClock()
		s := NewStore(WithClock(clock.Now))
		login := NewLimiter(s, LoginPolicy())

		for i := 1; i <= 5; i++ {
			require.True(t, login.Check("9.9.9.9").Allowed, "attempt %d", i)
		}
		res := login.Check("9.9.9.9")
		assert.False(t, res.Allowed)

		clock.Advance(15*time.Minute + time.Second)
		res = login.Check("9.9.9.9")
		assert.True(t, res.Allowed)
		assert.Equal(t, 4, res.Remaining)
	})

	t.Run("key format", func(t *testing.T) {
		assert.Equal(t, "login:1.2.3.4", LoginPolicy().Key("1.2.3.4"))
		assert.Equal(t, "raw", Policy{}.Key("raw"))
	})
}

func ExamplePolicy_Key() {
	fmt.Println(ContactPolicy().Key("203.0.113.7"))
	// Output: contact:203.0.113.7
}
