package ratelimit

import (
	"time"

	"github.com/equitraccion/site/pkg/metrics"
)

const (
	LoginPrefix   = "login"
	APIPrefix     = "api"
	ContactPrefix = "contact"
)

// Policy is a named quota: at most MaxRequests per Window for each identifier.
type Policy struct {
	// Prefix separates identical identifiers tracked under different policies
	Prefix      string
	MaxRequests int
	Window      time.Duration
}

// LoginPolicy guards the administrator login: 5 attempts per 15 minutes.
func LoginPolicy() Policy {
	return Policy{Prefix: LoginPrefix, MaxRequests: 5, Window: 15 * time.Minute}
}

// APIPolicy guards general API traffic. Zero values fall back to 100 requests per 15 minutes.
func APIPolicy(maxRequests int, window time.Duration) Policy {
	if maxRequests <= 0 {
		maxRequests = 100
	}
	if window <= 0 {
		window = 15 * time.Minute
	}
	return Policy{Prefix: APIPrefix, MaxRequests: maxRequests, Window: window}
}

// ContactPolicy guards the public contact and newsletter forms: 3 submissions per hour.
func ContactPolicy() Policy {
	return Policy{Prefix: ContactPrefix, MaxRequests: 3, Window: time.Hour}
}

// Key returns the store key for identifier under this policy.
func (p Policy) Key(identifier string) string {
	if p.Prefix == "" {
		return identifier
	}
	return p.Prefix + ":" + identifier
}

// Limiter applies one Policy on top of a shared Store.
type Limiter struct {
	store  *Store
	policy Policy
}

// NewLimiter binds policy to store.
func NewLimiter(store *Store, policy Policy) *Limiter {
	return &Limiter{store: store, policy: policy}
}

// Check counts one request for identifier.
func (l *Limiter) Check(identifier string) Result {
	res := l.store.Check(l.policy.Key(identifier), l.policy.MaxRequests, l.policy.Window)
	if res.Allowed {
		metrics.RateLimitAllowed.WithLabelValues(l.policy.Prefix).Inc()
	} else {
		metrics.RateLimitDenied.WithLabelValues(l.policy.Prefix).Inc()
	}
	return res
}

// Policy returns the policy this limiter enforces.
func (l *Limiter) Policy() Policy {
	return l.policy
}

// Now returns the current time as seen by the underlying store.
func (l *Limiter) Now() time.Time {
	return l.store.Now()
}

// Policies bundles the limiters used by the HTTP API.
type Policies struct {
	Login   *Limiter
	API     *Limiter
	Contact *Limiter
}

// NewPolicies creates the login, API and contact limiters sharing one store.
func NewPolicies(store *Store, apiMax int, apiWindow time.Duration) Policies {
	return Policies{
		Login:   NewLimiter(store, LoginPolicy()),
		API:     NewLimiter(store, APIPolicy(apiMax, apiWindow)),
		Contact: NewLimiter(store, ContactPolicy()),
	}
}
