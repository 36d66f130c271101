// Package ratelimit throttles the expensive preview endpoints per client.
package ratelimit

import (
	"sync"
	"time"
)

// Clock abstracts time for testing.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Rule limits one method and path. A rule with a non-positive Limit or
// Window is ignored.
type Rule struct {
	Method string
	Path   string
	Limit  int
	Window time.Duration
}

type route struct {
	method string
	path   string
}

// Result contains rate limit status for a request.
type Result struct {
	Limit     int
	Remaining int
	ResetAt   time.Time
	RetryIn   time.Duration
}

type client struct {
	ip string
	route
}

type window struct {
	count   int
	startAt time.Time
}

// Limiter counts requests per client IP and route in fixed windows.
type Limiter struct {
	mu      sync.Mutex
	rules   map[route]Rule
	windows map[client]*window
	clock   Clock
}

// NewLimiter creates a Limiter with the given rules.
func NewLimiter(rules []Rule) *Limiter {
	byRoute := make(map[route]Rule, len(rules))
	for _, r := range rules {
		if r.Limit <= 0 || r.Window <= 0 {
			continue
		}
		byRoute[route{r.Method, r.Path}] = r
	}
	return &Limiter{
		rules:   byRoute,
		windows: make(map[client]*window),
		clock:   realClock{},
	}
}

// Allow records a request from ip to method and path. Routes without a
// rule are always allowed and return a zero Result.
func (l *Limiter) Allow(ip, method, path string) (Result, bool) {
	rt := route{method, path}
	rule, ok := l.rules[rt]
	if !ok {
		return Result{}, true
	}

	now := l.clock.Now()
	key := client{ip: ip, route: rt}

	l.mu.Lock()
	defer l.mu.Unlock()

	w, exists := l.windows[key]
	if !exists || now.Sub(w.startAt) >= rule.Window {
		l.windows[key] = &window{count: 1, startAt: now}
		return Result{Limit: rule.Limit, Remaining: rule.Limit - 1, ResetAt: now.Add(rule.Window)}, true
	}

	resetAt := w.startAt.Add(rule.Window)
	if w.count >= rule.Limit {
		return Result{Limit: rule.Limit, ResetAt: resetAt, RetryIn: resetAt.Sub(now)}, false
	}

	w.count++
	return Result{Limit: rule.Limit, Remaining: rule.Limit - w.count, ResetAt: resetAt}, true
}

// Cleanup drops finished windows. Call periodically to bound memory.
func (l *Limiter) Cleanup() {
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	for key, w := range l.windows {
		rule, ok := l.rules[key.route]
		if !ok || now.Sub(w.startAt) >= rule.Window {
			delete(l.windows, key)
		}
	}
}

// Tracked reports how many client windows are held.
func (l *Limiter) Tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}
