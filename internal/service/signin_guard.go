package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/campusmarket/accountkit/internal/security"
)

// GuardScope separates the counters of the endpoints a guard protects.
type GuardScope string

const (
	GuardScopePassword GuardScope = "password"
	GuardScopeRecover  GuardScope = "recover"
)

// BackoffPolicy grows the cooldown exponentially once FreeAttempts
// failures happened within ResetWindow.
type BackoffPolicy struct {
	FreeAttempts int
	BaseDelay    time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	ResetWindow  time.Duration
}

func DefaultBackoffPolicy() BackoffPolicy {
	return BackoffPolicy{
		FreeAttempts: 5,
		BaseDelay:    2 * time.Second,
		Multiplier:   2,
		MaxDelay:     5 * time.Minute,
		ResetWindow:  30 * time.Minute,
	}
}

func (p BackoffPolicy) normalize() BackoffPolicy {
	if p.FreeAttempts < 0 {
		p.FreeAttempts = 0
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 2 * time.Second
	}
	if p.Multiplier < 1 {
		p.Multiplier = 2
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = 5 * time.Minute
	}
	if p.ResetWindow <= 0 {
		p.ResetWindow = 30 * time.Minute
	}
	return p
}

func (p BackoffPolicy) delay(failures int) time.Duration {
	if failures <= p.FreeAttempts {
		return 0
	}
	d := time.Duration(float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(failures-p.FreeAttempts-1)))
	return min(d, p.MaxDelay)
}

// SignInGuard throttles repeated credential failures per email and per
// client address. Check returns the remaining cooldown, zero when the
// caller may proceed.
type SignInGuard interface {
	Check(ctx context.Context, scope GuardScope, email, ip string) (time.Duration, error)
	RegisterFailure(ctx context.Context, scope GuardScope, email, ip string) (time.Duration, error)
	Reset(ctx context.Context, scope GuardScope, email, ip string) error
}

type NoopSignInGuard struct{}

func (NoopSignInGuard) Check(context.Context, GuardScope, string, string) (time.Duration, error) {
	return 0, nil
}

func (NoopSignInGuard) RegisterFailure(context.Context, GuardScope, string, string) (time.Duration, error) {
	return 0, nil
}

func (NoopSignInGuard) Reset(context.Context, GuardScope, string, string) error { return nil }

type guardEntry struct {
	failures      int
	lastFailure   time.Time
	cooldownUntil time.Time
}

// MemorySignInGuard keeps counters in process.
type MemorySignInGuard struct {
	mu      sync.Mutex
	policy  BackoffPolicy
	entries map[string]guardEntry
	now     func() time.Time
}

func NewMemorySignInGuard(policy BackoffPolicy) *MemorySignInGuard {
	return &MemorySignInGuard{
		policy:  policy.normalize(),
		entries: make(map[string]guardEntry),
		now:     time.Now,
	}
}

func (g *MemorySignInGuard) Check(_ context.Context, scope GuardScope, email, ip string) (time.Duration, error) {
	now := g.now()
	g.mu.Lock()
	defer g.mu.Unlock()

	var wait time.Duration
	for _, key := range guardKeys(scope, email, ip) {
		wait = max(wait, g.activeLocked(now, key))
	}
	return wait, nil
}

func (g *MemorySignInGuard) RegisterFailure(_ context.Context, scope GuardScope, email, ip string) (time.Duration, error) {
	now := g.now()
	g.mu.Lock()
	defer g.mu.Unlock()

	var wait time.Duration
	for _, key := range guardKeys(scope, email, ip) {
		e := g.entries[key]
		if e.lastFailure.IsZero() || now.Sub(e.lastFailure) > g.policy.ResetWindow {
			e.failures = 0
		}
		e.failures++
		e.lastFailure = now
		d := g.policy.delay(e.failures)
		e.cooldownUntil = now.Add(d)
		g.entries[key] = e
		wait = max(wait, d)
	}
	return wait, nil
}

// Reset clears the email counter after a successful sign-in. The address
// counter keeps running.
func (g *MemorySignInGuard) Reset(_ context.Context, scope GuardScope, email, _ string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.entries, emailKey(scope, email))
	return nil
}

func (g *MemorySignInGuard) activeLocked(now time.Time, key string) time.Duration {
	e, ok := g.entries[key]
	if !ok {
		return 0
	}
	if now.Sub(e.lastFailure) > g.policy.ResetWindow {
		delete(g.entries, key)
		return 0
	}
	if !now.Before(e.cooldownUntil) {
		return 0
	}
	return e.cooldownUntil.Sub(now)
}

func guardKeys(scope GuardScope, email, ip string) []string {
	return []string{emailKey(scope, email), ipKey(scope, ip)}
}

// emailKey hashes the address so counters never hold raw emails.
func emailKey(scope GuardScope, email string) string {
	v := strings.ToLower(strings.TrimSpace(email))
	if v == "" {
		v = "anonymous"
	}
	return fmt.Sprintf("%s:email:%s", scope, security.HashToken(v))
}

func ipKey(scope GuardScope, ip string) string {
	v := strings.TrimSpace(ip)
	if v == "" {
		v = "unknown"
	}
	return fmt.Sprintf("%s:ip:%s", scope, v)
}
