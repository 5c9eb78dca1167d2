package ai

import (
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

var (
	// ErrLocked means the external service reported a quota failure earlier
	// in this process lifetime; the gate stays shut until restart.
	ErrLocked = errors.New("enrichment locked for this session")
	// ErrBudgetExhausted means the session call cap has been reached.
	ErrBudgetExhausted = errors.New("enrichment call budget exhausted")
	// ErrCoolingDown means the minimum inter-call spacing has not elapsed.
	ErrCoolingDown = errors.New("enrichment cooldown active")
)

// RateGate is the single shared guard in front of the external
// text-generation quota: a cooldown between calls, a hard session cap, and
// a latch that shuts the gate for the rest of the process lifetime once the
// service reports a quota failure. All state is process-local and resets on
// restart; a restart deliberately refreshes the quota "session".
type RateGate struct {
	mu       sync.Mutex
	limiter  *rate.Limiter
	maxCalls int
	calls    int
	locked   bool
}

func NewRateGate(cooldown time.Duration, maxCalls int) *RateGate {
	return &RateGate{
		limiter:  rate.NewLimiter(rate.Every(cooldown), 1),
		maxCalls: maxCalls,
	}
}

// Acquire reserves one call slot. It only succeeds when the gate is not
// latched, the session cap has room and the cooldown has elapsed; the call
// counter advances at this point, so a reservation counts against the
// budget even if the subsequent request fails.
func (g *RateGate) Acquire() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.locked {
		return ErrLocked
	}
	if g.calls >= g.maxCalls {
		return ErrBudgetExhausted
	}
	if !g.limiter.Allow() {
		return ErrCoolingDown
	}

	g.calls++
	return nil
}

// Latch shuts the gate permanently for this process lifetime. Called when
// the external service reports a quota/rate-limit failure.
func (g *RateGate) Latch() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.locked = true
}

func (g *RateGate) Locked() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.locked
}

func (g *RateGate) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}
