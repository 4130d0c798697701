package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned without calling out while an origin is cooling down
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State of one origin's circuit
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Settings tunes every circuit in a Group
type Settings struct {
	// Threshold is the number of consecutive failures that opens a circuit
	Threshold int
	// Cooldown is how long an open circuit rejects calls before one probe is let through
	Cooldown time.Duration
	// IsFailure decides whether an error counts against the origin
	IsFailure func(err error) bool
	// OnStateChange runs outside the lock
	OnStateChange func(key string, from, to State)
}

// circuit tracks one origin
type circuit struct {
	state    State
	failures int
	openedAt time.Time
	probing  bool
}

// Group holds one circuit per key (an origin host), created on first use
type Group struct {
	settings Settings
	now      func() time.Time

	mu       sync.Mutex
	circuits map[string]*circuit
}

// NewGroup creates a breaker group, filling unset settings with defaults
func NewGroup(settings Settings) *Group {
	if settings.Threshold <= 0 {
		settings.Threshold = 5
	}
	if settings.Cooldown <= 0 {
		settings.Cooldown = 30 * time.Second
	}
	if settings.IsFailure == nil {
		settings.IsFailure = func(err error) bool {
			return !errors.Is(err, context.Canceled)
		}
	}
	return &Group{
		settings: settings,
		now:      time.Now,
		circuits: make(map[string]*circuit),
	}
}

// Do runs fn unless key's circuit is open, and records the outcome
func (g *Group) Do(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	if err := g.admit(key); err != nil {
		return err
	}

	failed := true
	defer func() {
		g.record(key, failed)
	}()

	err := fn(ctx)
	failed = err != nil && g.settings.IsFailure(err)
	return err
}

// State reports key's circuit; unknown keys are closed
func (g *Group) State(key string) State {
	g.mu.Lock()
	defer g.mu.Unlock()

	c, ok := g.circuits[key]
	if !ok {
		return StateClosed
	}
	return g.observe(c)
}

// Worst reports the most degraded state across all keys
func (g *Group) Worst() State {
	g.mu.Lock()
	defer g.mu.Unlock()

	worst := StateClosed
	for _, c := range g.circuits {
		if s := g.observe(c); s > worst {
			worst = s
		}
	}
	return worst
}

// Open lists the keys whose circuit currently rejects calls
func (g *Group) Open() []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	var keys []string
	for key, c := range g.circuits {
		if g.observe(c) == StateOpen {
			keys = append(keys, key)
		}
	}
	return keys
}

// Reset forgets every circuit
func (g *Group) Reset() {
	g.mu.Lock()
	g.circuits = make(map[string]*circuit)
	g.mu.Unlock()
}

// observe moves an open circuit to half-open once its cooldown has passed
func (g *Group) observe(c *circuit) State {
	if c.state == StateOpen && g.now().Sub(c.openedAt) >= g.settings.Cooldown {
		c.state = StateHalfOpen
		c.probing = false
	}
	return c.state
}

func (g *Group) admit(key string) error {
	g.mu.Lock()
	c, ok := g.circuits[key]
	if !ok {
		c = &circuit{}
		g.circuits[key] = c
	}
	prev := c.state
	state := g.observe(c)

	var err error
	switch {
	case state == StateOpen:
		err = ErrCircuitOpen
	case state == StateHalfOpen && c.probing:
		// one probe at a time
		err = ErrCircuitOpen
	case state == StateHalfOpen:
		c.probing = true
	}
	g.mu.Unlock()

	g.notify(key, prev, state)
	return err
}

func (g *Group) record(key string, failed bool) {
	g.mu.Lock()
	c, ok := g.circuits[key]
	if !ok {
		// reset while the call was in flight
		g.mu.Unlock()
		return
	}
	prev := c.state
	c.probing = false

	switch {
	case !failed:
		c.failures = 0
		c.state = StateClosed
	case prev == StateHalfOpen:
		c.state = StateOpen
		c.openedAt = g.now()
	default:
		c.failures++
		if c.failures >= g.settings.Threshold {
			c.state = StateOpen
			c.openedAt = g.now()
		}
	}
	next := c.state
	g.mu.Unlock()

	g.notify(key, prev, next)
}

func (g *Group) notify(key string, from, to State) {
	if from != to && g.settings.OnStateChange != nil {
		g.settings.OnStateChange(key, from, to)
	}
}
