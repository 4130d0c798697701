package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errRemote = errors.New("connection refused")

// clock is a manual time source
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestGroup(settings Settings) (*Group, *clock) {
	clk := &clock{now: time.Unix(1700000000, 0)}
	g := NewGroup(settings)
	g.now = clk.Now
	return g, clk
}

func call(g *Group, key string, err error) error {
	return g.Do(context.Background(), key, func(ctx context.Context) error {
		return err
	})
}

func TestGroupStateTransitions(t *testing.T) {
	tests := []struct {
		name     string
		settings Settings
		calls    []error
		want     State
	}{
		{
			name:  "stays closed on successes",
			calls: []error{nil, nil, nil},
			want:  StateClosed,
		},
		{
			name:     "opens after consecutive failures",
			settings: Settings{Threshold: 3},
			calls:    []error{errRemote, errRemote, errRemote},
			want:     StateOpen,
		},
		{
			name:     "success breaks the streak",
			settings: Settings{Threshold: 3},
			calls:    []error{errRemote, errRemote, nil, errRemote, errRemote},
			want:     StateClosed,
		},
		{
			name: "ignored errors never trip",
			settings: Settings{
				Threshold: 1,
				IsFailure: func(err error) bool { return errors.Is(err, errRemote) },
			},
			calls: []error{errors.New("invalid url"), errors.New("invalid url")},
			want:  StateClosed,
		},
		{
			name:     "cancelled contexts are not failures by default",
			settings: Settings{Threshold: 1},
			calls:    []error{context.Canceled, context.Canceled},
			want:     StateClosed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, _ := newTestGroup(tt.settings)
			for _, err := range tt.calls {
				_ = call(g, "example.com", err)
			}
			assert.Equal(t, tt.want, g.State("example.com"))
		})
	}
}

func TestGroupIsolatesOrigins(t *testing.T) {
	g, _ := newTestGroup(Settings{Threshold: 2})

	_ = call(g, "down.test", errRemote)
	_ = call(g, "down.test", errRemote)

	assert.Equal(t, StateOpen, g.State("down.test"))
	assert.Equal(t, StateClosed, g.State("up.test"))
	assert.NoError(t, call(g, "up.test", nil))
	assert.Equal(t, []string{"down.test"}, g.Open())
	assert.Equal(t, StateOpen, g.Worst())
}

func TestGroupOpenFailsFast(t *testing.T) {
	g, _ := newTestGroup(Settings{Threshold: 1})
	_ = call(g, "down.test", errRemote)

	called := false
	err := g.Do(context.Background(), "down.test", func(ctx context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestGroupHalfOpenProbe(t *testing.T) {
	g, clk := newTestGroup(Settings{Threshold: 1, Cooldown: time.Minute})
	_ = call(g, "down.test", errRemote)

	clk.Advance(59 * time.Second)
	assert.Equal(t, StateOpen, g.State("down.test"))

	clk.Advance(time.Second)
	assert.Equal(t, StateHalfOpen, g.State("down.test"))
	assert.Equal(t, StateHalfOpen, g.Worst())

	t.Run("concurrent probe is rejected", func(t *testing.T) {
		err := g.Do(context.Background(), "down.test", func(ctx context.Context) error {
			assert.ErrorIs(t, call(g, "down.test", nil), ErrCircuitOpen)
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, StateClosed, g.State("down.test"))
	})
}

func TestGroupFailedProbeReopens(t *testing.T) {
	g, clk := newTestGroup(Settings{Threshold: 1, Cooldown: time.Minute})
	_ = call(g, "down.test", errRemote)
	clk.Advance(time.Minute)

	assert.ErrorIs(t, call(g, "down.test", errRemote), errRemote)
	assert.Equal(t, StateOpen, g.State("down.test"))

	clk.Advance(30 * time.Second)
	assert.Equal(t, StateOpen, g.State("down.test"))
}

func TestGroupPanicCountsAsFailure(t *testing.T) {
	g, _ := newTestGroup(Settings{Threshold: 1})

	assert.Panics(t, func() {
		_ = g.Do(context.Background(), "crash.test", func(ctx context.Context) error {
			panic("boom")
		})
	})
	assert.Equal(t, StateOpen, g.State("crash.test"))
}

func TestGroupReset(t *testing.T) {
	var (
		mu          sync.Mutex
		transitions []string
	)
	g, _ := newTestGroup(Settings{
		Threshold: 1,
		OnStateChange: func(key string, from, to State) {
			mu.Lock()
			transitions = append(transitions, key+":"+from.String()+"->"+to.String())
			mu.Unlock()
		},
	})

	_ = call(g, "down.test", errRemote)
	require.Equal(t, StateOpen, g.State("down.test"))

	g.Reset()
	assert.Equal(t, StateClosed, g.State("down.test"))
	assert.Empty(t, g.Open())
	assert.Equal(t, []string{"down.test:closed->open"}, transitions)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "unknown", State(42).String())
}
