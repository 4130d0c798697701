package browser

import (
	"context"
	"testing"
	"time"

	"github.com/GriffinCanCode/Jarvis/sandbox/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluate(t *testing.T) {
	d, srv := openHome(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		script string
		want   interface{}
	}{
		{"title", "document.title", "Sign in"},
		{"arithmetic", "1 + 2", int64(3)},
		{"query text", "document.querySelector('#heading').textContent", "Welcome   back"},
		{"missing element", "document.querySelector('#nope')", nil},
		{"count", "document.querySelectorAll('p.note').length", int64(3)},
		{"attribute", "document.getElementById('r1').getAttribute('value')", "s"},
		{"location", "location.href", srv.URL + "/"},
		{"undefined", "undefined", nil},
		{"nan", "NaN", nil},
		{"object", "({a: 1, b: 'x'})", map[string]interface{}{"a": int64(1), "b": "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := d.Evaluate(ctx, tt.script)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Value)
		})
	}
}

func TestEvaluateElementResult(t *testing.T) {
	d, _ := openHome(t)
	res, err := d.Evaluate(context.Background(), "document.querySelector('#plain')")
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{
		"tagName":     "SPAN",
		"id":          "plain",
		"textContent": "plain",
	}, res.Value)

	res, err = d.Evaluate(context.Background(), "document.querySelectorAll('#plain')")
	require.NoError(t, err)
	items, ok := res.Value.([]interface{})
	require.True(t, ok)
	require.Len(t, items, 1)
	item := items[0].(map[string]interface{})
	assert.Equal(t, "SPAN", item["tagName"])
	assert.NotContains(t, item, "remove")
}

func TestEvaluateMutatesDOM(t *testing.T) {
	d, _ := openHome(t)
	ctx := context.Background()

	_, err := d.Evaluate(ctx, `document.body.appendHTML('<div id="late">arrived</div>')`)
	require.NoError(t, err)
	ok, err := d.Exists("#late")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = d.Evaluate(ctx, `document.querySelector('#late').setText('changed'); document.querySelector('#plain').remove()`)
	require.NoError(t, err)
	text, err := d.Text("#late")
	require.NoError(t, err)
	assert.Equal(t, "changed", text)
	ok, _ = d.Exists("#plain")
	assert.False(t, ok)
}

func TestEvaluateConsole(t *testing.T) {
	d, _ := openHome(t)
	res, err := d.Evaluate(context.Background(), `console.log("a", 1); console.warn("b"); 42`)
	require.NoError(t, err)
	assert.Equal(t, []string{"log: a 1", "warn: b"}, res.Console)
	assert.Equal(t, int64(42), res.Value)
}

func TestEvaluateErrors(t *testing.T) {
	d, _ := openHome(t)
	ctx := context.Background()

	_, err := d.Evaluate(ctx, "throw new Error('boom')")
	assert.ErrorIs(t, err, ErrScript)
	assert.Contains(t, err.Error(), "boom")

	_, err = d.Evaluate(ctx, "this is not javascript")
	assert.ErrorIs(t, err, ErrScript)

	_, err = d.Evaluate(ctx, "document.querySelector('p[')")
	assert.ErrorIs(t, err, ErrScript)

	_, err = d.Evaluate(ctx, "typeof require")
	require.NoError(t, err)
}

func TestEvaluateTimeout(t *testing.T) {
	srv := newSite(t)
	d := newDriver(t, func(c *config.DriverConfig) { c.ScriptTimeout = 50 * time.Millisecond })
	_, err := d.Navigate(context.Background(), srv.URL+"/")
	require.NoError(t, err)

	start := time.Now()
	_, err = d.Evaluate(context.Background(), "for (;;) {}")
	assert.ErrorIs(t, err, ErrScript)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestEvaluateBlankAndDisabled(t *testing.T) {
	d := newDriver(t)
	res, err := d.Evaluate(context.Background(), "location.href")
	require.NoError(t, err)
	assert.Equal(t, BlankURL, res.Value)

	off := newDriver(t, func(c *config.DriverConfig) { c.EnableScripts = false })
	_, err = off.Evaluate(context.Background(), "1")
	assert.ErrorIs(t, err, ErrScript)
}
