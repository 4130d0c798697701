package browser

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/GriffinCanCode/Jarvis/sandbox/internal/infrastructure/config"
	"github.com/GriffinCanCode/Jarvis/sandbox/internal/infrastructure/logging"
	"github.com/GriffinCanCode/Jarvis/sandbox/internal/infrastructure/resilience"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const loginPage = `<!DOCTYPE html>
<html><head><title>  Sign
  in </title></head>
<body>
  <h1 id="heading">Welcome   <b>back</b></h1>
  <p class="note">first</p>
  <p class="note" style="display: none">secret</p>
  <p class="note">third</p>
  <a id="about" href="/about">About us</a>
  <a id="frag" href="#top">Top</a>
  <div hidden><button id="ghost">Ghost</button></div>
  <form id="search" action="/search" method="get">
    <input id="q" name="q" type="text">
    <input id="lang" name="lang" type="hidden" value="en">
    <input id="safe" name="safe" type="checkbox" value="1">
    <input id="r1" name="size" type="radio" value="s" checked>
    <input id="r2" name="size" type="radio" value="l">
    <select id="sort" name="sort"><option value="new">Newest</option><option value="old">Oldest</option></select>
    <button id="go" type="submit" name="action" value="go">Go</button>
  </form>
  <form id="login" action="/login" method="post">
    <input id="user" name="user" type="text">
    <input id="pass" name="pass" type="password">
    <textarea id="bio" name="bio">old</textarea>
    <input id="locked" name="locked" type="text" readonly value="x">
    <input id="off" name="off" type="text" disabled>
    <input id="send" type="submit" value="Send">
  </form>
  <div id="editor" contenteditable="true">draft</div>
  <img id="logo" src="img/logo.png">
  <span id="plain">plain</span>
</body></html>`

func newSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			w.Header().Set("Content-Type", "text/html")
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, "<html><head><title>Not Found</title></head><body>missing</body></html>")
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, loginPage)
	})
	mux.HandleFunc("/about", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "<html><head><title>About</title></head><body><p id=\"ref\">%s</p></body></html>", r.Referer())
	})
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "<html><head><title>Results</title></head><body><p id=\"query\">%s</p></body></html>", html.EscapeString(r.URL.RawQuery))
	})
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method", http.StatusMethodNotAllowed)
			return
		}
		_ = r.ParseForm()
		http.SetCookie(w, &http.Cookie{Name: "session", Value: r.PostForm.Get("user")})
		fmt.Fprintf(w, "<html><head><title>Hello %s</title></head><body><p id=\"bio\">%s</p></body></html>",
			r.PostForm.Get("user"), r.PostForm.Get("bio"))
	})
	mux.HandleFunc("/whoami", func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie("session")
		name := "anonymous"
		if err == nil {
			name = c.Value
		}
		fmt.Fprintf(w, "<html><head><title>%s</title></head></html>", name)
	})
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/about", http.StatusFound)
	})
	mux.HandleFunc("/latin1", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
		_, _ = w.Write([]byte("<html><head><title>Caf\xe9</title></head><body><p id=\"menu\">cr\xe8me br\xfbl\xe9e</p></body></html>"))
	})
	mux.HandleFunc("/notes.txt", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprint(w, "line <one>\nline two")
	})
	mux.HandleFunc("/logo.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"))
	})
	mux.HandleFunc("/huge", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<html><body>"+strings.Repeat("x", 4096)+"</body></html>")
	})
	mux.HandleFunc("/script", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><title>S</title><script>alert(1)</script></head><body><p onclick="x()">safe</p></body></html>`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newDriver(t *testing.T, mutate ...func(*config.DriverConfig)) *Driver {
	t.Helper()
	cfg := config.DefaultDriver()
	cfg.NavigationTimeout = 5 * time.Second
	for _, m := range mutate {
		m(&cfg)
	}
	d, err := New(cfg, logging.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func openHome(t *testing.T) (*Driver, *httptest.Server) {
	t.Helper()
	srv := newSite(t)
	d := newDriver(t)
	_, err := d.Navigate(context.Background(), srv.URL+"/")
	require.NoError(t, err)
	return d, srv
}

func TestNavigate(t *testing.T) {
	srv := newSite(t)
	d := newDriver(t)
	ctx := context.Background()

	assert.Equal(t, BlankURL, d.URL())
	assert.Equal(t, "", d.Title())

	page, err := d.Navigate(ctx, srv.URL+"/")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, page.Status())
	assert.Equal(t, "Sign in", d.Title())
	assert.Equal(t, srv.URL+"/", d.URL())

	t.Run("follows redirects", func(t *testing.T) {
		_, err := d.Navigate(ctx, srv.URL+"/old")
		require.NoError(t, err)
		assert.Equal(t, srv.URL+"/about", d.URL())
		assert.Equal(t, "About", d.Title())
	})

	t.Run("loads error documents", func(t *testing.T) {
		page, err := d.Navigate(ctx, srv.URL+"/nope")
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, page.Status())
		assert.Equal(t, "Not Found", d.Title())
	})

	t.Run("about blank clears the page", func(t *testing.T) {
		page, err := d.Navigate(ctx, "about:blank")
		require.NoError(t, err)
		assert.Nil(t, page)
		assert.Equal(t, BlankURL, d.URL())
	})

	assert.Len(t, d.History(), 3)
}

func TestNavigateFailures(t *testing.T) {
	srv := newSite(t)
	d := newDriver(t, func(c *config.DriverConfig) { c.MaxPageBytes = 1024 })
	ctx := context.Background()

	tests := []struct {
		name string
		url  string
	}{
		{"unreachable host", "http://127.0.0.1:1/"},
		{"unsupported scheme", "ftp://example.com/file"},
		{"binary content", srv.URL + "/logo.png"},
		{"oversized page", srv.URL + "/huge"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.Navigate(ctx, tt.url)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrNavigation)
		})
	}
	assert.Equal(t, BlankURL, d.URL())
}

func TestNavigationCircuit(t *testing.T) {
	srv := newSite(t)
	d := newDriver(t)
	ctx := context.Background()

	assert.Equal(t, "closed", d.CircuitState())
	for i := 0; i < 5; i++ {
		_, err := d.Navigate(ctx, "http://127.0.0.1:1/")
		require.Error(t, err)
	}
	assert.Equal(t, "open", d.CircuitState())

	_, err := d.Navigate(ctx, "http://127.0.0.1:1/")
	assert.ErrorIs(t, err, ErrNavigation)
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)

	// other origins keep working
	_, err = d.Navigate(ctx, srv.URL+"/")
	require.NoError(t, err)
	assert.Equal(t, "Sign in", d.Title())
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"example.com", "https://example.com"},
		{"  example.com/path ", "https://example.com/path"},
		{"//example.com", "https://example.com"},
		{"http://example.com", "http://example.com"},
		{"https://example.com", "https://example.com"},
		{"ABOUT:BLANK", BlankURL},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeURL(tt.in), tt.in)
	}
}

func TestDecoding(t *testing.T) {
	srv := newSite(t)
	d := newDriver(t)
	ctx := context.Background()

	_, err := d.Navigate(ctx, srv.URL+"/latin1")
	require.NoError(t, err)
	assert.Equal(t, "Café", d.Title())
	text, err := d.Text("#menu")
	require.NoError(t, err)
	assert.Equal(t, "crème brûlée", text)

	_, err = d.Navigate(ctx, srv.URL+"/notes.txt")
	require.NoError(t, err)
	text, err = d.Text("pre")
	require.NoError(t, err)
	assert.Equal(t, "line <one> line two", text)
}

func TestText(t *testing.T) {
	d, _ := openHome(t)

	text, err := d.Text("#heading")
	require.NoError(t, err)
	assert.Equal(t, "Welcome back", text)

	texts, err := d.Texts("p.note")
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "", "third"}, texts)

	texts, err = d.Texts(".missing")
	require.NoError(t, err)
	assert.Empty(t, texts)

	text, err = d.Text("xpath=//h1")
	require.NoError(t, err)
	assert.Equal(t, "Welcome back", text)

	text, err = d.Text("(//p[@class='note'])[3]")
	require.NoError(t, err)
	assert.Equal(t, "third", text)

	_, err = d.Text("#missing")
	assert.ErrorIs(t, err, ErrElementNotFound)

	_, err = d.Text("p[")
	assert.ErrorIs(t, err, ErrInvalidSelector)

	_, err = d.Text("//p[")
	assert.ErrorIs(t, err, ErrInvalidSelector)
}

func TestAttribute(t *testing.T) {
	d, srv := openHome(t)

	tests := []struct {
		selector string
		name     string
		want     *string
	}{
		{"#about", "href", strPtr(srv.URL + "/about")},
		{"#logo", "src", strPtr(srv.URL + "/img/logo.png")},
		{"#search", "action", strPtr(srv.URL + "/search")},
		{"#frag", "href", strPtr("#top")},
		{"#r1", "checked", strPtr("true")},
		{"#r2", "checked", nil},
		{"#bio", "value", strPtr("old")},
		{"#sort", "value", strPtr("new")},
		{"#q", "placeholder", nil},
		{"#lang", "value", strPtr("en")},
	}
	for _, tt := range tests {
		t.Run(tt.selector+"/"+tt.name, func(t *testing.T) {
			got, err := d.Attribute(tt.selector, tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClickLink(t *testing.T) {
	d, srv := openHome(t)
	ctx := context.Background()

	require.NoError(t, d.Click(ctx, "#frag"))
	assert.Equal(t, srv.URL+"/", d.URL())

	require.NoError(t, d.Click(ctx, "#about"))
	assert.Equal(t, srv.URL+"/about", d.URL())
	ref, err := d.Text("#ref")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/", ref)
}

func TestClickInputs(t *testing.T) {
	d, _ := openHome(t)
	ctx := context.Background()

	require.NoError(t, d.Click(ctx, "#safe"))
	v, _ := d.Attribute("#safe", "checked")
	assert.Equal(t, strPtr("true"), v)
	require.NoError(t, d.Click(ctx, "#safe"))
	v, _ = d.Attribute("#safe", "checked")
	assert.Nil(t, v)

	require.NoError(t, d.Click(ctx, "#r2"))
	v, _ = d.Attribute("#r1", "checked")
	assert.Nil(t, v)
	v, _ = d.Attribute("#r2", "checked")
	assert.Equal(t, strPtr("true"), v)

	require.NoError(t, d.Click(ctx, "#plain"))
	require.NoError(t, d.Click(ctx, "#plain"))
	v, _ = d.Attribute("#plain", clickedAttr)
	assert.Equal(t, strPtr("2"), v)
}

func TestClickNotInteractable(t *testing.T) {
	d, _ := openHome(t)
	ctx := context.Background()

	assert.ErrorIs(t, d.Click(ctx, "#ghost"), ErrNotInteractable)
	assert.ErrorIs(t, d.Click(ctx, "#off"), ErrNotInteractable)
	assert.ErrorIs(t, d.Click(ctx, "#lang"), ErrNotInteractable)
	assert.ErrorIs(t, d.Click(ctx, ".missing"), ErrElementNotFound)
}

func TestSubmitGetForm(t *testing.T) {
	d, srv := openHome(t)
	ctx := context.Background()

	require.NoError(t, d.Fill("#q", "go lang"))
	require.NoError(t, d.Fill("#sort", "Oldest"))
	require.NoError(t, d.Click(ctx, "#safe"))
	require.NoError(t, d.Click(ctx, "#go"))

	assert.Equal(t, "Results", d.Title())
	assert.True(t, strings.HasPrefix(d.URL(), srv.URL+"/search?"))
	query, err := d.Text("#query")
	require.NoError(t, err)
	assert.Equal(t, "action=go&lang=en&q=go+lang&safe=1&size=s&sort=old", query)
}

func TestSubmitPostFormKeepsCookies(t *testing.T) {
	d, srv := openHome(t)
	ctx := context.Background()

	require.NoError(t, d.Fill("#user", "ada"))
	require.NoError(t, d.Fill("#pass", "hunter2"))
	require.NoError(t, d.Fill("#bio", "new bio"))
	require.NoError(t, d.Click(ctx, "#send"))
	assert.Equal(t, "Hello ada", d.Title())
	bio, err := d.Text("#bio")
	require.NoError(t, err)
	assert.Equal(t, "new bio", bio)

	_, err = d.Navigate(ctx, srv.URL+"/whoami")
	require.NoError(t, err)
	assert.Equal(t, "ada", d.Title())
}

func TestSubmitBySelector(t *testing.T) {
	d, _ := openHome(t)
	require.NoError(t, d.Fill("#q", "x"))
	require.NoError(t, d.Submit(context.Background(), "#q"))
	assert.Equal(t, "Results", d.Title())
}

func TestFill(t *testing.T) {
	d, _ := openHome(t)

	require.NoError(t, d.Fill("#q", "hello"))
	v, _ := d.Attribute("#q", "value")
	assert.Equal(t, strPtr("hello"), v)

	require.NoError(t, d.Fill("#q", ""))
	v, _ = d.Attribute("#q", "value")
	assert.Equal(t, strPtr(""), v)

	require.NoError(t, d.Fill("#editor", "typed"))
	text, _ := d.Text("#editor")
	assert.Equal(t, "typed", text)

	assert.ErrorIs(t, d.Fill("#locked", "y"), ErrNotInteractable)
	assert.ErrorIs(t, d.Fill("#off", "y"), ErrNotInteractable)
	assert.ErrorIs(t, d.Fill("#safe", "y"), ErrNotInteractable)
	assert.ErrorIs(t, d.Fill("#plain", "y"), ErrNotInteractable)
	assert.ErrorIs(t, d.Fill("#sort", "Latest"), ErrNotInteractable)
	assert.ErrorIs(t, d.Fill("#nope", "y"), ErrElementNotFound)
}

func TestBlankPageQueries(t *testing.T) {
	d := newDriver(t)

	ok, err := d.Exists("#x")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = d.Text("#x")
	assert.ErrorIs(t, err, ErrElementNotFound)

	_, err = d.Exists("a[")
	assert.ErrorIs(t, err, ErrInvalidSelector)

	texts, err := d.Texts("p")
	require.NoError(t, err)
	assert.Empty(t, texts)
}

func TestSource(t *testing.T) {
	srv := newSite(t)
	d := newDriver(t)
	_, err := d.Navigate(context.Background(), srv.URL+"/script")
	require.NoError(t, err)

	raw, err := d.Source(false)
	require.NoError(t, err)
	assert.Contains(t, raw, "<script>")

	clean, err := d.Source(true)
	require.NoError(t, err)
	assert.NotContains(t, clean, "<script>")
	assert.NotContains(t, clean, "onclick")
	assert.Contains(t, clean, "safe")
}

func TestClosedDriver(t *testing.T) {
	d := newDriver(t)
	require.NoError(t, d.Close())
	require.NoError(t, d.Close())

	_, err := d.Navigate(context.Background(), "http://127.0.0.1:1")
	assert.ErrorIs(t, err, ErrDriverClosed)
	_, err = d.Exists("p")
	assert.ErrorIs(t, err, ErrDriverClosed)
}

func TestInvalidProxy(t *testing.T) {
	cfg := config.DefaultDriver()
	cfg.ProxyURL = "not a proxy"
	_, err := New(cfg, nil)
	assert.Error(t, err)
}

func strPtr(s string) *string { return &s }
