package browser

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/GriffinCanCode/Jarvis/sandbox/internal/infrastructure/config"
	"github.com/GriffinCanCode/Jarvis/sandbox/internal/infrastructure/logging"
	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Driver is one headless browser session holding a single page
type Driver struct {
	id        string
	cfg       config.DriverConfig
	fetcher   *fetcher
	scripts   *scriptRunner
	page      *Page
	history   []string
	startedAt time.Time
	closed    bool
	logger    *logging.Logger
}

// New starts a driver. It fails when the configuration cannot produce a working transport.
func New(cfg config.DriverConfig, logger *logging.Logger) (*Driver, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	f, err := newFetcher(cfg)
	if err != nil {
		return nil, fmt.Errorf("start driver: %w", err)
	}
	timeout := cfg.ScriptTimeout
	if timeout <= 0 {
		timeout = config.DefaultDriver().ScriptTimeout
	}

	d := &Driver{
		id:        uuid.NewString(),
		cfg:       cfg,
		fetcher:   f,
		scripts:   &scriptRunner{timeout: timeout},
		startedAt: time.Now(),
		logger:    logger,
	}
	d.logger.Debug("Driver started", zap.String("driver_id", d.id))
	return d, nil
}

// ID identifies this driver instance
func (d *Driver) ID() string { return d.id }

// StartedAt returns the creation time
func (d *Driver) StartedAt() time.Time { return d.startedAt }

// CircuitState reports the most degraded per-origin navigation circuit
func (d *Driver) CircuitState() string { return d.fetcher.circuitState() }

// History returns the URLs loaded so far, oldest first
func (d *Driver) History() []string {
	return append([]string(nil), d.history...)
}

// Close releases the driver; later calls fail with ErrDriverClosed
func (d *Driver) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	d.page = nil
	d.fetcher.close()
	d.logger.Debug("Driver closed", zap.String("driver_id", d.id))
	return nil
}

// Navigate loads rawURL, prefixing https:// when no scheme is given. HTTP error
// statuses still load the error document.
func (d *Driver) Navigate(ctx context.Context, rawURL string) (*Page, error) {
	if err := d.alive(); err != nil {
		return nil, err
	}
	normalized := NormalizeURL(rawURL)
	if normalized == BlankURL {
		d.page = nil
		return nil, nil
	}
	target, err := parseTarget(normalized)
	if err != nil {
		return nil, err
	}
	return d.load(ctx, &action{method: http.MethodGet, target: target})
}

// Page returns the current page or nil before the first navigation
func (d *Driver) Page() *Page { return d.page }

// URL returns the current URL
func (d *Driver) URL() string {
	if d.page == nil {
		return BlankURL
	}
	return d.page.URL()
}

// Title returns the current document title
func (d *Driver) Title() string {
	if d.page == nil {
		return ""
	}
	return d.page.Title()
}

// Exists reports whether selector currently matches at least one element
func (d *Driver) Exists(selector string) (bool, error) {
	if err := d.alive(); err != nil {
		return false, err
	}
	if d.page == nil {
		if _, err := blankQuery(selector); err != nil {
			return false, err
		}
		return false, nil
	}
	sel, err := d.page.query(selector)
	if err != nil {
		return false, err
	}
	return sel.Length() > 0, nil
}

// Click clicks the first match; links and submit buttons navigate
func (d *Driver) Click(ctx context.Context, selector string) error {
	sel, err := d.find(selector)
	if err != nil {
		return err
	}
	act, err := d.page.click(sel)
	if err != nil {
		return err
	}
	if act == nil {
		return nil
	}
	_, err = d.load(ctx, act)
	return err
}

// Fill replaces the value of the first match
func (d *Driver) Fill(selector, text string) error {
	sel, err := d.find(selector)
	if err != nil {
		return err
	}
	return d.page.fill(sel, text)
}

// Submit submits the form owning the first match, or the match itself if it is a form
func (d *Driver) Submit(ctx context.Context, selector string) error {
	sel, err := d.find(selector)
	if err != nil {
		return err
	}
	form := sel
	if goquery.NodeName(sel) != "form" {
		form = owningForm(d.page.doc, sel)
		if form == nil {
			return fmt.Errorf("%w: %s is not inside a form", ErrNotInteractable, selector)
		}
	}
	var submitter *goquery.Selection
	if isSubmitter(sel.Get(0)) {
		submitter = sel
	}
	act, err := d.page.submission(form, submitter)
	if err != nil {
		return err
	}
	_, err = d.load(ctx, act)
	return err
}

// Text returns the visible text of the first match
func (d *Driver) Text(selector string) (string, error) {
	sel, err := d.find(selector)
	if err != nil {
		return "", err
	}
	return visibleText(sel.Get(0)), nil
}

// Texts returns the visible text of every match in document order
func (d *Driver) Texts(selector string) ([]string, error) {
	if err := d.alive(); err != nil {
		return nil, err
	}
	if d.page == nil {
		_, err := blankQuery(selector)
		return []string{}, err
	}
	sel, err := d.page.query(selector)
	if err != nil {
		return nil, err
	}
	texts := make([]string, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		texts = append(texts, visibleText(s.Get(0)))
	})
	return texts, nil
}

// Attribute returns the named property of the first match, nil when absent
func (d *Driver) Attribute(selector, name string) (*string, error) {
	sel, err := d.find(selector)
	if err != nil {
		return nil, err
	}
	return d.page.attribute(sel, name), nil
}

// Source serializes the current DOM, optionally through the UGC sanitizer
func (d *Driver) Source(sanitize bool) (string, error) {
	if err := d.alive(); err != nil {
		return "", err
	}
	if d.page == nil {
		return "<html><head></head><body></body></html>", nil
	}
	if sanitize {
		return d.page.SanitizedHTML()
	}
	return d.page.HTML()
}

// Evaluate runs script against the current page
func (d *Driver) Evaluate(ctx context.Context, script string) (*ScriptResult, error) {
	if err := d.alive(); err != nil {
		return nil, err
	}
	if !d.cfg.EnableScripts {
		return nil, fmt.Errorf("%w: script evaluation is disabled", ErrScript)
	}
	page := d.page
	if page == nil {
		blank, err := newPage(&response{URL: &url.URL{Scheme: "about", Opaque: "blank"}, HTML: ""})
		if err != nil {
			return nil, err
		}
		page = blank
	}
	return d.scripts.run(ctx, page, script)
}

func (d *Driver) load(ctx context.Context, act *action) (*Page, error) {
	referer := ""
	if d.page != nil {
		referer = d.page.URL()
	}

	start := time.Now()
	resp, err := d.fetcher.fetch(ctx, act.method, act.target, act.form, referer)
	if err != nil {
		d.logger.Debug("Navigation failed",
			zap.String("url", act.target.String()),
			zap.Error(err))
		return nil, err
	}
	page, err := newPage(resp)
	if err != nil {
		return nil, &navError{url: act.target.String(), cause: err}
	}

	d.page = page
	d.history = append(d.history, page.URL())
	d.logger.Debug("Page loaded",
		zap.String("method", act.method),
		zap.String("url", page.URL()),
		zap.Int("status", page.Status()),
		zap.Duration("duration", time.Since(start)))
	return page, nil
}

func (d *Driver) find(selector string) (*goquery.Selection, error) {
	if err := d.alive(); err != nil {
		return nil, err
	}
	if d.page == nil {
		if _, err := blankQuery(selector); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s", ErrElementNotFound, selector)
	}
	return d.page.first(selector)
}

func (d *Driver) alive() error {
	if d.closed {
		return ErrDriverClosed
	}
	return nil
}

// blankQuery validates a selector when no document is loaded
func blankQuery(selector string) (*goquery.Selection, error) {
	p, err := newPage(&response{URL: &url.URL{Scheme: "about", Opaque: "blank"}})
	if err != nil {
		return nil, err
	}
	return p.query(selector)
}

// NormalizeURL trims rawURL and prefixes https:// when it has no scheme
func NormalizeURL(rawURL string) string {
	u := strings.TrimSpace(rawURL)
	if strings.EqualFold(u, BlankURL) {
		return BlankURL
	}
	if !strings.Contains(u, "://") {
		u = "https://" + strings.TrimPrefix(u, "//")
	}
	return u
}

func parseTarget(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, &navError{url: raw, cause: fmt.Errorf("%w: %v", ErrInvalidURL, err)}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, &navError{url: raw, cause: fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)}
	}
	if u.Host == "" {
		return nil, &navError{url: raw, cause: fmt.Errorf("%w: missing host", ErrInvalidURL)}
	}
	return u, nil
}
