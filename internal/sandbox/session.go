package sandbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/GriffinCanCode/Jarvis/sandbox/internal/browser"
	"github.com/GriffinCanCode/Jarvis/sandbox/internal/infrastructure/config"
	"github.com/GriffinCanCode/Jarvis/sandbox/internal/infrastructure/logging"
	"github.com/GriffinCanCode/Jarvis/sandbox/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/Jarvis/sandbox/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/Jarvis/sandbox/pkg/protocol"
	"go.uber.org/zap"
)

const (
	// DefaultWaitTimeout applies when a wait request carries no timeout
	DefaultWaitTimeout = 10 * time.Second

	healthLockWait = 250 * time.Millisecond
)

// Driver is the browser surface a session drives
type Driver interface {
	ID() string
	Navigate(ctx context.Context, rawURL string) (*browser.Page, error)
	URL() string
	Title() string
	Exists(selector string) (bool, error)
	Click(ctx context.Context, selector string) error
	Fill(selector, text string) error
	Text(selector string) (string, error)
	Texts(selector string) ([]string, error)
	Attribute(selector, name string) (*string, error)
	Source(sanitize bool) (string, error)
	Evaluate(ctx context.Context, script string) (*browser.ScriptResult, error)
	CircuitState() string
	Close() error
}

// Factory starts a driver
type Factory func() (Driver, error)

// BrowserFactory starts headless browser drivers from cfg
func BrowserFactory(cfg config.DriverConfig, logger *logging.Logger) Factory {
	return func() (Driver, error) {
		return browser.New(cfg, logger)
	}
}

// Options configures a Session
type Options struct {
	Config  config.DriverConfig
	Factory Factory
	Metrics *monitoring.Metrics
	Tracer  *tracing.Tracer
	Logger  *logging.Logger
}

// Session owns the single driver of the process. Every driver call runs under mu.
type Session struct {
	mu         sync.Mutex
	driver     Driver
	sessionID  string
	startedAt  time.Time
	currentURL *string
	lastError  *string

	// last published health, served when mu stays busy
	snapshot atomic.Pointer[protocol.HealthResponse]

	cfg     config.DriverConfig
	factory Factory
	metrics *monitoring.Metrics
	tracer  *tracing.Tracer
	logger  *logging.Logger
}

// New creates a session without starting a driver
func New(opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	cfg := opts.Config
	defaults := config.DefaultDriver()
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaults.PollInterval
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = defaults.MaxWait
	}
	if cfg.ElementWait < 0 {
		cfg.ElementWait = 0
	}
	factory := opts.Factory
	if factory == nil {
		factory = BrowserFactory(cfg, logger.Component("browser"))
	}

	s := &Session{
		cfg:     cfg,
		factory: factory,
		metrics: opts.Metrics,
		tracer:  opts.Tracer,
		logger:  logger.Component("session"),
	}
	s.publishLocked()
	return s
}

// Start creates the driver eagerly
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.unlock()
	if s.driver != nil {
		return nil
	}
	return s.startLocked("startup")
}

// Close tears the driver down
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.unlock()
	s.closeLocked("shutdown")
	return nil
}

// OpenPage navigates, starting a driver first when none is active
func (s *Session) OpenPage(ctx context.Context, rawURL string) (*protocol.OpenPageResponse, error) {
	if strings.TrimSpace(rawURL) == "" {
		return nil, badRequest("url is required")
	}
	var out *protocol.OpenPageResponse
	err := s.instrument(ctx, "open_page", func() error {
		return s.locked(true, func(d Driver) error {
			page, err := d.Navigate(ctx, rawURL)
			if err != nil {
				return err
			}
			out = &protocol.OpenPageResponse{OK: true, URL: d.URL(), Title: d.Title()}
			if page != nil {
				out.Status = page.Status()
				s.metrics.RecordNavigation(page.Status())
			}
			s.lastError = nil
			return nil
		})
	})
	return out, err
}

// Title returns the current page title
func (s *Session) Title(ctx context.Context) (string, error) {
	var title string
	err := s.instrument(ctx, "page_title", func() error {
		return s.locked(false, func(d Driver) error {
			title = d.Title()
			return nil
		})
	})
	return title, err
}

// URL returns the current page URL
func (s *Session) URL(ctx context.Context) (string, error) {
	var u string
	err := s.instrument(ctx, "page_url", func() error {
		return s.locked(false, func(d Driver) error {
			u = d.URL()
			return nil
		})
	})
	return u, err
}

// Click waits briefly for selector, then clicks its first match
func (s *Session) Click(ctx context.Context, selector string) error {
	if err := requireSelector(selector); err != nil {
		return err
	}
	return s.instrument(ctx, "click", func() error {
		if _, err := s.poll(ctx, selector, s.cfg.ElementWait); err != nil {
			return err
		}
		return s.locked(false, func(d Driver) error {
			return d.Click(ctx, selector)
		})
	})
}

// Fill waits briefly for selector, then replaces its value with text
func (s *Session) Fill(ctx context.Context, selector, text string) error {
	if err := requireSelector(selector); err != nil {
		return err
	}
	return s.instrument(ctx, "fill_input", func() error {
		if _, err := s.poll(ctx, selector, s.cfg.ElementWait); err != nil {
			return err
		}
		return s.locked(false, func(d Driver) error {
			return d.Fill(selector, text)
		})
	})
}

// Text returns the visible text of the first match
func (s *Session) Text(ctx context.Context, selector string) (string, error) {
	if err := requireSelector(selector); err != nil {
		return "", err
	}
	var text string
	err := s.instrument(ctx, "extract_text", func() error {
		if _, err := s.poll(ctx, selector, s.cfg.ElementWait); err != nil {
			return err
		}
		return s.locked(false, func(d Driver) error {
			var err error
			text, err = d.Text(selector)
			return err
		})
	})
	return text, err
}

// AllText returns the non-empty visible texts of every match
func (s *Session) AllText(ctx context.Context, selector string) ([]string, error) {
	if err := requireSelector(selector); err != nil {
		return nil, err
	}
	var texts []string
	err := s.instrument(ctx, "extract_all_text", func() error {
		if _, err := s.poll(ctx, selector, s.cfg.ElementWait); err != nil {
			return err
		}
		return s.locked(false, func(d Driver) error {
			all, err := d.Texts(selector)
			if err != nil {
				return err
			}
			if len(all) == 0 {
				return fmt.Errorf("%w: %s", browser.ErrElementNotFound, selector)
			}
			texts = make([]string, 0, len(all))
			for _, t := range all {
				if t != "" {
					texts = append(texts, t)
				}
			}
			return nil
		})
	})
	return texts, err
}

// Attribute returns the named attribute of the first match, nil when absent
func (s *Session) Attribute(ctx context.Context, selector, name string) (*string, error) {
	if err := requireSelector(selector); err != nil {
		return nil, err
	}
	if strings.TrimSpace(name) == "" {
		return nil, badRequest("attribute is required")
	}
	var value *string
	err := s.instrument(ctx, "get_attribute", func() error {
		if _, err := s.poll(ctx, selector, s.cfg.ElementWait); err != nil {
			return err
		}
		return s.locked(false, func(d Driver) error {
			var err error
			value, err = d.Attribute(selector, name)
			return err
		})
	})
	return value, err
}

// WaitForElement polls for selector without holding the lock between polls.
// Running out of time is a negative result, not an error.
func (s *Session) WaitForElement(ctx context.Context, selector string, timeout time.Duration) (bool, error) {
	if err := requireSelector(selector); err != nil {
		return false, err
	}
	timeout = s.clampWait(timeout)
	var found bool
	err := s.instrument(ctx, "wait_for_element", func() error {
		var err error
		found, err = s.poll(ctx, selector, timeout)
		return err
	})
	return found, err
}

// Evaluate runs script against the current page
func (s *Session) Evaluate(ctx context.Context, script string) (*browser.ScriptResult, error) {
	if strings.TrimSpace(script) == "" {
		return nil, badRequest("script is required")
	}
	var res *browser.ScriptResult
	err := s.instrument(ctx, "evaluate", func() error {
		return s.locked(false, func(d Driver) error {
			var err error
			res, err = d.Evaluate(ctx, script)
			return err
		})
	})
	return res, err
}

// Source returns the current DOM as HTML
func (s *Session) Source(ctx context.Context, sanitize bool) (string, error) {
	var src string
	err := s.instrument(ctx, "page_source", func() error {
		return s.locked(false, func(d Driver) error {
			var err error
			src, err = d.Source(sanitize)
			return err
		})
	})
	return src, err
}

// Reset waits for in-flight operations, then replaces the driver
func (s *Session) Reset(ctx context.Context) error {
	return s.instrument(ctx, "reset", func() error {
		s.mu.Lock()
		defer s.unlock()

		s.closeLocked("reset")
		s.currentURL = nil
		s.lastError = nil
		return s.startLocked("reset")
	})
}

// Health reports session state. It never fails and never blocks longer than
// healthLockWait; a busy session reports its last published state.
func (s *Session) Health() (resp protocol.HealthResponse) {
	defer func() {
		if r := recover(); r != nil {
			msg := fmt.Sprintf("health check failed: %v", r)
			resp = protocol.HealthResponse{Status: protocol.StatusDegraded, LastError: &msg}
		}
	}()

	if !s.tryLock(healthLockWait) {
		if snap := s.snapshot.Load(); snap != nil {
			return *snap
		}
		return protocol.HealthResponse{Status: protocol.StatusHealthy}
	}
	defer s.unlock()
	return s.healthLocked()
}

// poll checks selector every poll interval until it matches or timeout elapses
func (s *Session) poll(ctx context.Context, selector string, timeout time.Duration) (bool, error) {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		var found bool
		err := s.locked(false, func(d Driver) error {
			var err error
			found, err = d.Exists(selector)
			return err
		})
		if err != nil || found {
			return found, err
		}
		if !time.Now().Before(deadline) {
			return false, nil
		}
		select {
		case <-ctx.Done():
			return false, nil
		case <-ticker.C:
		}
	}
}

func (s *Session) clampWait(timeout time.Duration) time.Duration {
	if timeout <= 0 {
		timeout = DefaultWaitTimeout
	}
	if timeout > s.cfg.MaxWait {
		timeout = s.cfg.MaxWait
	}
	return timeout
}

// locked runs fn with the driver under the session lock. A panic inside the
// driver tears the session down and surfaces as DriverUnavailable.
func (s *Session) locked(create bool, fn func(Driver) error) (err error) {
	s.mu.Lock()
	defer s.unlock()

	if s.driver == nil {
		if !create {
			return protocol.Errorf(protocol.KindDriverUnavailable, "no active browser session")
		}
		if err := s.startLocked("lazy"); err != nil {
			return err
		}
	}

	defer func() {
		if r := recover(); r != nil {
			err = s.crashLocked(r)
		}
	}()

	err = classify(fn(s.driver))
	s.syncLocked(err)
	return err
}

func (s *Session) startLocked(reason string) error {
	d, err := s.safeFactory()
	s.metrics.RecordDriverStart(reason, err == nil)
	if err != nil {
		msg := fmt.Sprintf("browser failed to start: %v", err)
		s.lastError = &msg
		s.metrics.SetDriverActive(false)
		s.logger.Error("Driver start failed", zap.String("reason", reason), zap.Error(err))
		return protocol.Errorf(protocol.KindDriverUnavailable, "%s", msg)
	}

	s.driver = d
	s.sessionID = d.ID()
	s.startedAt = time.Now()
	s.metrics.SetDriverActive(true)
	s.logger.Info("Driver started",
		zap.String("reason", reason),
		zap.String("session_id", s.sessionID))
	return nil
}

func (s *Session) safeFactory() (d Driver, err error) {
	defer func() {
		if r := recover(); r != nil {
			d, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()
	return s.factory()
}

func (s *Session) closeLocked(reason string) {
	if s.driver == nil {
		return
	}
	func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Warn("Driver panicked while closing", zap.Any("panic", r))
			}
		}()
		if err := s.driver.Close(); err != nil {
			s.logger.Warn("Driver close failed", zap.Error(err))
		}
	}()
	s.logger.Info("Driver closed",
		zap.String("reason", reason),
		zap.String("session_id", s.sessionID),
		zap.Duration("uptime", time.Since(s.startedAt)))
	s.driver = nil
	s.sessionID = ""
	s.metrics.SetDriverActive(false)
}

func (s *Session) crashLocked(r interface{}) error {
	msg := fmt.Sprintf("browser session crashed: %v", r)
	s.logger.Error("Driver panic", zap.String("session_id", s.sessionID), zap.Any("panic", r))
	s.closeLocked("crash")
	s.currentURL = nil
	s.lastError = &msg
	return protocol.Errorf(protocol.KindDriverUnavailable, "%s", msg)
}

// syncLocked mirrors driver state after an operation
func (s *Session) syncLocked(err error) {
	if s.driver == nil {
		return
	}
	if u := s.driver.URL(); u != browser.BlankURL {
		s.currentURL = &u
	} else {
		s.currentURL = nil
	}
	switch protocol.KindOf(err) {
	case protocol.KindNavigationError, protocol.KindDriverUnavailable:
		msg := err.Error()
		s.lastError = &msg
	}
}

func (s *Session) healthLocked() protocol.HealthResponse {
	resp := protocol.HealthResponse{
		Status:       protocol.StatusHealthy,
		DriverActive: s.driver != nil,
		CurrentURL:   copyString(s.currentURL),
		LastError:    copyString(s.lastError),
	}
	if s.driver != nil {
		resp.SessionID = s.sessionID
		resp.NavigationCircuit = s.driver.CircuitState()
	} else if s.lastError != nil {
		resp.Status = protocol.StatusDegraded
	}
	return resp
}

func (s *Session) publishLocked() {
	h := s.healthLocked()
	s.snapshot.Store(&h)
}

func (s *Session) unlock() {
	func() {
		defer func() { _ = recover() }()
		s.publishLocked()
	}()
	s.mu.Unlock()
}

func (s *Session) tryLock(wait time.Duration) bool {
	deadline := time.Now().Add(wait)
	for {
		if s.mu.TryLock() {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func (s *Session) instrument(ctx context.Context, op string, fn func() error) error {
	timer := monitoring.NewTimer(s.metrics, op)
	var span *tracing.Span
	if s.tracer != nil {
		span, _ = s.tracer.StartSpan(ctx, op)
	}

	err := fn()
	outcome := "ok"
	if err != nil {
		outcome = string(protocol.KindOf(err))
		s.logger.Debug("Operation failed", zap.String("operation", op), zap.Error(err))
	}
	timer.Stop(outcome)

	if span != nil {
		span.SetTag("outcome", outcome)
		if err != nil {
			span.SetError(err)
		}
		span.Finish()
		s.tracer.Submit(span)
	}
	return err
}

// ErrBadRequest marks errors caused by the request itself
var ErrBadRequest = errors.New("bad request")

func badRequest(msg string) error {
	return fmt.Errorf("%w: %w", ErrBadRequest, protocol.Errorf(protocol.KindSandboxError, "%s", msg))
}

func requireSelector(selector string) error {
	if strings.TrimSpace(selector) == "" {
		return badRequest("selector is required")
	}
	return nil
}

// classify maps driver errors onto the protocol taxonomy
func classify(err error) error {
	if err == nil {
		return nil
	}
	var pe *protocol.Error
	if errors.As(err, &pe) {
		return err
	}
	msg := err.Error()
	switch {
	case errors.Is(err, browser.ErrDriverClosed):
		return protocol.Errorf(protocol.KindDriverUnavailable, "%s", msg)
	case errors.Is(err, browser.ErrNavigation):
		return protocol.Errorf(protocol.KindNavigationError, "%s", msg)
	case errors.Is(err, browser.ErrElementNotFound):
		return protocol.Errorf(protocol.KindElementNotFound, "%s", msg)
	case errors.Is(err, browser.ErrNotInteractable):
		return protocol.Errorf(protocol.KindElementNotInteractable, "%s", msg)
	case errors.Is(err, browser.ErrScript):
		return protocol.Errorf(protocol.KindScriptError, "%s", msg)
	case errors.Is(err, browser.ErrInvalidSelector):
		return badRequest(msg)
	default:
		return protocol.Errorf(protocol.KindSandboxError, "%s", msg)
	}
}

func copyString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
