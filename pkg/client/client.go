package client

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/GriffinCanCode/Jarvis/sandbox/pkg/protocol"
	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"
)

// DefaultURL is where the sandbox server listens by default
const DefaultURL = "http://localhost:8001"

// Config holds client settings
type Config struct {
	URL               string        `envconfig:"SANDBOX_URL" default:"http://localhost:8001"`
	NavigationTimeout time.Duration `envconfig:"SANDBOX_CLIENT_NAV_TIMEOUT" default:"30s"`
	ElementTimeout    time.Duration `envconfig:"SANDBOX_CLIENT_TIMEOUT" default:"10s"`
	HealthTimeout     time.Duration `envconfig:"SANDBOX_CLIENT_HEALTH_TIMEOUT" default:"5s"`
	// WaitMargin is added to a wait's own timeout
	WaitMargin time.Duration `envconfig:"SANDBOX_CLIENT_WAIT_MARGIN" default:"5s"`
	UserAgent  string        `envconfig:"SANDBOX_CLIENT_USER_AGENT" default:"jarvis-sandbox-client/1.0"`
	// Logger receives transport diagnostics; nil keeps the client silent
	Logger *zap.Logger `ignored:"true"`
}

// DefaultConfig returns the default client configuration
func DefaultConfig() Config {
	return Config{
		URL:               DefaultURL,
		NavigationTimeout: 30 * time.Second,
		ElementTimeout:    10 * time.Second,
		HealthTimeout:     5 * time.Second,
		WaitMargin:        5 * time.Second,
		UserAgent:         "jarvis-sandbox-client/1.0",
	}
}

// LoadConfig reads client configuration from the environment
func LoadConfig() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to load client config: %w", err)
	}
	return cfg, nil
}

// Client talks to one sandbox server
type Client struct {
	cfg   Config
	resty *resty.Client

	// consecutive ElementNotFound results seen by Execute
	mu       sync.Mutex
	notFound int
}

// New creates a client; zero fields of cfg take their defaults
func New(cfg Config) *Client {
	defaults := DefaultConfig()
	if cfg.URL == "" {
		cfg.URL = defaults.URL
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = defaults.NavigationTimeout
	}
	if cfg.ElementTimeout <= 0 {
		cfg.ElementTimeout = defaults.ElementTimeout
	}
	if cfg.HealthTimeout <= 0 {
		cfg.HealthTimeout = defaults.HealthTimeout
	}
	if cfg.WaitMargin <= 0 {
		cfg.WaitMargin = defaults.WaitMargin
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaults.UserAgent
	}
	cfg.URL = strings.TrimRight(cfg.URL, "/")

	r := resty.New().
		SetBaseURL(cfg.URL).
		SetRetryCount(0).
		SetHeader("User-Agent", cfg.UserAgent).
		SetHeader("Accept", "application/json").
		SetJSONMarshaler(sonic.Marshal).
		SetJSONUnmarshaler(sonic.Unmarshal)

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	r.SetLogger(logger.Named("sandbox-client").Sugar())

	return &Client{cfg: cfg, resty: r}
}

// NewFromEnv creates a client configured from SANDBOX_URL and friends
func NewFromEnv() (*Client, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	return New(cfg), nil
}

// URL returns the server base URL
func (c *Client) URL() string {
	return c.cfg.URL
}

// OpenPage navigates the sandbox browser
func (c *Client) OpenPage(ctx context.Context, url string) (*protocol.OpenPageResponse, error) {
	var out protocol.OpenPageResponse
	err := c.do(ctx, http.MethodPost, protocol.PathOpenPage, c.cfg.NavigationTimeout,
		protocol.OpenPageRequest{URL: url}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Title returns the current page title
func (c *Client) Title(ctx context.Context) (string, error) {
	var out protocol.TitleResponse
	if err := c.do(ctx, http.MethodGet, protocol.PathPageTitle, c.cfg.ElementTimeout, nil, &out); err != nil {
		return "", err
	}
	return out.Title, nil
}

// CurrentURL returns the current page URL
func (c *Client) CurrentURL(ctx context.Context) (string, error) {
	var out protocol.URLResponse
	if err := c.do(ctx, http.MethodGet, protocol.PathPageURL, c.cfg.ElementTimeout, nil, &out); err != nil {
		return "", err
	}
	return out.URL, nil
}

// Click clicks the first element matching selector. Clicks may navigate.
func (c *Client) Click(ctx context.Context, selector string) error {
	return c.do(ctx, http.MethodPost, protocol.PathClick, c.cfg.NavigationTimeout,
		protocol.SelectorRequest{Selector: selector}, nil)
}

// Fill replaces the value of a form field
func (c *Client) Fill(ctx context.Context, selector, text string) error {
	return c.do(ctx, http.MethodPost, protocol.PathFillInput, c.cfg.ElementTimeout,
		protocol.FillInputRequest{Selector: selector, Text: text}, nil)
}

// ExtractText returns the visible text of the first match
func (c *Client) ExtractText(ctx context.Context, selector string) (string, error) {
	var out protocol.TextResponse
	err := c.do(ctx, http.MethodPost, protocol.PathExtractText, c.cfg.ElementTimeout,
		protocol.SelectorRequest{Selector: selector}, &out)
	return out.Text, err
}

// ExtractAllText returns the non-empty visible texts of every match
func (c *Client) ExtractAllText(ctx context.Context, selector string) ([]string, error) {
	var out protocol.TextsResponse
	err := c.do(ctx, http.MethodPost, protocol.PathExtractAllText, c.cfg.ElementTimeout,
		protocol.SelectorRequest{Selector: selector}, &out)
	return out.Texts, err
}

// WaitForElement waits up to timeout for selector; a zero timeout uses the
// server default. Not finding the element is (false, nil).
func (c *Client) WaitForElement(ctx context.Context, selector string, timeout time.Duration) (bool, error) {
	budget := timeout
	if budget <= 0 {
		budget = 10 * time.Second
	}
	var out protocol.WaitResponse
	err := c.do(ctx, http.MethodPost, protocol.PathWaitForElement, budget+c.cfg.WaitMargin,
		protocol.WaitRequest{Selector: selector, Timeout: timeout.Seconds()}, &out)
	return out.Found, err
}

// Attribute returns an attribute of the first match, nil when absent
func (c *Client) Attribute(ctx context.Context, selector, attribute string) (*string, error) {
	var out protocol.AttributeResponse
	err := c.do(ctx, http.MethodPost, protocol.PathGetAttribute, c.cfg.ElementTimeout,
		protocol.AttributeRequest{Selector: selector, Attribute: attribute}, &out)
	if err != nil {
		return nil, err
	}
	return out.Value, nil
}

// Evaluate runs script against the current page
func (c *Client) Evaluate(ctx context.Context, script string) (*protocol.EvaluateResponse, error) {
	var out protocol.EvaluateResponse
	err := c.do(ctx, http.MethodPost, protocol.PathEvaluate, c.cfg.ElementTimeout,
		protocol.EvaluateRequest{Script: script}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// PageSource returns the current DOM as HTML
func (c *Client) PageSource(ctx context.Context, sanitize bool) (string, error) {
	var out protocol.PageSourceResponse
	path := protocol.PathPageSource + "?sanitize=" + strconv.FormatBool(sanitize)
	if err := c.do(ctx, http.MethodGet, path, c.cfg.ElementTimeout, nil, &out); err != nil {
		return "", err
	}
	return out.HTML, nil
}

// CheckHealth reports whether the sandbox is ready, with the raw payload
func (c *Client) CheckHealth(ctx context.Context) (bool, *protocol.HealthResponse, error) {
	var out protocol.HealthResponse
	if err := c.do(ctx, http.MethodGet, protocol.PathHealth, c.cfg.HealthTimeout, nil, &out); err != nil {
		return false, nil, err
	}
	return out.Status == protocol.StatusHealthy, &out, nil
}

// WaitUntilHealthy polls health every interval until the sandbox is ready or ctx ends
func (c *Client) WaitUntilHealthy(ctx context.Context, interval time.Duration) (*protocol.HealthResponse, error) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastErr error
	for {
		ready, health, err := c.CheckHealth(ctx)
		if err == nil && ready {
			return health, nil
		}
		if err != nil {
			lastErr = err
		} else {
			lastErr = protocol.Errorf(protocol.KindDriverUnavailable, "sandbox is %s", health.Status)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("sandbox not healthy: %w", lastErr)
		case <-ticker.C:
		}
	}
}

// Reset replaces the sandbox browser session
func (c *Client) Reset(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, protocol.PathReset, c.cfg.NavigationTimeout, nil, nil)
}

// Run calls the legacy {tool, args} dispatch endpoint
func (c *Client) Run(ctx context.Context, tool string, args map[string]interface{}) (*protocol.RunResponse, error) {
	var out protocol.RunResponse
	err := c.do(ctx, http.MethodPost, protocol.PathRun, c.cfg.NavigationTimeout,
		protocol.RunRequest{Tool: tool, Args: args}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// do performs one request bounded by timeout and maps failures onto protocol errors
func (c *Client) do(ctx context.Context, method, path string, timeout time.Duration, body, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req := c.resty.R().
		SetContext(ctx).
		SetError(&protocol.ErrorResponse{})
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}
	if out != nil {
		req.SetResult(out)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		// the server answered but the body could not be decoded
		if resp != nil && resp.RawResponse != nil && ctx.Err() == nil {
			return protocol.Errorf(protocol.KindSandboxError, "sandbox answered %s with an unreadable body: %s",
				resp.Status(), truncate(resp.String(), 200))
		}
		return protocol.Errorf(protocol.KindSandboxUnreachable, "sandbox unreachable at %s: %v", c.cfg.URL, err)
	}
	if resp.IsError() {
		return responseError(resp)
	}
	if out != nil && !isJSON(resp.Header().Get("Content-Type")) {
		return protocol.Errorf(protocol.KindSandboxError, "sandbox answered %s without JSON: %s",
			resp.Status(), truncate(resp.String(), 200))
	}
	return nil
}

func isJSON(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

// responseError decodes the structured payload of a failed call
func responseError(resp *resty.Response) error {
	if payload, ok := resp.Error().(*protocol.ErrorResponse); ok && payload.ErrorKind.Known() {
		return &protocol.Error{Kind: payload.ErrorKind, Message: payload.Message}
	}
	return protocol.Errorf(protocol.KindSandboxError, "sandbox answered %s: %s", resp.Status(), truncate(resp.String(), 200))
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
