package browser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/GriffinCanCode/Jarvis/sandbox/internal/infrastructure/config"
	"github.com/GriffinCanCode/Jarvis/sandbox/internal/infrastructure/resilience"
	"github.com/gabriel-vasile/mimetype"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/saintfish/chardet"
	"golang.org/x/net/html/charset"
)

const maxRedirects = 10

var errUnsupportedContent = errors.New("unsupported content type")

// response is a fetched and decoded document
type response struct {
	URL         *url.URL
	Status      int
	ContentType string
	HTML        string
}

// fetcher loads documents for a single driver; cookies live as long as the driver
type fetcher struct {
	client   *resty.Client
	breakers *resilience.Group
	maxBytes int64
}

func newFetcher(cfg config.DriverConfig) (*fetcher, error) {
	// retryablehttp's pooled transport; retries stay off since a navigation is not idempotent
	retryClient := retryablehttp.NewClient()
	retryClient.Logger = nil
	transport, ok := retryClient.HTTPClient.Transport.(*http.Transport)
	if !ok {
		transport = http.DefaultTransport.(*http.Transport).Clone()
	}

	if cfg.ProxyURL != "" {
		proxy, err := url.Parse(cfg.ProxyURL)
		if err != nil || proxy.Scheme == "" || proxy.Host == "" {
			return nil, fmt.Errorf("invalid proxy url %q", cfg.ProxyURL)
		}
		transport.Proxy = http.ProxyURL(proxy)
	}

	client := resty.New().
		SetTransport(transport).
		SetTimeout(cfg.NavigationTimeout).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(maxRedirects)).
		SetHeader("User-Agent", cfg.UserAgent).
		SetHeader("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8").
		SetHeader("Accept-Language", "en-US,en;q=0.9")

	breakers := resilience.NewGroup(resilience.Settings{
		Threshold: 5,
		Cooldown:  30 * time.Second,
		// only transport failures count; an origin answering 500 is still reachable
		IsFailure: func(err error) bool {
			var te *transportError
			return errors.As(err, &te)
		},
	})

	maxBytes := cfg.MaxPageBytes
	if maxBytes <= 0 {
		maxBytes = config.DefaultDriver().MaxPageBytes
	}

	return &fetcher{client: client, breakers: breakers, maxBytes: maxBytes}, nil
}

type transportError struct{ err error }

func (e *transportError) Error() string { return e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

// fetch performs a request and decodes the body into UTF-8 HTML
func (f *fetcher) fetch(ctx context.Context, method string, target *url.URL, form url.Values, referer string) (*response, error) {
	var out *response
	err := f.breakers.Do(ctx, target.Host, func(ctx context.Context) error {
		req := f.client.R().SetContext(ctx).SetDoNotParseResponse(true)
		if referer != "" {
			req.SetHeader("Referer", referer)
		}
		if method == http.MethodPost {
			req.SetFormDataFromValues(form)
		}

		resp, err := req.Execute(method, target.String())
		if err != nil {
			return &transportError{err: err}
		}
		body := resp.RawBody()
		defer body.Close()

		data, err := io.ReadAll(io.LimitReader(body, f.maxBytes+1))
		if err != nil {
			return &transportError{err: err}
		}
		if int64(len(data)) > f.maxBytes {
			return fmt.Errorf("page exceeds %d bytes", f.maxBytes)
		}

		final := target
		if raw := resp.RawResponse; raw != nil && raw.Request != nil && raw.Request.URL != nil {
			final = raw.Request.URL
		}

		contentType := resp.Header().Get("Content-Type")
		doc, err := decodeDocument(data, contentType)
		if err != nil {
			return err
		}

		out = &response{
			URL:         final,
			Status:      resp.StatusCode(),
			ContentType: contentType,
			HTML:        doc,
		}
		return nil
	})
	if err != nil {
		return nil, &navError{url: target.String(), cause: err}
	}
	return out, nil
}

// circuitState reports the most degraded origin circuit
func (f *fetcher) circuitState() string {
	return f.breakers.Worst().String()
}

func (f *fetcher) close() {
	f.client.GetClient().CloseIdleConnections()
}

// decodeDocument turns a response body into HTML; plain text is wrapped in <pre>
func decodeDocument(data []byte, contentType string) (string, error) {
	mediaType := ""
	if contentType != "" {
		if mt, _, err := mime.ParseMediaType(contentType); err == nil {
			mediaType = strings.ToLower(mt)
		}
	}
	if mediaType == "" || mediaType == "application/octet-stream" {
		mediaType = strings.ToLower(strings.SplitN(mimetype.Detect(data).String(), ";", 2)[0])
	}

	switch {
	case mediaType == "text/html" || mediaType == "application/xhtml+xml":
		return decodeCharset(data, contentType), nil
	case strings.HasPrefix(mediaType, "text/") || mediaType == "application/json" ||
		mediaType == "application/xml" || strings.HasSuffix(mediaType, "+json") || strings.HasSuffix(mediaType, "+xml"):
		text := decodeCharset(data, contentType)
		return "<html><head></head><body><pre>" + html.EscapeString(text) + "</pre></body></html>", nil
	default:
		return "", fmt.Errorf("%w: %s", errUnsupportedContent, mediaType)
	}
}

// decodeCharset trusts BOM, header and meta; chardet only settles the fallback guess
func decodeCharset(data []byte, contentType string) string {
	enc, name, certain := charset.DetermineEncoding(data, contentType)
	if !certain && name == "windows-1252" {
		detector := chardet.NewTextDetector()
		if result, err := detector.DetectBest(data); err == nil && result != nil {
			if detected, _ := charset.Lookup(strings.ToLower(result.Charset)); detected != nil {
				enc = detected
			}
		}
	}
	if enc == nil {
		return string(data)
	}
	decoded, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return string(bytes.ToValidUTF8(data, []byte("�")))
	}
	return string(decoded)
}
