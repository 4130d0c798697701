package http

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/GriffinCanCode/Jarvis/sandbox/internal/api/middleware"
	"github.com/GriffinCanCode/Jarvis/sandbox/internal/infrastructure/logging"
	"github.com/GriffinCanCode/Jarvis/sandbox/internal/sandbox"
	"github.com/GriffinCanCode/Jarvis/sandbox/pkg/protocol"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handlers serves the session endpoints
type Handlers struct {
	session *sandbox.Session
	logger  *logging.Logger
}

// NewHandlers creates handlers bound to one session
func NewHandlers(session *sandbox.Session, logger *logging.Logger) *Handlers {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handlers{session: session, logger: logger.Component("api")}
}

// Register mounts every session endpoint on r
func (h *Handlers) Register(r gin.IRoutes) {
	r.GET(protocol.PathHealth, h.Health)
	r.POST(protocol.PathReset, h.Reset)

	r.POST(protocol.PathOpenPage, h.OpenPage)
	r.GET(protocol.PathPageTitle, h.PageTitle)
	r.GET(protocol.PathPageURL, h.PageURL)
	r.POST(protocol.PathClick, h.Click)
	r.POST(protocol.PathFillInput, h.FillInput)
	r.POST(protocol.PathExtractText, h.ExtractText)
	r.POST(protocol.PathExtractAllText, h.ExtractAllText)
	r.POST(protocol.PathWaitForElement, h.WaitForElement)
	r.POST(protocol.PathGetAttribute, h.GetAttribute)
	r.POST(protocol.PathEvaluate, h.Evaluate)
	r.GET(protocol.PathPageSource, h.PageSource)

	r.POST(protocol.PathRun, h.Run)
}

// Health reports session state; it always answers 200
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, h.session.Health())
}

// Reset replaces the browser session
func (h *Handlers) Reset(c *gin.Context) {
	if err := h.session.Reset(c.Request.Context()); err != nil {
		h.fail(c, err)
		return
	}
	h.logger.Info("Session reset", zap.String("request_id", middleware.GetRequestID(c)))
	c.JSON(http.StatusOK, protocol.OKResponse{OK: true})
}

// OpenPage navigates to a URL
func (h *Handlers) OpenPage(c *gin.Context) {
	var req protocol.OpenPageRequest
	if !h.bind(c, &req) {
		return
	}
	resp, err := h.session.OpenPage(c.Request.Context(), req.URL)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// PageTitle returns the current title
func (h *Handlers) PageTitle(c *gin.Context) {
	title, err := h.session.Title(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, protocol.TitleResponse{Title: title})
}

// PageURL returns the current URL
func (h *Handlers) PageURL(c *gin.Context) {
	u, err := h.session.URL(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, protocol.URLResponse{URL: u})
}

// Click clicks the first element matching a selector
func (h *Handlers) Click(c *gin.Context) {
	var req protocol.SelectorRequest
	if !h.bind(c, &req) {
		return
	}
	if err := h.session.Click(c.Request.Context(), req.Selector); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, protocol.OKResponse{OK: true})
}

// FillInput replaces the value of a form field
func (h *Handlers) FillInput(c *gin.Context) {
	var req protocol.FillInputRequest
	if !h.bind(c, &req) {
		return
	}
	if err := h.session.Fill(c.Request.Context(), req.Selector, req.Text); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, protocol.OKResponse{OK: true})
}

// ExtractText returns the visible text of the first match
func (h *Handlers) ExtractText(c *gin.Context) {
	var req protocol.SelectorRequest
	if !h.bind(c, &req) {
		return
	}
	text, err := h.session.Text(c.Request.Context(), req.Selector)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, protocol.TextResponse{Text: text})
}

// ExtractAllText returns the visible texts of every match
func (h *Handlers) ExtractAllText(c *gin.Context) {
	var req protocol.SelectorRequest
	if !h.bind(c, &req) {
		return
	}
	texts, err := h.session.AllText(c.Request.Context(), req.Selector)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, protocol.TextsResponse{Texts: texts})
}

// WaitForElement polls for a selector. Timing out is {found:false}, not an error.
func (h *Handlers) WaitForElement(c *gin.Context) {
	var req protocol.WaitRequest
	if !h.bind(c, &req) {
		return
	}
	found, err := h.session.WaitForElement(c.Request.Context(), req.Selector, seconds(req.Timeout))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, protocol.WaitResponse{Found: found})
}

// GetAttribute returns an attribute of the first match, null when absent
func (h *Handlers) GetAttribute(c *gin.Context) {
	var req protocol.AttributeRequest
	if !h.bind(c, &req) {
		return
	}
	value, err := h.session.Attribute(c.Request.Context(), req.Selector, req.Attribute)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, protocol.AttributeResponse{Value: value})
}

// Evaluate runs a script against the current page
func (h *Handlers) Evaluate(c *gin.Context) {
	var req protocol.EvaluateRequest
	if !h.bind(c, &req) {
		return
	}
	res, err := h.session.Evaluate(c.Request.Context(), req.Script)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, protocol.EvaluateResponse{Value: res.Value, Console: res.Console})
}

// PageSource returns the current DOM, optionally sanitized
func (h *Handlers) PageSource(c *gin.Context) {
	sanitize := false
	if raw := c.Query("sanitize"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			h.fail(c, invalidRequest("sanitize must be a boolean"))
			return
		}
		sanitize = v
	}
	src, err := h.session.Source(c.Request.Context(), sanitize)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, protocol.PageSourceResponse{HTML: src})
}

func (h *Handlers) bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		h.fail(c, invalidRequest(fmt.Sprintf("invalid request body: %v", err)))
		return false
	}
	return true
}

// fail writes the structured error payload for err
func (h *Handlers) fail(c *gin.Context, err error) {
	pe := protocol.AsError(err)
	status := protocol.HTTPStatus(pe.Kind)
	if errors.Is(err, sandbox.ErrBadRequest) {
		status = http.StatusBadRequest
	}
	_ = c.Error(err)
	c.JSON(status, pe.Payload())
}

func invalidRequest(msg string) error {
	return fmt.Errorf("%w: %w", sandbox.ErrBadRequest, protocol.Errorf(protocol.KindSandboxError, "%s", msg))
}

// seconds converts a wire timeout to a duration; zero and negatives mean default
func seconds(v float64) time.Duration {
	if v <= 0 {
		return 0
	}
	if v >= float64(math.MaxInt64)/float64(time.Second) {
		return math.MaxInt64
	}
	return time.Duration(v * float64(time.Second))
}
