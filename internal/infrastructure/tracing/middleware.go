package tracing

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

// HTTPMiddleware opens a span per request, continuing a trace sent in X-Trace-ID,
// and echoes the ids in the response headers
func HTTPMiddleware(tracer *Tracer) gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID, parentID := ExtractTraceContext(map[string]string{
			TraceHeader: c.GetHeader(TraceHeader),
			SpanHeader:  c.GetHeader(SpanHeader),
		})

		ctx := c.Request.Context()
		if traceID != "" {
			ctx = context.WithValue(ctx, traceIDKey, traceID)
		}
		if parentID != "" {
			ctx = context.WithValue(ctx, spanIDKey, parentID)
		}

		name := c.FullPath()
		if name == "" {
			name = c.Request.URL.Path
		}
		span, ctx := tracer.StartSpan(ctx, name)
		span.SetTag("http.method", c.Request.Method)

		c.Request = c.Request.WithContext(ctx)
		headers := make(map[string]string, 2)
		InjectTraceContext(ctx, headers)
		for k, v := range headers {
			c.Header(k, v)
		}

		c.Next()

		status := c.Writer.Status()
		span.SetStatus(status)
		if len(c.Errors) > 0 {
			span.SetError(c.Errors.Last())
		} else if status >= http.StatusInternalServerError {
			span.SetError(errServerStatus(status))
		}

		span.Finish()
		tracer.Submit(span)
	}
}

type errServerStatus int

func (e errServerStatus) Error() string {
	return http.StatusText(int(e))
}
