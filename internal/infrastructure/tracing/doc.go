/*
Package tracing records request spans for the sandbox server.

Each HTTP request gets a span; session operations started under that request
become child spans. Trace context travels in the X-Trace-ID and X-Span-ID
headers, so a host agent can correlate its own logs with sandbox activity.

# Usage

	tracer := tracing.New("sandbox", logger)
	defer tracer.Close()

	router.Use(tracing.HTTPMiddleware(tracer))

	span, ctx := tracer.StartSpan(ctx, "click")
	defer func() {
		span.Finish()
		tracer.Submit(span)
	}()

Completed spans are buffered (1000) and written to the logger by a single
collector goroutine; a full buffer drops spans rather than blocking requests.
*/
package tracing
