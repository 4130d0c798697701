package middleware

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/Jarvis/sandbox/internal/infrastructure/tracing"
)

// CORSConfig defines which browser origins may call the sandbox API.
type CORSConfig struct {
	AllowOrigins []string
	MaxAge       time.Duration
}

// DefaultCORSConfig allows any origin to drive the sandbox API.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowOrigins: []string{"*"},
		MaxAge:       12 * time.Hour,
	}
}

// CORS answers preflights for the JSON API. Credentials are never allowed: the
// sandbox has no notion of a caller identity.
func CORS(cfg CORSConfig) gin.HandlerFunc {
	origins := cfg.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	c := cors.Config{
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{
			"Content-Type",
			"Accept",
			"Accept-Encoding",
			"Origin",
			RequestIDHeader,
			tracing.TraceHeader,
			tracing.SpanHeader,
		},
		ExposeHeaders: []string{RequestIDHeader, tracing.TraceHeader, tracing.SpanHeader},
		MaxAge:        cfg.MaxAge,
	}
	if len(origins) == 1 && origins[0] == "*" {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
	}
	return cors.New(c)
}
