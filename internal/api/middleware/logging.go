package middleware

import (
	"net/http"
	"time"

	"github.com/GriffinCanCode/Jarvis/sandbox/internal/infrastructure/logging"
	"github.com/GriffinCanCode/Jarvis/sandbox/pkg/protocol"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// quietPaths are polled constantly and log at debug level
var quietPaths = map[string]bool{
	protocol.PathHealth:  true,
	protocol.PathMetrics: true,
}

// Logger logs one line per request.
func Logger(logger *logging.Logger) gin.HandlerFunc {
	log := logger.Component("http")
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.String("request_id", GetRequestID(c)),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		level := zapcore.InfoLevel
		switch {
		case status >= http.StatusInternalServerError:
			level = zapcore.ErrorLevel
		case status >= http.StatusBadRequest:
			level = zapcore.WarnLevel
		case quietPaths[path]:
			level = zapcore.DebugLevel
		}
		if ce := log.Check(level, "Request"); ce != nil {
			ce.Write(fields...)
		}
	}
}

// Recovery turns handler panics into a SandboxError payload.
func Recovery(logger *logging.Logger) gin.HandlerFunc {
	log := logger.Component("http")
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("Handler panic",
					zap.Any("panic", r),
					zap.String("path", c.Request.URL.Path),
					zap.String("request_id", GetRequestID(c)))
				c.AbortWithStatusJSON(http.StatusInternalServerError,
					protocol.Errorf(protocol.KindSandboxError, "internal server error").Payload())
			}
		}()
		c.Next()
	}
}
