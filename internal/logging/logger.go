package logging

import (
	"io"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-kratos/kratos/v2/log"
)

// New builds the process logger: key/value lines on w, filtered by level
// ("debug", "info", "warn", "error").
func New(w io.Writer, service, level string) log.Logger {
	if w == nil {
		w = os.Stdout
	}
	logger := log.NewStdLogger(w)
	logger = log.With(logger,
		"ts", log.DefaultTimestamp,
		"caller", log.DefaultCaller,
		"service.name", service,
	)
	return log.NewFilter(logger, log.FilterLevel(log.ParseLevel(level)))
}

// GinMiddleware logs one line per request through logger.
func GinMiddleware(logger log.Logger) gin.HandlerFunc {
	h := log.NewHelper(log.With(logger, "module", "http"))
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		kv := []interface{}{
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", status,
			"latency", time.Since(start).String(),
			"client_ip", c.ClientIP(),
		}
		if len(c.Errors) > 0 {
			kv = append(kv, "errors", c.Errors.String())
		}
		switch {
		case status >= 500:
			h.Errorw(kv...)
		case status >= 400:
			h.Warnw(kv...)
		default:
			h.Infow(kv...)
		}
	}
}
