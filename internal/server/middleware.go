package server

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"

	// Keys set by the interpret handler for the access log.
	parseOKKey  = "parse_ok"
	executedKey = "executed"
	streamsKey  = "streams"
)

type streamCounts struct {
	standard, errors, meta int
}

// requestID reuses a well-formed incoming X-Request-ID or assigns a new one.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// accessLog writes one line per request. Program source is never logged.
func accessLog(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		var ev *zerolog.Event
		switch {
		case status >= 500:
			ev = logger.Error()
		case status >= 400:
			ev = logger.Warn()
		default:
			ev = logger.Info()
		}

		ev = ev.Str("request_id", c.GetString(requestIDKey)).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("duration", time.Since(start))

		if sc := trace.SpanContextFromContext(c.Request.Context()); sc.HasTraceID() {
			ev = ev.Str("trace_id", sc.TraceID().String())
		}
		if v, ok := c.Get(parseOKKey); ok {
			ev = ev.Bool("parse_ok", v.(bool))
		}
		if v, ok := c.Get(executedKey); ok {
			ev = ev.Bool("executed", v.(bool))
		}
		if v, ok := c.Get(streamsKey); ok {
			counts := v.(streamCounts)
			ev = ev.Int("standard", counts.standard).
				Int("errors", counts.errors).
				Int("meta", counts.meta)
		}
		if len(c.Errors) > 0 {
			ev = ev.Str("error", c.Errors.String())
		}
		ev.Msg("request")
	}
}
