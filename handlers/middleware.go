package handlers

import (
	"time"

	"github.com/pocketbase/pocketbase/core"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// RequestLogMiddleware logs every routed request after it completes. Server
// errors are logged at error level, client errors at warn.
func RequestLogMiddleware() func(e *core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		start := time.Now()
		err := e.Next()

		status := e.Status()
		level := zerolog.InfoLevel
		switch {
		case err != nil || status >= 500:
			level = zerolog.ErrorLevel
		case status >= 400:
			level = zerolog.WarnLevel
		}
		log.WithLevel(level).
			Err(err).
			Str("method", e.Request.Method).
			Str("path", e.Request.URL.Path).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Bool("htmx", e.Request.Header.Get("HX-Request") == "true").
			Msg("http: request")
		return err
	}
}
