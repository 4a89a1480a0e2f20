package server

import (
	stdlog "log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

type logformatter struct {
	logger zerolog.Logger
}

func (l *logformatter) NewLogEntry(r *http.Request) middleware.LogEntry {
	req := map[string]any{}

	if reqID := middleware.GetReqID(r.Context()); reqID != "" {
		req["id"] = reqID
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}

	req["scheme"] = scheme
	req["proto"] = r.Proto
	req["method"] = r.Method
	req["remote"] = r.RemoteAddr
	req["agent"] = r.UserAgent()
	req["uri"] = scheme + "://" + r.Host + r.RequestURI

	return &logentry{
		logger: l.logger.With().Interface("req", req).Logger(),
	}
}

type logentry struct {
	logger zerolog.Logger
}

func (e *logentry) Write(status, bytes int, header http.Header, elapsed time.Duration, extra any) {
	res := map[string]any{}
	res["time"] = time.Now().UTC().Format(time.RFC1123)
	res["status"] = status
	res["bytes"] = bytes
	res["elapsed"] = float64(elapsed.Nanoseconds()) / 1000000.0

	event := e.logger.Debug()
	switch {
	case status >= 500:
		event = e.logger.Error()
	case status >= 400:
		event = e.logger.Warn()
	}

	event.Interface("res", res).Msg("request complete")
}

func (e *logentry) Panic(v any, stack []byte) {
	e.logger.Error().
		Interface("panic", v).
		Bytes("stack", stack).
		Msg("request panicked")
}

// logwriter forwards net/http internal errors, such as TLS handshake
// failures, to zerolog.
type logwriter struct {
	logger zerolog.Logger
}

func (l logwriter) Write(p []byte) (n int, err error) {
	l.logger.Warn().Msg(strings.TrimSpace(string(p)))
	return len(p), nil
}

func errorLog(logger zerolog.Logger) *stdlog.Logger {
	return stdlog.New(logwriter{logger}, "", 0)
}
