package playback

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/m1k1o/go-playgate/pkg/access"
	"github.com/m1k1o/go-playgate/pkg/manifest"
	"github.com/m1k1o/go-playgate/pkg/metadata"
	"github.com/m1k1o/go-playgate/pkg/playback"
)

const (
	SessionPath  = "/playback-session"
	ManifestPath = "/manifest/"
)

type Service interface {
	Session(ctx context.Context, req playback.Request) (*playback.Session, error)
	Manifest(ctx context.Context, req playback.ManifestRequest) (*playback.Manifest, error)
}

type ModuleCtx struct {
	logger  zerolog.Logger
	config  Config
	service Service
	router  chi.Router
}

func New(service Service, config *Config) *ModuleCtx {
	module := &ModuleCtx{
		logger:  log.With().Str("module", "playback").Str("submodule", "http").Logger(),
		config:  config.withDefaultValues(),
		service: service,
	}

	router := chi.NewRouter()
	if module.config.RateLimit > 0 {
		router.Use(httprate.Limit(
			module.config.RateLimit,
			module.config.RateWindow,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(module.limited),
		))
	}

	router.Get(SessionPath, module.session)
	router.Get(ManifestPath+"{contentId}", module.manifest)

	module.router = router
	return module
}

func (m *ModuleCtx) Shutdown() {

}

func (m *ModuleCtx) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.router.ServeHTTP(w, r)
}

func (m *ModuleCtx) limited(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Retry-After", strconv.Itoa(int(m.config.RateWindow.Seconds())))

	if r.URL.Path == SessionPath {
		m.writeJSONError(w, http.StatusTooManyRequests, "rate_limited", "too many requests")
		return
	}
	http.Error(w, "429 too many requests", http.StatusTooManyRequests)
}

func (m *ModuleCtx) session(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", playback.CacheNoStore)

	query := r.URL.Query()

	id := query.Get("contentId")
	if id == "" {
		m.writeJSONError(w, http.StatusBadRequest, "invalid_request", "contentId is required")
		return
	}

	kind, mode, err := parseSelectors(query.Get("kind"), query.Get("mode"))
	if err != nil {
		m.writeJSONError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	session, err := m.service.Session(r.Context(), playback.Request{
		ContentID: id,
		Kind:      kind,
		Mode:      mode,
	})
	if err != nil {
		status, code, message := m.classify(err, id)
		m.writeJSONError(w, status, code, message)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(session); err != nil {
		m.logger.Err(err).Str("id", id).Msg("unable to write session")
	}
}

func (m *ModuleCtx) manifest(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "contentId")
	query := r.URL.Query()

	kind, mode, err := parseSelectors(query.Get("kind"), query.Get("mode"))
	if err != nil {
		http.Error(w, "400 "+err.Error(), http.StatusBadRequest)
		return
	}

	result, err := m.service.Manifest(r.Context(), playback.ManifestRequest{
		ContentID: id,
		Kind:      kind,
		Variant:   query.Get("variant"),
		Mode:      mode,
	})
	if err != nil {
		status, _, message := m.classify(err, id)
		http.Error(w, fmt.Sprintf("%d %s", status, message), status)
		return
	}

	w.Header().Set("Content-Type", manifest.ContentType)
	w.Header().Set("Cache-Control", result.CacheControl)
	_, _ = w.Write([]byte(result.Text))
}

// classify maps service errors to a status, an error code and a message
// safe to show to clients.
func (m *ModuleCtx) classify(err error, id string) (int, string, string) {
	switch {
	case errors.Is(err, playback.ErrNotFound):
		return http.StatusNotFound, "not_found", "content not found"
	case errors.Is(err, playback.ErrNoAsset):
		m.logger.Warn().Err(err).Str("id", id).Msg("no playable asset")
		return http.StatusNotFound, "not_available", "content not available"
	case errors.Is(err, playback.ErrInvalidVariant):
		return http.StatusBadRequest, "invalid_request", "invalid variant"
	case errors.Is(err, context.Canceled):
		// client went away, the status is never seen
		return 499, "canceled", "request canceled"
	}

	m.logger.Error().Err(err).Str("id", id).Msg("playback request failed")
	return http.StatusInternalServerError, "internal_error", "internal server error"
}

func (m *ModuleCtx) writeJSONError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(errorResponse{Error: code, Message: message}); err != nil {
		m.logger.Err(err).Msg("unable to write error response")
	}
}

func parseSelectors(kindStr, modeStr string) (metadata.Kind, access.Mode, error) {
	var kind metadata.Kind
	if kindStr != "" {
		var err error
		if kind, err = metadata.ParseKind(kindStr); err != nil {
			return "", "", err
		}
	}

	mode, err := access.ParseMode(modeStr)
	if err != nil {
		return "", "", err
	}

	return kind, mode, nil
}
