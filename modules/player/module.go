package player

import (
	_ "embed"
	"html/template"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/m1k1o/go-playgate/pkg/access"
	"github.com/m1k1o/go-playgate/pkg/metadata"
)

//go:embed player.html
var playHTML string

var playTmpl = template.Must(template.New("player").Parse(playHTML))

type ModuleCtx struct {
	logger     zerolog.Logger
	pathPrefix string
	router     chi.Router

	config   Config
	configMu sync.RWMutex
}

func New(pathPrefix string, config *Config) *ModuleCtx {
	module := &ModuleCtx{
		logger:     log.With().Str("module", "player").Logger(),
		pathPrefix: pathPrefix,
		config:     config.withDefaultValues(),
	}

	router := chi.NewRouter()
	router.Get(pathPrefix+"{kind}/{contentId}", module.play)
	module.router = router

	return module
}

func (m *ModuleCtx) Shutdown() {

}

// ConfigReload may be called while requests are served.
func (m *ModuleCtx) ConfigReload(config *Config) {
	m.configMu.Lock()
	m.config = config.withDefaultValues()
	m.configMu.Unlock()
}

func (m *ModuleCtx) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.router.ServeHTTP(w, r)
}

func (m *ModuleCtx) play(w http.ResponseWriter, r *http.Request) {
	kind, err := metadata.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		http.Error(w, "404 unknown content kind", http.StatusNotFound)
		return
	}

	mode, err := access.ParseMode(r.URL.Query().Get("mode"))
	if err != nil {
		http.Error(w, "400 "+err.Error(), http.StatusBadRequest)
		return
	}

	m.configMu.RLock()
	config := m.config
	m.configMu.RUnlock()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err = playTmpl.Execute(w, map[string]string{
		"ContentID":   chi.URLParam(r, "contentId"),
		"Kind":        string(kind),
		"Mode":        mode.String(),
		"SessionPath": config.SessionPath,
		"HlsJsUrl":    config.HlsJsUrl,
	})
	if err != nil {
		m.logger.Err(err).Msg("unable to render player")
	}
}
