package handlers

import (
	"io/fs"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"picmatch/internal/game"
)

// RouterConfig collects what NewRouter wires together.
type RouterConfig struct {
	Store           *game.Store
	DefaultLanguage game.Language
	Logger          *zap.Logger
	// Static is served at /static when set.
	Static fs.FS
	// AssetsDir is served at /assets when set; it holds word and reward images.
	AssetsDir string
}

// NewRouter builds the HTTP handler with the shared middleware stack.
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)

	if cfg.Static != nil {
		r.Mount("/static", http.StripPrefix("/static", http.FileServer(http.FS(cfg.Static))))
	}
	if cfg.AssetsDir != "" {
		r.Mount("/assets", http.StripPrefix("/assets", http.FileServer(http.Dir(cfg.AssetsDir))))
	}

	homeHandler := NewHomeHandler(cfg.Store, cfg.DefaultLanguage, logger)
	playHandler := NewPlayHandler(cfg.Store, logger)

	homeHandler.RegisterRoutes(r)
	playHandler.RegisterRoutes(r)

	return r
}
