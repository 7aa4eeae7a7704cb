package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"picmatch/internal/game"
	"picmatch/internal/viewmodel"
	"picmatch/views/pages"
)

const appTitle = "Picmatch"

type HomeHandler struct {
	store       *game.Store
	defaultLang game.Language
	logger      *zap.Logger
}

func NewHomeHandler(store *game.Store, defaultLang game.Language, logger *zap.Logger) *HomeHandler {
	return &HomeHandler{store: store, defaultLang: defaultLang, logger: logger}
}

func (h *HomeHandler) RegisterRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(RequestTimeout))
		r.Get("/", h.home)
		r.Post("/sessions", h.createSession)
	})
}

func (h *HomeHandler) home(w http.ResponseWriter, r *http.Request) {
	render(w, r, pages.HomePage(viewmodel.HomePage{
		Title:     appTitle,
		Languages: languageOptions(h.defaultLang),
	}))
}

func (h *HomeHandler) createSession(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	lang := h.defaultLang
	if raw := r.FormValue("lang"); raw != "" {
		parsed, err := game.ParseLanguage(raw)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		lang = parsed
	}

	id, _, err := h.store.CreateSession(lang)
	if err != nil {
		h.logger.Error("create session", zap.Error(err))
		http.Error(w, "failed to create session", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/play/"+id, http.StatusSeeOther)
}

func languageOptions(selected game.Language) []viewmodel.LanguageOption {
	langs := game.SupportedLanguages()
	out := make([]viewmodel.LanguageOption, 0, len(langs))
	for _, lang := range langs {
		out = append(out, viewmodel.LanguageOption{
			Code:     string(lang),
			Label:    lang.Label(),
			Selected: lang == selected,
		})
	}
	return out
}
