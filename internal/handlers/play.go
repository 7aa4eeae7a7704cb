package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"picmatch/internal/game"
	"picmatch/internal/viewmodel"
	"picmatch/views/components"
	"picmatch/views/pages"
)

const (
	// RequestTimeout bounds every non-streaming request.
	RequestTimeout    = 15 * time.Second
	keepAliveInterval = 25 * time.Second
)

type PlayHandler struct {
	store  *game.Store
	logger *zap.Logger
}

func NewPlayHandler(store *game.Store, logger *zap.Logger) *PlayHandler {
	return &PlayHandler{store: store, logger: logger}
}

// RegisterRoutes mounts the session routes. Everything except the SSE
// stream runs under RequestTimeout.
func (h *PlayHandler) RegisterRoutes(r chi.Router) {
	r.Route("/play/{id}", func(r chi.Router) {
		r.Get("/stream", h.stream)
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(RequestTimeout))
			r.Get("/", h.playPage)
			r.Get("/board", h.boardFragment)
			r.Get("/cover", h.coverFragment)
			r.Get("/review", h.reviewFragment)
			r.Get("/state", h.state)
			r.Post("/select", h.selectOption)
			r.Post("/language", h.changeLanguage)
			r.Post("/restart", h.restart)
		})
	})
}

func (h *PlayHandler) session(w http.ResponseWriter, r *http.Request) (string, *game.Engine, bool) {
	id := chi.URLParam(r, "id")
	engine, ok := h.store.GetSession(id)
	if !ok {
		http.NotFound(w, r)
		return id, nil, false
	}
	return id, engine, true
}

func (h *PlayHandler) playPage(w http.ResponseWriter, r *http.Request) {
	id, engine, ok := h.session(w, r)
	if !ok {
		return
	}
	snap := engine.Snapshot()
	render(w, r, pages.PlayPage(viewmodel.PlayPage{
		Title:     appTitle,
		SessionID: id,
		Languages: languageOptions(snap.Language),
		Board:     buildBoard(id, snap),
		Cover:     buildCover(id, snap),
		Review:    buildReview(snap),
	}))
}

func (h *PlayHandler) boardFragment(w http.ResponseWriter, r *http.Request) {
	id, engine, ok := h.session(w, r)
	if !ok {
		return
	}
	render(w, r, components.BoardFragment(buildBoard(id, engine.Snapshot())))
}

func (h *PlayHandler) coverFragment(w http.ResponseWriter, r *http.Request) {
	id, engine, ok := h.session(w, r)
	if !ok {
		return
	}
	render(w, r, components.CoverFragment(buildCover(id, engine.Snapshot())))
}

func (h *PlayHandler) reviewFragment(w http.ResponseWriter, r *http.Request) {
	_, engine, ok := h.session(w, r)
	if !ok {
		return
	}
	render(w, r, components.ReviewFragment(buildReview(engine.Snapshot())))
}

func (h *PlayHandler) selectOption(w http.ResponseWriter, r *http.Request) {
	id, engine, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	option := strings.TrimSpace(r.FormValue("option"))
	if option == "" {
		http.Error(w, "option required", http.StatusBadRequest)
		return
	}
	res, err := engine.SubmitAnswer(game.WordID(option))
	if err != nil {
		h.commandError(w, id, "select", err)
		return
	}
	h.logger.Debug("answer",
		zap.String("session", id),
		zap.String("option", option),
		zap.Bool("correct", res.Correct),
		zap.Bool("complete", res.Complete),
	)
	h.commandDone(w, r, id)
}

func (h *PlayHandler) changeLanguage(w http.ResponseWriter, r *http.Request) {
	id, engine, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	if err := engine.SwitchLanguage(game.Language(r.FormValue("lang"))); err != nil {
		h.commandError(w, id, "language", err)
		return
	}
	h.commandDone(w, r, id)
}

func (h *PlayHandler) restart(w http.ResponseWriter, r *http.Request) {
	id, engine, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := engine.Restart(); err != nil {
		h.commandError(w, id, "restart", err)
		return
	}
	h.logger.Info("session restarted", zap.String("session", id))
	h.commandDone(w, r, id)
}

// stateResponse is the JSON view of a session. The target word is never included.
type stateResponse struct {
	Phase        string        `json:"phase"`
	Language     string        `json:"language"`
	Round        int           `json:"round"`
	Prompt       string        `json:"prompt"`
	Options      []stateOption `json:"options"`
	Correct      int           `json:"correct"`
	Total        int           `json:"total"`
	Remaining    []int         `json:"remainingTiles"`
	Learned      []string      `json:"learned"`
	RewardImage  string        `json:"rewardImage"`
	Revealed     bool          `json:"revealed"`
	RestartLabel string        `json:"restartLabel"`
	ReviewTitle  string        `json:"reviewTitle"`
}

type stateOption struct {
	ID       string `json:"id"`
	Image    string `json:"image"`
	Alt      string `json:"alt"`
	Disabled bool   `json:"disabled"`
}

func (h *PlayHandler) state(w http.ResponseWriter, r *http.Request) {
	_, engine, ok := h.session(w, r)
	if !ok {
		return
	}
	snap := engine.Snapshot()
	resp := stateResponse{
		Phase:        string(snap.Phase),
		Language:     string(snap.Language),
		Round:        snap.Round.Number,
		Prompt:       snap.Prompt,
		Options:      make([]stateOption, 0, len(snap.Round.Options)),
		Correct:      snap.Correct,
		Total:        snap.Total,
		Remaining:    snap.Remaining,
		Learned:      make([]string, 0, len(snap.Learned)),
		RewardImage:  snap.RewardImage,
		Revealed:     snap.Revealed,
		RestartLabel: snap.RestartLabel,
		ReviewTitle:  snap.ReviewTitle,
	}
	for _, o := range snap.Round.Options {
		resp.Options = append(resp.Options, stateOption{
			ID:       string(o.ID),
			Image:    o.Image,
			Alt:      o.Alt,
			Disabled: o.Disabled,
		})
	}
	for _, item := range snap.Learned {
		resp.Learned = append(resp.Learned, string(item.Word.ID))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *PlayHandler) stream(w http.ResponseWriter, r *http.Request) {
	id, engine, ok := h.session(w, r)
	if !ok {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	hub, ok := h.store.Broadcaster(id)
	if !ok {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	sub := hub.Subscribe()
	defer hub.Unsubscribe(sub)

	send := func(fragments ...string) {
		snap := engine.Snapshot()
		for _, fragment := range fragments {
			switch fragment {
			case game.FragmentBoard:
				writeSSE(w, fragment, renderToString(r, components.BoardFragment(buildBoard(id, snap))))
			case game.FragmentCover:
				writeSSE(w, fragment, renderToString(r, components.CoverFragment(buildCover(id, snap))))
			case game.FragmentReview:
				writeSSE(w, fragment, renderToString(r, components.ReviewFragment(buildReview(snap))))
			}
		}
		flusher.Flush()
	}

	send(game.FragmentBoard, game.FragmentCover, game.FragmentReview)

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case fragment, open := <-sub:
			if !open {
				return
			}
			if hub.Lagged(sub) {
				send(game.FragmentBoard, game.FragmentCover, game.FragmentReview)
				continue
			}
			send(fragment)
		case <-keepAlive.C:
			_, _ = w.Write([]byte(": keepalive\n\n"))
			flusher.Flush()
		}
	}
}

// commandDone answers a successful command: htmx clients get their update
// over SSE, plain form posts are redirected back to the page.
func (h *PlayHandler) commandDone(w http.ResponseWriter, r *http.Request, id string) {
	if isHTMX(r) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, "/play/"+id, http.StatusSeeOther)
}

func (h *PlayHandler) commandError(w http.ResponseWriter, id, command string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("command failed", zap.String("session", id), zap.String("command", command), zap.Error(err))
	} else {
		h.logger.Debug("command rejected", zap.String("session", id), zap.String("command", command), zap.Error(err))
	}
	http.Error(w, err.Error(), status)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, game.ErrUnknownOption),
		errors.Is(err, game.ErrOptionDisabled),
		errors.Is(err, game.ErrUnknownLanguage):
		return http.StatusBadRequest
	case errors.Is(err, game.ErrNotAwaitingAnswer),
		errors.Is(err, game.ErrSessionComplete):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func buildBoard(id string, snap game.Snapshot) viewmodel.BoardFragment {
	options := make([]viewmodel.OptionButton, 0, len(snap.Round.Options))
	disabled := 0
	for _, o := range snap.Round.Options {
		if o.Disabled {
			disabled++
		}
		options = append(options, viewmodel.OptionButton{
			ID:       string(o.ID),
			Image:    o.Image,
			Alt:      o.Alt,
			Disabled: o.Disabled,
		})
	}
	return viewmodel.BoardFragment{
		SessionID: id,
		Round:     snap.Round.Number,
		Prompt:    snap.Prompt,
		Options:   options,
		Failed:    snap.Failed,
		Advancing: snap.Phase == game.PhaseAdvancing,
		Complete:  snap.Complete(),
		Revealed:  snap.Revealed,
		RoundKey: strings.Join([]string{
			string(snap.Phase),
			strconv.Itoa(snap.Round.Number),
			strconv.Itoa(disabled),
		}, "|"),
	}
}

func buildCover(id string, snap game.Snapshot) viewmodel.CoverFragment {
	return viewmodel.CoverFragment{
		SessionID:    id,
		RewardImage:  snap.RewardImage,
		Covered:      snap.Covered[:],
		Correct:      snap.Correct,
		Total:        snap.Total,
		Revealed:     snap.Revealed,
		RestartLabel: snap.RestartLabel,
	}
}

func buildReview(snap game.Snapshot) viewmodel.ReviewFragment {
	items := make([]viewmodel.ReviewItem, 0, len(snap.Learned))
	for _, item := range snap.Learned {
		items = append(items, viewmodel.ReviewItem{
			Label: item.Label,
			Image: item.Word.Image,
		})
	}
	return viewmodel.ReviewFragment{
		Title: snap.ReviewTitle,
		Items: items,
	}
}
