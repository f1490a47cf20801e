package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"shortcut-panel/config"
	"shortcut-panel/shortcut"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *handler) getShortcuts(w http.ResponseWriter, r *http.Request) {
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))
	res, err := h.data.Load(loadContext(r), force)
	if err != nil {
		h.loadFailed(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handler) refreshShortcuts(w http.ResponseWriter, r *http.Request) {
	if !h.refresh.Allow() {
		http.Error(w, "too many refreshes", http.StatusTooManyRequests)
		return
	}
	res, err := h.data.Refresh(loadContext(r))
	if err != nil {
		h.loadFailed(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// loadContext keeps the request's values but not its cancellation. The
// manager is shared by every widget session, so a caller hanging up must not
// fail the load for all of them. The manager's own timeout still applies.
func loadContext(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}

func (h *handler) loadFailed(w http.ResponseWriter, err error) {
	var missing *config.MissingError
	switch {
	case errors.Is(err, shortcut.ErrBusy):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.As(err, &missing), errors.Is(err, shortcut.ErrDestroyed):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	default:
		h.logger.Warn("shortcut load failed", zap.Error(err))
		http.Error(w, err.Error(), http.StatusBadGateway)
	}
}

func (h *handler) getStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		Statistics shortcut.Statistics `json:"statistics"`
		State      shortcut.LoadState  `json:"state"`
	}{h.data.Statistics(), h.data.LoadState()})
}

func (h *handler) getShortcut(w http.ResponseWriter, r *http.Request) {
	s, ok := h.data.ShortcutByID(chi.URLParam(r, "id"))
	if !ok {
		http.Error(w, "shortcut not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *handler) getGroup(w http.ResponseWriter, r *http.Request) {
	list := h.data.ShortcutsByGroup(chi.URLParam(r, "name"))
	if list == nil {
		list = []shortcut.Shortcut{}
	}
	writeJSON(w, http.StatusOK, list)
}
