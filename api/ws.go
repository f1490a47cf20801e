package api

import (
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"shortcut-panel/view"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type wsMessage struct {
	Type     string       `json:"type"`
	Patches  []view.Patch `json:"patches,omitempty"`
	Selector string       `json:"selector,omitempty"`
	Value    string       `json:"value,omitempty"`
	Cursor   int          `json:"cursor,omitempty"`
	Error    string       `json:"error,omitempty"`
}

func (h *handler) handleWS(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s, ok := h.sessions.Get(id)
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade", zap.String("session", id), zap.Error(err))
		return
	}
	defer conn.Close()
	logger := h.logger.With(zap.String("session", id))

	// gorilla/websocket forbids concurrent writes.
	var writeMu sync.Mutex
	writeMsg := func(msg wsMessage) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteJSON(msg)
	}

	// SetClient queues a full snapshot first, then live patches follow.
	outChan := make(chan []view.Patch, 64)
	kick := s.SetClient(outChan)
	defer s.ClearClient(outChan)

	// Pump patches to the client. Exits when ClearClient closes outChan.
	go func() {
		for patches := range outChan {
			if err := writeMsg(wsMessage{Type: "patch", Patches: patches}); err != nil {
				return
			}
		}
	}()

	// Close the connection on session end or displacement so ReadJSON
	// below unblocks.
	connDone := make(chan struct{})
	go func() {
		select {
		case <-s.Done():
			writeMsg(wsMessage{Type: "closed"}) //nolint:errcheck
			conn.Close()
		case <-kick:
			// Displaced by a newer connection: no "closed" message, the
			// session itself is still alive.
			conn.Close()
		case <-connDone:
		}
	}()
	defer close(connDone)

	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}

		switch msg.Type {
		case "click":
			if err := s.Click(msg.Selector); err != nil {
				logger.Debug("client click ignored", zap.String("selector", msg.Selector), zap.Error(err))
			}
		case "input":
			if err := s.Input(msg.Value, msg.Cursor); err != nil {
				logger.Debug("client input ignored", zap.Error(err))
			}
		case "refresh":
			if !h.refresh.Allow() {
				writeMsg(wsMessage{Type: "error", Error: "too many refreshes"}) //nolint:errcheck
				continue
			}
			h.sessions.Refresh()
		default:
			logger.Debug("unknown client message", zap.String("type", msg.Type))
		}
	}
}
