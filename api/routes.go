// Package api serves the shortcuts widget page, the JSON shortcut endpoints
// and the live-view websocket of widget sessions.
package api

import (
	"io/fs"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"shortcut-panel/session"
	"shortcut-panel/shortcut"
)

// Options configures RegisterRoutes.
type Options struct {
	Logger *zap.Logger
	// RefreshPerMinute limits forced refreshes. Zero means unlimited.
	RefreshPerMinute float64
	RefreshBurst     int
}

func RegisterRoutes(data *shortcut.Manager, sessions *session.Manager, staticFS fs.FS, opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(accessLog(logger))
	r.Use(middleware.Recoverer)

	h := &handler{
		data:     data,
		sessions: sessions,
		logger:   logger,
		refresh:  newRefreshLimiter(opts.RefreshPerMinute, opts.RefreshBurst),
	}

	// Shortcut data
	r.Get("/api/shortcuts", h.getShortcuts)
	r.Post("/api/shortcuts/refresh", h.refreshShortcuts)
	r.Get("/api/shortcuts/stats", h.getStats)
	r.Get("/api/shortcuts/{id}", h.getShortcut)
	r.Get("/api/groups/{name}", h.getGroup)

	// Widget sessions
	r.Get("/api/widget/sessions", h.listSessions)
	r.Post("/api/widget/sessions", h.createSession)
	r.Delete("/api/widget/sessions/{id}", h.killSession)
	r.Get("/api/widget/sessions/{id}/ws", h.handleWS)

	// Static sub-FS: strip the "static/" prefix present in the embed.FS. A
	// test FS rooted at the assets themselves is used as is.
	staticSub, err := fs.Sub(staticFS, "static")
	if err != nil {
		staticSub = staticFS
	} else if _, statErr := fs.Stat(staticSub, "index.html"); statErr != nil {
		staticSub = staticFS
	}

	// http.FileServer redirects paths ending in "index.html" to "./", so the
	// page is read from the FS directly.
	r.Get("/", serveFile(staticSub, "index.html"))

	fileServer := http.FileServer(http.FS(staticSub))
	r.Get("/css/*", fileServer.ServeHTTP)
	r.Get("/js/*", fileServer.ServeHTTP)

	return r
}

// serveFile returns a handler that reads a single file from fsys and sends it.
func serveFile(fsys fs.FS, name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(content)
	}
}

// accessLog logs one line per request through logger.
func accessLog(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Info("http request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
					zap.String("request_id", middleware.GetReqID(r.Context())))
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

func newRefreshLimiter(perMinute float64, burst int) *rate.Limiter {
	if perMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perMinute/60), burst)
}

type handler struct {
	data     *shortcut.Manager
	sessions *session.Manager
	logger   *zap.Logger
	refresh  *rate.Limiter
}
