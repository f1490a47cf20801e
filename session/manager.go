// Package session hosts one shortcuts widget per browser page. Each session
// owns a server-side document and view controller that follow the shared
// shortcut manager's load callbacks.
package session

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"shortcut-panel/shortcut"
	"shortcut-panel/view"
)

var ErrNotFound = errors.New("session not found")

// ErrUnavailable means the page lacks the widget containers, so the
// shortcuts feature is disabled for it.
var ErrUnavailable = errors.New("shortcut widget unavailable")

// Options configures a Manager.
type Options struct {
	// Page is the HTML every session's document is parsed from.
	Page []byte
	// ContainerSelector defaults to view.DefaultContainerSelector.
	ContainerSelector string
	// View is passed to every session's controller.
	View   view.Options
	Logger *zap.Logger
}

type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	data   *shortcut.Manager
	opts   Options
	logger *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	loads  sync.WaitGroup
}

func NewManager(data *shortcut.Manager, opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.View.Logger == nil {
		opts.View.Logger = logger.Named("view")
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		sessions: make(map[string]*Session),
		data:     data,
		opts:     opts,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Create parses a fresh page, binds a controller to it and subscribes it to
// load callbacks. Cached data is rendered at once, otherwise a load starts
// in the background.
func (m *Manager) Create() (*Session, error) {
	doc, err := view.Parse(bytes.NewReader(m.opts.Page))
	if err != nil {
		return nil, err
	}
	ctrl := view.NewController(doc, m.opts.View)
	if !ctrl.Init(m.opts.ContainerSelector) {
		return nil, ErrUnavailable
	}

	inputSelector := m.opts.View.InputSelector
	if inputSelector == "" {
		inputSelector = view.DefaultInputSelector
	}
	now := time.Now()
	s := &Session{
		ID:            uuid.New().String(),
		CreatedAt:     now,
		LastActive:    now,
		doc:           doc,
		ctrl:          ctrl,
		inputSelector: inputSelector,
		done:          make(chan struct{}),
	}

	s.unsub = []func(){
		m.data.OnLoadStart(func() {
			s.apply(ctrl.ShowLoading)
		}),
		m.data.OnLoadSuccess(func(res shortcut.Result) {
			s.apply(func() {
				// A cache hit requested by another page must not reset
				// this one.
				if res.FromCache && ctrl.State().IsRendered {
					return
				}
				ctrl.Render(res.Groups)
			})
		}),
		m.data.OnLoadError(func(err error) {
			s.apply(func() { ctrl.ShowError(err) })
		}),
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	if res, ok := m.data.Cached(); ok {
		s.apply(func() { ctrl.Render(res.Groups) })
	} else {
		s.apply(ctrl.ShowLoading)
		m.loadAsync(false)
	}

	m.logger.Debug("widget session created", zap.String("session", s.ID))
	return s, nil
}

// Refresh forces a background reload. Sessions follow through callbacks.
func (m *Manager) Refresh() {
	m.loadAsync(true)
}

func (m *Manager) loadAsync(force bool) {
	if m.ctx.Err() != nil {
		return
	}
	m.loads.Add(1)
	go func() {
		defer m.loads.Done()
		var err error
		if force {
			_, err = m.data.Refresh(m.ctx)
		} else {
			_, err = m.data.Load(m.ctx, false)
		}
		switch {
		case err == nil, errors.Is(err, shortcut.ErrBusy):
		case errors.Is(err, shortcut.ErrDestroyed), errors.Is(err, context.Canceled):
			m.logger.Debug("background shortcut load stopped", zap.Error(err))
		default:
			m.logger.Warn("background shortcut load failed", zap.Error(err))
		}
	}()
}

// List returns the sessions, oldest first.
func (m *Manager) List() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	list := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		list = append(list, s)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.Before(list[j].CreatedAt) })
	return list
}

func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

func (m *Manager) Kill(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	delete(m.sessions, id)
	m.mu.Unlock()

	s.close()
	m.logger.Debug("widget session killed", zap.String("session", id))
	return nil
}

// Prune kills disconnected sessions idle for longer than maxIdle and
// returns how many were removed.
func (m *Manager) Prune(maxIdle time.Duration) int {
	var stale []string
	for _, s := range m.List() {
		if idle, connected := s.idle(); !connected && idle > maxIdle {
			stale = append(stale, s.ID)
		}
	}
	n := 0
	for _, id := range stale {
		if m.Kill(id) == nil {
			n++
		}
	}
	if n > 0 {
		m.logger.Info("pruned idle widget sessions", zap.Int("count", n))
	}
	return n
}

// Close kills every session and waits for background loads to return.
func (m *Manager) Close() {
	m.cancel()
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.close()
	}
	m.loads.Wait()
}
