// Package shortcut fetches prompt shortcuts from a remote API, caches them,
// and groups them for display.
package shortcut

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/language"
)

// DefaultTimeout bounds a single upstream request.
const DefaultTimeout = 10 * time.Second

// maxBodySize caps how much of an upstream response is read.
const maxBodySize = 4 << 20

// Options configures a Manager.
type Options struct {
	URL     string
	APIKey  string
	Timeout time.Duration
	// Cache defaults to DefaultCachePolicy when nil.
	Cache *CachePolicy
	// Locale orders group names. Defaults to language.English.
	Locale     language.Tag
	HTTPClient *http.Client
	Logger     *zap.Logger
	// ConfigErr, when set, is returned by every load. It lets a manager
	// built from incomplete configuration report why it cannot load.
	ConfigErr error
}

// Manager owns the shortcut data and its load lifecycle.
type Manager struct {
	url       string
	apiKey    string
	timeout   time.Duration
	cache     CachePolicy
	locale    language.Tag
	client    *http.Client
	logger    *zap.Logger
	configErr error

	onStart   *Emitter[struct{}]
	onSuccess *Emitter[Result]
	onError   *Emitter[error]
	onChange  *Emitter[Snapshot]

	mu        sync.RWMutex
	shortcuts []Shortcut
	groups    []Group
	loading   bool
	lastError string
	lastLoad  time.Time
	destroyed bool
}

// New returns a Manager.
func New(opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	cache := DefaultCachePolicy()
	if opts.Cache != nil {
		cache = *opts.Cache
	}
	locale := opts.Locale
	if locale == language.Und {
		locale = language.English
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	return &Manager{
		url:       opts.URL,
		apiKey:    opts.APIKey,
		timeout:   timeout,
		cache:     cache,
		locale:    locale,
		client:    client,
		logger:    logger,
		configErr: opts.ConfigErr,
		onStart:   NewEmitter[struct{}]("load-start", logger),
		onSuccess: NewEmitter[Result]("load-success", logger),
		onError:   NewEmitter[error]("load-error", logger),
		onChange:  NewEmitter[Snapshot]("data-change", logger),
	}
}

// OnLoadStart registers fn to run when a network load begins.
func (m *Manager) OnLoadStart(fn func()) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}
	return m.onStart.Subscribe(func(struct{}) { fn() })
}

// OnLoadSuccess registers fn to run after every successful load, including
// loads answered from cache.
func (m *Manager) OnLoadSuccess(fn func(Result)) (unsubscribe func()) {
	return m.onSuccess.Subscribe(fn)
}

// OnLoadError registers fn to run when a load fails.
func (m *Manager) OnLoadError(fn func(error)) (unsubscribe func()) {
	return m.onError.Subscribe(fn)
}

// OnDataChange registers fn to run whenever data or loading flags change.
func (m *Manager) OnDataChange(fn func(Snapshot)) (unsubscribe func()) {
	return m.onChange.Subscribe(fn)
}

// Load returns the shortcuts, fetching them unless the cache can answer.
// It returns ErrBusy immediately if another load is in flight.
func (m *Manager) Load(ctx context.Context, force bool) (Result, error) {
	m.mu.Lock()
	if m.destroyed {
		m.mu.Unlock()
		return Result{}, ErrDestroyed
	}
	if m.cache.Use(m.lastLoad, force) && len(m.shortcuts) > 0 {
		res := m.resultLocked(true)
		m.mu.Unlock()
		m.logger.Debug("serving shortcuts from cache", zap.Int("shortcuts", len(res.Shortcuts)))
		m.onSuccess.Emit(res)
		return res, nil
	}
	if m.loading {
		m.mu.Unlock()
		m.logger.Debug("shortcut load already in flight")
		return Result{}, ErrBusy
	}
	m.loading = true
	m.lastError = ""
	m.mu.Unlock()

	m.onStart.Emit(struct{}{})
	m.onChange.Emit(m.snapshot())

	m.logger.Info("loading shortcuts", zap.String("url", m.url), zap.Duration("timeout", m.timeout))
	shortcuts, err := m.fetch(ctx)

	m.mu.Lock()
	if m.destroyed {
		m.mu.Unlock()
		return Result{}, ErrDestroyed
	}
	m.loading = false
	if err != nil {
		m.lastError = err.Error()
		m.mu.Unlock()

		m.logger.Error("shortcut load failed", zap.Error(err))
		m.onError.Emit(err)
		m.onChange.Emit(m.snapshot())
		return Result{}, err
	}

	m.shortcuts = shortcuts
	m.groups = groupShortcuts(shortcuts, m.locale)
	m.lastLoad = m.cache.now()
	m.lastError = ""
	res := m.resultLocked(false)
	m.mu.Unlock()

	m.logger.Info("shortcuts loaded",
		zap.Int("shortcuts", len(res.Shortcuts)),
		zap.Int("groups", len(res.Groups)))
	m.onSuccess.Emit(res)
	m.onChange.Emit(m.snapshot())
	return res, nil
}

// Refresh discards the cache stamp and forces a reload.
func (m *Manager) Refresh(ctx context.Context) (Result, error) {
	m.mu.Lock()
	m.lastLoad = time.Time{}
	m.mu.Unlock()
	return m.Load(ctx, true)
}

func (m *Manager) fetch(ctx context.Context) ([]Shortcut, error) {
	if m.configErr != nil {
		return nil, m.configErr
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	if m.apiKey != "" {
		req.Header.Set("X-API-Key", m.apiKey)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, m.requestError(ctx, err)
	}
	defer resp.Body.Close()

	m.logger.Debug("shortcut response", zap.Int("status", resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Status: http.StatusText(resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, m.requestError(ctx, err)
	}

	records, err := decodeRecords(body)
	if err != nil {
		return nil, err
	}
	shortcuts := cleanRecords(records)
	if dropped := len(records) - len(shortcuts); dropped > 0 {
		m.logger.Warn("dropped invalid shortcut records", zap.Int("dropped", dropped))
	}
	return shortcuts, nil
}

func (m *Manager) requestError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s", ErrTimeout, m.timeout)
	}
	return fmt.Errorf("fetch shortcuts: %w", err)
}

// resultLocked copies the current data. Caller must hold m.mu.
func (m *Manager) resultLocked(fromCache bool) Result {
	return Result{
		Shortcuts: copyShortcuts(m.shortcuts),
		Groups:    copyGroups(m.groups),
		FromCache: fromCache,
	}
}

func (m *Manager) snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Snapshot{
		Shortcuts: copyShortcuts(m.shortcuts),
		Groups:    copyGroups(m.groups),
		IsLoading: m.loading,
		LastError: m.lastError,
	}
}

// Cached returns the loaded data without firing callbacks, if the cache
// policy still considers it fresh.
func (m *Manager) Cached() (Result, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.destroyed || len(m.shortcuts) == 0 || !m.cache.Valid(m.lastLoad) {
		return Result{}, false
	}
	return m.resultLocked(true), true
}

// Shortcuts returns a copy of all loaded shortcuts, sorted by order.
func (m *Manager) Shortcuts() []Shortcut {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return copyShortcuts(m.shortcuts)
}

// Groups returns a copy of the derived groups.
func (m *Manager) Groups() []Group {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return copyGroups(m.groups)
}

// ShortcutByID looks up a shortcut by id.
func (m *Manager) ShortcutByID(id string) (Shortcut, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.shortcuts {
		if s.ID == id {
			return s, true
		}
	}
	return Shortcut{}, false
}

// ShortcutsByGroup returns the shortcuts of the named group, or an empty
// slice if there is no such group.
func (m *Manager) ShortcutsByGroup(name string) []Shortcut {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, g := range m.groups {
		if g.Name == name {
			return copyShortcuts(g.Shortcuts)
		}
	}
	return []Shortcut{}
}

// LoadState returns the current loading flags.
func (m *Manager) LoadState() LoadState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return LoadState{
		IsLoading:    m.loading,
		LastError:    m.lastError,
		LastLoadTime: timePtr(m.lastLoad),
		HasData:      len(m.shortcuts) > 0,
	}
}

// Statistics summarizes the loaded data.
func (m *Manager) Statistics() Statistics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stats := Statistics{
		TotalShortcuts: len(m.shortcuts),
		TotalGroups:    len(m.groups),
		Groups:         make([]GroupStat, 0, len(m.groups)),
		LastLoadTime:   timePtr(m.lastLoad),
		CacheValid:     m.cache.Valid(m.lastLoad),
	}
	for _, g := range m.groups {
		stats.Groups = append(stats.Groups, GroupStat{Name: g.Name, Count: len(g.Shortcuts)})
	}
	return stats
}

// Destroy clears all data and handlers. The manager is inert afterwards.
func (m *Manager) Destroy() {
	m.mu.Lock()
	m.shortcuts = nil
	m.groups = nil
	m.loading = false
	m.lastError = ""
	m.lastLoad = time.Time{}
	m.destroyed = true
	m.mu.Unlock()

	m.onStart.Clear()
	m.onSuccess.Clear()
	m.onError.Clear()
	m.onChange.Clear()
	m.logger.Debug("shortcut manager destroyed")
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
