package shortcut

import (
	"errors"
	"fmt"
	"time"
)

// QuickReplyGroup is always ordered ahead of every other group.
const QuickReplyGroup = "quick-reply"

// Shortcut is a single reusable prompt snippet.
type Shortcut struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Prompt string  `json:"prompt"`
	Group  string  `json:"group"`
	Order  float64 `json:"order"`
}

// Group is a named, ordered set of shortcuts derived from a load.
type Group struct {
	Name      string     `json:"name"`
	Shortcuts []Shortcut `json:"shortcuts"`
}

// Result is what a load produces.
type Result struct {
	Shortcuts []Shortcut `json:"shortcuts"`
	Groups    []Group    `json:"groups"`
	FromCache bool       `json:"fromCache"`
}

// LoadState is a snapshot of the manager's loading flags.
type LoadState struct {
	IsLoading    bool       `json:"isLoading"`
	LastError    string     `json:"lastError,omitempty"`
	LastLoadTime *time.Time `json:"lastLoadTime,omitempty"`
	HasData      bool       `json:"hasData"`
}

// Snapshot is passed to data-change handlers.
type Snapshot struct {
	Shortcuts []Shortcut `json:"shortcuts"`
	Groups    []Group    `json:"groups"`
	IsLoading bool       `json:"isLoading"`
	LastError string     `json:"lastError,omitempty"`
}

// GroupStat is the shortcut count of one group.
type GroupStat struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Statistics aggregates the currently loaded data.
type Statistics struct {
	TotalShortcuts int         `json:"totalShortcuts"`
	TotalGroups    int         `json:"totalGroups"`
	Groups         []GroupStat `json:"groupStats"`
	LastLoadTime   *time.Time  `json:"lastLoadTime,omitempty"`
	CacheValid     bool        `json:"cacheValid"`
}

var (
	// ErrBusy is returned when a load is already in flight.
	ErrBusy = errors.New("shortcuts are already loading")
	// ErrTimeout is returned when the upstream request exceeds its timeout.
	ErrTimeout = errors.New("shortcut request timed out")
	// ErrFormat is returned when the response body has an unexpected shape.
	ErrFormat = errors.New("unexpected shortcut response format")
	// ErrDestroyed is returned by a manager after Destroy.
	ErrDestroyed = errors.New("shortcut manager destroyed")
)

// HTTPError is returned for non-2xx upstream responses.
type HTTPError struct {
	StatusCode int
	Status     string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Status)
}

func copyShortcuts(in []Shortcut) []Shortcut {
	out := make([]Shortcut, len(in))
	copy(out, in)
	return out
}

func copyGroups(in []Group) []Group {
	out := make([]Group, len(in))
	for i, g := range in {
		out[i] = Group{Name: g.Name, Shortcuts: copyShortcuts(g.Shortcuts)}
	}
	return out
}
