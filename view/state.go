package view

import (
	"encoding/json"
	"errors"
	"fmt"
)

// TabStateKey is the storage key of the persisted TabState.
const TabStateKey = "shortcutTabState"

// TabState is the persisted tab selection and last inserted prompt.
type TabState struct {
	SelectedIndex  int     `json:"selectedIndex"`
	LastUsedPrompt *string `json:"lastUsedPrompt"`
	Timestamp      int64   `json:"timestamp"`
}

// SettingsStore is a structured settings backend, e.g. storage.Settings.
type SettingsStore interface {
	Get(key string, v any) (bool, error)
	Set(key string, v any) error
}

// KeyValueStore is a string key/value backend, e.g. storage.Local.
type KeyValueStore interface {
	GetItem(key string) (string, bool)
	SetItem(key, value string) error
}

var errNoStore = errors.New("no state store configured")

func (c *Controller) loadTabState() (*TabState, error) {
	var st TabState
	switch {
	case c.settings != nil:
		ok, err := c.settings.Get(TabStateKey, &st)
		if err != nil || !ok {
			return nil, err
		}
	case c.local != nil:
		raw, ok := c.local.GetItem(TabStateKey)
		if !ok || raw == "" || raw == "null" {
			return nil, nil
		}
		if err := json.Unmarshal([]byte(raw), &st); err != nil {
			return nil, fmt.Errorf("decode %s: %w", TabStateKey, err)
		}
	default:
		return nil, errNoStore
	}
	return &st, nil
}

func (c *Controller) storeTabState(st TabState) error {
	switch {
	case c.settings != nil:
		return c.settings.Set(TabStateKey, st)
	case c.local != nil:
		data, err := json.Marshal(st)
		if err != nil {
			return err
		}
		return c.local.SetItem(TabStateKey, string(data))
	default:
		return errNoStore
	}
}
