package shortcut

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// envelope is the wrapped response form {"success": true, "data": [...]}.
type envelope struct {
	Success bool              `json:"success"`
	Data    []json.RawMessage `json:"data"`
}

// decodeRecords accepts either the wrapped form or a bare JSON array and
// returns the raw records.
func decodeRecords(body []byte) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrFormat)
	}

	switch trimmed[0] {
	case '[':
		var records []json.RawMessage
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFormat, err)
		}
		return records, nil
	case '{':
		var raw map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFormat, err)
		}
		var env envelope
		if err := json.Unmarshal(trimmed, &env); err != nil || !env.Success || !isArray(raw["data"]) {
			return nil, fmt.Errorf("%w: expected an array or an object with success and data", ErrFormat)
		}
		return env.Data, nil
	default:
		if !json.Valid(trimmed) {
			return nil, fmt.Errorf("%w: body is not JSON", ErrFormat)
		}
		return nil, fmt.Errorf("%w: expected an object or an array", ErrFormat)
	}
}

func isArray(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '['
}

// cleanRecords keeps records whose id, name, prompt and group are strings,
// trims them, and defaults a missing or non-numeric order to 0. The result
// is stably sorted by order.
func cleanRecords(records []json.RawMessage) []Shortcut {
	out := make([]Shortcut, 0, len(records))
	for _, rec := range records {
		s, ok := cleanRecord(rec)
		if ok {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Order < out[j].Order
	})
	return out
}

func cleanRecord(rec json.RawMessage) (Shortcut, bool) {
	// Fields stay raw so an unrelated or out-of-range value cannot sink the
	// whole record.
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(rec, &fields); err != nil || fields == nil {
		return Shortcut{}, false
	}

	var s Shortcut
	for key, dst := range map[string]*string{
		"id":     &s.ID,
		"name":   &s.Name,
		"prompt": &s.Prompt,
		"group":  &s.Group,
	} {
		v, ok := stringField(fields[key])
		if !ok {
			return Shortcut{}, false
		}
		*dst = strings.TrimSpace(v)
	}
	if raw, ok := fields["order"]; ok {
		var order float64
		if err := json.Unmarshal(raw, &order); err == nil {
			s.Order = order
		}
	}
	return s, true
}

// stringField decodes raw only if it is a JSON string. null is rejected.
func stringField(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '"' {
		return "", false
	}
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", false
	}
	return v, true
}

// groupShortcuts buckets shortcuts by group, keeping their order. The
// QuickReplyGroup comes first and the rest follow in collation order for tag.
func groupShortcuts(shortcuts []Shortcut, tag language.Tag) []Group {
	index := make(map[string]int)
	var groups []Group
	for _, s := range shortcuts {
		i, ok := index[s.Group]
		if !ok {
			i = len(groups)
			index[s.Group] = i
			groups = append(groups, Group{Name: s.Group})
		}
		groups[i].Shortcuts = append(groups[i].Shortcuts, s)
	}

	var quick *Group
	others := make([]Group, 0, len(groups))
	for i := range groups {
		if groups[i].Name == QuickReplyGroup {
			quick = &groups[i]
			continue
		}
		others = append(others, groups[i])
	}

	cl := collate.New(tag)
	sort.SliceStable(others, func(i, j int) bool {
		return cl.CompareString(others[i].Name, others[j].Name) < 0
	})

	if quick == nil {
		return others
	}
	return append([]Group{*quick}, others...)
}
