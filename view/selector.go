package view

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// selector is a chain of compound selectors joined by the descendant
// combinator, e.g. `#root .tab[data-group-index="1"]`.
type selector []compound

type compound struct {
	any     bool
	tag     string
	id      string
	classes []string
	attrs   []attrMatch
}

type attrMatch struct {
	key    string
	val    string
	hasVal bool
}

func (c compound) empty() bool {
	return !c.any && c.tag == "" && c.id == "" && len(c.classes) == 0 && len(c.attrs) == 0
}

func parseSelector(s string) (selector, error) {
	var (
		sel selector
		cur compound
	)
	flush := func() {
		if !cur.empty() {
			sel = append(sel, cur)
			cur = compound{}
		}
	}

	for i := 0; i < len(s); {
		ch := s[i]
		switch {
		case ch == ' ' || ch == '\t' || ch == '\n':
			flush()
			i++
		case ch == '#':
			name, n := readIdent(s[i+1:])
			if name == "" {
				return nil, fmt.Errorf("selector %q: empty id at %d", s, i)
			}
			cur.id = name
			i += 1 + n
		case ch == '.':
			name, n := readIdent(s[i+1:])
			if name == "" {
				return nil, fmt.Errorf("selector %q: empty class at %d", s, i)
			}
			cur.classes = append(cur.classes, name)
			i += 1 + n
		case ch == '[':
			m, n, err := readAttr(s[i:])
			if err != nil {
				return nil, fmt.Errorf("selector %q: %w", s, err)
			}
			cur.attrs = append(cur.attrs, m)
			i += n
		case ch == '*':
			cur.any = true
			i++
		case isIdentChar(ch):
			name, n := readIdent(s[i:])
			cur.tag = strings.ToLower(name)
			i += n
		default:
			return nil, fmt.Errorf("selector %q: unsupported character %q", s, ch)
		}
	}
	flush()
	if len(sel) == 0 {
		return nil, fmt.Errorf("empty selector")
	}
	return sel, nil
}

func isIdentChar(ch byte) bool {
	return ch == '-' || ch == '_' ||
		(ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9') ||
		ch >= 0x80
}

func readIdent(s string) (string, int) {
	n := 0
	for n < len(s) && isIdentChar(s[n]) {
		n++
	}
	return s[:n], n
}

// readAttr parses `[key]`, `[key=value]` or `[key="value"]` at the start of s.
func readAttr(s string) (attrMatch, int, error) {
	i := 1
	key, n := readIdent(s[i:])
	if key == "" {
		return attrMatch{}, 0, fmt.Errorf("empty attribute name")
	}
	i += n
	if i < len(s) && s[i] == ']' {
		return attrMatch{key: strings.ToLower(key)}, i + 1, nil
	}
	if i >= len(s) || s[i] != '=' {
		return attrMatch{}, 0, fmt.Errorf("expected = or ] after attribute %q", key)
	}
	i++

	var val strings.Builder
	if i < len(s) && (s[i] == '"' || s[i] == '\'') {
		quote := s[i]
		i++
		for {
			if i >= len(s) {
				return attrMatch{}, 0, fmt.Errorf("unterminated attribute value")
			}
			c := s[i]
			if c == '\\' && i+1 < len(s) {
				val.WriteByte(s[i+1])
				i += 2
				continue
			}
			i++
			if c == quote {
				break
			}
			val.WriteByte(c)
		}
	} else {
		v, n := readIdent(s[i:])
		val.WriteString(v)
		i += n
	}
	if i >= len(s) || s[i] != ']' {
		return attrMatch{}, 0, fmt.Errorf("expected ] after attribute value")
	}
	return attrMatch{key: strings.ToLower(key), val: val.String(), hasVal: true}, i + 1, nil
}

func (c compound) matches(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if c.tag != "" && n.Data != c.tag {
		return false
	}
	if c.id != "" && attr(n, "id") != c.id {
		return false
	}
	for _, cls := range c.classes {
		if !hasClass(n, cls) {
			return false
		}
	}
	for _, a := range c.attrs {
		v, ok := lookupAttr(n, a.key)
		if !ok || (a.hasVal && v != a.val) {
			return false
		}
	}
	return true
}

// matches reports whether n matches the full chain, with the leading
// compounds matched against n's ancestors.
func (sel selector) matches(n *html.Node) bool {
	last := len(sel) - 1
	if !sel[last].matches(n) {
		return false
	}
	i := last - 1
	for p := n.Parent; p != nil && i >= 0; p = p.Parent {
		if sel[i].matches(p) {
			i--
		}
	}
	return i < 0
}
