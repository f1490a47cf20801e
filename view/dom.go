package view

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// Patch describes one DOM change for a remote client to replay. Ops:
// "html" replaces the inner HTML of ID, "attrs" sets the attributes of ID,
// "field" sets the value, selection and focus of the form field ID.
type Patch struct {
	Op             string            `json:"op"`
	ID             string            `json:"id"`
	HTML           string            `json:"html,omitempty"`
	Attrs          map[string]string `json:"attrs,omitempty"`
	Value          *string           `json:"value,omitempty"`
	SelectionStart int               `json:"selectionStart,omitempty"`
	SelectionEnd   int               `json:"selectionEnd,omitempty"`
	Focus          bool              `json:"focus,omitempty"`
}

// Event is a DOM event travelling from Target up through its ancestors.
type Event struct {
	Type          string
	Target        *Element
	CurrentTarget *Element

	stopped bool
}

// StopPropagation keeps the event from reaching further ancestors.
func (e *Event) StopPropagation() { e.stopped = true }

type listener struct {
	id  uint64
	typ string
	fn  func(*Event)
}

// Document is a mutable HTML tree with just enough DOM behavior for the
// shortcuts widget: selectors, inner HTML, classes, form fields, focus and
// bubbling events. Every mutation is recorded as a Patch.
//
// A Document is not safe for concurrent use.
type Document struct {
	root      *html.Node
	listeners map[*html.Node][]listener
	selection map[*html.Node][2]int
	active    *html.Node
	nextID    uint64
	patches   []Patch
}

// Element wraps a node of a Document.
type Element struct {
	doc  *Document
	node *html.Node
}

// Parse reads a full HTML document.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return newDocument(root), nil
}

// ParseString is Parse for an in-memory page.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

func newDocument(root *html.Node) *Document {
	return &Document{
		root:      root,
		listeners: make(map[*html.Node][]listener),
		selection: make(map[*html.Node][2]int),
	}
}

func (d *Document) wrap(n *html.Node) *Element {
	if n == nil {
		return nil
	}
	return &Element{doc: d, node: n}
}

// Query returns the first element matching sel, or nil.
func (d *Document) Query(sel string) *Element {
	return d.wrap(queryFirst(d.root, sel))
}

// QueryAll returns every element matching sel in document order.
func (d *Document) QueryAll(sel string) []*Element {
	return d.wrapAll(queryAll(d.root, sel))
}

// ActiveElement returns the focused element, or nil.
func (d *Document) ActiveElement() *Element {
	return d.wrap(d.active)
}

// Dispatch fires an event of type typ at target and bubbles it to the root.
func (d *Document) Dispatch(target *Element, typ string) {
	if target == nil || target.doc != d {
		return
	}
	ev := &Event{Type: typ, Target: target}
	for n := target.node; n != nil && !ev.stopped; n = n.Parent {
		ls := d.listeners[n]
		if len(ls) == 0 {
			continue
		}
		ev.CurrentTarget = d.wrap(n)
		for _, l := range append([]listener(nil), ls...) {
			if l.typ == typ {
				l.fn(ev)
			}
		}
	}
}

// Click dispatches a click event at target.
func (d *Document) Click(target *Element) {
	d.Dispatch(target, "click")
}

// TakePatches returns the patches recorded since the last call.
func (d *Document) TakePatches() []Patch {
	p := d.patches
	d.patches = nil
	return p
}

func (d *Document) wrapAll(nodes []*html.Node) []*Element {
	out := make([]*Element, len(nodes))
	for i, n := range nodes {
		out[i] = d.wrap(n)
	}
	return out
}

// record adds a patch for a change to n. Elements without an id are
// reported through their closest ancestor that has one.
func (d *Document) record(n *html.Node, op string) {
	target := n
	for target != nil && target.Type == html.ElementNode && attr(target, "id") == "" {
		target = target.Parent
		op = "html"
	}
	if target == nil || target.Type != html.ElementNode {
		return
	}
	id := attr(target, "id")

	switch op {
	case "html":
		d.patches = append(d.patches, Patch{Op: "html", ID: id, HTML: innerHTML(target)})
	case "attrs":
		attrs := make(map[string]string, len(target.Attr))
		for _, a := range target.Attr {
			attrs[a.Key] = a.Val
		}
		d.patches = append(d.patches, Patch{Op: "attrs", ID: id, Attrs: attrs})
	case "field":
		p := d.fieldPatch(target)
		if last := len(d.patches) - 1; last >= 0 && d.patches[last].Op == "field" && d.patches[last].ID == id {
			d.patches[last] = p
			return
		}
		d.patches = append(d.patches, p)
	}
}

func (d *Document) fieldPatch(n *html.Node) Patch {
	value := fieldValue(n)
	sel := d.selection[n]
	return Patch{
		Op:             "field",
		ID:             attr(n, "id"),
		Value:          &value,
		SelectionStart: sel[0],
		SelectionEnd:   sel[1],
		Focus:          d.active == n,
	}
}

// forget drops listeners and field state for a detached subtree.
func (d *Document) forget(n *html.Node) {
	walk(n, func(c *html.Node) bool {
		delete(d.listeners, c)
		delete(d.selection, c)
		if d.active == c {
			d.active = nil
		}
		return true
	})
}

// Is reports whether e and other wrap the same node.
func (e *Element) Is(other *Element) bool {
	return e != nil && other != nil && e.node == other.node
}

// ID returns the id attribute.
func (e *Element) ID() string { return attr(e.node, "id") }

// TagName returns the lower-case tag name.
func (e *Element) TagName() string { return e.node.Data }

// Attr returns the named attribute.
func (e *Element) Attr(key string) (string, bool) { return lookupAttr(e.node, key) }

// Data returns the data-* attribute for key, e.g. Data("group-index").
func (e *Element) Data(key string) (string, bool) { return lookupAttr(e.node, "data-"+key) }

// SetAttr sets an attribute value.
func (e *Element) SetAttr(key, val string) {
	if old, ok := lookupAttr(e.node, key); ok && old == val {
		return
	}
	setAttr(e.node, key, val)
	e.doc.record(e.node, "attrs")
}

// HasClass reports whether cls is in the class list.
func (e *Element) HasClass(cls string) bool { return hasClass(e.node, cls) }

// ToggleClass adds cls when on is true and removes it otherwise.
func (e *Element) ToggleClass(cls string, on bool) {
	if hasClass(e.node, cls) == on {
		return
	}
	classes := strings.Fields(attr(e.node, "class"))
	if on {
		classes = append(classes, cls)
	} else {
		kept := classes[:0]
		for _, c := range classes {
			if c != cls {
				kept = append(kept, c)
			}
		}
		classes = kept
	}
	setAttr(e.node, "class", strings.Join(classes, " "))
	e.doc.record(e.node, "attrs")
}

// Query returns the first descendant matching sel, or nil.
func (e *Element) Query(sel string) *Element {
	return e.doc.wrap(queryFirst(e.node, sel))
}

// QueryAll returns every descendant matching sel.
func (e *Element) QueryAll(sel string) []*Element {
	return e.doc.wrapAll(queryAll(e.node, sel))
}

// Closest returns e or its nearest ancestor matching sel, or nil.
func (e *Element) Closest(sel string) *Element {
	s, err := parseSelector(sel)
	if err != nil {
		return nil
	}
	for n := e.node; n != nil; n = n.Parent {
		if s.matches(n) {
			return e.doc.wrap(n)
		}
	}
	return nil
}

// Contains reports whether other is e or one of its descendants.
func (e *Element) Contains(other *Element) bool {
	if other == nil {
		return false
	}
	for n := other.node; n != nil; n = n.Parent {
		if n == e.node {
			return true
		}
	}
	return false
}

// Children returns the child elements.
func (e *Element) Children() []*Element {
	var out []*Element
	for c := e.node.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			out = append(out, e.doc.wrap(c))
		}
	}
	return out
}

// Text returns the concatenated text content.
func (e *Element) Text() string {
	var b strings.Builder
	walk(e.node, func(n *html.Node) bool {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		return true
	})
	return b.String()
}

// InnerHTML renders the children of e.
func (e *Element) InnerHTML() string { return innerHTML(e.node) }

// SetInnerHTML replaces the children of e with the parsed fragment.
func (e *Element) SetInnerHTML(s string) error {
	nodes, err := html.ParseFragment(strings.NewReader(s), e.node)
	if err != nil {
		return fmt.Errorf("parse fragment: %w", err)
	}
	e.removeChildren()
	for _, n := range nodes {
		e.node.AppendChild(n)
	}
	e.doc.record(e.node, "html")
	return nil
}

// Clear removes all children.
func (e *Element) Clear() {
	if e.node.FirstChild == nil {
		return
	}
	e.removeChildren()
	e.doc.record(e.node, "html")
}

func (e *Element) removeChildren() {
	for c := e.node.FirstChild; c != nil; {
		next := c.NextSibling
		e.node.RemoveChild(c)
		e.doc.forget(c)
		c = next
	}
}

// Value returns a form field's value: the text of a textarea or the value
// attribute of anything else.
func (e *Element) Value() string { return fieldValue(e.node) }

// SetValue replaces the field value and collapses the selection to its end,
// as browsers do.
func (e *Element) SetValue(v string) {
	if e.node.Data == "textarea" {
		for c := e.node.FirstChild; c != nil; {
			next := c.NextSibling
			e.node.RemoveChild(c)
			c = next
		}
		if v != "" {
			e.node.AppendChild(&html.Node{Type: html.TextNode, Data: v})
		}
	} else {
		setAttr(e.node, "value", v)
	}
	end := utf8.RuneCountInString(v)
	e.doc.selection[e.node] = [2]int{end, end}
	e.doc.record(e.node, "field")
}

// SetSelectionRange sets the selection in characters, clamped to the value.
func (e *Element) SetSelectionRange(start, end int) {
	n := utf8.RuneCountInString(e.Value())
	start = clamp(start, 0, n)
	end = clamp(end, start, n)
	e.doc.selection[e.node] = [2]int{start, end}
	e.doc.record(e.node, "field")
}

// Selection returns the selection start and end.
func (e *Element) Selection() (start, end int) {
	sel := e.doc.selection[e.node]
	return sel[0], sel[1]
}

// Focus makes e the document's active element.
func (e *Element) Focus() {
	e.doc.active = e.node
	e.doc.record(e.node, "field")
}

// Focused reports whether e is the active element.
func (e *Element) Focused() bool { return e.doc.active == e.node }

// AddEventListener registers fn for events of type typ reaching e. It
// returns a func that removes the listener.
func (e *Element) AddEventListener(typ string, fn func(*Event)) (remove func()) {
	d := e.doc
	d.nextID++
	id := d.nextID
	d.listeners[e.node] = append(d.listeners[e.node], listener{id: id, typ: typ, fn: fn})

	node := e.node
	return func() {
		ls := d.listeners[node]
		for i, l := range ls {
			if l.id == id {
				d.listeners[node] = append(ls[:i:i], ls[i+1:]...)
				break
			}
		}
		if len(d.listeners[node]) == 0 {
			delete(d.listeners, node)
		}
	}
}

func queryFirst(root *html.Node, sel string) *html.Node {
	s, err := parseSelector(sel)
	if err != nil {
		return nil
	}
	var found *html.Node
	walkDescendants(root, func(n *html.Node) bool {
		if s.matches(n) {
			found = n
			return false
		}
		return true
	})
	return found
}

func queryAll(root *html.Node, sel string) []*html.Node {
	s, err := parseSelector(sel)
	if err != nil {
		return nil
	}
	var out []*html.Node
	walkDescendants(root, func(n *html.Node) bool {
		if s.matches(n) {
			out = append(out, n)
		}
		return true
	})
	return out
}

// walk visits n and its descendants in document order until fn returns false.
func walk(n *html.Node, fn func(*html.Node) bool) bool {
	if !fn(n) {
		return false
	}
	return walkDescendants(n, fn)
}

func walkDescendants(n *html.Node, fn func(*html.Node) bool) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if !walk(c, fn) {
			return false
		}
	}
	return true
}

func innerHTML(n *html.Node) string {
	var buf bytes.Buffer
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		html.Render(&buf, c)
	}
	return buf.String()
}

func fieldValue(n *html.Node) string {
	if n.Data == "textarea" {
		var b strings.Builder
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				b.WriteString(c.Data)
			}
		}
		return b.String()
	}
	return attr(n, "value")
}

func lookupAttr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func attr(n *html.Node, key string) string {
	v, _ := lookupAttr(n, key)
	return v
}

func setAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Namespace == "" && n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func hasClass(n *html.Node, cls string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == cls {
			return true
		}
	}
	return false
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
