// Package view renders shortcut groups as a tabbed widget inside an HTML
// document and inserts the chosen prompt into a text field.
package view

import (
	"errors"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"shortcut-panel/config"
	"shortcut-panel/shortcut"
)

// Default selectors of the widget's page contract.
const (
	DefaultContainerSelector = "#shortcutsContainer"
	DefaultInputSelector     = "#combinedFeedbackText"
	TabsContainerSelector    = "#shortcutTabsContainer"
	PanelsContainerSelector  = "#shortcutPanelsContainer"
)

// Options configures a Controller.
type Options struct {
	// InputSelector locates the text field prompts are inserted into.
	InputSelector string
	// Settings takes precedence over Local when both are set.
	Settings   SettingsStore
	Local      KeyValueStore
	Translator Translator
	Logger     *zap.Logger
	Now        func() time.Time
}

// Controller renders shortcut groups into a Document and handles the
// widget's clicks.
type Controller struct {
	doc           *Document
	inputSelector string
	settings      SettingsStore
	local         KeyValueStore
	translator    Translator
	logger        *zap.Logger
	now           func() time.Time

	container *Element
	tabs      *Element
	panels    *Element
	unbind    []func()

	groups       []shortcut.Group
	currentIndex int
	isRendered   bool
}

// State is a snapshot of what the controller has rendered.
type State struct {
	IsRendered        bool            `json:"isRendered"`
	CurrentGroupIndex int             `json:"currentGroupIndex"`
	GroupsCount       int             `json:"groupsCount"`
	CurrentGroup      *shortcut.Group `json:"currentGroup,omitempty"`
}

// NewController returns a Controller for doc. Call Init before use.
func NewController(doc *Document, opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	input := opts.InputSelector
	if input == "" {
		input = DefaultInputSelector
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Controller{
		doc:           doc,
		inputSelector: input,
		settings:      opts.Settings,
		local:         opts.Local,
		translator:    opts.Translator,
		logger:        logger,
		now:           now,
	}
}

// Init locates the widget containers and binds the click handlers. It
// returns false when the page does not provide them.
func (c *Controller) Init(containerSelector string) bool {
	if containerSelector == "" {
		containerSelector = DefaultContainerSelector
	}
	c.logger.Debug("initializing shortcut view", zap.String("container", containerSelector))

	container := c.doc.Query(containerSelector)
	if container == nil {
		var candidates []string
		for _, el := range c.doc.QueryAll("[id]") {
			if strings.Contains(strings.ToLower(el.ID()), "shortcut") {
				candidates = append(candidates, el.TagName()+"#"+el.ID())
			}
		}
		c.logger.Error("shortcut container not found",
			zap.String("selector", containerSelector),
			zap.Strings("candidates", candidates))
		return false
	}

	tabs := container.Query(TabsContainerSelector)
	panels := container.Query(PanelsContainerSelector)
	if tabs == nil || panels == nil {
		var children []string
		for _, el := range container.Children() {
			children = append(children, describe(el))
		}
		c.logger.Error("shortcut sub-containers not found",
			zap.Bool("tabs", tabs != nil),
			zap.Bool("panels", panels != nil),
			zap.Strings("children", children))
		return false
	}

	c.container = container
	c.tabs = tabs
	c.panels = panels
	c.bindEvents()

	c.logger.Debug("shortcut view initialized")
	return true
}

func describe(el *Element) string {
	cls, _ := el.Attr("class")
	return el.TagName() + ` id="` + el.ID() + `" class="` + cls + `"`
}

func (c *Controller) bindEvents() {
	c.unbind = append(c.unbind,
		c.tabs.AddEventListener("click", func(ev *Event) {
			tab := ev.Target.Closest(".shortcuts-tab")
			if tab == nil || !c.tabs.Contains(tab) {
				return
			}
			raw, _ := tab.Data("group-index")
			index, err := strconv.Atoi(raw)
			if err != nil {
				return
			}
			c.SwitchToGroup(index)
		}),
		c.panels.AddEventListener("click", func(ev *Event) {
			button := ev.Target.Closest(".shortcut-button")
			if button == nil || !c.panels.Contains(button) {
				return
			}
			id, _ := button.Data("shortcut-id")
			prompt, _ := button.Data("prompt")
			if id != "" && prompt != "" {
				c.InsertShortcut(prompt)
			}
		}),
	)
}

func (c *Controller) ready() bool {
	if c.tabs == nil || c.panels == nil {
		c.logger.Warn("shortcut view used before Init")
		return false
	}
	return true
}

func (c *Controller) setPanels(name string, data any) {
	out, err := execute(name, data)
	if err != nil {
		c.logger.Error("render shortcut template", zap.String("template", name), zap.Error(err))
		return
	}
	c.tabs.Clear()
	if err := c.panels.SetInnerHTML(out); err != nil {
		c.logger.Error("apply shortcut markup", zap.String("template", name), zap.Error(err))
	}
}

// ShowLoading replaces the panels with the loading indicator.
func (c *Controller) ShowLoading() {
	if !c.ready() {
		return
	}
	c.setPanels("loading", c.t(KeyLoading))
}

// ShowEmpty replaces the panels with the empty-state message.
func (c *Controller) ShowEmpty() {
	if !c.ready() {
		return
	}
	c.setPanels("empty", c.t(KeyEmpty))
}

// ShowError replaces the panels with err. A *config.MissingError lists the
// missing environment variables.
func (c *Controller) ShowError(err error) {
	if !c.ready() {
		return
	}
	var missing *config.MissingError
	if errors.As(err, &missing) {
		c.setPanels("config-error", configErrorView{
			Title:       c.t(KeyConfigError),
			Missing:     c.t(KeyMissingConfig),
			Instruction: c.t(KeyConfigInstruction),
			Vars:        missing.Vars,
		})
		return
	}
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.setPanels("error", errorView{Title: c.t(KeyLoadError), Message: msg})
}

// Render draws one tab and one panel per group, then restores the saved
// selection or activates the first group. Empty input shows the empty state.
func (c *Controller) Render(groups []shortcut.Group) {
	if !c.ready() {
		return
	}
	if len(groups) == 0 {
		c.ShowEmpty()
		return
	}

	c.groups = groups
	c.currentIndex = 0

	tabs := make([]tabView, len(groups))
	panels := make([]panelView, len(groups))
	for i, g := range groups {
		tabs[i] = tabView{Index: i, Name: g.Name}
		buttons := make([]shortcutView, len(g.Shortcuts))
		for j, s := range g.Shortcuts {
			buttons[j] = shortcutView{ID: s.ID, Name: s.Name, Prompt: s.Prompt}
		}
		panels[i] = panelView{Index: i, Theme: themeFor(i), Shortcuts: buttons}
	}

	tabsHTML, err := execute("tabs", tabs)
	if err != nil {
		c.logger.Error("render shortcut tabs", zap.Error(err))
		return
	}
	panelsHTML, err := execute("panels", panels)
	if err != nil {
		c.logger.Error("render shortcut panels", zap.Error(err))
		return
	}
	if err := c.tabs.SetInnerHTML(tabsHTML); err != nil {
		c.logger.Error("apply shortcut tabs", zap.Error(err))
		return
	}
	if err := c.panels.SetInnerHTML(panelsHTML); err != nil {
		c.logger.Error("apply shortcut panels", zap.Error(err))
		return
	}

	if !c.restoreTabState() {
		c.SwitchToGroup(0)
	}
	c.isRendered = true
	c.logger.Debug("shortcut view rendered", zap.Int("groups", len(groups)))
}

// SwitchToGroup activates the tab and panel at index and persists the
// selection. Out-of-range indexes are ignored.
func (c *Controller) SwitchToGroup(index int) {
	if index < 0 || index >= len(c.groups) {
		c.logger.Warn("invalid shortcut group index", zap.Int("index", index), zap.Int("groups", len(c.groups)))
		return
	}
	if !c.ready() {
		return
	}

	for i, tab := range c.tabs.QueryAll(".shortcuts-tab") {
		tab.ToggleClass("active", i == index)
		tab.SetAttr("aria-selected", strconv.FormatBool(i == index))
	}
	for i, panel := range c.panels.QueryAll(".shortcuts-panel") {
		panel.ToggleClass("active", i == index)
	}
	c.currentIndex = index

	c.saveTabState(index, nil)
	c.logger.Debug("switched shortcut group", zap.String("group", c.groups[index].Name))
}

// InsertShortcut replaces the target field's value with prompt and a
// trailing newline, focuses it, and remembers prompt as last used.
func (c *Controller) InsertShortcut(prompt string) {
	if !c.fill(prompt) {
		return
	}
	c.saveTabState(c.currentIndex, &prompt)
	c.logger.Debug("inserted shortcut", zap.String("prompt", preview(prompt)))
}

// InsertShortcutWithoutSaving is InsertShortcut without persisting state.
func (c *Controller) InsertShortcutWithoutSaving(prompt string) {
	if c.fill(prompt) {
		c.logger.Debug("restored shortcut", zap.String("prompt", preview(prompt)))
	}
}

func (c *Controller) fill(prompt string) bool {
	field := c.doc.Query(c.inputSelector)
	if field == nil {
		c.logger.Error("shortcut input field not found", zap.String("selector", c.inputSelector))
		return false
	}
	value := prompt + "\n"
	field.SetValue(value)
	end := utf8.RuneCountInString(value)
	field.SetSelectionRange(end, end)
	field.Focus()
	return true
}

func preview(s string) string {
	const limit = 50
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit]) + "..."
}

// saveTabState persists index. A nil prompt keeps the previously saved one.
func (c *Controller) saveTabState(index int, prompt *string) {
	if prompt == nil {
		existing, err := c.loadTabState()
		if err == nil && existing != nil {
			prompt = existing.LastUsedPrompt
		}
	}
	st := TabState{
		SelectedIndex:  index,
		LastUsedPrompt: prompt,
		Timestamp:      c.now().UnixMilli(),
	}
	if err := c.storeTabState(st); err != nil {
		if errors.Is(err, errNoStore) {
			c.logger.Debug("shortcut tab state not persisted", zap.Error(err))
			return
		}
		c.logger.Warn("save shortcut tab state", zap.Error(err))
	}
}

// restoreTabState applies the saved selection if it fits the current
// groups, and refills the field with the last used prompt.
func (c *Controller) restoreTabState() bool {
	st, err := c.loadTabState()
	if err != nil {
		if !errors.Is(err, errNoStore) {
			c.logger.Warn("restore shortcut tab state", zap.Error(err))
		}
		return false
	}
	if st == nil || st.SelectedIndex < 0 || st.SelectedIndex >= len(c.groups) {
		c.logger.Debug("no usable shortcut tab state, using first group")
		return false
	}

	c.SwitchToGroup(st.SelectedIndex)
	if st.LastUsedPrompt != nil && *st.LastUsedPrompt != "" {
		c.InsertShortcutWithoutSaving(*st.LastUsedPrompt)
	}
	return true
}

// State returns a snapshot of the render state.
func (c *Controller) State() State {
	st := State{
		IsRendered:        c.isRendered,
		CurrentGroupIndex: c.currentIndex,
		GroupsCount:       len(c.groups),
	}
	if c.currentIndex >= 0 && c.currentIndex < len(c.groups) {
		g := c.groups[c.currentIndex]
		st.CurrentGroup = &g
	}
	return st
}

// Snapshot returns patches that rebuild the widget from scratch on a
// client: both containers and the target field.
func (c *Controller) Snapshot() []Patch {
	if c.tabs == nil || c.panels == nil {
		return nil
	}
	patches := []Patch{
		{Op: "html", ID: c.tabs.ID(), HTML: c.tabs.InnerHTML()},
		{Op: "html", ID: c.panels.ID(), HTML: c.panels.InnerHTML()},
	}
	if field := c.doc.Query(c.inputSelector); field != nil && field.ID() != "" {
		patches = append(patches, c.doc.fieldPatch(field.node))
	}
	return patches
}

// Destroy clears the containers, unbinds the click handlers and drops all
// references.
func (c *Controller) Destroy() {
	if c.tabs != nil {
		c.tabs.Clear()
	}
	if c.panels != nil {
		c.panels.Clear()
	}
	for _, off := range c.unbind {
		off()
	}
	c.unbind = nil
	c.container = nil
	c.tabs = nil
	c.panels = nil
	c.groups = nil
	c.currentIndex = 0
	c.isRendered = false
	c.logger.Debug("shortcut view destroyed")
}
