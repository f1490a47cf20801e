package view

import (
	"bytes"
	"html/template"
)

// themes cycle across groups by index.
var themes = []string{"blue", "green", "orange", "purple", "red", "indigo"}

var templates = template.Must(template.New("widget").Parse(`
{{define "tabs"}}{{range .}}<button class="shortcuts-tab" id="shortcut-tab-{{.Index}}" data-group-index="{{.Index}}" role="tab" aria-selected="{{if eq .Index 0}}true{{else}}false{{end}}" aria-controls="shortcut-panel-{{.Index}}" type="button">{{.Name}}</button>{{end}}{{end}}

{{define "panels"}}{{range .}}<div class="shortcuts-panel" id="shortcut-panel-{{.Index}}" data-theme="{{.Theme}}" role="tabpanel" aria-labelledby="shortcut-tab-{{.Index}}">{{range .Shortcuts}}<button class="shortcut-button" data-shortcut-id="{{.ID}}" data-prompt="{{.Prompt}}" title="{{.Prompt}}" type="button">{{.Name}}</button>{{end}}</div>{{end}}{{end}}

{{define "loading"}}<div class="shortcuts-loading"><div class="loading-spinner"></div><span>{{.}}</span></div>{{end}}

{{define "empty"}}<div class="shortcuts-empty"><span>{{.}}</span></div>{{end}}

{{define "error"}}<div class="shortcuts-error"><span>❌</span><span>{{.Title}}: {{.Message}}</span></div>{{end}}

{{define "config-error"}}<div class="shortcuts-error config-error">
<div class="error-header"><span class="error-icon">⚙️</span><span class="error-title">{{.Title}}</span></div>
<div class="error-message">
<p>{{.Missing}}</p>
<p><strong>{{.Instruction}}:</strong></p>
<ul class="missing-config-list">{{range .Vars}}<li><code>{{.}}</code></li>{{end}}</ul>
<div class="config-help">
<p><strong>FEEDBACK_API_SERVER</strong>: shortcut API server address</p>
<p><strong>FEEDBACK_API_KEY</strong>: shortcut API access key</p>
<p class="help-note">⚠️ Ask your administrator for the correct values</p>
</div>
</div>
</div>{{end}}
`))

type tabView struct {
	Index int
	Name  string
}

type panelView struct {
	Index     int
	Theme     string
	Shortcuts []shortcutView
}

type shortcutView struct {
	ID     string
	Name   string
	Prompt string
}

type errorView struct {
	Title   string
	Message string
}

type configErrorView struct {
	Title       string
	Missing     string
	Instruction string
	Vars        []string
}

func themeFor(index int) string {
	return themes[index%len(themes)]
}

func execute(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
