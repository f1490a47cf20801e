package view

// Translator looks up a localized string.
type Translator interface {
	T(key string) (string, bool)
}

// MapTranslator is a Translator backed by a flat key/value table.
type MapTranslator map[string]string

func (m MapTranslator) T(key string) (string, bool) {
	v, ok := m[key]
	return v, ok && v != ""
}

// Translation keys used by the widget.
const (
	KeyLoading           = "shortcuts.loading"
	KeyLoadError         = "shortcuts.loadError"
	KeyEmpty             = "shortcuts.empty"
	KeyConfigError       = "shortcuts.configError"
	KeyMissingConfig     = "shortcuts.missingConfig"
	KeyConfigInstruction = "shortcuts.configInstruction"
)

var defaultStrings = map[string]string{
	KeyLoading:           "Loading shortcuts...",
	KeyLoadError:         "Failed to load shortcuts",
	KeyEmpty:             "No shortcuts yet",
	KeyConfigError:       "Configuration error",
	KeyMissingConfig:     "Shortcut API configuration is missing",
	KeyConfigInstruction: "Set the following environment variables",
}

func (c *Controller) t(key string) string {
	if c.translator != nil {
		if v, ok := c.translator.T(key); ok {
			return v
		}
	}
	return defaultStrings[key]
}
