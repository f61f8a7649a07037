package transcribe

import "slices"

// Model describes a speech model a backend can load.
type Model struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
	// SizeMB is the approximate download size.
	SizeMB int `json:"size_mb" yaml:"size_mb"`
	// Language is the language the model is tuned for, or "" for
	// multilingual models.
	Language string `json:"language,omitempty" yaml:"language,omitempty"`
}

// DefaultModel is loaded when nothing else is configured.
const DefaultModel = "kb_whisper-base"

var catalog = []Model{
	{ID: "kb_whisper-base", Name: "KB Whisper Base (Svenska)", SizeMB: 150, Language: "sv"},
	{ID: "kb_whisper-small", Name: "KB Whisper Small (Svenska)", SizeMB: 500, Language: "sv"},
	{ID: "openai_whisper-base", Name: "Whisper Base", SizeMB: 150},
	{ID: "openai_whisper-small", Name: "Whisper Small", SizeMB: 500},
}

// Models lists the known models.
func Models() []Model {
	return slices.Clone(catalog)
}

// LookupModel finds a model by id.
func LookupModel(id string) (Model, bool) {
	i := slices.IndexFunc(catalog, func(m Model) bool { return m.ID == id })
	if i < 0 {
		return Model{}, false
	}
	return catalog[i], true
}
