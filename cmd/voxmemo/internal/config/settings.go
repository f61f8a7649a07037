// Package config loads and edits the voxmemo settings file and the
// per-service credential files next to it.
package config

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/haivivi/voxmemo/pkg/cli"
	"github.com/haivivi/voxmemo/pkg/storage"
	"github.com/haivivi/voxmemo/pkg/transcribe"
)

// Languages are the transcription languages offered for default_language.
var Languages = []string{"sv", "en", "no", "da", "fi"}

// Backends are the supported transcription backends.
var Backends = []string{"whispercpp", "openai", "gemini"}

// History kinds.
const (
	HistoryFiles = "files"
	HistoryKV    = "kv"
	HistoryS3    = "s3"
)

// Settings is settings.yaml.
type Settings struct {
	Model              string  `yaml:"model" json:"model"`
	Backend            string  `yaml:"backend" json:"backend"`
	AutoDetectLanguage bool    `yaml:"auto_detect_language" json:"auto_detect_language"`
	DefaultLanguage    string  `yaml:"default_language" json:"default_language"`
	SaveTranscriptions bool    `yaml:"save_transcriptions" json:"save_transcriptions"`
	Concurrency        int     `yaml:"concurrency,omitempty" json:"concurrency,omitempty"`
	History            History `yaml:"history" json:"history"`
}

// History selects where results are kept.
type History struct {
	Kind string `yaml:"kind" json:"kind"`
	// Dir overrides the files or kv directory.
	Dir              string `yaml:"dir,omitempty" json:"dir,omitempty"`
	storage.S3Config `yaml:",inline" json:",inline"`
}

// Defaults returns the settings of a fresh install.
func Defaults() Settings {
	return Settings{
		Model:              transcribe.DefaultModel,
		Backend:            "whispercpp",
		AutoDetectLanguage: false,
		DefaultLanguage:    "sv",
		SaveTranscriptions: true,
		History:            History{Kind: HistoryFiles},
	}
}

// Load reads settings from paths, filling unset files with Defaults.
func Load(paths *cli.Paths) (Settings, error) {
	s := Defaults()
	if _, err := cli.LoadYAML(paths.SettingsFile(), &s); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Save writes s to paths.
func Save(paths *cli.Paths, s Settings) error {
	return cli.SaveYAML(paths.SettingsFile(), s)
}

// LanguageHint is the language passed to the backend: empty when
// auto-detection is on.
func (s Settings) LanguageHint() string {
	if s.AutoDetectLanguage {
		return ""
	}
	return s.DefaultLanguage
}

type field struct {
	get func(*Settings) string
	set func(*Settings, string) error
}

func stringField(p func(*Settings) *string, valid []string) field {
	return field{
		get: func(s *Settings) string { return *p(s) },
		set: func(s *Settings, v string) error {
			if valid != nil && !slices.Contains(valid, v) {
				return fmt.Errorf("must be one of %s", strings.Join(valid, ", "))
			}
			*p(s) = v
			return nil
		},
	}
}

func boolField(p func(*Settings) *bool) field {
	return field{
		get: func(s *Settings) string { return strconv.FormatBool(*p(s)) },
		set: func(s *Settings, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("must be true or false")
			}
			*p(s) = b
			return nil
		},
	}
}

func modelIDs() []string {
	var ids []string
	for _, m := range transcribe.Models() {
		ids = append(ids, m.ID)
	}
	return ids
}

var fields = map[string]field{
	"model":                stringField(func(s *Settings) *string { return &s.Model }, modelIDs()),
	"backend":              stringField(func(s *Settings) *string { return &s.Backend }, Backends),
	"auto_detect_language": boolField(func(s *Settings) *bool { return &s.AutoDetectLanguage }),
	"default_language":     stringField(func(s *Settings) *string { return &s.DefaultLanguage }, Languages),
	"save_transcriptions":  boolField(func(s *Settings) *bool { return &s.SaveTranscriptions }),
	"concurrency": {
		get: func(s *Settings) string { return strconv.Itoa(s.Concurrency) },
		set: func(s *Settings, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 || n > 16 {
				return fmt.Errorf("must be an integer between 0 and 16")
			}
			s.Concurrency = n
			return nil
		},
	},
	"history.kind":     stringField(func(s *Settings) *string { return &s.History.Kind }, []string{HistoryFiles, HistoryKV, HistoryS3}),
	"history.dir":      stringField(func(s *Settings) *string { return &s.History.Dir }, nil),
	"history.bucket":   stringField(func(s *Settings) *string { return &s.History.Bucket }, nil),
	"history.prefix":   stringField(func(s *Settings) *string { return &s.History.Prefix }, nil),
	"history.region":   stringField(func(s *Settings) *string { return &s.History.Region }, nil),
	"history.endpoint": stringField(func(s *Settings) *string { return &s.History.Endpoint }, nil),
}

// Keys returns the settable keys in order.
func Keys() []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Get returns the string form of key.
func (s *Settings) Get(key string) (string, error) {
	f, ok := fields[key]
	if !ok {
		return "", fmt.Errorf("unknown setting %q", key)
	}
	return f.get(s), nil
}

// Set parses and assigns value to key.
func (s *Settings) Set(key, value string) error {
	f, ok := fields[key]
	if !ok {
		return fmt.Errorf("unknown setting %q", key)
	}
	if err := f.set(s, value); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	return nil
}
