package cli

import (
	"os"
	"path/filepath"
)

// Paths is the on-disk layout of an application:
//
//	<config>/<app>/settings.yaml
//	<config>/<app>/services/<name>.yaml
//	<data>/<app>/recordings
//	<data>/<app>/transcriptions
//	<data>/<app>/models
//	<cache>/<app>
type Paths struct {
	AppName string

	ConfigRoot string
	DataRoot   string
	CacheRoot  string
}

// NewPaths resolves the user directories for app. XDG_DATA_HOME is
// honored for data; it defaults to ~/.local/share.
func NewPaths(app string) (*Paths, error) {
	cfg, err := os.UserConfigDir()
	if err != nil {
		return nil, err
	}
	cache, err := os.UserCacheDir()
	if err != nil {
		return nil, err
	}
	data := os.Getenv("XDG_DATA_HOME")
	if data == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		data = filepath.Join(home, ".local", "share")
	}
	return &Paths{AppName: app, ConfigRoot: cfg, DataRoot: data, CacheRoot: cache}, nil
}

// RootedPaths puts every directory under root. Used by --home and tests.
func RootedPaths(app, root string) *Paths {
	return &Paths{
		AppName:    app,
		ConfigRoot: filepath.Join(root, "config"),
		DataRoot:   filepath.Join(root, "data"),
		CacheRoot:  filepath.Join(root, "cache"),
	}
}

func (p *Paths) ConfigDir() string { return filepath.Join(p.ConfigRoot, p.AppName) }

func (p *Paths) DataDir() string { return filepath.Join(p.DataRoot, p.AppName) }

func (p *Paths) CacheDir() string { return filepath.Join(p.CacheRoot, p.AppName) }

// SettingsFile returns <config>/<app>/settings.yaml.
func (p *Paths) SettingsFile() string { return filepath.Join(p.ConfigDir(), "settings.yaml") }

// ServiceFile returns the credentials file of a backend service.
func (p *Paths) ServiceFile(name string) string {
	return filepath.Join(p.ConfigDir(), "services", name+".yaml")
}

func (p *Paths) RecordingsDir() string { return filepath.Join(p.DataDir(), "recordings") }

func (p *Paths) TranscriptionsDir() string { return filepath.Join(p.DataDir(), "transcriptions") }

func (p *Paths) ModelsDir() string { return filepath.Join(p.DataDir(), "models") }

// HistoryDB is the badger directory of the kv history store.
func (p *Paths) HistoryDB() string { return filepath.Join(p.DataDir(), "history.db") }

// Ensure creates dirs with parents.
func Ensure(dirs ...string) error {
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return err
		}
	}
	return nil
}
