package config

import (
	"fmt"
	"strings"

	"github.com/haivivi/voxmemo/pkg/cli"
)

// ValidateServiceName rejects names that are not safe file names.
func ValidateServiceName(name string) error {
	if name == "" {
		return fmt.Errorf("service name cannot be empty")
	}
	if strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return fmt.Errorf("invalid service name %q", name)
	}
	return nil
}

// LoadService reads services/<name>.yaml into a T. A missing file yields
// the zero T.
func LoadService[T any](paths *cli.Paths, name string) (*T, error) {
	if err := ValidateServiceName(name); err != nil {
		return nil, err
	}
	var v T
	if _, err := cli.LoadYAML(paths.ServiceFile(name), &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// SaveService writes v to services/<name>.yaml.
func SaveService[T any](paths *cli.Paths, name string, v *T) error {
	if err := ValidateServiceName(name); err != nil {
		return err
	}
	return cli.SaveYAML(paths.ServiceFile(name), v)
}

// SetServiceValue sets one top-level key of a service file, keeping the
// others.
func SetServiceValue(paths *cli.Paths, name, key, value string) error {
	m, err := LoadService[map[string]any](paths, name)
	if err != nil {
		return err
	}
	if *m == nil {
		*m = map[string]any{}
	}
	(*m)[key] = value
	return SaveService(paths, name, m)
}
