package history

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Defaults maps a kind to its preferred item names.
type Defaults map[Kind][]string

// BuiltinDefaults returns the bundled default lists.
func BuiltinDefaults() Defaults {
	d, err := ParseDefaults(defaultsYAML)
	if err != nil {
		panic(fmt.Sprintf("bundled defaults.yaml: %v", err))
	}
	return d
}

// ParseDefaults decodes a YAML document of kind -> names.
func ParseDefaults(b []byte) (Defaults, error) {
	var d Defaults
	if err := yaml.Unmarshal(b, &d); err != nil {
		return nil, fmt.Errorf("parse defaults: %w", err)
	}
	for k := range d {
		if !k.Valid() {
			return nil, fmt.Errorf("parse defaults: unknown kind %q", k)
		}
	}
	return d, nil
}

// LoadDefaults reads defaults from path, or the bundled list when path is
// empty.
func LoadDefaults(path string) (Defaults, error) {
	if path == "" {
		return BuiltinDefaults(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read defaults: %w", err)
	}
	return ParseDefaults(b)
}

// Names returns the default names for kind.
func (d Defaults) Names(kind Kind) []string {
	return append([]string(nil), d[kind]...)
}
