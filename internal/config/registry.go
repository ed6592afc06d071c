package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"dogedash/internal/core"
)

// datasetsFile is the layout of DATASETS_FILE: per-kind overrides keyed by
// slug. Fields absent from an entry keep their built-in values.
type datasetsFile struct {
	Datasets map[string]yaml.Node `yaml:"datasets"`
}

// LoadRegistry returns the built-in dataset registry with the overrides of
// the YAML file at path applied. An empty path returns the defaults.
func LoadRegistry(path string) (*core.Registry, error) {
	reg := core.DefaultRegistry()
	if path == "" {
		return reg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read datasets file: %w", err)
	}
	return ParseRegistry(data)
}

// ParseRegistry applies YAML overrides to the built-in registry.
func ParseRegistry(data []byte) (*core.Registry, error) {
	reg := core.DefaultRegistry()
	var f datasetsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse datasets file: %w", err)
	}
	for slug, node := range f.Datasets {
		kind, err := core.ParseKind(slug)
		if err != nil {
			return nil, fmt.Errorf("datasets file: %w", err)
		}
		cfg := reg[kind]
		if err := node.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("datasets file: %s: %w", slug, err)
		}
		cfg.Kind = kind
		if err := validateKind(cfg); err != nil {
			return nil, fmt.Errorf("datasets file: %s: %w", slug, err)
		}
		reg[kind] = cfg
	}
	return reg, nil
}

func validateKind(cfg core.KindConfig) error {
	if cfg.Path == "" {
		return fmt.Errorf("path is required")
	}
	if cfg.AgencyField == "" || cfg.ValueField == "" {
		return fmt.Errorf("agency_field and value_field are required")
	}
	if _, ok := cfg.Column(cfg.SortField); !ok && cfg.SortField != "" {
		return fmt.Errorf("sort_field %q is not a column", cfg.SortField)
	}
	for _, ch := range cfg.Charts {
		if ch.GroupField == "" || ch.ValueField == "" {
			return fmt.Errorf("chart %q needs group_field and value_field", ch.ID)
		}
	}
	return nil
}
