package config

import (
	"errors"
	"fmt"

	"dario.cat/mergo"
)

// Builder accumulates configuration layers. Layers added later take
// precedence, so callers add them as file, env, then flags.
type Builder struct {
	loader  *Loader
	configs []*Config
	err     error
}

// NewBuilder creates a builder reading files from the OS file system.
func NewBuilder() *Builder {
	return NewBuilderWithLoader(NewLoader())
}

// NewBuilderWithLoader creates a builder with a custom loader.
func NewBuilderWithLoader(l *Loader) *Builder {
	return &Builder{
		loader:  l,
		configs: make([]*Config, 0, 3),
	}
}

// WithFile adds the file at path as a layer. An empty path or a missing
// file adds nothing.
func (b *Builder) WithFile(path string) *Builder {
	if path == "" {
		return b
	}
	cfg, err := b.loader.Load(path)
	if err != nil {
		b.err = errors.Join(b.err, err)
		return b
	}
	if cfg != nil {
		b.configs = append(b.configs, cfg)
	}
	return b
}

// WithEnv adds the LSPBRIDGE_ environment variables as a layer. A nil
// environ reads the process environment.
func (b *Builder) WithEnv(environ map[string]string) *Builder {
	cfg, err := FromEnv(environ)
	if err != nil {
		b.err = errors.Join(b.err, err)
		return b
	}
	b.configs = append(b.configs, cfg)
	return b
}

// WithOverrides adds cfg as a layer, typically built from command-line
// flags.
func (b *Builder) WithOverrides(cfg *Config) *Builder {
	if cfg != nil {
		b.configs = append(b.configs, cfg)
	}
	return b
}

// Build merges the layers over Default and validates the result.
func (b *Builder) Build() (*Config, error) {
	if b.err != nil {
		return nil, fmt.Errorf("error occurred during building config: %w", b.err)
	}

	config := Default()
	for _, cfg := range b.configs {
		if err := mergo.Merge(config, cfg, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("error merging configs: %w", err)
		}
	}

	return config, config.Validate()
}
