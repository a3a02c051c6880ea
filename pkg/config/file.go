package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	toml "github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of environment variables overriding file values.
const EnvPrefix = "SOCKBRIDGE_"

// File reads a TOML file, overlaid with SOCKBRIDGE_* environment
// variables, on every Load. Edits to the file apply on the next attempt.
type File struct {
	Path string
	// Env enables environment overrides.
	Env bool
}

// NewFile creates a File source.
func NewFile(path string) *File {
	return &File{Path: path, Env: true}
}

// Load implements Source.
func (f *File) Load(ctx context.Context) (*Snapshot, error) {
	k := koanf.New(".")
	if f.Path != "" {
		if err := k.Load(file.Provider(f.Path), toml.Parser()); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("%w: %s", ErrNotFound, f.Path)
			}
			return nil, fmt.Errorf("load %s: %w", f.Path, err)
		}
	}
	if f.Env {
		if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
			return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		}), nil); err != nil {
			return nil, fmt.Errorf("load environment: %w", err)
		}
	}

	values := map[string]string{KeyEnabled: "true"}
	for _, key := range []string{KeyEnabled, KeyHost, KeyPort, KeyGreeting, KeyColor} {
		if k.Exists(key) {
			values[key] = k.String(key)
		}
	}
	return FromMap(values)
}
