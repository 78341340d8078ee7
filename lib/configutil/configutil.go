// Package configutil reads json5 configuration files with optional local
// overrides kept out of version control.
package configutil

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"github.com/titanous/json5"
)

// Merge copies every non-empty field of override onto dst.
func Merge[T any](dst *T, override T) error {
	return mergo.Merge(dst, override, mergo.WithOverride)
}

// LocalPath returns the override path of a config file, `config.json5` becomes
// `config.local.json5`.
func LocalPath(name string) string {
	ext := filepath.Ext(name)
	return strings.TrimSuffix(name, ext) + ".local" + ext
}

// readJson5 treats a missing or empty file as absent.
func readJson5[T any](path string) (T, bool, error) {
	var out T
	contents, err := os.ReadFile(path)
	if os.IsNotExist(err) || (err == nil && len(contents) == 0) {
		return out, false, nil
	}
	if err != nil {
		return out, false, err
	}
	err = json5.Unmarshal(contents, &out)
	if err != nil {
		return out, false, fmt.Errorf("%s: %w", path, err)
	}
	return out, true, nil
}

// ReadConfig reads `name` and merges its local override over it. It fails with
// os.ErrNotExist only when neither file exists.
func ReadConfig[T any](name string) (T, error) {
	out, found, err := readJson5[T](name)
	if err != nil {
		return out, err
	}

	local := LocalPath(name)
	override, foundLocal, err := readJson5[T](local)
	if err != nil {
		return out, err
	}
	if !found && !foundLocal {
		return out, os.ErrNotExist
	}
	if foundLocal {
		slog.Info("merging config with local overrides", "local", local)
		err = Merge(&out, override)
		if err != nil {
			return out, err
		}
	}
	return out, nil
}

// ReadRecursively looks for a relative `name` in the working directory and then
// in each parent until one has it.
func ReadRecursively[T any](name string) (T, error) {
	if filepath.IsAbs(name) {
		return ReadConfig[T](name)
	}

	var empty T
	dir, err := os.Getwd()
	if err != nil {
		return empty, err
	}
	for {
		cfg, err := ReadConfig[T](filepath.Join(dir, name))
		if !os.IsNotExist(err) {
			return cfg, err
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return empty, os.ErrNotExist
		}
		dir = parent
	}
}
