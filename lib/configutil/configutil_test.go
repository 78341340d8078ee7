package configutil

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Name string `json:"name"`
	Port int    `json:"port"`
}

func writeFile(t *testing.T, path, contents string) {
	err := os.WriteFile(path, []byte(contents), 0o644)
	if err != nil {
		t.Fatal(err)
	}
}

func TestReadConfigLocalOverride(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "config.json5"), `{
		// comments and trailing commas are fine
		name: "base",
		port: 8000,
	}`)
	writeFile(t, filepath.Join(dir, "config.local.json5"), `{ port: 9000 }`)

	cfg, err := ReadConfig[testConfig](filepath.Join(dir, "config.json5"))
	require.NoError(t, err)
	require.Equal(t, "base", cfg.Name)
	require.Equal(t, 9000, cfg.Port)
}

func TestReadConfigOnlyLocal(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "config.local.json5"), `{ name: "local" }`)

	cfg, err := ReadConfig[testConfig](filepath.Join(dir, "config.json5"))
	require.NoError(t, err)
	require.Equal(t, "local", cfg.Name)
}

func TestReadConfigMissing(t *testing.T) {
	_, err := ReadConfig[testConfig](filepath.Join(t.TempDir(), "config.json5"))
	require.True(t, errors.Is(err, os.ErrNotExist))
}

func TestReadConfigInvalid(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "config.json5"), `{ name: `)

	_, err := ReadConfig[testConfig](filepath.Join(dir, "config.json5"))
	require.Error(t, err)
	require.False(t, errors.Is(err, os.ErrNotExist))
}

func TestReadRecursively(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	writeFile(t, filepath.Join(root, "config.json5"), `{ name: "root" }`)

	t.Chdir(nested)

	cfg, err := ReadRecursively[testConfig]("config.json5")
	require.NoError(t, err)
	require.Equal(t, "root", cfg.Name)
}

func TestLocalPath(t *testing.T) {
	require.Equal(t, "/etc/quiz/config.local.json5", LocalPath("/etc/quiz/config.json5"))
	require.Equal(t, "config.local", LocalPath("config"))
}

func TestMerge(t *testing.T) {
	dst := testConfig{Name: "a", Port: 1}
	require.NoError(t, Merge(&dst, testConfig{Port: 2}))
	require.Equal(t, testConfig{Name: "a", Port: 2}, dst)
}
