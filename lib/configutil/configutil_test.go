package configutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type testConfig struct {
	CacheDir     string `json:"cache_dir"`
	TargetLength int    `json:"target_length"`
}

func TestReadConfigMergesLocalOverride(t *testing.T) {
	dir := t.TempDir()

	err := os.WriteFile(
		filepath.Join(dir, "run.json5"),
		[]byte(`{cache_dir: "/data/cache", target_length: 1000}`),
		0644,
	)
	if err != nil {
		t.Fatal(err)
	}
	err = os.WriteFile(
		filepath.Join(dir, "run.local.json5"),
		[]byte(`{target_length: 2000}`),
		0644,
	)
	if err != nil {
		t.Fatal(err)
	}

	cfg, err := ReadConfig[testConfig](filepath.Join(dir, "run.json5"))
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, "/data/cache", cfg.CacheDir)
	require.Equal(t, 2000, cfg.TargetLength)
}

func TestReadConfigMissing(t *testing.T) {
	dir := t.TempDir()
	_, err := ReadConfig[testConfig](filepath.Join(dir, "nope.json5"))
	require.True(t, os.IsNotExist(err))
}

func TestReadConfigLocalOnly(t *testing.T) {
	dir := t.TempDir()

	err := os.WriteFile(
		filepath.Join(dir, "run.local.json5"),
		[]byte(`{cache_dir: "/tmp/x"}`),
		0644,
	)
	if err != nil {
		t.Fatal(err)
	}

	cfg, err := ReadConfig[testConfig](filepath.Join(dir, "run.json5"))
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, "/tmp/x", cfg.CacheDir)
}
