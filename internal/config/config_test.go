package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() {
		initialized = false
		_ = os.Chdir(wd)
	})
	return dir
}

func TestReadConfig_CreatesTemplate(t *testing.T) {
	req := require.New(t)
	dir := chdirTemp(t)

	_, err := ReadConfig()
	req.Error(err)

	// A template with the defaults must have been written.
	data, err := os.ReadFile(filepath.Join(dir, "config.json"))
	req.NoError(err)

	var written Config
	req.NoError(json.Unmarshal(data, &written))
	req.Equal(9000, written.AppPort)
	req.Equal("30s", written.GraceWindow)
}

func TestReadConfig_FileWithEnvOverride(t *testing.T) {
	req := require.New(t)
	dir := chdirTemp(t)

	cfg := defaultConfig()
	cfg.AppPort = 9001
	cfg.GraceWindow = "45s"
	data, err := json.MarshalIndent(cfg, "", "\t")
	req.NoError(err)
	req.NoError(os.WriteFile(filepath.Join(dir, "config.json"), data, 0644))

	t.Setenv("COORDINATOR_PORT", "9002")

	got, err := ReadConfig()
	req.NoError(err)
	req.Equal(9002, got.AppPort, "environment must win over the file")
	req.Equal("45s", got.GraceWindow)
}

func TestReadConfig_RejectsInvalidValues(t *testing.T) {
	req := require.New(t)
	dir := chdirTemp(t)

	cfg := defaultConfig()
	cfg.AppPort = 70000
	data, err := json.Marshal(cfg)
	req.NoError(err)
	req.NoError(os.WriteFile(filepath.Join(dir, "config.json"), data, 0644))

	_, err = ReadConfig()
	req.Error(err)
}

func TestGetConfig_CachesAfterRead(t *testing.T) {
	req := require.New(t)
	dir := chdirTemp(t)

	cfg := defaultConfig()
	data, err := json.Marshal(cfg)
	req.NoError(err)
	req.NoError(os.WriteFile(filepath.Join(dir, "config.json"), data, 0644))

	first, err := ReadConfig()
	req.NoError(err)

	second, err := GetConfig()
	req.NoError(err)
	req.Equal(first, second)
}
