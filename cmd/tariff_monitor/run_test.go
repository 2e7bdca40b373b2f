package main

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// envWithout returns the current environment minus the named variable.
func envWithout(name string) []string {
	var env []string
	for _, e := range os.Environ() {
		if !strings.HasPrefix(e, name+"=") {
			env = append(env, e)
		}
	}
	return env
}

func writeTestSources(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sources.json")
	content := `[{"name": "Test Electric", "url": "https://test.example/rates"}]`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRunCommand_MissingSources(t *testing.T) {
	binaryPath := getBinaryPath(t)

	cmd := exec.Command(binaryPath, "run")
	output, err := cmd.CombinedOutput()

	assert.Error(t, err)
	assert.Contains(t, string(output), "--sources is required")
}

func TestRunCommand_MissingAPIKey(t *testing.T) {
	binaryPath := getBinaryPath(t)

	cmd := exec.Command(binaryPath, "run", "--sources", writeTestSources(t))
	cmd.Env = envWithout("GEMINI_API_KEY")

	output, err := cmd.CombinedOutput()

	assert.Error(t, err)
	assert.Contains(t, string(output), "GEMINI_API_KEY environment variable or --api-key flag is required")
}

func TestRunCommand_MissingDatabaseURL(t *testing.T) {
	binaryPath := getBinaryPath(t)

	cmd := exec.Command(binaryPath, "run",
		"--sources", writeTestSources(t),
		"--api-key", "dummy-key")
	cmd.Env = envWithout("DATABASE_URL")

	output, err := cmd.CombinedOutput()

	assert.Error(t, err)
	assert.Contains(t, string(output), "DATABASE_URL environment variable or --db-url flag is required")
}

func TestRunCommand_ConfigFileProvidesSources(t *testing.T) {
	// A config file can stand in for --sources; the command should then fail
	// on the next missing requirement (API key), proving the config was read.
	binaryPath := getBinaryPath(t)

	configPath := filepath.Join(t.TempDir(), "config.json")
	content := `{"sources": "` + writeTestSources(t) + `"}`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o644))

	cmd := exec.Command(binaryPath, "run", "--config", configPath)
	cmd.Env = envWithout("GEMINI_API_KEY")

	output, err := cmd.CombinedOutput()

	assert.Error(t, err)
	assert.NotContains(t, string(output), "--sources is required")
	assert.Contains(t, string(output), "GEMINI_API_KEY")
}

func TestInitCommand_MissingDatabaseURL(t *testing.T) {
	binaryPath := getBinaryPath(t)

	cmd := exec.Command(binaryPath, "init")
	cmd.Env = envWithout("DATABASE_URL")

	output, err := cmd.CombinedOutput()

	assert.Error(t, err)
	assert.Contains(t, string(output), "DATABASE_URL")
}

func TestListCommand_RequiresUtilityName(t *testing.T) {
	binaryPath := getBinaryPath(t)

	cmd := exec.Command(binaryPath, "list")
	output, err := cmd.CombinedOutput()

	assert.Error(t, err)
	assert.Contains(t, string(output), "arg")
}
