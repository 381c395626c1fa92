package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

// resetCfg restores the package config after a test replaces it.
func resetCfg(t *testing.T) {
	t.Helper()
	oldCfg := cfg
	cfg = nil
	t.Cleanup(func() { cfg = oldCfg })
}

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"scrape", "push", "migrate", "sources", "config"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "grant-scraper", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestScrapeCommand_Flags(t *testing.T) {
	for _, name := range []string{"source", "local-only", "delay"} {
		assert.NotNil(t, scrapeCmd.Flags().Lookup(name), "scrape command should have --%s flag", name)
	}
	assert.Equal(t, "false", scrapeCmd.Flags().Lookup("local-only").DefValue)
}

func TestRootCmd_PersistentPreRunE_WithValidConfig(t *testing.T) {
	dir := chdirTemp(t)
	resetCfg(t)

	configContent := `
remote:
  driver: sqlite
log:
  level: info
  format: console
  file: logs/run.log
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(configContent), 0o644))

	require.NoError(t, rootCmd.PersistentPreRunE(rootCmd, nil))
	require.NotNil(t, cfg)
	assert.Equal(t, "sqlite", cfg.Remote.Driver)
	assert.DirExists(t, filepath.Join(dir, "logs"))
}

func TestRootCmd_PersistentPreRunE_LoadsDotEnv(t *testing.T) {
	dir := chdirTemp(t)
	resetCfg(t)

	// Register cleanup for the variables godotenv will set.
	t.Setenv("SUPABASE_URL", "")
	t.Setenv("SUPABASE_KEY", "")
	require.NoError(t, os.Unsetenv("SUPABASE_URL"))
	require.NoError(t, os.Unsetenv("SUPABASE_KEY"))

	env := "SUPABASE_URL=postgres://postgres@db.example.supabase.co:5432/postgres\nSUPABASE_KEY=secret\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(env), 0o600))

	require.NoError(t, rootCmd.PersistentPreRunE(rootCmd, nil))
	assert.Equal(t, "postgres://postgres@db.example.supabase.co:5432/postgres", cfg.Remote.URL)
	assert.Equal(t, "secret", cfg.Remote.Key)
}

func TestRootCmd_PersistentPreRunE_NoConfigFile(t *testing.T) {
	chdirTemp(t)
	resetCfg(t)

	require.NoError(t, rootCmd.PersistentPreRunE(rootCmd, nil))
	require.NotNil(t, cfg)
	// Defaults should be applied.
	assert.Equal(t, "postgres", cfg.Remote.Driver)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "data", cfg.Output.DataDir)
}

func TestRootCmd_PersistentPreRunE_BadLogLevel(t *testing.T) {
	dir := chdirTemp(t)
	resetCfg(t)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("log:\n  level: loud\n"), 0o644))

	err := rootCmd.PersistentPreRunE(rootCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "init logger")
}

func TestRootCmd_PersistentPreRunE_BadYAML(t *testing.T) {
	dir := chdirTemp(t)
	resetCfg(t)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("log: [unclosed"), 0o644))

	err := rootCmd.PersistentPreRunE(rootCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load config")
}

func TestLoadDotEnv_Missing(t *testing.T) {
	assert.NoError(t, loadDotEnv(filepath.Join(t.TempDir(), ".env")))
}

func TestSplitAndTrim(t *testing.T) {
	assert.Equal(t, []string{"phac", "otf"}, splitAndTrim(" phac, ,otf "))
	assert.Empty(t, splitAndTrim(""))
}
