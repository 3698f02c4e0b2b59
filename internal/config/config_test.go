package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leaperl/internal/hir"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	p := filepath.Join(dir, ConfigFileName)
	require.NoError(t, os.WriteFile(p, []byte(content), 0600))
	return p
}

func newFlags(t *testing.T) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	return fs
}

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(EnvPrefix+"PROJECT_ROOT", dir)

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.ProjectRoot)
	assert.Equal(t, []string{filepath.Join(dir, "include")}, cfg.IncludeDirs)
	assert.Empty(t, cfg.LibDirs)
	assert.Equal(t, hir.DefaultOTPRelease, cfg.OTPRelease)
	assert.Equal(t, 0, cfg.Workers)
	assert.Equal(t, DefaultLogLevel, cfg.Log.Level)
	assert.Equal(t, DefaultLogFormat, cfg.Log.Format)
	assert.Equal(t, DefaultOutput, cfg.Output)
	assert.Empty(t, cfg.File)
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, `include_dirs:
  - include
  - /abs/include
lib_dirs:
  - deps
otp_release: 25
workers: 4
log:
  level: debug
  format: json
output: yaml
`)

	cfg, err := Load(cfgPath, nil)
	require.NoError(t, err)

	assert.Equal(t, cfgPath, cfg.File)
	assert.Equal(t, dir, cfg.ProjectRoot)
	assert.Equal(t, []string{filepath.Join(dir, "include"), "/abs/include"}, cfg.IncludeDirs)
	assert.Equal(t, []string{filepath.Join(dir, "deps")}, cfg.LibDirs)
	assert.Equal(t, 25, cfg.OTPRelease)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, LogConfig{Level: "debug", Format: "json"}, cfg.Log)
	assert.Equal(t, "yaml", cfg.Output)
}

func TestLoad_FileProjectRootIsRelativeToFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, "project_root: apps/core\n")

	cfg, err := Load(cfgPath, nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "apps", "core"), cfg.ProjectRoot)
}

func TestLoad_FoundInProjectRoot(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "otp_release: 24\n")
	t.Setenv(EnvPrefix+"PROJECT_ROOT", dir)

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, ConfigFileName), cfg.File)
	assert.Equal(t, 24, cfg.OTPRelease)
}

func TestLoad_EnvPrecedenceOverFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, "otp_release: 24\nlog:\n  level: info\n")

	t.Setenv(EnvPrefix+"OTP_RELEASE", "27")
	t.Setenv(EnvPrefix+"LOG_LEVEL", "error")

	cfg, err := Load(cfgPath, nil)
	require.NoError(t, err)
	assert.Equal(t, 27, cfg.OTPRelease)
	assert.Equal(t, "error", cfg.Log.Level)
}

func TestLoad_EnvList(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(EnvPrefix+"PROJECT_ROOT", dir)
	t.Setenv(EnvPrefix+"LIB_DIRS", "a,b")

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a"), filepath.Join(dir, "b")}, cfg.LibDirs)
}

func TestLoad_EnvIncludeDirsList(t *testing.T) {
	dir := t.TempDir()
	abs := filepath.Join(t.TempDir(), "shared")
	t.Setenv(EnvPrefix+"PROJECT_ROOT", dir)
	t.Setenv(EnvPrefix+"INCLUDE_DIRS", "include,"+abs)

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "include"), abs}, cfg.IncludeDirs)
}

func TestLoad_FlagPrecedence(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, "otp_release: 24\noutput: text\n")
	t.Setenv(EnvPrefix+"OTP_RELEASE", "25")

	flags := newFlags(t)
	require.NoError(t, flags.Set("otp-release", "26"))
	require.NoError(t, flags.Set("output", "json"))

	cfg, err := Load(cfgPath, flags)
	require.NoError(t, err)
	assert.Equal(t, 26, cfg.OTPRelease, "flag value should override config file and env var")
	assert.Equal(t, "json", cfg.Output)
}

func TestLoad_FlagNotSetUsesEnv(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, "workers: 2\n")
	t.Setenv(EnvPrefix+"WORKERS", "3")

	cfg, err := Load(cfgPath, newFlags(t))
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Workers)
}

func TestLoad_FlagDirsRelativeToCWD(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(EnvPrefix+"PROJECT_ROOT", dir)
	cwd, err := os.Getwd()
	require.NoError(t, err)

	flags := newFlags(t)
	require.NoError(t, flags.Set("include-dir", "hdr"))

	cfg, err := Load("", flags)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(cwd, "hdr")}, cfg.IncludeDirs)
}

func TestLoad_ProjectRootFlagWins(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, "project_root: elsewhere\n")
	other := t.TempDir()

	flags := newFlags(t)
	require.NoError(t, flags.Set("project-root", other))

	cfg, err := Load(cfgPath, flags)
	require.NoError(t, err)
	assert.Equal(t, other, cfg.ProjectRoot)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		errSubstr string
	}{
		{"bad level", "log:\n  level: loud\n", "log.level"},
		{"bad format", "log:\n  format: xml\n", "log.format"},
		{"bad output", "output: csv\n", "unknown output"},
		{"negative workers", "workers: -1\n", "workers"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfgPath := writeConfig(t, t.TempDir(), tt.content)
			_, err := Load(cfgPath, nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid configuration")
			assert.Contains(t, err.Error(), tt.errSubstr)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestFindProjectRoot(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "")
	deep := filepath.Join(root, "a", "b", "c")
	require.NoError(t, os.MkdirAll(deep, 0750))

	assert.Equal(t, root, FindProjectRoot(deep))
	assert.Equal(t, root, FindProjectRoot(root))
	assert.Empty(t, FindProjectRoot(t.TempDir()))
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "log.level", envKey("LEAPERL_LOG_LEVEL"))
	assert.Equal(t, "lib_dirs", envKey("LEAPERL_LIB_DIRS"))
	assert.Equal(t, "otp_release", envKey("LEAPERL_OTP_RELEASE"))
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default("/proj")
	require.NoError(t, cfg.Validate())
	lvl, err := cfg.Log.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, lvl)
	assert.Equal(t, []string{"/proj/include"}, cfg.IncludeDirs)
}
