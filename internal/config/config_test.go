package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("target", "http://localhost:8080", "")
	fs.String("max-time", "30m", "")
	fs.String("format", "PYTHON_UNITTEST", "")
	fs.String("jar", "evomaster.jar", "")
	fs.String("spec", "merged_openapi_spec_fixed.yaml", "")
	fs.String("auth-config", "", "")
	fs.String("tests", "generated_tests", "")
	fs.String("out", "", "")
	fs.String("evidence-dir", "", "")
	fs.String("faults", "", "")
	fs.Int("rate", 0, "")
	return fs
}

func TestLoadFlagDefaults(t *testing.T) {

	cfg, err := Load(newFlags(), "")
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080", cfg.TargetURL)
	assert.Equal(t, "30m", cfg.MaxTime)
	assert.Equal(t, "PYTHON_UNITTEST", cfg.OutputFormat)
	assert.Equal(t, "evomaster.jar", cfg.JarPath)
	assert.Equal(t, "generated_tests", cfg.OutputFolder)
	assert.Zero(t, cfg.RatePerMinute)
}

func TestLoadChangedFlagWins(t *testing.T) {

	fs := newFlags()
	require.NoError(t, fs.Set("target", "http://staging:9090"))
	t.Setenv("TTFUZZ_TARGET", "http://from-env")

	cfg, err := Load(fs, "")
	require.NoError(t, err)
	assert.Equal(t, "http://staging:9090", cfg.TargetURL)
}

func TestLoadEnvOverridesDefault(t *testing.T) {

	t.Setenv("TTFUZZ_MAX_TIME", "2h")
	t.Setenv("TTFUZZ_RATE", "60")

	cfg, err := Load(newFlags(), "")
	require.NoError(t, err)
	assert.Equal(t, "2h", cfg.MaxTime)
	assert.Equal(t, 60, cfg.RatePerMinute)
}

func TestLoadConfigFile(t *testing.T) {

	path := filepath.Join(t.TempDir(), "harness.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
target: http://from-file:8080
format: JAVA_JUNIT_5
rate: 30
`), 0644))

	cfg, err := Load(newFlags(), path)
	require.NoError(t, err)
	assert.Equal(t, "http://from-file:8080", cfg.TargetURL)
	assert.Equal(t, "JAVA_JUNIT_5", cfg.OutputFormat)
	assert.Equal(t, 30, cfg.RatePerMinute)

	// Untouched keys keep their flag defaults.
	assert.Equal(t, "30m", cfg.MaxTime)
}

func TestLoadExplicitMissingConfigFile(t *testing.T) {

	_, err := Load(newFlags(), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "read config file")
}

func TestLoadWithoutFlags(t *testing.T) {

	t.Setenv("TTFUZZ_TARGET", "http://env-only")

	cfg, err := Load(nil, "")
	require.NoError(t, err)
	assert.Equal(t, "http://env-only", cfg.TargetURL)
}
