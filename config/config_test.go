package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultAppliesDocumentedDefaults(t *testing.T) {
	cfg, err := Default()
	require.NoError(t, err)
	require.Equal(t, 2, cfg.AggrPDUVersion)
	require.Equal(t, 2, cfg.ExtPDUVersion)
	require.Equal(t, 1, cfg.MaxRequestCount)
	require.Equal(t, 1, cfg.CacheSize)
}

func TestLoadFileParsesYAML(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "ksi.yaml")
	content := "aggregator-uri: ksi+http://agg.example.com\nmax-request-count: 5\n"
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))

	cfg, err := LoadFile(p)
	require.NoError(t, err)
	require.Equal(t, "ksi+http://agg.example.com", cfg.AggregatorURI)
	require.Equal(t, 5, cfg.MaxRequestCount)
}

func TestLoadFileRejectsOversizeFile(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "big.yaml")
	big := make([]byte, maxConfigSize+1)
	require.NoError(t, os.WriteFile(p, big, 0o644))

	_, err := LoadFile(p)
	require.Equal(t, ErrConfigFileTooLarge, err)
}

func TestEnvOverridesFillOnlyUnsetFields(t *testing.T) {
	t.Setenv("KSI_AGGREGATOR_URI", "ksi+http://env.example.com")
	cfg := &Config{AggregatorURI: "ksi+http://configured.example.com"}
	require.NoError(t, applyEnvOverrides(cfg))
	require.Equal(t, "ksi+http://configured.example.com", cfg.AggregatorURI)

	cfg2 := &Config{}
	require.NoError(t, applyEnvOverrides(cfg2))
	require.Equal(t, "ksi+http://env.example.com", cfg2.AggregatorURI)
}

func TestSecretOverrideFromFile(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "pass.txt")
	require.NoError(t, os.WriteFile(p, []byte("s3cret\n"), 0o600))
	t.Setenv("KSI_AGGREGATOR_PASS_FILE", p)

	cfg := &Config{}
	require.NoError(t, applyEnvOverrides(cfg))
	require.Equal(t, "s3cret", cfg.AggregatorPass)
}

func TestParseInt64(t *testing.T) {
	v, err := ParseInt64("42")
	require.NoError(t, err)
	require.Equal(t, int64(42), v)

	_, err = ParseInt64("not-a-number")
	require.Error(t, err)
}
