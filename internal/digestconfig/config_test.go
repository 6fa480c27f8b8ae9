package digestconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morita/kabuto/internal/contracts"
)

const sampleYAML = `meta:
  digest_id: kabuto-daily
  version: "1.0"
  timezone: Asia/Tokyo
schedule:
  cron: "0 30 6 * * 1-5"
report:
  title_format: "%s Stock Market Analysis Report"
  sections:
    regular_up: "Regular Market - Top Gainers"
    regular_down: "Regular Market - Top Losers"
    pts_up: "PTS Market - Top Gainers"
    pts_down: "PTS Market - Top Losers"
warning:
  stop_limit_threshold: 10
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "digest.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	cfg, yamlData, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.NotEmpty(t, yamlData)

	assert.Equal(t, "kabuto-daily", cfg.Meta.DigestID)
	assert.Equal(t, "0 30 6 * * 1-5", cfg.Schedule.Cron)
	assert.Equal(t, 10, cfg.Warning.StopLimitThreshold)
	assert.Equal(t, "Regular Market - Top Gainers", cfg.Report.Sections.Title(contracts.CategoryRegularUp))
	assert.Equal(t, "PTS Market - Top Losers", cfg.Report.Sections.Title(contracts.CategoryPTSDown))

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Asia/Tokyo", loc.String())
}

func TestLoad_UnknownFieldRejected(t *testing.T) {
	content := strings.Replace(sampleYAML, "warning:", "warnign:", 1)

	_, _, err := Load(writeConfig(t, content))
	require.Error(t, err, "a misspelled top-level key must fail loudly")
}

func TestLoad_MissingFile(t *testing.T) {
	_, _, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing digest_id", func(c *Config) { c.Meta.DigestID = "" }},
		{"missing timezone", func(c *Config) { c.Meta.Timezone = "" }},
		{"bogus timezone", func(c *Config) { c.Meta.Timezone = "Mars/Olympus" }},
		{"missing cron", func(c *Config) { c.Schedule.Cron = "" }},
		{"title without date slot", func(c *Config) { c.Report.TitleFormat = "Daily Report" }},
		{"missing section title", func(c *Config) { c.Report.Sections.PTSUp = "" }},
		{"zero threshold", func(c *Config) { c.Warning.StopLimitThreshold = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, Validate(cfg))
		})
	}
}

func TestDefault_IsValid(t *testing.T) {
	require.NoError(t, Validate(Default()))
}

func TestHash_Deterministic(t *testing.T) {
	cfg, _, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	h1, err := Hash(cfg)
	require.NoError(t, err)
	assert.Len(t, h1, 64)

	h2, err := Hash(cfg)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)

	// The built-in default mirrors the sample file, so their hashes match
	hd, err := Hash(Default())
	require.NoError(t, err)
	assert.Equal(t, h1, hd)

	changed := *cfg
	changed.Warning.StopLimitThreshold = 5
	h3, err := Hash(&changed)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3)
}
