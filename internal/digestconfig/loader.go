package digestconfig

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads the digest YAML and returns Config with the raw bytes.
// ⭐ SSOT: KnownFields(true) でタイプミス・未使用フィールドは即時エラー
func Load(path string) (*Config, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, data, err
	}

	return &cfg, data, nil
}

// Default returns the built-in digest configuration, used when no YAML
// file is present. Mirrors config/digest.yaml.
func Default() *Config {
	return &Config{
		Meta: Meta{
			DigestID: "kabuto-daily",
			Version:  "1.0",
			Timezone: "Asia/Tokyo",
		},
		Schedule: Schedule{
			Cron: "0 30 6 * * 1-5",
		},
		Report: Report{
			TitleFormat: "%s Stock Market Analysis Report",
			Sections: Sections{
				RegularUp:   "Regular Market - Top Gainers",
				RegularDown: "Regular Market - Top Losers",
				PTSUp:       "PTS Market - Top Gainers",
				PTSDown:     "PTS Market - Top Losers",
			},
		},
		Warning: Warning{
			StopLimitThreshold: 10,
		},
	}
}

// Validate checks structural soundness of the digest configuration
func Validate(cfg *Config) error {
	if cfg.Meta.DigestID == "" {
		return fmt.Errorf("meta.digest_id is required")
	}
	if cfg.Meta.Timezone == "" {
		return fmt.Errorf("meta.timezone is required")
	}
	if _, err := cfg.Location(); err != nil {
		return fmt.Errorf("meta.timezone %q is not a valid location: %w", cfg.Meta.Timezone, err)
	}

	if cfg.Schedule.Cron == "" {
		return fmt.Errorf("schedule.cron is required")
	}

	if !strings.Contains(cfg.Report.TitleFormat, "%s") {
		return fmt.Errorf("report.title_format must contain a %%s placeholder for the date")
	}

	sections := map[string]string{
		"regular_up":   cfg.Report.Sections.RegularUp,
		"regular_down": cfg.Report.Sections.RegularDown,
		"pts_up":       cfg.Report.Sections.PTSUp,
		"pts_down":     cfg.Report.Sections.PTSDown,
	}
	for key, title := range sections {
		if title == "" {
			return fmt.Errorf("report.sections.%s is required", key)
		}
	}

	if cfg.Warning.StopLimitThreshold < 1 {
		return fmt.Errorf("warning.stop_limit_threshold must be at least 1")
	}

	return nil
}

// Hash generates a SHA256 hash from Config (canonical JSON).
// Struct marshaling keeps field order deterministic across runs.
func Hash(cfg *Config) (string, error) {
	jsonBytes, err := json.Marshal(cfg)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(jsonBytes)
	return hex.EncodeToString(sum[:]), nil
}
