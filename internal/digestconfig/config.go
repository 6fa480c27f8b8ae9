package digestconfig

import (
	"time"

	"github.com/morita/kabuto/internal/contracts"
)

// Config はデイリーダイジェストの全設定
// ⭐ SSOT: セクションタイトル・しきい値・スケジュールの定義はここだけ
type Config struct {
	Meta     Meta     `yaml:"meta" json:"meta"`
	Schedule Schedule `yaml:"schedule" json:"schedule"`
	Report   Report   `yaml:"report" json:"report"`
	Warning  Warning  `yaml:"warning" json:"warning"`
}

// Meta メタ情報
type Meta struct {
	DigestID string `yaml:"digest_id" json:"digest_id"`
	Version  string `yaml:"version" json:"version"`
	Timezone string `yaml:"timezone" json:"timezone"`
}

// Schedule 日次実行スケジュール
type Schedule struct {
	// Cron is a 6-field spec with seconds, e.g. "0 30 6 * * 1-5"
	Cron string `yaml:"cron" json:"cron"`
}

// Report レポート整形設定
type Report struct {
	// TitleFormat receives the report date as its single %s argument
	TitleFormat string   `yaml:"title_format" json:"title_format"`
	Sections    Sections `yaml:"sections" json:"sections"`
}

// Sections holds the fixed four section titles
type Sections struct {
	RegularUp   string `yaml:"regular_up" json:"regular_up"`
	RegularDown string `yaml:"regular_down" json:"regular_down"`
	PTSUp       string `yaml:"pts_up" json:"pts_up"`
	PTSDown     string `yaml:"pts_down" json:"pts_down"`
}

// Title returns the section title for a category, or "" for an unknown one
func (s Sections) Title(c contracts.Category) string {
	switch c {
	case contracts.CategoryRegularUp:
		return s.RegularUp
	case contracts.CategoryRegularDown:
		return s.RegularDown
	case contracts.CategoryPTSUp:
		return s.PTSUp
	case contracts.CategoryPTSDown:
		return s.PTSDown
	}
	return ""
}

// Warning ストップ高/安 警告設定
type Warning struct {
	// StopLimitThreshold is the stop-limit stock count at which the
	// report gets a warning block
	StopLimitThreshold int `yaml:"stop_limit_threshold" json:"stop_limit_threshold"`
}

// Location resolves the configured timezone
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Meta.Timezone)
}
