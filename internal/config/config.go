package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/model"
)

// BizConfig is decoded from the biz_config section of config.yaml.
type BizConfig struct {
	// Datasource is the gorm.data_sources entry holding stock_basic and industry.
	Datasource string `yaml:"datasource" json:"datasource"`
	// Timezone used for date stamps.
	Timezone string `yaml:"timezone" json:"timezone"`

	Retry    RetryConfig    `yaml:"retry" json:"retry"`
	Industry IndustryConfig `yaml:"industry" json:"industry"`
	Source   SourceConfig   `yaml:"source" json:"source"`

	// ProgressEvery controls how often builds log progress.
	ProgressEvery int `yaml:"progress_every" json:"progress_every"`
}

// RetryConfig bounds retries of source fetches: MaxRetries extra attempts after a fixed Backoff.
type RetryConfig struct {
	MaxRetries int           `yaml:"max_retries" json:"max_retries"`
	Backoff    time.Duration `yaml:"backoff" json:"backoff"`
}

type IndustryConfig struct {
	Levels  []string `yaml:"levels" json:"levels"`
	Sources []string `yaml:"sources" json:"sources"`
}

type SourceConfig struct {
	// Client is the http_clients entry pointing at the AKTools gateway.
	Client string `yaml:"client" json:"client"`
	// RosterBoards lists the listing boards fetched by the basic-info build.
	RosterBoards []string `yaml:"roster_boards" json:"roster_boards"`
	// Fundamentals joins spot fundamentals into basic-info rows.
	Fundamentals bool `yaml:"fundamentals" json:"fundamentals"`
	// CacheTTL enables the redis response cache when > 0 and redis is configured.
	CacheTTL time.Duration `yaml:"cache_ttl" json:"cache_ttl"`
}

func Default() *BizConfig {
	c := &BizConfig{}
	c.ApplyDefaults()
	return c
}

func (c *BizConfig) ApplyDefaults() {
	if c.Datasource == "" {
		c.Datasource = "main"
	}
	if c.Timezone == "" {
		c.Timezone = model.DefaultTimezone
	}
	if c.Retry.MaxRetries < 0 {
		c.Retry.MaxRetries = 0
	}
	if c.Retry.MaxRetries == 0 && c.Retry.Backoff == 0 {
		c.Retry.MaxRetries = 1
		c.Retry.Backoff = 61 * time.Second
	}
	if len(c.Industry.Levels) == 0 {
		c.Industry.Levels = []string{"L1", "L2", "L3"}
	}
	if len(c.Industry.Sources) == 0 {
		c.Industry.Sources = []string{"SW"}
	}
	if c.Source.Client == "" {
		c.Source.Client = "aktools"
	}
	if len(c.Source.RosterBoards) == 0 {
		c.Source.RosterBoards = []string{"sh_main", "sh_star", "sz_a", "bj"}
	}
	if c.ProgressEvery <= 0 {
		c.ProgressEvery = 100
	}
}

func (c *BizConfig) Validate() error {
	if _, err := model.NewCalendar(c.Timezone); err != nil {
		return err
	}
	for _, s := range c.Industry.Sources {
		if !strings.EqualFold(s, model.SourceSW) {
			return fmt.Errorf("unsupported industry source %q", s)
		}
	}
	return nil
}
