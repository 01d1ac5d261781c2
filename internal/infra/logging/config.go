package logging

// LoggingConfig 日志配置
type LoggingConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Level   string `yaml:"level" json:"level"`   // debug|info|warn|error
	Format  string `yaml:"format" json:"format"` // json|console
	Output  string `yaml:"output" json:"output"` // stdout|stderr|file|<path>

	FileConfig   *FileConfig   `yaml:"file_config,omitempty" json:"file_config,omitempty"`
	RotateConfig *RotateConfig `yaml:"rotate_config,omitempty" json:"rotate_config,omitempty"`
}

// FileConfig 文件输出配置
type FileConfig struct {
	Dir      string `yaml:"dir" json:"dir"`
	Filename string `yaml:"filename" json:"filename"` // 不含 .log 后缀
}

// RotateConfig is handed to lumberjack as-is.
type RotateConfig struct {
	Enabled    bool `yaml:"enabled" json:"enabled"`
	MaxSizeMB  int  `yaml:"max_size_mb" json:"max_size_mb"`
	MaxAgeDays int  `yaml:"max_age_days" json:"max_age_days"`
	MaxBackups int  `yaml:"max_backups" json:"max_backups"`
	Compress   bool `yaml:"compress" json:"compress"`
}

func (c *LoggingConfig) applyDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "json"
	}
	if c.Output == "" {
		c.Output = "stdout"
	}
	if c.Output == "file" && c.FileConfig == nil {
		c.FileConfig = &FileConfig{Dir: "./logs", Filename: "norns"}
	}
	if rc := c.RotateConfig; rc != nil && rc.Enabled {
		if rc.MaxSizeMB <= 0 {
			rc.MaxSizeMB = 100
		}
		if rc.MaxAgeDays <= 0 {
			rc.MaxAgeDays = 7
		}
	}
}
