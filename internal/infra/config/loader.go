package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/infra/consts"
	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/infra/gormdb"
)

// Loader 配置加载器
type Loader struct {
	env        string
	configPath string
	// bizConfig: 业务方传入的指针, 用于填充 biz_config 小节
	bizConfig any
}

func NewLoader(env string, configPath string) *Loader {
	if env == "" {
		env = consts.ENV_DEVELOPMENT
	}
	if configPath == "" {
		configPath = consts.DEFAULT_CONFIG_PATH
	}
	return &Loader{env: env, configPath: configPath}
}

// SetBizConfig 注入业务配置结构指针 (例如 &BizConfig{}), 需要在 Load 之前调用.
func (l *Loader) SetBizConfig(b any) {
	if b == nil {
		return
	}
	if reflect.TypeOf(b).Kind() != reflect.Ptr {
		panic("SetBizConfig expects a pointer, e.g. &MyBizConfig{}")
	}
	l.bizConfig = b
}

// Load 先整体解析 AppConfig, 再把 biz_config 子树二次反序列化到业务指针 (保留默认值).
func (l *Loader) Load() (*AppConfig, error) {
	if l.configPath == "" {
		return nil, fmt.Errorf("config file path cannot be empty")
	}
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	ext := strings.ToLower(filepath.Ext(l.configPath))
	if err := unmarshal(ext, data, &cfg); err != nil {
		return nil, err
	}

	if l.bizConfig != nil {
		if cfg.BizConfig != nil {
			if err := decodeBizSection(ext, cfg.BizConfig, l.bizConfig); err != nil {
				return nil, fmt.Errorf("decode biz_config failed: %w", err)
			}
		}
		cfg.BizConfig = l.bizConfig
	}

	l.mergeEnvVars(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func unmarshal(ext string, data []byte, out any) error {
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return fmt.Errorf("unsupported config file format: %s", ext)
	}
	return nil
}

func decodeBizSection(ext string, raw any, target any) error {
	var (
		b   []byte
		err error
	)
	switch ext {
	case ".json":
		b, err = json.Marshal(raw)
	default:
		b, err = yaml.Marshal(raw)
	}
	if err != nil {
		return fmt.Errorf("re-marshal biz_config failed: %w", err)
	}
	return unmarshal(ext, b, target)
}

// mergeEnvVars: NORNS_ENV 覆盖 app_info.env, NORNS_DSN 覆盖默认数据源 DSN.
func (l *Loader) mergeEnvVars(cfg *AppConfig) {
	if cfg.APPInfo == nil {
		cfg.APPInfo = &APPInfo{}
	}
	if v := os.Getenv(consts.ENV_KEY_ENV); v != "" {
		cfg.APPInfo.ENV = v
	} else if cfg.APPInfo.ENV == "" {
		cfg.APPInfo.ENV = l.env
	}
	if dsn := os.Getenv(consts.ENV_KEY_DSN); dsn != "" && cfg.Gorm != nil {
		if cfg.Gorm.DataSources == nil {
			cfg.Gorm.DataSources = map[string]*gormdb.DataSourceConfig{}
		}
		ds := cfg.Gorm.DataSources[consts.DEFAULT_DATASOURCE]
		if ds == nil {
			ds = &gormdb.DataSourceConfig{}
			cfg.Gorm.DataSources[consts.DEFAULT_DATASOURCE] = ds
		}
		ds.DSN = dsn
	}
	if cfg.HTTPServer != nil && cfg.HTTPServer.ServiceName == "" {
		cfg.HTTPServer.ServiceName = cfg.APPInfo.APPName
	}
	if cfg.Telemetry != nil && cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.APPInfo.APPName
	}
	if cfg.Telemetry != nil && cfg.Telemetry.Environment == "" {
		cfg.Telemetry.Environment = cfg.APPInfo.ENV
	}
}

func validate(cfg *AppConfig) error {
	if cfg.APPInfo.APPName == "" {
		return fmt.Errorf("app_info.app_name is required")
	}
	switch cfg.APPInfo.ENV {
	case consts.ENV_DEVELOPMENT, consts.ENV_PRODUCTION, consts.ENV_TEST:
	default:
		return fmt.Errorf("unknown env %q", cfg.APPInfo.ENV)
	}
	return nil
}
