package config

import (
	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/infra/gormdb"
	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/infra/httpclient"
	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/infra/httpserver"
	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/infra/logging"
	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/infra/metrics"
	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/infra/redis"
	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/infra/telemetry"
)

// AppConfig 应用程序配置结构
type AppConfig struct {
	APPInfo    *APPInfo                      `yaml:"app_info" json:"app_info"`
	Logging    *logging.LoggingConfig        `yaml:"logging" json:"logging"`
	Gorm       *gormdb.Config                `yaml:"gorm" json:"gorm"`
	Redis      *redis.Config                 `yaml:"redis" json:"redis"`
	HTTPClient *httpclient.HTTPClientsConfig `yaml:"http_clients" json:"http_clients"`
	HTTPServer *httpserver.HTTPServerConfig  `yaml:"http_server" json:"http_server"`
	Prometheus *metrics.Config               `yaml:"prometheus" json:"prometheus"`
	Telemetry  *telemetry.Config             `yaml:"telemetry" json:"telemetry"`

	// BizConfig 业务配置, 加载后指向业务方传入的指针
	BizConfig any `yaml:"biz_config" json:"biz_config"`
}

type APPInfo struct {
	APPName string `yaml:"app_name" json:"app_name"`
	ENV     string `yaml:"env" json:"env"`
}
