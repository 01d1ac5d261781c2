package registry

import (
	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/infra/config"
	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/infra/consts"
	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/infra/core"
	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/infra/gormdb"
	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/infra/httpclient"
	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/infra/httpserver"
	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/infra/logging"
	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/infra/metrics"
	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/infra/redis"
	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/infra/telemetry"
)

func init() {
	Register(consts.COMPONENT_LOGGING, func(cfg *config.AppConfig, c *core.Container) (bool, core.Component, error) {
		if cfg.Logging == nil || !cfg.Logging.Enabled {
			return false, nil, nil
		}
		return true, logging.NewLoggerComponent(cfg.Logging), nil
	})
	Register(consts.COMPONENT_TELEMETRY, func(cfg *config.AppConfig, c *core.Container) (bool, core.Component, error) {
		if cfg.Telemetry == nil || !cfg.Telemetry.Enabled {
			return false, nil, nil
		}
		return true, telemetry.NewTelemetryComponent(cfg.Telemetry), nil
	})
	Register(consts.COMPONENT_PROMETHEUS, func(cfg *config.AppConfig, c *core.Container) (bool, core.Component, error) {
		if cfg.Prometheus == nil || !cfg.Prometheus.Enabled {
			return false, nil, nil
		}
		return true, metrics.NewComponent(cfg.Prometheus), nil
	})
	Register(consts.COMPONENT_GORM, func(cfg *config.AppConfig, c *core.Container) (bool, core.Component, error) {
		if cfg.Gorm == nil || !cfg.Gorm.Enabled {
			return false, nil, nil
		}
		return true, gormdb.NewGormComponent(cfg.Gorm), nil
	})
	Register(consts.COMPONENT_REDIS, func(cfg *config.AppConfig, c *core.Container) (bool, core.Component, error) {
		if cfg.Redis == nil || !cfg.Redis.Enabled {
			return false, nil, nil
		}
		return true, redis.NewRedisComponent(cfg.Redis), nil
	})
	Register(consts.COMPONENT_HTTP_CLIENTS, func(cfg *config.AppConfig, c *core.Container) (bool, core.Component, error) {
		if cfg.HTTPClient == nil || !cfg.HTTPClient.Enabled {
			return false, nil, nil
		}
		return true, httpclient.NewHTTPClientsComponent(cfg.HTTPClient), nil
	})
	Register(consts.COMPONENT_HTTP_SERVER, func(cfg *config.AppConfig, c *core.Container) (bool, core.Component, error) {
		if cfg.HTTPServer == nil || !cfg.HTTPServer.Enabled {
			return false, nil, nil
		}
		return true, httpserver.NewHTTPServerComponent(cfg.HTTPServer, c), nil
	})
}
