package registry_ext

import (
	bizConsts "github.com/grand-thief-cash/chaos/app/projects/norns/internal/consts"
	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/controller"
	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/infra/config"
	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/infra/consts"
	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/infra/core"
	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/infra/httpserver"
	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/infra/registry"
)

func init() {
	registry.RegisterAuto(func(cfg *config.AppConfig, c *core.Container) (bool, core.Component, error) {
		if !serving(cfg) {
			return false, nil, nil
		}
		return true, controller.NewSnapshotController(), nil
	})
	registry.RegisterAuto(func(cfg *config.AppConfig, c *core.Container) (bool, core.Component, error) {
		if !serving(cfg) {
			return false, nil, nil
		}
		// routes resolve the controllers, so the server has to start after them
		if hs, err := core.ResolveAs[*httpserver.HTTPServerComponent](c, consts.COMPONENT_HTTP_SERVER); err == nil {
			hs.AddDependencies(bizConsts.COMP_CTRL_SNAPSHOT, bizConsts.COMP_CTRL_QUERY)
		}
		return true, controller.NewQueryController(), nil
	})
}

// controllers exist only when the http server does
func serving(cfg *config.AppConfig) bool {
	return cfg.HTTPServer != nil && cfg.HTTPServer.Enabled
}
