package registry_ext

import (
	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/infra/config"
	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/infra/core"
	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/infra/registry"
	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/model"
	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/service"
	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/source"
)

func init() {
	registry.RegisterAuto(func(cfg *config.AppConfig, c *core.Container) (bool, core.Component, error) {
		biz, err := bizConfig(cfg)
		if err != nil {
			return false, nil, err
		}
		return true, source.NewAKTools(biz.Source.Client, biz.Source.RosterBoards, biz.Source.CacheTTL), nil
	})
	registry.RegisterAuto(func(cfg *config.AppConfig, c *core.Container) (bool, core.Component, error) {
		biz, err := bizConfig(cfg)
		if err != nil {
			return false, nil, err
		}
		cal, err := model.NewCalendar(biz.Timezone)
		if err != nil {
			return false, nil, err
		}
		return true, service.NewSnapshotStoreService(cal), nil
	})
	registry.RegisterAuto(func(cfg *config.AppConfig, c *core.Container) (bool, core.Component, error) {
		biz, err := bizConfig(cfg)
		if err != nil {
			return false, nil, err
		}
		return true, service.NewSnapshotBuilderService(biz), nil
	})
}
