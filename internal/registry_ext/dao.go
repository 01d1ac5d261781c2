package registry_ext

import (
	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/dao"
	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/infra/config"
	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/infra/consts"
	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/infra/core"
	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/infra/gormdb"
	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/infra/registry"
	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/model"
)

func init() {
	registry.RegisterAuto(func(cfg *config.AppConfig, c *core.Container) (bool, core.Component, error) {
		biz, err := bizConfig(cfg)
		if err != nil {
			return false, nil, err
		}
		// models are auto-migrated only on datasources with auto_migrate on (sqlite dev setups)
		if gc, err := core.ResolveAs[*gormdb.GormComponent](c, consts.COMPONENT_GORM); err == nil {
			gc.RegisterModels(&model.StockBasic{}, &model.IndustryMember{})
		}
		return true, dao.NewStockBasicDao(biz.Datasource), nil
	})
	registry.RegisterAuto(func(cfg *config.AppConfig, c *core.Container) (bool, core.Component, error) {
		biz, err := bizConfig(cfg)
		if err != nil {
			return false, nil, err
		}
		return true, dao.NewIndustryDao(biz.Datasource), nil
	})
}
