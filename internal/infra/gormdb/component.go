package gormdb

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/infra/consts"
	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/infra/core"
	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/infra/logging"
)

// GormComponent manages one *gorm.DB per named datasource.
type GormComponent struct {
	*core.BaseComponent
	cfg    *Config
	models []interface{}
	dbs    map[string]*gorm.DB
	mutex  sync.RWMutex
	log    logger.Interface
}

func NewGormComponent(cfg *Config) *GormComponent {
	gc := &GormComponent{
		BaseComponent: core.NewBaseComponent(consts.COMPONENT_GORM, consts.COMPONENT_LOGGING),
		cfg:           cfg,
		dbs:           make(map[string]*gorm.DB),
	}
	gc.log = newGormLogger(cfg)
	return gc
}

// RegisterModels sets the models handed to AutoMigrate on datasources with auto_migrate on.
func (c *GormComponent) RegisterModels(models ...interface{}) {
	c.models = append(c.models, models...)
}

func (c *GormComponent) Start(ctx context.Context) error {
	if err := c.BaseComponent.Start(ctx); err != nil {
		return err
	}
	if c.cfg == nil || !c.cfg.Enabled {
		return fmt.Errorf("gorm component disabled or nil config")
	}
	if len(c.cfg.DataSources) == 0 {
		return fmt.Errorf("gorm no data_sources configured")
	}

	for name, ds := range c.cfg.DataSources {
		if ds == nil {
			return fmt.Errorf("datasource %s config is nil", name)
		}
		gormDB, err := c.open(ctx, name, ds)
		if err != nil {
			return err
		}
		c.mutex.Lock()
		c.dbs[name] = gormDB
		c.mutex.Unlock()
		logging.Infof(ctx, "[gorm] datasource %s (%s) initialized", name, ds.driver())
	}
	logging.Infof(ctx, "[gorm] started. data sources=%v", c.listNames())
	return nil
}

func (c *GormComponent) open(ctx context.Context, name string, ds *DataSourceConfig) (*gorm.DB, error) {
	dial, err := dialector(ds)
	if err != nil {
		return nil, fmt.Errorf("build dialector for %s failed: %w", name, err)
	}
	gormDB, err := gorm.Open(dial, &gorm.Config{
		Logger:                                   c.log,
		SkipDefaultTransaction:                   ds.SkipDefaultTransaction,
		PrepareStmt:                              ds.PrepareStmt,
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
	})
	if err != nil {
		return nil, fmt.Errorf("open gorm db %s failed: %w", name, err)
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		return nil, fmt.Errorf("get underlying sql.DB for %s failed: %w", name, err)
	}

	if ds.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(ds.MaxOpenConns)
	} else if ds.driver() == DriverSQLite {
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(50)
	}
	if ds.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(ds.MaxIdleConns)
	} else {
		sqlDB.SetMaxIdleConns(10)
	}
	if ds.ConnMaxLife > 0 {
		sqlDB.SetConnMaxLifetime(ds.ConnMaxLife)
	} else {
		sqlDB.SetConnMaxLifetime(60 * time.Minute)
	}
	if ds.ConnMaxIdle > 0 {
		sqlDB.SetConnMaxIdleTime(ds.ConnMaxIdle)
	}

	if ds.PingOnStart {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := sqlDB.PingContext(pingCtx)
		cancel()
		if err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("ping gorm db %s failed: %w", name, err)
		}
	}
	if ds.MigrateEnabled && ds.MigrateDir != "" {
		if err := RunMigrations(ctx, sqlDB, ds.MigrateDir); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("migrate %s failed: %w", name, err)
		}
		logging.Infof(ctx, "[gorm] datasource %s migrations applied from %s", name, ds.MigrateDir)
	}
	if ds.AutoMigrate && len(c.models) > 0 {
		if err := gormDB.WithContext(ctx).AutoMigrate(c.models...); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("auto migrate %s failed: %w", name, err)
		}
	}
	return gormDB, nil
}

func (c *GormComponent) Stop(ctx context.Context) error {
	defer func() { _ = c.BaseComponent.Stop(ctx) }()
	c.mutex.Lock()
	defer c.mutex.Unlock()
	for name, gdb := range c.dbs {
		if gdb == nil {
			continue
		}
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
		logging.Infof(ctx, "[gorm] datasource %s closed", name)
	}
	c.dbs = make(map[string]*gorm.DB)
	return nil
}

func (c *GormComponent) HealthCheck() error {
	if err := c.BaseComponent.HealthCheck(); err != nil {
		return err
	}
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	for name, gdb := range c.dbs {
		sqlDB, err := gdb.DB()
		if err != nil {
			return fmt.Errorf("datasource %s get sql.DB failed: %w", name, err)
		}
		if err := sqlDB.Ping(); err != nil {
			return fmt.Errorf("datasource %s ping failed: %w", name, err)
		}
	}
	return nil
}

func (c *GormComponent) GetDB(name string) (*gorm.DB, error) {
	c.mutex.RLock()
	db, ok := c.dbs[name]
	c.mutex.RUnlock()
	if !ok {
		return nil, fmt.Errorf("gorm datasource %s not found", name)
	}
	return db, nil
}

func (c *GormComponent) listNames() []string {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	names := make([]string, 0, len(c.dbs))
	for k := range c.dbs {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
