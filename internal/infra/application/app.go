package application

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/infra/config"
	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/infra/core"
	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/infra/registry"
)

type App struct {
	container        *core.Container
	lifecycleManager *core.LifecycleManager
	loader           *config.Loader
	cfg              *config.AppConfig

	bootOnce sync.Once
	bootErr  error

	shutdownTimeout time.Duration
}

// NewApp biz 为业务配置指针, 会被 biz_config 小节填充.
func NewApp(env, configPath string, biz any) *App {
	abs := configPath
	if p, err := filepath.Abs(configPath); err == nil {
		abs = p
	}
	loader := config.NewLoader(env, abs)
	loader.SetBizConfig(biz)
	container := core.NewContainer()
	return &App{
		container:        container,
		lifecycleManager: core.NewLifecycleManager(container),
		loader:           loader,
		shutdownTimeout:  30 * time.Second,
	}
}

func (app *App) SetShutdownTimeout(d time.Duration) { app.shutdownTimeout = d }

// Boot loads config, builds every registered component and wires dependencies. Idempotent.
func (app *App) Boot() error {
	app.bootOnce.Do(func() {
		cfg, err := app.loader.Load()
		if err != nil {
			app.bootErr = fmt.Errorf("load config failed: %w", err)
			return
		}
		app.cfg = cfg
		if err := registry.BuildAndRegisterAll(cfg, app.container); err != nil {
			app.bootErr = fmt.Errorf("register components failed: %w", err)
		}
	})
	return app.bootErr
}

func (app *App) Container() *core.Container { return app.container }

func (app *App) GetConfig() *config.AppConfig { return app.cfg }

// Run blocks until SIGINT/SIGTERM, then shuts down gracefully.
func (app *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return app.RunWithContext(ctx)
}

// RunWithContext starts components and blocks until ctx is done.
func (app *App) RunWithContext(ctx context.Context) error {
	if err := app.Boot(); err != nil {
		return err
	}
	if err := app.lifecycleManager.StartAll(ctx); err != nil {
		return err
	}
	log.Println("application started")
	<-ctx.Done()
	app.Shutdown()
	return nil
}

// RunOnce starts components, runs fn and shuts down. Used for one-shot CLI builds.
func (app *App) RunOnce(ctx context.Context, fn func(ctx context.Context, c *core.Container) error) error {
	if err := app.Boot(); err != nil {
		return err
	}
	if err := app.lifecycleManager.StartAll(ctx); err != nil {
		return err
	}
	defer app.Shutdown()
	return fn(ctx, app.container)
}

func (app *App) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), app.shutdownTimeout)
	defer cancel()
	app.lifecycleManager.StopAll(ctx)
}
