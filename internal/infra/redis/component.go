package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/infra/consts"
	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/infra/core"
	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/infra/logging"
)

const pingTimeout = 3 * time.Second

// RedisComponent owns the shared redis client. Consumers carve key spaces out of it with Namespace.
type RedisComponent struct {
	*core.BaseComponent
	cfg    *Config
	client redis.UniversalClient
}

func NewRedisComponent(cfg *Config) *RedisComponent {
	return &RedisComponent{
		BaseComponent: core.NewBaseComponent(consts.COMPONENT_REDIS, consts.COMPONENT_LOGGING),
		cfg:           cfg,
	}
}

func (rc *RedisComponent) Start(ctx context.Context) error {
	if err := rc.BaseComponent.Start(ctx); err != nil {
		return err
	}
	if rc.cfg == nil {
		return errors.New("redis: config nil")
	}
	if err := rc.cfg.validate(); err != nil {
		return err
	}
	client := redis.NewUniversalClient(rc.cfg.options())
	if err := ping(ctx, client); err != nil {
		_ = client.Close()
		return err
	}
	rc.client = client
	logging.Info(ctx, "redis component started",
		zap.String("mode", rc.cfg.mode()),
		zap.Strings("addrs", rc.cfg.Addresses),
		zap.String("key_prefix", rc.cfg.prefix()),
	)
	return nil
}

func (rc *RedisComponent) Stop(ctx context.Context) error {
	defer func() { _ = rc.BaseComponent.Stop(ctx) }()
	if rc.client == nil {
		return nil
	}
	err := rc.client.Close()
	rc.client = nil
	return err
}

func (rc *RedisComponent) HealthCheck() error {
	if err := rc.BaseComponent.HealthCheck(); err != nil {
		return err
	}
	if rc.client == nil {
		return errors.New("redis: client not started")
	}
	return ping(context.Background(), rc.client)
}

func (rc *RedisComponent) Client() redis.UniversalClient {
	return rc.client
}

// Namespace returns the key prefix reserved for sub, e.g. "norns:aktools:".
func (rc *RedisComponent) Namespace(sub string) string {
	var cfg Config
	if rc.cfg != nil {
		cfg = *rc.cfg
	}
	return cfg.prefix() + sub + ":"
}

func ping(ctx context.Context, client redis.UniversalClient) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: ping: %w", err)
	}
	return nil
}
