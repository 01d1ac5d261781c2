package redis

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	ModeSingle   = "single"
	ModeCluster  = "cluster"
	ModeSentinel = "sentinel"

	defaultKeyPrefix = "norns:"
)

// Config describes the redis deployment backing the provider response cache.
type Config struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Mode    string `yaml:"mode" json:"mode"` // single|cluster|sentinel

	Addresses      []string `yaml:"addresses" json:"addresses"`
	Username       string   `yaml:"username" json:"username"`
	Password       string   `yaml:"password" json:"password"`
	DB             int      `yaml:"db" json:"db"`
	SentinelMaster string   `yaml:"sentinel_master" json:"sentinel_master"`

	// KeyPrefix is prepended to every namespace handed out; several deployments may share a db.
	KeyPrefix string `yaml:"key_prefix" json:"key_prefix"`

	PoolSize     int           `yaml:"pool_size" json:"pool_size"`
	DialTimeout  time.Duration `yaml:"dial_timeout" json:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`
}

func (c *Config) mode() string {
	if c.Mode == "" {
		return ModeSingle
	}
	return strings.ToLower(c.Mode)
}

func (c *Config) prefix() string {
	if c.KeyPrefix == "" {
		return defaultKeyPrefix
	}
	return strings.TrimSuffix(c.KeyPrefix, ":") + ":"
}

func (c *Config) validate() error {
	if len(c.Addresses) == 0 {
		return errors.New("redis: addresses empty")
	}
	switch c.mode() {
	case ModeSingle:
		if len(c.Addresses) > 1 {
			return fmt.Errorf("redis: single mode takes one address, got %d", len(c.Addresses))
		}
	case ModeCluster:
		if len(c.Addresses) < 2 {
			return errors.New("redis: cluster mode needs at least two seed addresses")
		}
	case ModeSentinel:
		if c.SentinelMaster == "" {
			return errors.New("redis: sentinel mode requires sentinel_master")
		}
	default:
		return fmt.Errorf("redis: unknown mode %q", c.Mode)
	}
	return nil
}

// options relies on go-redis picking a cluster client for several addresses without a master name.
func (c *Config) options() *redis.UniversalOptions {
	opts := &redis.UniversalOptions{
		Addrs:        c.Addresses,
		Username:     c.Username,
		Password:     c.Password,
		PoolSize:     c.PoolSize,
		DialTimeout:  c.DialTimeout,
		ReadTimeout:  c.ReadTimeout,
		WriteTimeout: c.WriteTimeout,
	}
	switch c.mode() {
	case ModeCluster:
	case ModeSentinel:
		opts.MasterName = c.SentinelMaster
		opts.DB = c.DB
	default:
		opts.DB = c.DB
	}
	return opts
}
