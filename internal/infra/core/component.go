package core

import (
	"context"
	"fmt"
	"sync"
)

// Component 组件生命周期接口. 容器按 Dependencies() 做拓扑排序后依次 Start, 逆序 Stop.
type Component interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	HealthCheck() error
	Dependencies() []string
	IsActive() bool
}

// BaseComponent 提供 Component 的默认实现, 业务组件通过嵌入 *BaseComponent 复用.
type BaseComponent struct {
	name string

	mu     sync.RWMutex
	active bool
	deps   []string
}

func NewBaseComponent(name string, deps ...string) *BaseComponent {
	return &BaseComponent{name: name, deps: deps}
}

func (c *BaseComponent) Name() string { return c.name }

func (c *BaseComponent) Dependencies() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.deps))
	copy(out, c.deps)
	return out
}

// AddDependencies appends start-order constraints. Must run before LifecycleManager.StartAll;
// the registry calls it for every `infra:"dep:..."` field it injects.
func (c *BaseComponent) AddDependencies(deps ...string) {
	if len(deps) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, d := range deps {
		if d == "" || d == c.name || containsString(c.deps, d) {
			continue
		}
		c.deps = append(c.deps, d)
	}
}

func (c *BaseComponent) IsActive() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.active
}

func (c *BaseComponent) Start(ctx context.Context) error {
	c.mu.Lock()
	c.active = true
	c.mu.Unlock()
	return nil
}

func (c *BaseComponent) Stop(ctx context.Context) error {
	c.mu.Lock()
	c.active = false
	c.mu.Unlock()
	return nil
}

func (c *BaseComponent) HealthCheck() error {
	if !c.IsActive() {
		return fmt.Errorf("component %s is not active", c.name)
	}
	return nil
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
