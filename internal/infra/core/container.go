package core

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Container 按名称保存组件实例.
type Container struct {
	mu         sync.RWMutex
	components map[string]Component
}

func NewContainer() *Container {
	return &Container{components: make(map[string]Component)}
}

func (c *Container) Register(name string, comp Component) error {
	if name == "" || comp == nil {
		return fmt.Errorf("register: empty name or nil component")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.components[name]; exists {
		return fmt.Errorf("component %s already registered", name)
	}
	c.components[name] = comp
	return nil
}

func (c *Container) Resolve(name string) (Component, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	comp, ok := c.components[name]
	if !ok {
		return nil, fmt.Errorf("component %s not found", name)
	}
	return comp, nil
}

// ResolveAs resolves a component and asserts it to T.
func ResolveAs[T any](c *Container, name string) (T, error) {
	var zero T
	comp, err := c.Resolve(name)
	if err != nil {
		return zero, err
	}
	typed, ok := comp.(T)
	if !ok {
		return zero, fmt.Errorf("component %s is %T, not %T", name, comp, zero)
	}
	return typed, nil
}

// Replace swaps a registered, inactive component. Used by tests to plug in fakes.
func (c *Container) Replace(name string, comp Component) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	existing, ok := c.components[name]
	if !ok {
		return fmt.Errorf("component %s not registered", name)
	}
	if existing.IsActive() {
		return fmt.Errorf("component %s is active; cannot replace", name)
	}
	c.components[name] = comp
	return nil
}

func (c *Container) ListRegistered() map[string]Component {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]Component, len(c.components))
	for k, v := range c.components {
		out[k] = v
	}
	return out
}

// Ordered returns components in dependency order (dependencies first).
// Missing dependencies and cycles are reported as errors.
func (c *Container) Ordered() ([]Component, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var missing []string
	for name, comp := range c.components {
		for _, dep := range comp.Dependencies() {
			if _, ok := c.components[dep]; !ok {
				missing = append(missing, name+" -> "+dep)
			}
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("missing component dependencies: %s", strings.Join(missing, "; "))
	}

	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(c.components))
	out := make([]Component, 0, len(c.components))

	var visit func(name string, path []string) error
	visit = func(name string, path []string) error {
		switch state[name] {
		case visiting:
			return fmt.Errorf("circular dependency: %s", strings.Join(append(path, name), " -> "))
		case done:
			return nil
		}
		state[name] = visiting
		deps := c.components[name].Dependencies()
		sort.Strings(deps)
		for _, dep := range deps {
			if err := visit(dep, append(path, name)); err != nil {
				return err
			}
		}
		state[name] = done
		out = append(out, c.components[name])
		return nil
	}

	names := make([]string, 0, len(c.components))
	for name := range c.components {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := visit(name, nil); err != nil {
			return nil, err
		}
	}
	return out, nil
}
