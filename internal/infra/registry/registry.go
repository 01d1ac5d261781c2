package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/infra/config"
	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/infra/core"
)

// BuilderFunc returns (enabled, component, error). enabled=false skips registration.
type BuilderFunc func(cfg *config.AppConfig, c *core.Container) (bool, core.Component, error)

// Builder holds metadata.
type Builder struct {
	Name string
	Fn   BuilderFunc
	Auto bool // name inferred from the built component
}

var (
	mu       sync.Mutex
	builders []*Builder
)

func findBuilder(name string) *Builder {
	for _, b := range builders {
		if b.Name == name {
			return b
		}
	}
	return nil
}

// Register registers a component builder with an explicit name.
func Register(name string, fn BuilderFunc) {
	if name == "" {
		panic("registry: empty name in Register")
	}
	mu.Lock()
	defer mu.Unlock()
	if findBuilder(name) != nil {
		panic("registry: duplicate builder name " + name)
	}
	builders = append(builders, &Builder{Name: name, Fn: fn})
}

// RegisterAuto registers a builder whose component name comes from Name().
func RegisterAuto(fn BuilderFunc) {
	mu.Lock()
	defer mu.Unlock()
	builders = append(builders, &Builder{Auto: true, Fn: fn})
}

// BuildAndRegisterAll builds every enabled component, registers it in the container,
// injects `infra:"dep:..."` fields and checks that required deps exist.
func BuildAndRegisterAll(cfg *config.AppConfig, c *core.Container) error {
	mu.Lock()
	list := make([]*Builder, len(builders))
	copy(list, builders)
	mu.Unlock()

	for _, b := range list {
		enabled, comp, err := b.Fn(cfg, c)
		if err != nil {
			return fmt.Errorf("build %s failed: %w", b.Name, err)
		}
		if !enabled || comp == nil {
			continue
		}
		name := b.Name
		if b.Auto {
			name = comp.Name()
		}
		if name == "" {
			return fmt.Errorf("auto builder produced unnamed component")
		}
		if err := c.Register(name, comp); err != nil {
			return fmt.Errorf("register %s failed: %w", name, err)
		}
	}
	if err := InjectAll(c); err != nil {
		return err
	}
	_, err := c.Ordered()
	return err
}

// Names lists the registered builder names (auto builders report "").
func Names() []string {
	mu.Lock()
	defer mu.Unlock()
	out := make([]string, 0, len(builders))
	for _, b := range builders {
		out = append(out, b.Name)
	}
	sort.Strings(out)
	return out
}
