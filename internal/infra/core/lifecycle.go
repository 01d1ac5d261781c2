package core

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

// LifecycleManager 负责按依赖顺序启动组件, 并在退出时逆序停止.
type LifecycleManager struct {
	container *Container
	timeout   time.Duration

	mu      sync.Mutex
	started []Component
	stopped bool
}

func NewLifecycleManager(c *Container) *LifecycleManager {
	return &LifecycleManager{container: c, timeout: 30 * time.Second}
}

// SetTimeout bounds every single Start/Stop call.
func (lm *LifecycleManager) SetTimeout(d time.Duration) {
	if d > 0 {
		lm.timeout = d
	}
}

// StartAll starts every registered component. On the first failure the components that
// already started are stopped again and the error is returned.
func (lm *LifecycleManager) StartAll(ctx context.Context) error {
	ordered, err := lm.container.Ordered()
	if err != nil {
		return fmt.Errorf("order components: %w", err)
	}
	for _, comp := range ordered {
		startCtx, cancel := context.WithTimeout(ctx, lm.timeout)
		err := comp.Start(startCtx)
		cancel()
		if err != nil {
			log.Printf("start component %s failed: %v", comp.Name(), err)
			lm.StopAll(context.Background())
			return fmt.Errorf("start component %s: %w", comp.Name(), err)
		}
		lm.mu.Lock()
		lm.started = append(lm.started, comp)
		lm.mu.Unlock()
		log.Printf("component %s started", comp.Name())
	}
	return nil
}

// StopAll stops started components in reverse start order. Safe to call more than once.
func (lm *LifecycleManager) StopAll(ctx context.Context) {
	lm.mu.Lock()
	if lm.stopped {
		lm.mu.Unlock()
		return
	}
	lm.stopped = true
	started := lm.started
	lm.started = nil
	lm.mu.Unlock()

	for i := len(started) - 1; i >= 0; i-- {
		comp := started[i]
		if !comp.IsActive() {
			continue
		}
		stopCtx, cancel := context.WithTimeout(ctx, lm.timeout)
		if err := comp.Stop(stopCtx); err != nil {
			log.Printf("stop component %s failed: %v", comp.Name(), err)
		}
		cancel()
	}
	log.Println("shutdown sequence completed")
}
