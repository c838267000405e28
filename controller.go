package main

import (
	"fmt"
	"sync"

	"sonodict/config"
	"sonodict/ipc"
	"sonodict/log"
)

// appController owns the worker lifecycle on behalf of whichever UI is
// driving it. All methods are safe to call from UI callbacks.
type appController struct {
	cfg *config.Config

	mu  sync.Mutex
	sup *Supervisor
}

func newAppController(cfg *config.Config) *appController {
	return &appController{cfg: cfg}
}

// Start spawns a worker. In safe mode no process is spawned; the UI runs
// alone so a broken native stack can still be diagnosed.
func (c *appController) Start() error {
	if c.cfg.SafeMode {
		return fmt.Errorf("safe mode: worker disabled")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sup != nil && c.sup.Running() {
		return fmt.Errorf("already dictating")
	}
	if c.sup != nil {
		c.sup.Reset()
	}
	sup, err := NewSupervisor(c.cfg)
	if err != nil {
		return err
	}
	if err := sup.Start(); err != nil {
		return err
	}
	c.sup = sup
	return nil
}

func (c *appController) Stop() {
	c.mu.Lock()
	sup := c.sup
	c.mu.Unlock()
	if sup != nil {
		sup.Stop()
	}
}

// Toggle starts dictation when idle and stops it when running.
func (c *appController) Toggle() error {
	if c.Running() {
		c.Stop()
		return nil
	}
	return c.Start()
}

func (c *appController) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sup != nil && c.sup.Running()
}

func (c *appController) Messages() <-chan ipc.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sup == nil {
		return nil
	}
	return c.sup.Messages()
}

func (c *appController) Exited() <-chan ExitEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sup == nil {
		return nil
	}
	return c.sup.Exited()
}

// Shutdown kills any running worker. Called once on controller exit.
func (c *appController) Shutdown() {
	c.mu.Lock()
	sup := c.sup
	c.mu.Unlock()
	if sup != nil && sup.Running() {
		log.Info("shutdown with worker running, killing")
		sup.Kill()
	}
}
