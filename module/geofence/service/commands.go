package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/nandanugg/geonotify/module/geofence/domain"
)

// Commands is the host bridge's view of the manager. Every command runs on
// the worker goroutine and reports through a Future, so callers never block
// on storage or the platform.
type Commands struct {
	manager *Manager
	worker  *Worker
	logger  *zap.Logger
}

func NewCommands(manager *Manager, worker *Worker, logger *zap.Logger) *Commands {
	return &Commands{manager: manager, worker: worker, logger: logger.Named("commands")}
}

// Initialize requests authorization and returns the requirement problems
// still outstanding. Problems are warnings, not failures.
func (c *Commands) Initialize() *Future[[]error] {
	return Submit(c.worker, func(context.Context) ([]error, error) {
		c.logger.Info("initialize")
		return c.manager.Initialize(), nil
	})
}

func (c *Commands) DeviceReady() *Future[struct{}] {
	return Submit(c.worker, func(context.Context) (struct{}, error) {
		c.logger.Info("device ready", zap.Stringer("app_state", c.manager.AppState()))
		return struct{}{}, nil
	})
}

func (c *Commands) Ping() *Future[struct{}] {
	return Submit(c.worker, func(context.Context) (struct{}, error) {
		c.logger.Debug("ping")
		return struct{}{}, nil
	})
}

// AddOrUpdate validates every definition before touching the store, then
// applies them in order and stops at the first failure.
func (c *Commands) AddOrUpdate(defs []domain.Definition) *Future[struct{}] {
	return Submit(c.worker, func(ctx context.Context) (struct{}, error) {
		for i, def := range defs {
			if err := def.Validate(); err != nil {
				return struct{}{}, fmt.Errorf("geofence at index %d: %w", i, err)
			}
		}
		for _, def := range defs {
			if err := c.manager.AddOrUpdate(ctx, def); err != nil {
				return struct{}{}, err
			}
		}
		return struct{}{}, nil
	})
}

func (c *Commands) GetWatched() *Future[[]domain.Definition] {
	return Submit(c.worker, c.manager.GetAll)
}

func (c *Commands) Remove(ids []string) *Future[struct{}] {
	return Submit(c.worker, func(ctx context.Context) (struct{}, error) {
		for _, id := range ids {
			if err := c.manager.Remove(ctx, id); err != nil {
				return struct{}{}, err
			}
		}
		return struct{}{}, nil
	})
}

func (c *Commands) RemoveAll() *Future[struct{}] {
	return Submit(c.worker, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.manager.Clear(ctx)
	})
}

// SetAppState takes effect immediately; transitions read it at callback time.
func (c *Commands) SetAppState(state domain.AppState) {
	c.manager.SetAppState(state)
}
