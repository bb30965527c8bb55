package database

import (
	"context"

	"github.com/nandanugg/geonotify/module/geofence/domain"
)

// NotificationStore persists geofence definitions keyed by id. FindByID
// returns domain.ErrNotFound for unknown ids; every other failure wraps
// domain.ErrStorage.
type NotificationStore interface {
	Upsert(ctx context.Context, def domain.Definition) error
	Remove(ctx context.Context, id string) error
	Clear(ctx context.Context) error
	FindByID(ctx context.Context, id string) (domain.Definition, error)
	GetAll(ctx context.Context) ([]domain.Definition, error)
}
