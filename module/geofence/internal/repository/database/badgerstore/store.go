package badgerstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v3"
	"go.uber.org/zap"

	"github.com/nandanugg/geonotify/module/geofence/domain"
	"github.com/nandanugg/geonotify/module/geofence/internal/repository/database"
)

var _ database.NotificationStore = (*Store)(nil)

const keyPrefix = "geofence/"

// Store keeps definitions in Badger under geofence/<id>.
type Store struct {
	db *badger.DB
}

// Open opens a store at dir. An empty dir opens an in-memory database.
func Open(dir string, logger *zap.Logger) (*Store, error) {
	opts := badger.DefaultOptions(dir).
		WithLogger(&badgerLogger{s: logger.Named("badger").Sugar()}).
		WithSyncWrites(true)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger open: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func key(id string) []byte {
	return []byte(keyPrefix + id)
}

func (s *Store) Upsert(_ context.Context, def domain.Definition) error {
	data, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %w", domain.ErrStorage, def.ID, err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(def.ID), data)
	})
	if err != nil {
		return fmt.Errorf("%w: upsert %s: %w", domain.ErrStorage, def.ID, err)
	}
	return nil
}

func (s *Store) Remove(_ context.Context, id string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key(id))
	})
	if err != nil {
		return fmt.Errorf("%w: remove %s: %w", domain.ErrStorage, id, err)
	}
	return nil
}

func (s *Store) Clear(_ context.Context) error {
	if err := s.db.DropPrefix([]byte(keyPrefix)); err != nil {
		return fmt.Errorf("%w: clear: %w", domain.ErrStorage, err)
	}
	return nil
}

func (s *Store) FindByID(_ context.Context, id string) (domain.Definition, error) {
	var def domain.Definition
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &def)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.Definition{}, fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return domain.Definition{}, fmt.Errorf("%w: find %s: %w", domain.ErrStorage, id, err)
	}
	return def, nil
}

func (s *Store) GetAll(_ context.Context) ([]domain.Definition, error) {
	results := []domain.Definition{}
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var def domain.Definition
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &def)
			})
			if err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			results = append(results, def)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: get all: %w", domain.ErrStorage, err)
	}
	return results, nil
}

// badgerLogger adapts zap to Badger's Logger interface.
type badgerLogger struct {
	s *zap.SugaredLogger
}

func (l *badgerLogger) Errorf(format string, args ...interface{})   { l.s.Errorf(format, args...) }
func (l *badgerLogger) Warningf(format string, args ...interface{}) { l.s.Warnf(format, args...) }
func (l *badgerLogger) Infof(format string, args ...interface{})    { l.s.Debugf(format, args...) }
func (l *badgerLogger) Debugf(format string, args ...interface{})   { l.s.Debugf(format, args...) }
