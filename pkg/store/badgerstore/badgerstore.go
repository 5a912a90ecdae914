// Package badgerstore persists tasks in an embedded BadgerDB, one JSON
// document per task under the key "task/<id>".
package badgerstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/harrisonrobin/taskpilot/pkg/model"
	"github.com/harrisonrobin/taskpilot/pkg/store"
)

const keyPrefix = "task/"

// maxConflictRetries bounds how often a conflicting update transaction is
// replayed. Updates are serialized in-process, so a conflict can only come
// from a concurrent Insert touching the same key.
const maxConflictRetries = 16

type Config struct {
	// Path is the database directory. Required unless InMemory is set.
	Path string

	InMemory   bool
	SyncWrites bool

	// GCInterval enables periodic value-log GC. Zero disables it.
	GCInterval     time.Duration
	GCDiscardRatio float64

	Logger *zap.Logger
}

func DefaultConfig(path string) Config {
	return Config{
		Path:           path,
		SyncWrites:     true,
		GCInterval:     5 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// badgerLogger routes badger's printf-style logs into zap.
type badgerLogger struct {
	s *zap.SugaredLogger
}

func (l badgerLogger) Errorf(format string, args ...interface{})   { l.s.Errorf(format, args...) }
func (l badgerLogger) Warningf(format string, args ...interface{}) { l.s.Warnf(format, args...) }
func (l badgerLogger) Infof(format string, args ...interface{})    { l.s.Debugf(format, args...) }
func (l badgerLogger) Debugf(format string, args ...interface{})   { l.s.Debugf(format, args...) }

type Store struct {
	db     *badger.DB
	logger *zap.Logger
	// updateMu serializes read-modify-write updates. The directory lock
	// makes this process the only writer, so no update can race another.
	updateMu sync.Mutex
	stopGC chan struct{}
	gcDone chan struct{}
}

func Open(cfg Config) (*Store, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, errors.New("badger store path is required")
		}
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.
		WithSyncWrites(cfg.SyncWrites).
		WithNumVersionsToKeep(1).
		WithLogger(badgerLogger{s: logger.Named("badger").Sugar()})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}

	s := &Store{db: db, logger: logger}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		ratio := cfg.GCDiscardRatio
		if ratio <= 0 || ratio >= 1 {
			ratio = 0.5
		}
		s.stopGC = make(chan struct{})
		s.gcDone = make(chan struct{})
		go s.runGC(cfg.GCInterval, ratio)
	}
	return s, nil
}

func (s *Store) runGC(interval time.Duration, ratio float64) {
	defer close(s.gcDone)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopGC:
			return
		case <-ticker.C:
			if err := s.db.RunValueLogGC(ratio); err != nil && !errors.Is(err, badger.ErrNoRewrite) {
				s.logger.Warn("badger value log GC failed", zap.Error(err))
			}
		}
	}
}

func key(id string) []byte { return []byte(keyPrefix + id) }

func (s *Store) Insert(_ context.Context, t *model.Task) (string, error) {
	c := t.Clone()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("encode task: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key(c.ID)); err == nil {
			return fmt.Errorf("task %s already exists", c.ID)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(key(c.ID), data)
	})
	if err != nil {
		return "", fmt.Errorf("insert task: %w", err)
	}
	return c.ID, nil
}

func (s *Store) Get(_ context.Context, id string) (*model.Task, error) {
	var t *model.Task
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		t, err = load(txn, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

func load(txn *badger.Txn, id string) (*model.Task, error) {
	item, err := txn.Get(key(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	var t model.Task
	if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &t) }); err != nil {
		return nil, fmt.Errorf("decode task %s: %w", id, err)
	}
	return &t, nil
}

// Update reads, applies and writes back inside one read-write transaction
// while holding updateMu, so concurrent updates of one task are applied one
// after another and no increment is lost.
func (s *Store) Update(ctx context.Context, id string, u store.Update) (*model.Task, error) {
	s.updateMu.Lock()
	defer s.updateMu.Unlock()

	var out *model.Task
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		err := s.db.Update(func(txn *badger.Txn) error {
			t, err := load(txn, id)
			if err != nil {
				return err
			}
			u.Apply(t)
			data, err := json.Marshal(t)
			if err != nil {
				return fmt.Errorf("encode task: %w", err)
			}
			out = t
			return txn.Set(key(id), data)
		})
		if err == nil {
			return out, nil
		}
		if !errors.Is(err, badger.ErrConflict) || attempt >= maxConflictRetries {
			return nil, err
		}
		s.logger.Debug("retrying conflicting task update", zap.String("task_id", id), zap.Int("attempt", attempt+1))
	}
}

func (s *Store) Find(_ context.Context, f store.Filter) ([]model.Task, error) {
	result := []model.Task{}
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			var t model.Task
			if err := it.Item().Value(func(val []byte) error { return json.Unmarshal(val, &t) }); err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			if f.Match(&t) {
				result = append(result, t)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	model.SortTasks(result)
	return result, nil
}

func (s *Store) Close() error {
	if s.stopGC != nil {
		close(s.stopGC)
		<-s.gcDone
	}
	return s.db.Close()
}
