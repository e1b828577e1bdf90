// Package store persists memoised pipeline outputs. Keys are opaque strings
// and values are byte blobs owned by the caller.
package store

import (
	"errors"
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/dgraph-io/ristretto/v2"
)

// Storage is a key/value blob store safe for concurrent use
type Storage interface {
	Save(key string, blob []byte) error
	// Load returns a copy of the stored blob, or false if the key is absent
	Load(key string) ([]byte, bool, error)
	Delete(key string) error
	Clear() error
	Close() error
}

// DefaultMemoryBytes bounds the in-memory store when no limit is given
const DefaultMemoryBytes = 64 << 20

type memStorage struct {
	cache *ristretto.Cache[string, []byte]
}

// NewMemStorage returns an in-memory Storage holding at most maxBytes of
// values. Entries may be evicted, which only turns later loads into misses.
func NewMemStorage(maxBytes int64) (Storage, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMemoryBytes
	}
	cache, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: 1e5,
		MaxCost:     maxBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create memory store failed: %w", err)
	}
	return &memStorage{cache: cache}, nil
}

func (m *memStorage) Save(key string, blob []byte) error {
	value := append([]byte(nil), blob...)
	m.cache.Set(key, value, int64(len(value)+len(key)))
	m.cache.Wait()
	return nil
}

func (m *memStorage) Load(key string) ([]byte, bool, error) {
	blob, ok := m.cache.Get(key)
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), blob...), true, nil
}

func (m *memStorage) Delete(key string) error {
	m.cache.Del(key)
	m.cache.Wait()
	return nil
}

func (m *memStorage) Clear() error {
	m.cache.Clear()
	return nil
}

func (m *memStorage) Close() error {
	m.cache.Close()
	return nil
}

type badgerStorage struct {
	db *badger.DB
}

// NewBadgerStorage opens a persistent Storage under path. Values are
// zstd-compressed by badger.
func NewBadgerStorage(path string, maxMemMB int) (Storage, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("create cache dir failed: %w", err)
	}

	clamp := func(val, lo, high int64) int64 {
		return min(max(val, lo), high)
	}
	memTableSize := clamp(int64(maxMemMB/4), 8, 64) << 20
	opts := badger.DefaultOptions(path).
		WithCompression(options.ZSTD).
		WithZSTDCompressionLevel(3).
		WithNumMemtables(2).
		WithMemTableSize(memTableSize).
		WithBaseTableSize(memTableSize).
		WithBlockCacheSize(clamp(int64(maxMemMB/8), 2, 128) << 20).
		WithIndexCacheSize(clamp(int64(maxMemMB/4), 16, 128) << 20).
		WithLoggingLevel(badger.ERROR).
		WithMetricsEnabled(false)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open cache db failed: %w", err)
	}
	return &badgerStorage{db: db}, nil
}

func (b *badgerStorage) Save(key string, blob []byte) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), blob)
	})
}

func (b *badgerStorage) Load(key string) ([]byte, bool, error) {
	var blob []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		blob, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	} else if err != nil {
		return nil, false, err
	}
	return blob, true, nil
}

func (b *badgerStorage) Delete(key string) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

func (b *badgerStorage) Clear() error {
	return b.db.DropAll()
}

func (b *badgerStorage) Close() error {
	return b.db.Close()
}

type tieredStorage struct {
	memory Storage
	disk   Storage
}

// NewTieredStorage layers memory over disk. Loads served by disk are
// promoted into memory; saves go to both.
func NewTieredStorage(memory, disk Storage) Storage {
	return &tieredStorage{memory: memory, disk: disk}
}

func (t *tieredStorage) Save(key string, blob []byte) error {
	if err := t.disk.Save(key, blob); err != nil {
		return err
	}
	return t.memory.Save(key, blob)
}

func (t *tieredStorage) Load(key string) ([]byte, bool, error) {
	if blob, ok, err := t.memory.Load(key); err != nil || ok {
		return blob, ok, err
	}
	blob, ok, err := t.disk.Load(key)
	if err != nil || !ok {
		return nil, false, err
	}
	if err := t.memory.Save(key, blob); err != nil {
		return nil, false, err
	}
	return blob, true, nil
}

func (t *tieredStorage) Delete(key string) error {
	return errors.Join(t.memory.Delete(key), t.disk.Delete(key))
}

func (t *tieredStorage) Clear() error {
	return errors.Join(t.memory.Clear(), t.disk.Clear())
}

func (t *tieredStorage) Close() error {
	return errors.Join(t.memory.Close(), t.disk.Close())
}

// Open returns the store for a cache directory: compressed memory only
// when dir is empty, memory over badger otherwise.
func Open(dir string) (Storage, error) {
	mem, err := NewMemStorage(DefaultMemoryBytes)
	if err != nil {
		return nil, err
	}
	memory := NewCompressedStorage(mem)
	if dir == "" {
		return memory, nil
	}
	disk, err := NewBadgerStorage(dir, 64)
	if err != nil {
		memory.Close()
		return nil, err
	}
	return NewTieredStorage(memory, disk), nil
}
