package store

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

type compressedStorage struct {
	inner Storage
}

// NewCompressedStorage zstd-compresses blobs before handing them to inner.
// It lets the bounded memory tier hold more entries.
func NewCompressedStorage(inner Storage) Storage {
	return &compressedStorage{inner: inner}
}

func (c *compressedStorage) Save(key string, blob []byte) error {
	return c.inner.Save(key, zstdCompress(nil, blob))
}

func (c *compressedStorage) Load(key string) ([]byte, bool, error) {
	packed, ok, err := c.inner.Load(key)
	if err != nil || !ok {
		return nil, false, err
	}
	blob, err := zstdDecompress(nil, packed)
	if err != nil {
		return nil, false, fmt.Errorf("decompress %s failed: %w", key, err)
	}
	return blob, true, nil
}

func (c *compressedStorage) Delete(key string) error { return c.inner.Delete(key) }
func (c *compressedStorage) Clear() error            { return c.inner.Clear() }
func (c *compressedStorage) Close() error            { return c.inner.Close() }

func zstdCompress(dst, data []byte) []byte {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic(err) // only fails on invalid options
	}
	defer encoder.Close()

	return encoder.EncodeAll(data, dst)
}

func zstdDecompress(dst, data []byte) ([]byte, error) {
	decoder, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, err
	}
	defer decoder.Close()

	return decoder.DecodeAll(data, dst)
}
