// Package storage persists pending records and session audit trails in a
// key/value store. The routing core treats it as eventually consistent and
// never waits on it while making decisions; writes go through Writer.
package storage

import "context"

// Store is the key/value contract every backend implements. Get returns
// ErrNotFound for missing keys; Delete of a missing key is not an error.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// BatchDeleter is implemented by backends that can drop many keys in one
// round trip. Writer uses it when flushing deletes.
type BatchDeleter interface {
	DeleteMany(ctx context.Context, keys []string) error
}
