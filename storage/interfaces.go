package storage

import (
	"context"
	"errors"

	"owner-revenue-scraper/models"
)

// ErrNotFound is returned by KVStore.Get when the key is absent.
var ErrNotFound = errors.New("key not found")

// KVStore is the durable key/value namespace session state lives in.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// ResultWriter persists a run's result set for operator inspection.
type ResultWriter interface {
	WriteResults(items []models.ResultItem) error
	Close() error
}

// BlobSink stores debug artifacts keyed by name.
type BlobSink interface {
	Put(ctx context.Context, name string, data []byte, contentType string) error
}
