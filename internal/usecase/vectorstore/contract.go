package vectorstore

import (
	"context"

	"github.com/kailas-cloud/ragpipe/internal/db"
)

// Writer persists vector items to the backing store.
type Writer interface {
	Add(ctx context.Context, collection string, items []db.VectorItem) error
}

// Reader fetches stored items for tier migration.
type Reader interface {
	Fetch(ctx context.Context, collection, id string) (db.VectorItem, error)
}
