package store

import "context"

// Doc is one stored document: the store-assigned identifier plus its fields.
type Doc struct {
	ID   string
	Data map[string]any
}

// Write is one element of an atomic multi-document commit.
type Write struct {
	Collection string
	ID         string
	Data       map[string]any
}

// Store is the slice of the document store the server uses: inserts with
// store-assigned ids, single-field equality queries, merge updates and
// deletes by document id, full collection scans, and an atomic
// multi-document batch.
type Store interface {
	Insert(ctx context.Context, collection string, data map[string]any) (string, error)
	FindEqual(ctx context.Context, collection, field string, value any) ([]Doc, error)
	MergeSet(ctx context.Context, collection, id string, data map[string]any) error
	Delete(ctx context.Context, collection, id string) error
	ListAll(ctx context.Context, collection string) ([]Doc, error)
	CommitAll(ctx context.Context, writes []Write) error
}
