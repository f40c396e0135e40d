package store

import (
	"context"
	"sync"
	"time"
)

// Match is one lookup result: the document id and the stored record.
type Match struct {
	ID     string
	Record map[string]any
}

// Accessor performs CRUD against one logical collection, keyed by a business
// field (roll number, teacher id, ...) rather than the store-assigned
// document id. Business keys are not unique, so key-based operations act on
// every matching document. Zero matches is a not-found result, never an
// error, and always surfaces as an empty slice or a false return.
type Accessor struct {
	store      Store
	Collection string
	KeyField   string
}

func NewAccessor(st Store, collection, keyField string) *Accessor {
	return &Accessor{store: st, Collection: collection, KeyField: keyField}
}

// Add inserts a new document and returns the generated id. The created_at
// and updated_at stamps are set here at write time; the store never sets
// them itself.
func (a *Accessor) Add(ctx context.Context, record map[string]any) (string, error) {
	data := cloneRecord(record)
	now := timestamp()
	data["created_at"] = now
	data["updated_at"] = now
	return a.store.Insert(ctx, a.Collection, data)
}

// Search returns every document whose key field equals key.
func (a *Accessor) Search(ctx context.Context, key string) ([]Match, error) {
	docs, err := a.store.FindEqual(ctx, a.Collection, a.KeyField, key)
	if err != nil {
		return nil, err
	}
	return toMatches(docs), nil
}

// Update merge-applies partial to every document matching key and refreshes
// updated_at. Matches are written concurrently with no cross-document
// atomicity; a partial failure leaves some documents mutated. Returns false
// when nothing matched.
func (a *Accessor) Update(ctx context.Context, key string, partial map[string]any) (bool, error) {
	matches, err := a.Search(ctx, key)
	if err != nil {
		return false, err
	}
	if len(matches) == 0 {
		return false, nil
	}

	data := cloneRecord(partial)
	delete(data, "created_at")
	data["updated_at"] = timestamp()

	err = fanOut(matches, func(id string) error {
		return a.store.MergeSet(ctx, a.Collection, id, data)
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// Delete removes every document matching key. Returns false when nothing
// matched.
func (a *Accessor) Delete(ctx context.Context, key string) (bool, error) {
	matches, err := a.Search(ctx, key)
	if err != nil {
		return false, err
	}
	if len(matches) == 0 {
		return false, nil
	}

	err = fanOut(matches, func(id string) error {
		return a.store.Delete(ctx, a.Collection, id)
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// All scans the whole collection.
func (a *Accessor) All(ctx context.Context) ([]Match, error) {
	docs, err := a.store.ListAll(ctx, a.Collection)
	if err != nil {
		return nil, err
	}
	return toMatches(docs), nil
}

// fanOut runs op for every match concurrently, waits for all of them, and
// reports the first failure.
func fanOut(matches []Match, op func(id string) error) error {
	var wg sync.WaitGroup
	errs := make([]error, len(matches))
	for i, m := range matches {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			errs[i] = op(id)
		}(i, m.ID)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func toMatches(docs []Doc) []Match {
	matches := make([]Match, 0, len(docs))
	for _, doc := range docs {
		matches = append(matches, Match{ID: doc.ID, Record: doc.Data})
	}
	return matches
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func cloneRecord(record map[string]any) map[string]any {
	clone := make(map[string]any, len(record))
	for k, v := range record {
		clone[k] = v
	}
	return clone
}
