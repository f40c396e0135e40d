package store

import (
	"context"
	"reflect"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Mem is an in-memory Store used by tests and credential-less local runs.
// It mirrors Firestore semantics: MergeSet upserts, Delete is idempotent,
// CommitAll applies every write or none.
type Mem struct {
	mu          sync.RWMutex
	collections map[string]map[string]map[string]any

	// CommitErr, when set, makes CommitAll fail without writing anything.
	CommitErr error
}

func NewMem() *Mem {
	return &Mem{collections: make(map[string]map[string]map[string]any)}
}

func (m *Mem) Insert(_ context.Context, collection string, data map[string]any) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.NewString()
	m.collection(collection)[id] = cloneRecord(data)
	return id, nil
}

func (m *Mem) FindEqual(_ context.Context, collection, field string, value any) ([]Doc, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var docs []Doc
	for id, data := range m.collections[collection] {
		if v, ok := data[field]; ok && reflect.DeepEqual(v, value) {
			docs = append(docs, Doc{ID: id, Data: cloneRecord(data)})
		}
	}
	sortDocs(docs)
	return docs, nil
}

func (m *Mem) MergeSet(_ context.Context, collection, id string, data map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	docs := m.collection(collection)
	existing, ok := docs[id]
	if !ok {
		existing = make(map[string]any)
		docs[id] = existing
	}
	for k, v := range data {
		existing[k] = v
	}
	return nil
}

func (m *Mem) Delete(_ context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.collections[collection], id)
	return nil
}

func (m *Mem) ListAll(_ context.Context, collection string) ([]Doc, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var docs []Doc
	for id, data := range m.collections[collection] {
		docs = append(docs, Doc{ID: id, Data: cloneRecord(data)})
	}
	sortDocs(docs)
	return docs, nil
}

func (m *Mem) CommitAll(_ context.Context, writes []Write) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.CommitErr != nil {
		return m.CommitErr
	}
	for _, w := range writes {
		m.collection(w.Collection)[w.ID] = cloneRecord(w.Data)
	}
	return nil
}

func (m *Mem) collection(name string) map[string]map[string]any {
	docs, ok := m.collections[name]
	if !ok {
		docs = make(map[string]map[string]any)
		m.collections[name] = docs
	}
	return docs
}

func sortDocs(docs []Doc) {
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
}
