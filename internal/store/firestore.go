package store

import (
	"context"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// Firestore backs Store with a Cloud Firestore database. The client is a
// long-lived singleton constructed once at process start and injected into
// every accessor; no package-level handle exists.
type Firestore struct {
	client *firestore.Client
}

func NewFirestore(ctx context.Context, projectID string, credentials []byte) (*Firestore, error) {
	client, err := firestore.NewClient(ctx, projectID, option.WithCredentialsJSON(credentials))
	if err != nil {
		return nil, err
	}
	return &Firestore{client: client}, nil
}

func (f *Firestore) Close() error {
	return f.client.Close()
}

func (f *Firestore) Insert(ctx context.Context, collection string, data map[string]any) (string, error) {
	ref, _, err := f.client.Collection(collection).Add(ctx, data)
	if err != nil {
		return "", err
	}
	return ref.ID, nil
}

func (f *Firestore) FindEqual(ctx context.Context, collection, field string, value any) ([]Doc, error) {
	iter := f.client.Collection(collection).Where(field, "==", value).Documents(ctx)
	defer iter.Stop()
	return drain(iter)
}

func (f *Firestore) MergeSet(ctx context.Context, collection, id string, data map[string]any) error {
	_, err := f.client.Collection(collection).Doc(id).Set(ctx, data, firestore.MergeAll)
	return err
}

func (f *Firestore) Delete(ctx context.Context, collection, id string) error {
	_, err := f.client.Collection(collection).Doc(id).Delete(ctx)
	return err
}

func (f *Firestore) ListAll(ctx context.Context, collection string) ([]Doc, error) {
	iter := f.client.Collection(collection).Documents(ctx)
	defer iter.Stop()
	return drain(iter)
}

// CommitAll writes every document in one transaction: all writes land or
// none do.
func (f *Firestore) CommitAll(ctx context.Context, writes []Write) error {
	return f.client.RunTransaction(ctx, func(_ context.Context, tx *firestore.Transaction) error {
		for _, w := range writes {
			ref := f.client.Collection(w.Collection).Doc(w.ID)
			if err := tx.Set(ref, w.Data); err != nil {
				return err
			}
		}
		return nil
	})
}

func drain(iter *firestore.DocumentIterator) ([]Doc, error) {
	var docs []Doc
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			return docs, nil
		}
		if err != nil {
			return nil, err
		}
		docs = append(docs, Doc{ID: snap.Ref.ID, Data: snap.Data()})
	}
}
