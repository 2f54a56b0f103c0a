package mirror

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"github.com/viralforge/roadworks/internal/ports"
)

// FirestoreStore writes mirror documents with merge semantics.
type FirestoreStore struct {
	client *firestore.Client
}

func NewFirestoreStore(client *firestore.Client) *FirestoreStore {
	return &FirestoreStore{client: client}
}

// CommitBatch applies every document in a single atomic batch. The batch is not
// split by document count; only the server request size bounds it.
func (s *FirestoreStore) CommitBatch(ctx context.Context, docs []ports.MirrorDocument) error {
	if len(docs) == 0 {
		return nil
	}
	batch := s.client.Batch()
	for _, doc := range docs {
		batch.Set(s.client.Collection(doc.Collection).Doc(doc.ID), doc.Fields, firestore.MergeAll)
	}
	if _, err := batch.Commit(ctx); err != nil {
		return fmt.Errorf("commit firestore batch: %w", err)
	}
	return nil
}

func (s *FirestoreStore) Upsert(ctx context.Context, doc ports.MirrorDocument) error {
	if _, err := s.client.Collection(doc.Collection).Doc(doc.ID).Set(ctx, doc.Fields, firestore.MergeAll); err != nil {
		return fmt.Errorf("set %s/%s: %w", doc.Collection, doc.ID, err)
	}
	return nil
}

// Delete succeeds when the document does not exist.
func (s *FirestoreStore) Delete(ctx context.Context, collection, id string) error {
	if _, err := s.client.Collection(collection).Doc(id).Delete(ctx); err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	return nil
}
