package sessions

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Repository persists presence entries.
type Repository interface {
	Put(ctx context.Context, e *Entry) error
	Delete(ctx context.Context, documentID, sessionID string) error
	List(ctx context.Context, documentID string) ([]Entry, error)
}

func sortEntries(out []Entry) {
	sort.Slice(out, func(i, j int) bool {
		if !out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].JoinedAt.Before(out[j].JoinedAt)
		}
		return out[i].SessionID < out[j].SessionID
	})
}

// MongoRepository implements Repository using a Mongo collection
type MongoRepository struct {
	col *mongo.Collection
}

func NewMongoRepository(col *mongo.Collection) *MongoRepository {
	return &MongoRepository{col: col}
}

// EnsureIndexes creates the session id index and a TTL index so entries left
// behind by a crashed instance expire on their own.
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "sessionId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "documentId", Value: 1}}},
		{Keys: bson.D{{Key: "expiresAt", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(0)},
	})
	return err
}

func (r *MongoRepository) Put(ctx context.Context, e *Entry) error {
	_, err := r.col.UpdateOne(ctx,
		bson.M{"sessionId": e.SessionID},
		bson.M{"$set": e},
		options.Update().SetUpsert(true),
	)
	return err
}

func (r *MongoRepository) Delete(ctx context.Context, documentID, sessionID string) error {
	_, err := r.col.DeleteOne(ctx, bson.M{"sessionId": sessionID, "documentId": documentID})
	return err
}

func (r *MongoRepository) List(ctx context.Context, documentID string) ([]Entry, error) {
	cur, err := r.col.Find(ctx, bson.M{
		"documentId": documentID,
		"expiresAt":  bson.M{"$gt": time.Now().UTC()},
	})
	if err != nil {
		return nil, err
	}
	out := []Entry{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	sortEntries(out)
	return out, nil
}

// MemoryRepository keeps presence in process. Used when no Redis or Mongo is
// configured and in tests.
type MemoryRepository struct {
	mu   sync.Mutex
	docs map[string]map[string]Entry
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{docs: make(map[string]map[string]Entry)}
}

func (m *MemoryRepository) Put(_ context.Context, e *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[e.DocumentID]
	if !ok {
		doc = make(map[string]Entry)
		m.docs[e.DocumentID] = doc
	}
	doc[e.SessionID] = *e
	return nil
}

func (m *MemoryRepository) Delete(_ context.Context, documentID, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc := m.docs[documentID]
	delete(doc, sessionID)
	if len(doc) == 0 {
		delete(m.docs, documentID)
	}
	return nil
}

func (m *MemoryRepository) List(_ context.Context, documentID string) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	out := []Entry{}
	for id, e := range m.docs[documentID] {
		if e.expired(now) {
			delete(m.docs[documentID], id)
			continue
		}
		out = append(out, e)
	}
	sortEntries(out)
	return out, nil
}
