package repository

import (
	"context"
	"errors"
	"time"

	"github.com/gogotex/gogotex/backend/go-collab/internal/document"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoRepo implements a MongoDB-backed repository for documents.
// Documents are keyed by a string "id" field (uuid) with a unique index.
type MongoRepo struct {
	col *mongo.Collection
}

func NewMongoRepo(col *mongo.Collection) *MongoRepo {
	// ensure an index on "id" for fast lookups (id is expected unique)
	idxModel := mongo.IndexModel{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)}
	_, _ = col.Indexes().CreateOne(context.Background(), idxModel)
	return &MongoRepo{col: col}
}

// accessFilter matches documents owned by or shared with sub.
func accessFilter(sub string) bson.M {
	if sub == "" {
		return bson.M{}
	}
	return bson.M{"$or": bson.A{bson.M{"owner": sub}, bson.M{"collaborators": sub}}}
}

func (m *MongoRepo) Create(ctx context.Context, doc *document.Document) (string, error) {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.Title == "" {
		doc.Title = document.DefaultTitle
	}
	if doc.Collaborators == nil {
		doc.Collaborators = []string{}
	}
	now := time.Now().UTC()
	doc.CreatedAt = now
	doc.LastModified = now
	if _, err := m.col.InsertOne(ctx, doc); err != nil {
		return "", err
	}
	return doc.ID, nil
}

func (m *MongoRepo) Get(ctx context.Context, id string) (*document.Document, error) {
	var d document.Document
	if err := m.col.FindOne(ctx, bson.M{"id": id}).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}

func (m *MongoRepo) List(ctx context.Context, sub string) ([]*document.Document, error) {
	opts := options.Find().SetSort(bson.D{{Key: "lastModified", Value: -1}})
	cur, err := m.col.Find(ctx, accessFilter(sub), opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []*document.Document{}
	for cur.Next(ctx) {
		var d document.Document
		if err := cur.Decode(&d); err != nil {
			return nil, err
		}
		out = append(out, &d)
	}
	return out, cur.Err()
}

func (m *MongoRepo) Update(ctx context.Context, id string, p document.Patch) (*document.Document, error) {
	set := bson.M{"lastModified": time.Now().UTC()}
	if p.Title != nil {
		set["title"] = *p.Title
	}
	if p.Content != nil {
		set["content"] = *p.Content
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var d document.Document
	err := m.col.FindOneAndUpdate(ctx, bson.M{"id": id}, bson.M{"$set": set, "$inc": bson.M{"version": 1}}, opts).Decode(&d)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}

func (m *MongoRepo) Delete(ctx context.Context, id string) error {
	res, err := m.col.DeleteOne(ctx, bson.M{"id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *MongoRepo) SaveContent(ctx context.Context, id, content, owner string) (int64, error) {
	now := time.Now().UTC()
	onInsert := bson.M{
		"title":         document.DefaultTitle,
		"collaborators": bson.A{},
		"createdAt":     now,
	}
	if owner != "" {
		onInsert["owner"] = owner
	}
	update := bson.M{
		"$set":         bson.M{"content": content, "lastModified": now},
		"$inc":         bson.M{"version": 1},
		"$setOnInsert": onInsert,
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var d document.Document
	if err := m.col.FindOneAndUpdate(ctx, bson.M{"id": id}, update, opts).Decode(&d); err != nil {
		return 0, err
	}
	return d.Version, nil
}

func (m *MongoRepo) AddCollaborator(ctx context.Context, id, sub string) error {
	res, err := m.col.UpdateOne(ctx,
		bson.M{"id": id, "collaborators": bson.M{"$ne": sub}},
		bson.M{"$push": bson.M{"collaborators": sub}, "$set": bson.M{"lastModified": time.Now().UTC()}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		if _, err := m.Get(ctx, id); err != nil {
			return err
		}
		return ErrAlreadyCollaborator
	}
	return nil
}

func (m *MongoRepo) RemoveCollaborator(ctx context.Context, id, sub string) error {
	res, err := m.col.UpdateOne(ctx,
		bson.M{"id": id},
		bson.M{"$pull": bson.M{"collaborators": sub}, "$set": bson.M{"lastModified": time.Now().UTC()}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
