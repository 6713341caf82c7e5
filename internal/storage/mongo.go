package storage

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/hyperjump/helpmate/internal/models"
)

const (
	chunkCollection  = "mdw_chunks"
	helperCollection = "helpers"
)

// MongoStorage implements Storage on MongoDB. It also reads documents written by other
// services, so helper IDs may be ObjectIDs and vectors plain double arrays.
type MongoStorage struct {
	client  *mongo.Client
	chunks  *mongo.Collection
	helpers *mongo.Collection
}

// mongoChunk mirrors the mdw_chunks document. Embeddings are decoded as doubles and
// narrowed to float32 afterwards.
type mongoChunk struct {
	ID         interface{} `bson:"_id,omitempty"`
	Source     string      `bson:"source"`
	Title      string      `bson:"title"`
	ChunkIndex int         `bson:"chunkIndex"`
	Text       string      `bson:"text"`
	Embedding  []float64   `bson:"embedding"`
	CreatedAt  time.Time   `bson:"createdAt"`
}

// NewMongoStorage connects to uri and uses the named database.
func NewMongoStorage(ctx context.Context, uri, database string) (*MongoStorage, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	db := client.Database(database)
	s := &MongoStorage{
		client:  client,
		chunks:  db.Collection(chunkCollection),
		helpers: db.Collection(helperCollection),
	}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

// ensureIndexes mirrors the SQLite schema: chunk indexes are unique per (source, title).
func (s *MongoStorage) ensureIndexes(ctx context.Context) error {
	_, err := s.chunks.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "source", Value: 1}, {Key: "title", Value: 1}, {Key: "chunkIndex", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("uniq_source_title_chunk"),
	})
	if err != nil {
		return fmt.Errorf("failed to create chunk index: %w", err)
	}
	_, err = s.helpers.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "nationality", Value: 1}}, Options: options.Index().SetName("idx_nationality")},
		{Keys: bson.D{{Key: "updatedAt", Value: -1}}, Options: options.Index().SetName("idx_updated_at")},
	})
	if err != nil {
		return fmt.Errorf("failed to create helper indexes: %w", err)
	}
	return nil
}

// DeleteChunks removes all chunks for (source, title).
func (s *MongoStorage) DeleteChunks(ctx context.Context, source, title string) (int64, error) {
	res, err := s.chunks.DeleteMany(ctx, bson.M{"source": source, "title": title})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// InsertChunks bulk-inserts chunks in order.
func (s *MongoStorage) InsertChunks(ctx context.Context, chunks []*models.TextChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	docs := make([]interface{}, len(chunks))
	for i, c := range chunks {
		if c.ID == "" {
			c.ID = uuid.New().String()
		}
		if c.CreatedAt.IsZero() {
			c.CreatedAt = time.Now()
		}
		vec := make([]float64, len(c.Embedding))
		for j, v := range c.Embedding {
			vec[j] = float64(v)
		}
		docs[i] = mongoChunk{
			ID: c.ID, Source: c.Source, Title: c.Title, ChunkIndex: c.ChunkIndex,
			Text: c.Text, Embedding: vec, CreatedAt: c.CreatedAt,
		}
	}
	_, err := s.chunks.InsertMany(ctx, docs, options.InsertMany().SetOrdered(true))
	return err
}

// ListChunks returns all chunks for (source, title) ordered by chunkIndex.
func (s *MongoStorage) ListChunks(ctx context.Context, source, title string) ([]*models.TextChunk, error) {
	cur, err := s.chunks.Find(ctx, bson.M{"source": source, "title": title},
		options.Find().SetSort(bson.D{{Key: "chunkIndex", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var docs []mongoChunk
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	chunks := make([]*models.TextChunk, len(docs))
	for i, d := range docs {
		vec := make([]float32, len(d.Embedding))
		for j, v := range d.Embedding {
			vec[j] = float32(v)
		}
		chunks[i] = &models.TextChunk{
			ID: idString(d.ID), Source: d.Source, Title: d.Title, ChunkIndex: d.ChunkIndex,
			Text: d.Text, Embedding: vec, CreatedAt: d.CreatedAt,
		}
	}
	return chunks, nil
}

// CountChunks returns the number of chunks stored for (source, title).
func (s *MongoStorage) CountChunks(ctx context.Context, source, title string) (int64, error) {
	return s.chunks.CountDocuments(ctx, bson.M{"source": source, "title": title})
}

// helperFilter builds the chat catalog query: case-insensitive nationality, bounded age,
// minimum experience and all skills matching case-insensitively.
func helperFilter(f *models.HelperSearchFilter) bson.M {
	q := bson.M{}
	if f == nil {
		return q
	}
	if f.Nationality != nil {
		q["nationality"] = containsRegex(*f.Nationality)
	}
	if f.MinAge != nil || f.MaxAge != nil {
		age := bson.M{}
		if f.MinAge != nil {
			age["$gte"] = *f.MinAge
		}
		if f.MaxAge != nil {
			age["$lte"] = *f.MaxAge
		}
		q["age"] = age
	}
	if f.MinExperience != nil {
		q["experience"] = bson.M{"$gte": *f.MinExperience}
	}
	if len(f.Skills) > 0 {
		all := make(bson.A, len(f.Skills))
		for i, skill := range f.Skills {
			all[i] = containsRegex(skill)
		}
		q["skills"] = bson.M{"$all": all}
	}
	return q
}

// FindHelpers returns up to limit helpers matching the filter.
func (s *MongoStorage) FindHelpers(ctx context.Context, filter *models.HelperSearchFilter, limit int) ([]*models.HelperProfile, error) {
	cur, err := s.helpers.Find(ctx, helperFilter(filter), options.Find().SetLimit(int64(limit)))
	if err != nil {
		return nil, err
	}
	var helpers []*models.HelperProfile
	if err := cur.All(ctx, &helpers); err != nil {
		return nil, err
	}
	return helpers, nil
}

func listFilter(q *models.HelperQuery) bson.M {
	filter := bson.M{}
	if q.Name != "" {
		filter["name"] = containsRegex(q.Name)
	}
	if q.Nationality != "" {
		filter["nationality"] = exactRegex(q.Nationality)
	}
	if len(q.Skills) > 0 {
		in := make(bson.A, len(q.Skills))
		for i, skill := range q.Skills {
			in[i] = exactRegex(skill)
		}
		filter["skills"] = bson.M{"$in": in}
	}
	if q.Available != nil {
		filter["availability"] = *q.Available
	}
	if q.MinExp != nil {
		filter["experience"] = bson.M{"$gte": *q.MinExp}
	}
	if q.MaxSalary != nil {
		filter["expectedSalary"] = bson.M{"$lte": *q.MaxSalary}
	}
	return filter
}

// ListHelpers returns one page of helpers matching q and the total match count.
func (s *MongoStorage) ListHelpers(ctx context.Context, q *models.HelperQuery) ([]*models.HelperProfile, int64, error) {
	if err := q.Validate(); err != nil {
		return nil, 0, err
	}
	filter := listFilter(q)
	total, err := s.helpers.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	dir := 1
	if q.SortDesc {
		dir = -1
	}
	opts := options.Find().
		SetSort(bson.D{{Key: q.SortField, Value: dir}, {Key: "_id", Value: 1}}).
		SetSkip(int64(q.Offset())).
		SetLimit(int64(q.Limit))
	cur, err := s.helpers.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	var helpers []*models.HelperProfile
	if err := cur.All(ctx, &helpers); err != nil {
		return nil, 0, err
	}
	return helpers, total, nil
}

// GetHelper returns a helper by ID. Hex ObjectIDs written by other services are matched too.
func (s *MongoStorage) GetHelper(ctx context.Context, id string) (*models.HelperProfile, error) {
	ids := bson.A{id}
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		ids = append(ids, oid)
	}
	var h models.HelperProfile
	err := s.helpers.FindOne(ctx, bson.M{"_id": bson.M{"$in": ids}}).Decode(&h)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("helper %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &h, nil
}

// ReplaceHelpers deletes all helpers and inserts the given ones. Not transactional.
func (s *MongoStorage) ReplaceHelpers(ctx context.Context, helpers []*models.HelperProfile) error {
	if _, err := s.helpers.DeleteMany(ctx, bson.M{}); err != nil {
		return fmt.Errorf("failed to clear helpers: %w", err)
	}
	if len(helpers) == 0 {
		return nil
	}
	now := time.Now()
	docs := make([]interface{}, len(helpers))
	for i, h := range helpers {
		if h.ID == "" {
			h.ID = uuid.New().String()
		}
		h.CreatedAt, h.UpdatedAt = now, now
		if h.Skills == nil {
			h.Skills = []string{}
		}
		docs[i] = h
	}
	if _, err := s.helpers.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("failed to insert helpers: %w", err)
	}
	return nil
}

// Close disconnects the client.
func (s *MongoStorage) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func containsRegex(s string) primitive.Regex {
	return primitive.Regex{Pattern: regexp.QuoteMeta(strings.TrimSpace(s)), Options: "i"}
}

func exactRegex(s string) primitive.Regex {
	return primitive.Regex{Pattern: "^" + regexp.QuoteMeta(strings.TrimSpace(s)) + "$", Options: "i"}
}

func idString(id interface{}) string {
	switch v := id.(type) {
	case string:
		return v
	case primitive.ObjectID:
		return v.Hex()
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}
