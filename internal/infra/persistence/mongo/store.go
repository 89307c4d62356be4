// Package mongo implements domain.RecordStore on MongoDB. Characters live in
// the "characters" collection keyed by ObjectID; statuses live in
// "characterStatus" keyed by the character id.
package mongo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"charsheet/pkg/domain"
)

var _ domain.RecordStore = (*Store)(nil)

type characterDoc struct {
	ID        primitive.ObjectID `bson:"_id"`
	Name      string             `bson:"name"`
	Payload   bson.Raw           `bson:"payload"`
	UpdatedAt time.Time          `bson:"updatedAt"`
}

type statusDoc struct {
	ID        string    `bson:"_id"`
	Payload   bson.Raw  `bson:"payload"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

// Store talks to a single database.
type Store struct {
	client   *mongo.Client
	db       *mongo.Database
	chars    *mongo.Collection
	statuses *mongo.Collection
	clock    clock.Clock
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the source of updatedAt timestamps.
func WithClock(c clock.Clock) Option {
	return func(s *Store) {
		if c != nil {
			s.clock = c
		}
	}
}

// Open connects to uri and verifies the connection.
func Open(ctx context.Context, uri, database string, opts ...Option) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	db := client.Database(database)
	s := &Store{
		client:   client,
		db:       db,
		chars:    db.Collection(string(domain.CollectionCharacters)),
		statuses: db.Collection(string(domain.CollectionStatus)),
		clock:    clock.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Database exposes the underlying database for tests.
func (s *Store) Database() *mongo.Database { return s.db }

// ListCharacters implements domain.RecordStore.
func (s *Store) ListCharacters(ctx context.Context) ([]domain.Character, error) {
	cursor, err := s.chars.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find characters: %w", err)
	}
	defer func() { _ = cursor.Close(ctx) }()
	out := []domain.Character{}
	for cursor.Next(ctx) {
		var doc characterDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode character: %w", err)
		}
		c, err := decodeCharacter(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterate characters: %w", err)
	}
	return out, nil
}

// GetCharacter implements domain.RecordStore.
func (s *Store) GetCharacter(ctx context.Context, id string) (domain.Character, bool, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.Character{}, false, nil
	}
	var doc characterDoc
	err = s.chars.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Character{}, false, nil
	}
	if err != nil {
		return domain.Character{}, false, fmt.Errorf("find character %s: %w", id, err)
	}
	c, err := decodeCharacter(doc)
	if err != nil {
		return domain.Character{}, false, err
	}
	return c, true, nil
}

// CreateCharacter implements domain.RecordStore.
func (s *Store) CreateCharacter(ctx context.Context, c domain.Character) (string, error) {
	payload, err := toBSON(characterPayload(c))
	if err != nil {
		return "", fmt.Errorf("encode character: %w", err)
	}
	doc := characterDoc{ID: primitive.NewObjectID(), Name: c.Name, Payload: payload, UpdatedAt: s.clock.Now().UTC()}
	if _, err := s.chars.InsertOne(ctx, doc); err != nil {
		return "", fmt.Errorf("insert character: %w", err)
	}
	return doc.ID.Hex(), nil
}

// ReplaceCharacter implements domain.RecordStore.
func (s *Store) ReplaceCharacter(ctx context.Context, id string, c domain.Character) error {
	notFound := domain.ErrNotFound{Collection: domain.CollectionCharacters, ID: id}
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return notFound
	}
	payload, err := toBSON(characterPayload(c))
	if err != nil {
		return fmt.Errorf("encode character: %w", err)
	}
	doc := characterDoc{ID: oid, Name: c.Name, Payload: payload, UpdatedAt: s.clock.Now().UTC()}
	res, err := s.chars.ReplaceOne(ctx, bson.M{"_id": oid}, doc)
	if err != nil {
		return fmt.Errorf("replace character %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return notFound
	}
	return nil
}

// DeleteCharacter implements domain.RecordStore.
func (s *Store) DeleteCharacter(ctx context.Context, id string) error {
	notFound := domain.ErrNotFound{Collection: domain.CollectionCharacters, ID: id}
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return notFound
	}
	res, err := s.chars.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("delete character %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return notFound
	}
	if _, err := s.statuses.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("delete status %s: %w", id, err)
	}
	return nil
}

// GetStatus implements domain.RecordStore.
func (s *Store) GetStatus(ctx context.Context, id string) (domain.Status, bool, error) {
	var doc statusDoc
	err := s.statuses.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Status{}, false, nil
	}
	if err != nil {
		return domain.Status{}, false, fmt.Errorf("find status %s: %w", id, err)
	}
	var st domain.Status
	if err := fromBSON(doc.Payload, &st); err != nil {
		return domain.Status{}, false, fmt.Errorf("decode status %s: %w", id, err)
	}
	return st.Normalize(), true, nil
}

// PutStatus implements domain.RecordStore.
func (s *Store) PutStatus(ctx context.Context, id string, st domain.Status) error {
	payload, err := toBSON(st.Normalize())
	if err != nil {
		return fmt.Errorf("encode status: %w", err)
	}
	doc := statusDoc{ID: id, Payload: payload, UpdatedAt: s.clock.Now().UTC()}
	_, err = s.statuses.ReplaceOne(ctx, bson.M{"_id": id}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upsert status %s: %w", id, err)
	}
	return nil
}

// Close implements domain.RecordStore.
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func characterPayload(c domain.Character) domain.Character {
	c = c.Normalize()
	c.ID = ""
	return c
}

func decodeCharacter(doc characterDoc) (domain.Character, error) {
	var c domain.Character
	if err := fromBSON(doc.Payload, &c); err != nil {
		return domain.Character{}, fmt.Errorf("decode character %s: %w", doc.ID.Hex(), err)
	}
	c.ID = doc.ID.Hex()
	return c.Normalize(), nil
}

// toBSON converts v through its JSON encoding so the stored document keeps
// the same field names as the other backends.
func toBSON(v any) (bson.Raw, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var doc bson.D
	if err := bson.UnmarshalExtJSON(b, false, &doc); err != nil {
		return nil, err
	}
	return bson.Marshal(doc)
}

func fromBSON(raw bson.Raw, v any) error {
	b, err := bson.MarshalExtJSON(raw, false, false)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}
