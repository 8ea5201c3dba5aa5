package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"doc-migrator/internal/logging"
	"doc-migrator/internal/util"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"
)

// mongoConnectFunc allows mocking mongo.Connect for testing.
var mongoConnectFunc = func(ctx context.Context, opts ...*options.ClientOptions) (*mongo.Client, error) {
	return mongo.Connect(ctx, opts...)
}

// MongoStore is a Store backed by a live MongoDB deployment.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

// ResolveDatabase returns database when set, otherwise the database named in the URI path.
func ResolveDatabase(uri, database string) (string, error) {
	if database != "" {
		return database, nil
	}
	cs, err := connstring.ParseAndValidate(uri)
	if err != nil {
		return "", fmt.Errorf("invalid MongoDB connection string: %w", err)
	}
	if cs.Database == "" {
		return "", errors.New("no database named in MongoDB connection string; set source.database or MONGO_DB")
	}
	return cs.Database, nil
}

// NewMongoStore connects to MongoDB and verifies the connection with a ping.
func NewMongoStore(ctx context.Context, uri, database string, timeout time.Duration) (*MongoStore, error) {
	dbName, err := ResolveDatabase(uri, database)
	if err != nil {
		return nil, err
	}

	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	logging.Logf(logging.Debug, "Connecting to MongoDB: %s (database %s)", util.MaskCredentials(uri), dbName)
	client, err := mongoConnectFunc(connectCtx, options.Client().ApplyURI(uri).SetConnectTimeout(timeout))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	logging.Logf(logging.Info, "Connected to MongoDB database '%s'.", dbName)
	return &MongoStore{client: client, db: client.Database(dbName)}, nil
}

func (s *MongoStore) Count(ctx context.Context, collection string) (int64, error) {
	n, err := s.db.Collection(collection).CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("failed to count '%s': %w", collection, err)
	}
	return n, nil
}

func (s *MongoStore) Find(ctx context.Context, collection string, q Query) (Cursor, error) {
	opts := options.Find()
	if q.BatchSize > 0 {
		opts.SetBatchSize(q.BatchSize)
	}
	if q.Limit > 0 {
		opts.SetLimit(q.Limit)
	}
	if q.SortAsc != "" {
		opts.SetSort(bson.D{{Key: q.SortAsc, Value: 1}})
	}
	cur, err := s.db.Collection(collection).Find(ctx, buildFilter(q.Filter), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query '%s': %w", collection, err)
	}
	return &mongoCursor{cur: cur}, nil
}

func (s *MongoStore) FindOne(ctx context.Context, collection string, filter ...Cond) (Document, bool, error) {
	var m bson.M
	err := s.db.Collection(collection).FindOne(ctx, buildFilter(filter)).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to look up document in '%s': %w", collection, err)
	}
	return NormalizeDocument(m), true, nil
}

func (s *MongoStore) InsertMany(ctx context.Context, collection string, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	payload := make([]interface{}, len(docs))
	for i, d := range docs {
		payload[i] = toBSON(d)
	}
	res, err := s.db.Collection(collection).InsertMany(ctx, payload)
	if err != nil {
		return fmt.Errorf("failed to insert into '%s': %w", collection, err)
	}
	logging.Logf(logging.Debug, "Inserted %d documents into '%s'.", len(res.InsertedIDs), collection)
	return nil
}

func (s *MongoStore) Upsert(ctx context.Context, collection string, id any, doc Document) error {
	replacement := toBSON(doc)
	if m, ok := replacement.(bson.M); ok {
		delete(m, "_id")
	}
	_, err := s.db.Collection(collection).ReplaceOne(ctx,
		bson.D{{Key: "_id", Value: toBSON(id)}},
		replacement,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert into '%s': %w", collection, err)
	}
	return nil
}

func (s *MongoStore) Sample(ctx context.Context, collection string, n int) ([]Document, error) {
	if n <= 0 {
		return nil, nil
	}
	cur, err := s.Find(ctx, collection, Query{Limit: int64(n)})
	if err != nil {
		return nil, err
	}
	return Drain(ctx, cur)
}

func (s *MongoStore) Close(ctx context.Context) error {
	if err := s.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect from MongoDB: %w", err)
	}
	logging.Logf(logging.Debug, "MongoDB client disconnected.")
	return nil
}

// buildFilter translates conditions into a driver filter. Equality on a
// 24-hex string also matches the equivalent ObjectID.
func buildFilter(conds []Cond) bson.D {
	filter := bson.D{}
	for _, c := range conds {
		value := toBSON(c.Value)
		switch c.Op {
		case OpGte:
			filter = append(filter, bson.E{Key: c.Field, Value: bson.D{{Key: "$gte", Value: value}}})
		default:
			if s, ok := value.(string); ok {
				if oid, err := primitive.ObjectIDFromHex(s); err == nil {
					filter = append(filter, bson.E{Key: c.Field, Value: bson.D{{Key: "$in", Value: bson.A{s, oid}}}})
					continue
				}
			}
			filter = append(filter, bson.E{Key: c.Field, Value: value})
		}
	}
	return filter
}

// mongoCursor adapts *mongo.Cursor to Cursor, decoding each document lazily.
type mongoCursor struct {
	cur *mongo.Cursor
	doc Document
	err error
}

func (c *mongoCursor) Next(ctx context.Context) bool {
	if c.err != nil || !c.cur.Next(ctx) {
		return false
	}
	var m bson.M
	if err := c.cur.Decode(&m); err != nil {
		c.err = fmt.Errorf("failed to decode document: %w", err)
		return false
	}
	c.doc = NormalizeDocument(m)
	return true
}

func (c *mongoCursor) Document() Document { return c.doc }

func (c *mongoCursor) Err() error {
	if c.err != nil {
		return c.err
	}
	return c.cur.Err()
}

func (c *mongoCursor) Close(ctx context.Context) error { return c.cur.Close(ctx) }
