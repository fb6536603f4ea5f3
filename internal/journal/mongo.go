package journal

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// CollectionName is where entries are stored.
const CollectionName = "operations"

// MongoRecorder implements Recorder using the MongoDB driver.
type MongoRecorder struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// NewMongoRecorder connects to MongoDB and ensures the query index exists.
func NewMongoRecorder(ctx context.Context, connectionString, database string) (*MongoRecorder, error) {
	opts := options.Client().ApplyURI(connectionString)
	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("connecting to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("pinging MongoDB: %w", err)
	}

	coll := client.Database(database).Collection(CollectionName)
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "cluster", Value: 1}, {Key: "time", Value: -1}},
	})
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("creating journal index: %w", err)
	}

	return &MongoRecorder{client: client, collection: coll}, nil
}

// Record inserts one entry.
func (m *MongoRecorder) Record(ctx context.Context, e Entry) error {
	if _, err := m.collection.InsertOne(ctx, e); err != nil {
		return fmt.Errorf("recording %s %s: %w", e.Op, e.Host, err)
	}
	return nil
}

// Recent returns the newest entries of a cluster, newest first.
func (m *MongoRecorder) Recent(ctx context.Context, clusterName string, limit int) ([]Entry, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "time", Value: -1}}).
		SetLimit(int64(limit))
	cursor, err := m.collection.Find(ctx, bson.D{{Key: "cluster", Value: clusterName}}, opts)
	if err != nil {
		return nil, fmt.Errorf("querying journal: %w", err)
	}
	defer cursor.Close(ctx)

	var entries []Entry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("decoding journal: %w", err)
	}
	return entries, nil
}

// Close disconnects from MongoDB.
func (m *MongoRecorder) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
