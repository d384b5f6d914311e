package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"
)

const (
	DefaultURI      = "mongodb://localhost:27017/expense-tracker"
	DefaultDatabase = "expense-tracker"
	Collection      = "transactions"
)

type Config struct {
	URI string
	// database to use; defaults to the one named in URI, then DefaultDatabase
	Database string
}

// Parse reads the database name out of uri
func Parse(uri string) (*Config, error) {
	if uri == "" {
		uri = DefaultURI
	}

	cs, err := connstring.ParseAndValidate(uri)
	if err != nil {
		return nil, fmt.Errorf("parsing mongodb uri: %w", err)
	}

	database := cs.Database
	if database == "" {
		database = DefaultDatabase
	}

	return &Config{URI: uri, Database: database}, nil
}

// Connect dials MongoDB, checks the primary answers, and returns the transactions
// collection with its timestamp index in place.
// Disconnect through coll.Database().Client().
func Connect(ctx context.Context, config *Config) (*mongo.Collection, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(config.URI))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongodb: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("pinging mongodb: %w", err)
	}

	coll := client.Database(config.Database).Collection(Collection)
	if err := setup(ctx, coll); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}

	return coll, nil
}

func setup(ctx context.Context, coll *mongo.Collection) error {
	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "timestamp", Value: -1}},
		Options: options.Index().SetName("timestamp_desc"),
	})
	if err != nil {
		return fmt.Errorf("creating timestamp index: %w", err)
	}
	return nil
}
