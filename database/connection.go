package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Process-wide storage handles. Callers own the lifecycle through
// Connect/Disconnect and OpenSQLite/CloseSQLite.
var (
	client   *mongo.Client
	database *mongo.Database
)

// Connect establishes connection to MongoDB
func Connect(databaseURL string) (*mongo.Database, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	clientOptions := options.Client().ApplyURI(databaseURL)

	clientOptions.SetMaxPoolSize(10)
	clientOptions.SetMinPoolSize(1)
	clientOptions.SetMaxConnIdleTime(30 * time.Second)
	clientOptions.SetRetryWrites(true)
	clientOptions.SetRetryReads(true)
	clientOptions.SetReadPreference(readpref.PrimaryPreferred())

	var err error
	client, err = mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err = client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	dbName := extractDatabaseName(databaseURL)
	database = client.Database(dbName)

	logrus.Info("✅ Connected to MongoDB successfully")
	logrus.Infof("📊 Database: %s", dbName)

	return database, nil
}

// Disconnect closes the MongoDB connection
func Disconnect() error {
	if client == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := client.Disconnect(ctx)
	client, database = nil, nil
	if err != nil {
		logrus.Errorf("Error disconnecting from MongoDB: %v", err)
		return err
	}

	logrus.Info("🔌 Disconnected from MongoDB")
	return nil
}

// IsConnected checks if the database connection is alive
func IsConnected() bool {
	if client == nil {
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	return client.Ping(ctx, readpref.Primary()) == nil
}

// extractDatabaseName extracts database name from MongoDB URI
func extractDatabaseName(uri string) string {
	defaultDB := "aaisaheb"

	clientOptions := options.Client().ApplyURI(uri)
	if clientOptions.Auth != nil && clientOptions.Auth.AuthSource != "" {
		return clientOptions.Auth.AuthSource
	}

	rest := uri
	if i := strings.Index(rest, "://"); i >= 0 {
		rest = rest[i+3:]
	}
	slash := strings.Index(rest, "/")
	if slash < 0 {
		return defaultDB
	}
	dbName := rest[slash+1:]
	if i := strings.IndexAny(dbName, "?&"); i >= 0 {
		dbName = dbName[:i]
	}
	if dbName == "" || dbName == "admin" {
		return defaultDB
	}
	return dbName
}
