// Package testutil provides utilities for testing, including database setup
// and authenticated request helpers.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/subbanorg/subban-server/internal/app/system/indexes"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	// TestDBURI is the MongoDB connection string for tests.
	TestDBURI = "mongodb://localhost:27017"
	// TestDBName is the database name prefix used for tests.
	TestDBName = "subban_test"
)

var (
	clientOnce sync.Once
	client     *mongo.Client
	clientErr  error
)

// getClient returns a shared MongoDB client for all tests.
func getClient() (*mongo.Client, error) {
	clientOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		clientOpts := options.Client().
			ApplyURI(TestDBURI).
			SetMaxPoolSize(200).
			SetMinPoolSize(10).
			SetMaxConnIdleTime(30 * time.Second).
			SetConnectTimeout(10 * time.Second).
			SetServerSelectionTimeout(10 * time.Second)

		client, clientErr = mongo.Connect(ctx, clientOpts)
		if clientErr != nil {
			return
		}
		clientErr = client.Ping(ctx, nil)
	})
	return client, clientErr
}

// SetupTestDB returns a test database instance with indexes created.
// Each test gets a unique database based on the test name so packages can
// run in parallel. The database is dropped when the test completes.
func SetupTestDB(t *testing.T) *mongo.Database {
	t.Helper()

	client, err := getClient()
	if err != nil {
		t.Fatalf("failed to connect to test MongoDB: %v", err)
	}

	dbName := fmt.Sprintf("%s_%s", TestDBName, sanitizeTestName(t.Name()))
	db := client.Database(dbName)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := db.Drop(ctx); err != nil {
		t.Fatalf("failed to drop test database: %v", err)
	}
	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("failed to create indexes: %v", err)
	}

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := db.Drop(ctx); err != nil {
			t.Logf("warning: failed to drop test database on cleanup: %v", err)
		}
	})

	return db
}

// sanitizeTestName converts a test name to a valid database name suffix.
// MongoDB limits database names to 63 characters, so the suffix is truncated.
func sanitizeTestName(name string) string {
	result := make([]byte, 0, len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' {
			result = append(result, c)
		} else {
			result = append(result, '_')
		}
	}
	// The prefix "subban_test_" is 12 characters, leaving 51 for the suffix.
	const maxLen = 51
	if len(result) > maxLen {
		result = result[:maxLen]
	}
	return string(result)
}

// TestContext returns a context with a reasonable timeout for test operations.
func TestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}
