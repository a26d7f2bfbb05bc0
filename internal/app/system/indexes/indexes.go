// internal/app/system/indexes/indexes.go

// Package indexes creates every collection index the application relies on.
// Called once at startup (and by test setup) so queries never depend on an
// index that was never built.
package indexes

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"

	blogstore "github.com/subbanorg/subban-server/internal/app/store/blogs"
	gallerystore "github.com/subbanorg/subban-server/internal/app/store/gallery"
	loginstore "github.com/subbanorg/subban-server/internal/app/store/logins"
	"github.com/subbanorg/subban-server/internal/app/store/ratelimit"
	userstore "github.com/subbanorg/subban-server/internal/app/store/users"
)

// EnsureAll creates the indexes for every store. Rate limit policy values
// here are irrelevant to index creation and use zero defaults.
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	steps := []struct {
		name   string
		ensure func(context.Context) error
	}{
		{"users", userstore.New(db).EnsureIndexes},
		{"blogs", blogstore.New(db).EnsureIndexes},
		{"gallery", gallerystore.New(db).EnsureIndexes},
		{"logins", loginstore.New(db).EnsureIndexes},
		{"ratelimit", ratelimit.New(db, 0, 0, 0).EnsureIndexes},
	}
	for _, s := range steps {
		if err := s.ensure(ctx); err != nil {
			return fmt.Errorf("ensure %s indexes: %w", s.name, err)
		}
	}
	return nil
}
