// internal/app/store/logins/loginstore.go
package loginstore

import (
	"context"
	"net/http"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/subbanorg/subban-server/internal/app/system/network"
	"github.com/subbanorg/subban-server/internal/domain/models"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("login_records")}
}

// EnsureIndexes creates indexes for efficient querying.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		// Per-user recent logins (latest-first)
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_logins_user_created"),
		},
		// Site-wide recent logins (latest-first)
		{
			Keys:    bson.D{{Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_logins_created"),
		},
	}
	_, err := s.c.Indexes().CreateMany(ctx, indexes)
	return err
}

// Create inserts a LoginRecord. If CreatedAt is zero, it is set to now.
func (s *Store) Create(ctx context.Context, rec models.LoginRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.c.InsertOne(ctx, rec)
	return err
}

// CreateFrom builds a LoginRecord from the HTTP request and inserts it.
// Kind distinguishes general logins from admin device logins.
func (s *Store) CreateFrom(ctx context.Context, r *http.Request, userID primitive.ObjectID, kind string) error {
	return s.Create(ctx, models.LoginRecord{
		UserID:    userID.Hex(),
		CreatedAt: time.Now().UTC(),
		IP:        network.ClientIP(r),
		UserAgent: r.UserAgent(),
		Kind:      kind,
	})
}

// GetByUser retrieves recent login records for a user, latest first.
func (s *Store) GetByUser(ctx context.Context, userID primitive.ObjectID, limit int64) ([]models.LoginRecord, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(limit)

	cur, err := s.c.Find(ctx, bson.M{"user_id": userID.Hex()}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var recs []models.LoginRecord
	if err := cur.All(ctx, &recs); err != nil {
		return nil, err
	}
	return recs, nil
}

// GetRecent retrieves the most recent login records site-wide, latest first.
func (s *Store) GetRecent(ctx context.Context, limit int64) ([]models.LoginRecord, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(limit)

	cur, err := s.c.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var recs []models.LoginRecord
	if err := cur.All(ctx, &recs); err != nil {
		return nil, err
	}
	return recs, nil
}

// CountSince counts logins recorded at or after the cutoff.
func (s *Store) CountSince(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"created_at": bson.M{"$gte": cutoff.UTC()}})
}
