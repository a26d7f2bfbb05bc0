// internal/app/store/ratelimit/store.go
package ratelimit

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/subbanorg/subban-server/internal/app/system/normalize"
)

// Attempt tracks failed login attempts for a specific email.
type Attempt struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	Email        string             `bson:"email"`         // normalized (lowercase)
	AttemptCount int                `bson:"attempt_count"` // failed attempts in current window
	WindowStart  time.Time          `bson:"window_start"`  // when the current counting window started
	LockedUntil  *time.Time         `bson:"locked_until"`  // lockout expiry (nil if not locked)
	LastAttempt  time.Time          `bson:"last_attempt"`  // most recent attempt, drives TTL cleanup
	CreatedAt    time.Time          `bson:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at"`
}

// Store manages rate limit tracking for login attempts.
type Store struct {
	c               *mongo.Collection
	maxAttempts     int
	windowDuration  time.Duration
	lockoutDuration time.Duration
}

// New creates a rate limit Store with the given policy.
func New(db *mongo.Database, maxAttempts int, window, lockout time.Duration) *Store {
	return &Store{
		c:               db.Collection("rate_limits"),
		maxAttempts:     maxAttempts,
		windowDuration:  window,
		lockoutDuration: lockout,
	}
}

// EnsureIndexes creates the unique email index and a TTL sweep on stale
// records.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("idx_ratelimit_email"),
		},
		{
			Keys:    bson.D{{Key: "last_attempt", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(86400).SetName("idx_ratelimit_ttl"),
		},
	}
	_, err := s.c.Indexes().CreateMany(ctx, indexes)
	return err
}

// CheckAllowed reports whether a login attempt for the email may proceed.
// Returns the attempts remaining before lockout (-1 while locked) and the
// lockout expiry when locked. Lookup errors fail open: availability of
// login beats strictness of the limiter.
func (s *Store) CheckAllowed(ctx context.Context, email string) (allowed bool, remaining int, lockedUntil *time.Time) {
	email = normalize.Email(email)
	now := time.Now().UTC()

	var attempt Attempt
	err := s.c.FindOne(ctx, bson.M{"email": email}).Decode(&attempt)
	if err != nil {
		return true, s.maxAttempts, nil
	}

	if attempt.LockedUntil != nil && now.Before(*attempt.LockedUntil) {
		return false, -1, attempt.LockedUntil
	}

	if now.After(attempt.WindowStart.Add(s.windowDuration)) {
		return true, s.maxAttempts, nil
	}

	remaining = s.maxAttempts - attempt.AttemptCount
	if remaining <= 0 {
		// Window exhausted but lockout not yet written; RecordFailure will
		// set it on the next failure.
		return false, 0, nil
	}
	return true, remaining, nil
}

// RecordFailure registers a failed login attempt, starting a lockout when
// the window's attempt budget is spent.
func (s *Store) RecordFailure(ctx context.Context, email string) error {
	email = normalize.Email(email)
	now := time.Now().UTC()

	var attempt Attempt
	err := s.c.FindOne(ctx, bson.M{"email": email}).Decode(&attempt)
	if err != nil || now.After(attempt.WindowStart.Add(s.windowDuration)) {
		// First failure, or window expired: start a fresh window.
		_, err := s.c.UpdateOne(ctx,
			bson.M{"email": email},
			bson.M{
				"$set": bson.M{
					"attempt_count": 1,
					"window_start":  now,
					"locked_until":  nil,
					"last_attempt":  now,
					"updated_at":    now,
				},
				"$setOnInsert": bson.M{"created_at": now},
			},
			options.Update().SetUpsert(true))
		return err
	}

	set := bson.M{"last_attempt": now, "updated_at": now}
	if attempt.AttemptCount+1 >= s.maxAttempts {
		until := now.Add(s.lockoutDuration)
		set["locked_until"] = &until
	}
	_, err = s.c.UpdateOne(ctx,
		bson.M{"email": email},
		bson.M{"$inc": bson.M{"attempt_count": 1}, "$set": set})
	return err
}

// RecordSuccess clears tracking for the email after a successful login.
func (s *Store) RecordSuccess(ctx context.Context, email string) error {
	_, err := s.c.DeleteOne(ctx, bson.M{"email": normalize.Email(email)})
	return err
}
