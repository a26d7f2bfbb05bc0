// internal/app/store/users/userstore.go
package userstore

import (
	"context"
	"errors"
	"time"

	"github.com/subbanorg/subban-server/internal/app/store/storeutil"
	"github.com/subbanorg/subban-server/internal/app/system/normalize"
	"github.com/subbanorg/subban-server/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	// ErrDuplicateEmail is returned when creating a user with an email that already exists.
	ErrDuplicateEmail = errors.New("a user with this email already exists")

	// ErrNotFound is returned when the requested user does not exist.
	ErrNotFound = errors.New("user not found")

	// ErrVersionConflict is returned by SaveSessionState when another writer
	// modified the session state since it was loaded.
	ErrVersionConflict = errors.New("session state changed concurrently")

	errBadRole   = errors.New("invalid role")
	errBadStatus = errors.New(`status must be "active"|"disabled"`)
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("users")}
}

// EnsureIndexes creates the indexes the user collection depends on.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email_ci", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("idx_users_email_ci"),
		},
		{
			Keys:    bson.D{{Key: "role", Value: 1}, {Key: "status", Value: 1}},
			Options: options.Index().SetName("idx_users_role_status"),
		},
		// Finds accounts holding issued tokens, for the expiry sweep.
		{
			Keys:    bson.D{{Key: "tokens.expires_at", Value: 1}},
			Options: options.Index().SetName("idx_users_token_expiry").SetSparse(true),
		},
	}
	_, err := s.c.Indexes().CreateMany(ctx, indexes)
	return err
}

// GetByID loads a user by ObjectID. Returns ErrNotFound if absent.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// GetByEmail looks up a user by case/diacritic-insensitive email.
// Returns ErrNotFound if absent.
func (s *Store) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"email_ci": text.Fold(email)}).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// ExistsByEmail reports whether an account with the given email exists.
func (s *Store) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	count, err := s.c.CountDocuments(ctx, bson.M{"email_ci": text.Fold(email)})
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Create inserts a new user after normalizing and validating fields.
func (s *Store) Create(ctx context.Context, u models.User) (models.User, error) {
	u.ID = primitive.NewObjectID()
	u.Name = normalize.Name(u.Name)
	u.Email = normalize.Email(u.Email)
	u.EmailCI = text.Fold(u.Email)

	if u.Role == "" {
		u.Role = models.RoleUser
	}
	if u.Status == "" {
		u.Status = models.StatusActive
	}
	if !models.IsValidRole(u.Role) {
		return models.User{}, errBadRole
	}
	if !models.IsValidStatus(u.Status) {
		return models.User{}, errBadStatus
	}

	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, u); err != nil {
		if wafflemongo.IsDup(err) {
			return models.User{}, ErrDuplicateEmail
		}
		return models.User{}, err
	}
	return u, nil
}

// SaveSessionState persists the devices, tokens, and session version of u
// guarded by a compare-and-swap on the version the caller loaded. The write
// matches only if the stored session_version still equals expectedVersion;
// a concurrent login or revocation makes it miss and the caller must reload
// and retry.
func (s *Store) SaveSessionState(ctx context.Context, u *models.User, expectedVersion int64) error {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": u.ID, "session_version": expectedVersion},
		bson.M{"$set": bson.M{
			"devices":         u.Devices,
			"tokens":          u.Tokens,
			"session_version": u.SessionVersion,
			"updated_at":      time.Now().UTC(),
		}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		// Distinguish a vanished user from a lost race.
		n, countErr := s.c.CountDocuments(ctx, bson.M{"_id": u.ID})
		if countErr == nil && n == 0 {
			return ErrNotFound
		}
		return ErrVersionConflict
	}
	return nil
}

// TouchDeviceActivity updates the last-activity timestamp of one device
// session in place. Best effort: a missing device is not an error, and the
// session version is deliberately untouched so this cannot collide with
// login or revocation writes.
func (s *Store) TouchDeviceActivity(ctx context.Context, id primitive.ObjectID, deviceID string, at time.Time) error {
	_, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "devices.device_id": deviceID},
		bson.M{"$set": bson.M{"devices.$.last_activity_at": at.UTC()}})
	return err
}

// UpdateLastLogin stamps the last successful login time.
func (s *Store) UpdateLastLogin(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	_, err := s.c.UpdateOne(ctx, bson.M{"_id": id},
		bson.M{"$set": bson.M{"last_login_at": at.UTC(), "updated_at": time.Now().UTC()}})
	return err
}

// UpdateLastLogout stamps the last logout time.
func (s *Store) UpdateLastLogout(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	_, err := s.c.UpdateOne(ctx, bson.M{"_id": id},
		bson.M{"$set": bson.M{"last_logout_at": at.UTC(), "updated_at": time.Now().UTC()}})
	return err
}

// UpdatePassword replaces the stored password hash.
func (s *Store) UpdatePassword(ctx context.Context, id primitive.ObjectID, passwordHash string) error {
	_, err := s.c.UpdateOne(ctx, bson.M{"_id": id},
		bson.M{"$set": bson.M{"password_hash": passwordHash, "updated_at": time.Now().UTC()}})
	return err
}

// ProfileUpdate holds the self-service profile fields. Nil means "leave as is".
type ProfileUpdate struct {
	Name    *string
	Phone   *string
	Address *string
}

// UpdateProfile applies a self-service profile update.
func (s *Store) UpdateProfile(ctx context.Context, id primitive.ObjectID, upd ProfileUpdate) error {
	set := bson.M{"updated_at": time.Now().UTC()}
	if upd.Name != nil {
		set["name"] = normalize.Name(*upd.Name)
	}
	if upd.Phone != nil {
		set["phone"] = *upd.Phone
	}
	if upd.Address != nil {
		set["address"] = *upd.Address
	}
	_, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	return err
}

// SetRole changes a user's role.
func (s *Store) SetRole(ctx context.Context, id primitive.ObjectID, role string) error {
	if !models.IsValidRole(role) {
		return errBadRole
	}
	_, err := s.c.UpdateOne(ctx, bson.M{"_id": id},
		bson.M{"$set": bson.M{"role": role, "updated_at": time.Now().UTC()}})
	return err
}

// SetStatus activates or disables an account.
func (s *Store) SetStatus(ctx context.Context, id primitive.ObjectID, status string) error {
	if !models.IsValidStatus(status) {
		return errBadStatus
	}
	_, err := s.c.UpdateOne(ctx, bson.M{"_id": id},
		bson.M{"$set": bson.M{"status": status, "updated_at": time.Now().UTC()}})
	return err
}

// Delete removes a user by ID. Returns the number of documents deleted.
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// ListFilter narrows List results. Zero values mean "no constraint".
type ListFilter struct {
	Role   string
	Status string
	Search string // matched against folded name and email prefixes
}

// List returns a page of users newest-first plus the total match count.
func (s *Store) List(ctx context.Context, f ListFilter, page, limit int64) ([]models.User, int64, error) {
	filter := bson.M{}
	if f.Role != "" {
		filter["role"] = f.Role
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	if f.Search != "" {
		folded := text.Fold(f.Search)
		filter["$or"] = bson.A{
			bson.M{"email_ci": bson.M{"$regex": "^" + storeutil.EscapeRegex(folded)}},
			bson.M{"name": bson.M{"$regex": storeutil.EscapeRegex(f.Search), "$options": "i"}},
		}
	}

	total, err := s.c.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	opts := storeutil.Paginate(limit, page).SetSort(bson.D{{Key: "created_at", Value: -1}})
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cur.Close(ctx)

	var users []models.User
	if err := cur.All(ctx, &users); err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

// CountActiveAdmins returns the number of active admin accounts.
func (s *Store) CountActiveAdmins(ctx context.Context) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"role": models.RoleAdmin, "status": models.StatusActive})
}

// Count returns the number of users matching the given filter.
func (s *Store) Count(ctx context.Context, filter bson.M) (int64, error) {
	return s.c.CountDocuments(ctx, filter)
}

// IDsWithExpiredTokens returns ids of users holding at least one issued
// token past its expiry, for the cleanup sweep.
func (s *Store) IDsWithExpiredTokens(ctx context.Context, now time.Time) ([]primitive.ObjectID, error) {
	cur, err := s.c.Find(ctx,
		bson.M{"tokens.expires_at": bson.M{"$lte": now.UTC()}},
		options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var docs []struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	ids := make([]primitive.ObjectID, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}
	return ids, nil
}
