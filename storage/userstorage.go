package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"jobboard/core"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// UsersCollection is the collection holding accounts
const UsersCollection = "users"

// UserStorage handles account persistence
type UserStorage struct {
	coll    Collection
	timeout time.Duration
	logger  *zap.SugaredLogger
}

// NewUserStorage creates a user store on the users collection
func NewUserStorage(db *MongoDB, logger *zap.SugaredLogger) *UserStorage {
	return NewUserStorageWithCollection(db.Collection(UsersCollection), logger)
}

// NewUserStorageWithCollection creates a user store over an arbitrary collection
func NewUserStorageWithCollection(coll Collection, logger *zap.SugaredLogger) *UserStorage {
	return &UserStorage{coll: coll, timeout: core.DBOperationTimeout, logger: logger}
}

// EnsureIndexes creates the unique email index
func (us *UserStorage) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, us.timeout)
	defer cancel()

	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
	}
	if err := us.coll.CreateIndexes(ctx, models); err != nil {
		return fmt.Errorf("failed to create user indexes: %w", err)
	}
	return nil
}

// Create inserts a user. The password must already be hashed.
func (us *UserStorage) Create(ctx context.Context, user *core.User) (*core.User, error) {
	ctx, cancel := context.WithTimeout(ctx, us.timeout)
	defer cancel()

	res, err := us.coll.InsertOne(ctx, user)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		user.ID = id
	}
	return user, nil
}

// GetByID returns a user by ID
func (us *UserStorage) GetByID(ctx context.Context, id primitive.ObjectID) (*core.User, error) {
	return us.findOne(ctx, bson.M{"_id": id})
}

// GetByEmail returns a user by email, including the password hash
func (us *UserStorage) GetByEmail(ctx context.Context, email string) (*core.User, error) {
	return us.findOne(ctx, bson.M{"email": email})
}

// Update changes the name and email of a user
func (us *UserStorage) Update(ctx context.Context, id primitive.ObjectID, name, email string) (*core.User, error) {
	ctx, cancel := context.WithTimeout(ctx, us.timeout)
	defer cancel()

	update := bson.M{"$set": bson.M{"name": name, "email": email}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var user core.User
	if err := us.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&user); err != nil {
		switch {
		case errors.Is(err, mongo.ErrNoDocuments):
			return nil, ErrUserNotFound
		case mongo.IsDuplicateKeyError(err):
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return &user, nil
}

// UpdatePassword replaces the stored password hash
func (us *UserStorage) UpdatePassword(ctx context.Context, id primitive.ObjectID, hash string) error {
	ctx, cancel := context.WithTimeout(ctx, us.timeout)
	defer cancel()

	res, err := us.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"password": hash}})
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrUserNotFound
	}
	return nil
}

// Delete removes a user by ID
func (us *UserStorage) Delete(ctx context.Context, id primitive.ObjectID) error {
	ctx, cancel := context.WithTimeout(ctx, us.timeout)
	defer cancel()

	res, err := us.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (us *UserStorage) findOne(ctx context.Context, filter bson.M) (*core.User, error) {
	ctx, cancel := context.WithTimeout(ctx, us.timeout)
	defer cancel()

	var user core.User
	if err := us.coll.FindOne(ctx, filter).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}
