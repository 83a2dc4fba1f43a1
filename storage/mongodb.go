package storage

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"jobboard/config"
	"jobboard/metrics"
	"jobboard/util"

	"github.com/cenkalti/backoff/v4"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// Cursor interface for mocking
type Cursor interface {
	All(ctx context.Context, results interface{}) error
	Close(ctx context.Context) error
}

// SingleResult interface for mocking
type SingleResult interface {
	Decode(v interface{}) error
	Err() error
}

// Collection is the subset of *mongo.Collection the stores use
type Collection interface {
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) SingleResult
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (Cursor, error)
	FindOneAndUpdate(ctx context.Context, filter interface{}, update interface{}, opts ...*options.FindOneAndUpdateOptions) SingleResult
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	UpdateMany(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	DeleteOne(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (*mongo.DeleteResult, error)
	DeleteMany(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (*mongo.DeleteResult, error)
	CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error)
	Aggregate(ctx context.Context, pipeline interface{}, opts ...*options.AggregateOptions) (Cursor, error)
	CreateIndexes(ctx context.Context, models []mongo.IndexModel) error
}

// mongoCollection adapts *mongo.Collection to Collection
type mongoCollection struct {
	*mongo.Collection
}

func (m *mongoCollection) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) SingleResult {
	return m.Collection.FindOne(ctx, filter, opts...)
}

func (m *mongoCollection) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (Cursor, error) {
	cursor, err := m.Collection.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	return cursor, nil
}

func (m *mongoCollection) FindOneAndUpdate(ctx context.Context, filter interface{}, update interface{}, opts ...*options.FindOneAndUpdateOptions) SingleResult {
	return m.Collection.FindOneAndUpdate(ctx, filter, update, opts...)
}

func (m *mongoCollection) Aggregate(ctx context.Context, pipeline interface{}, opts ...*options.AggregateOptions) (Cursor, error) {
	cursor, err := m.Collection.Aggregate(ctx, pipeline, opts...)
	if err != nil {
		return nil, err
	}
	return cursor, nil
}

func (m *mongoCollection) CreateIndexes(ctx context.Context, models []mongo.IndexModel) error {
	_, err := m.Collection.Indexes().CreateMany(ctx, models)
	return err
}

// MongoDB holds the MongoDB client and database.
// The client is created lazily; Connect establishes reachability.
type MongoDB struct {
	Client   *mongo.Client
	Database *mongo.Database

	cfg       *config.Config
	logger    *zap.SugaredLogger
	connected atomic.Bool
	ping      func(ctx context.Context) error
}

// NewMongoDB creates the MongoDB client without waiting for the server.
// It only fails when the connection string itself is unusable.
func NewMongoDB(cfg *config.Config, logger *zap.SugaredLogger) (*MongoDB, error) {
	clientOptions := options.Client().
		ApplyURI(cfg.Database.URI).
		SetMaxPoolSize(cfg.Database.MaxPoolSize).
		SetConnectTimeout(cfg.Database.ConnectTimeout).
		SetServerSelectionTimeout(cfg.Database.ConnectTimeout)

	// mongo.Connect does not perform I/O; it starts background monitoring only.
	client, err := mongo.Connect(context.Background(), clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to create MongoDB client: %w", err)
	}

	m := &MongoDB{
		Client:   client,
		Database: client.Database(cfg.Database.Name),
		cfg:      cfg,
		logger:   logger,
	}
	m.ping = func(ctx context.Context) error {
		return m.Client.Ping(ctx, nil)
	}
	return m, nil
}

// Connect pings the server with exponential backoff until it answers or
// DB_RETRY_MAX_ELAPSED passes. The last error is returned on give-up.
func (m *MongoDB) Connect(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 15 * time.Second
	b.MaxElapsedTime = m.cfg.Database.RetryMaxElapsed

	attempt := 0
	operation := func() error {
		attempt++
		pingCtx, cancel := context.WithTimeout(ctx, m.cfg.Database.ConnectTimeout)
		defer cancel()
		if err := m.ping(pingCtx); err != nil {
			metrics.DBConnectAttempts.WithLabelValues("failure").Inc()
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		metrics.DBConnectAttempts.WithLabelValues("success").Inc()
		return nil
	}

	notify := func(err error, wait time.Duration) {
		m.logger.Warnw("MongoDB connection attempt failed, retrying",
			"attempt", attempt,
			"retry_in", wait,
			"error", util.SanitizeError(err))
	}

	if err := backoff.RetryNotify(operation, backoff.WithContext(b, ctx), notify); err != nil {
		m.logger.Errorw("MongoDB connection failed",
			"uri", config.RedactURI(m.cfg.Database.URI),
			"attempts", attempt,
			"error", util.SanitizeError(err))
		return fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	m.connected.Store(true)
	m.logger.Infow("Connected to MongoDB", "database", m.cfg.Database.Name, "attempts", attempt)
	return nil
}

// Connected reports whether Connect has succeeded at least once
func (m *MongoDB) Connected() bool {
	return m.connected.Load()
}

// HealthCheck performs a health check on the MongoDB connection
func (m *MongoDB) HealthCheck(ctx context.Context) error {
	return m.ping(ctx)
}

// Close closes the MongoDB connection
func (m *MongoDB) Close(ctx context.Context) error {
	return m.Client.Disconnect(ctx)
}

// Collection returns a mockable handle to the named collection
func (m *MongoDB) Collection(name string) Collection {
	return &mongoCollection{Collection: m.Database.Collection(name)}
}
