// Package mongostore is the MongoDB storage backend. Reports and alerts
// are stored as GeoJSON points behind 2dsphere indexes, and sessions
// carry a TTL index so the server expires them on its own.
//
// RunInTx uses multi-document transactions and therefore needs a replica
// set deployment.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"sanitrack/internal/apperr"
	"sanitrack/internal/store"
)

const (
	colAccounts = "accounts"
	colSessions = "sessions"
	colReports  = "reports"
	colAlerts   = "emergency_alerts"
	colWorkers  = "workers"
)

type Store struct {
	client *mongo.Client
	db     *mongo.Database
	log    *slog.Logger
}

var _ store.Store = (*Store)(nil)

// Connect dials uri, pings the server and makes sure every index exists.
func Connect(ctx context.Context, uri, dbName string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	start := time.Now()

	dctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	c, err := mongo.Connect(dctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := c.Ping(dctx, nil); err != nil {
		_ = c.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	s := &Store{client: c, db: c.Database(dbName), log: logger}
	if err := s.createIndexes(dctx); err != nil {
		_ = c.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo indexes: %w", err)
	}

	logger.Info("mongo store ready", "uri", redactURI(uri), "db", dbName,
		"elapsed", time.Since(start).Round(time.Millisecond))
	return s, nil
}

func (s *Store) col(name string) *mongo.Collection {
	return s.db.Collection(name)
}

func (s *Store) createIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		colAccounts: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		colSessions: {
			{Keys: bson.D{{Key: "refresh_token_hash", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "account_id", Value: 1}}},
			{Keys: bson.D{{Key: "expires_at", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(0)},
		},
		colReports: {
			{Keys: bson.D{{Key: "location", Value: "2dsphere"}}},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "owner_account_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "assigned_worker_id", Value: 1}, {Key: "status", Value: 1}}},
		},
		colAlerts: {
			{Keys: bson.D{{Key: "location", Value: "2dsphere"}}},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "severity_rank", Value: -1}, {Key: "created_at", Value: -1}}},
		},
		colWorkers: {
			{Keys: bson.D{{Key: "account_id", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "zone", Value: 1}}},
			{Keys: bson.D{{Key: "rating", Value: -1}}},
		},
	}
	for name, idx := range indexes {
		if _, err := s.col(name).Indexes().CreateMany(ctx, idx); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// RunInTx runs fn inside a multi-document transaction. The session
// travels in ctx, so the Store handed to fn is s itself.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx store.Store) error) error {
	if mongo.SessionFromContext(ctx) != nil {
		return fn(ctx, s)
	}

	sess, err := s.client.StartSession()
	if err != nil {
		return apperr.Wrap(err, "start session")
	}
	defer sess.EndSession(context.Background())

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc, s)
	})
	if err != nil {
		var ae *apperr.Error
		if errors.As(err, &ae) {
			return err
		}
		return apperr.Wrap(err, "transaction")
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// translate maps driver errors onto the apperr kinds.
func translate(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return apperr.NotFoundf("%s not found", what)
	}
	if mongo.IsDuplicateKeyError(err) {
		return &apperr.Error{Kind: apperr.Conflict, Message: what + " already exists", Err: err}
	}
	return apperr.Wrap(err, what)
}

func redactURI(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	u.User = url.UserPassword("****", "****")
	return u.String()
}
