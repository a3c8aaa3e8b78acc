package mongostore

import (
	"context"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"sanitrack/internal/apperr"
	"sanitrack/internal/models"
)

func (s *Store) CreateAccount(ctx context.Context, a *models.Account) error {
	doc := *a
	doc.Email = strings.ToLower(doc.Email)
	_, err := s.col(colAccounts).InsertOne(ctx, doc)
	if err != nil {
		err = translate(err, "account")
		if apperr.KindOf(err) == apperr.Conflict {
			return apperr.Conflictf("email already registered")
		}
		return err
	}
	return nil
}

func (s *Store) AccountByID(ctx context.Context, id string) (*models.Account, error) {
	return s.findAccount(ctx, bson.M{"_id": id})
}

func (s *Store) AccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	return s.findAccount(ctx, bson.M{"email": strings.ToLower(email)})
}

func (s *Store) findAccount(ctx context.Context, filter bson.M) (*models.Account, error) {
	var a models.Account
	if err := s.col(colAccounts).FindOne(ctx, filter).Decode(&a); err != nil {
		return nil, translate(err, "account")
	}
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	return &a, nil
}

func (s *Store) CreateSession(ctx context.Context, sess *models.Session) error {
	_, err := s.col(colSessions).InsertOne(ctx, sess)
	return translate(err, "session")
}

func (s *Store) SessionByTokenHash(ctx context.Context, hash string) (*models.Session, error) {
	var sess models.Session
	err := s.col(colSessions).FindOne(ctx, bson.M{"refresh_token_hash": hash}).Decode(&sess)
	if err != nil {
		return nil, translate(err, "session")
	}
	sess.ExpiresAt = sess.ExpiresAt.UTC()
	sess.CreatedAt = sess.CreatedAt.UTC()
	return &sess, nil
}

func (s *Store) DeleteSession(ctx context.Context, id string) error {
	_, err := s.col(colSessions).DeleteOne(ctx, bson.M{"_id": id})
	return translate(err, "session")
}

func (s *Store) DeleteSessionByTokenHash(ctx context.Context, hash string) error {
	_, err := s.col(colSessions).DeleteOne(ctx, bson.M{"refresh_token_hash": hash})
	return translate(err, "session")
}

func (s *Store) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.col(colSessions).DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lte": now}})
	if err != nil {
		return 0, translate(err, "session")
	}
	return res.DeletedCount, nil
}

func (s *Store) CreateWorker(ctx context.Context, w *models.Worker) error {
	doc := *w
	if doc.ActiveReportIDs == nil {
		doc.ActiveReportIDs = []string{}
	}
	_, err := s.col(colWorkers).InsertOne(ctx, doc)
	return translate(err, "worker")
}

func (s *Store) WorkerByAccountID(ctx context.Context, accountID string) (*models.Worker, error) {
	var w models.Worker
	if err := s.col(colWorkers).FindOne(ctx, bson.M{"account_id": accountID}).Decode(&w); err != nil {
		return nil, translate(err, "worker")
	}
	normalizeWorker(&w)
	return &w, nil
}

func (s *Store) UpdateWorker(ctx context.Context, w *models.Worker) error {
	doc := *w
	if doc.ActiveReportIDs == nil {
		doc.ActiveReportIDs = []string{}
	}
	res, err := s.col(colWorkers).ReplaceOne(ctx, bson.M{"_id": w.ID}, doc)
	if err != nil {
		return translate(err, "worker")
	}
	if res.MatchedCount == 0 {
		return apperr.NotFoundf("worker not found")
	}
	return nil
}

func (s *Store) SetWorkerStatus(ctx context.Context, accountID string, status models.WorkerStatus, at time.Time) error {
	res, err := s.col(colWorkers).UpdateOne(ctx,
		bson.M{"account_id": accountID},
		bson.M{"$set": bson.M{"status": status, "updated_at": at}},
	)
	if err != nil {
		return translate(err, "worker")
	}
	if res.MatchedCount == 0 {
		return apperr.NotFoundf("worker not found")
	}
	return nil
}

func (s *Store) ListWorkers(ctx context.Context, q models.WorkerQuery) ([]models.Worker, int64, error) {
	filter := bson.M{}
	if q.Status != "" {
		filter["status"] = q.Status
	}
	if q.Zone != "" {
		filter["zone"] = q.Zone
	}

	total, err := s.col(colWorkers).CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, translate(err, "worker")
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "rating", Value: -1}, {Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}).
		SetSkip(int64(q.Offset())).
		SetLimit(int64(q.Limit))
	workers, err := s.findWorkers(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	return workers, total, nil
}

func (s *Store) AvailableWorkers(ctx context.Context, limit int) ([]models.Worker, error) {
	return s.findWorkers(ctx, bson.M{"status": models.WorkerAvailable}, options.Find().SetLimit(int64(limit)))
}

func (s *Store) findWorkers(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Worker, error) {
	cur, err := s.col(colWorkers).Find(ctx, filter, opts)
	if err != nil {
		return nil, translate(err, "worker")
	}
	var workers []models.Worker
	if err := cur.All(ctx, &workers); err != nil {
		return nil, translate(err, "worker")
	}
	for i := range workers {
		normalizeWorker(&workers[i])
	}
	return workers, nil
}

func normalizeWorker(w *models.Worker) {
	if w.ActiveReportIDs == nil {
		w.ActiveReportIDs = []string{}
	}
	w.CreatedAt = w.CreatedAt.UTC()
	w.UpdatedAt = w.UpdatedAt.UTC()
}
