package mongostore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"sanitrack/internal/apperr"
	"sanitrack/internal/models"
)

// point is a GeoJSON Point that also carries the postal address.
type point struct {
	Type        string    `bson:"type"`
	Coordinates []float64 `bson:"coordinates"`
	Address     string    `bson:"address"`
}

func toPoint(l models.Location) point {
	return point{Type: "Point", Coordinates: []float64{l.Lng, l.Lat}, Address: l.Address}
}

func (p point) location() models.Location {
	l := models.Location{Address: p.Address}
	if len(p.Coordinates) == 2 {
		l.Lng, l.Lat = p.Coordinates[0], p.Coordinates[1]
	}
	return l
}

func nearSphere(q models.NearbyQuery) bson.M {
	return bson.M{"$nearSphere": bson.M{
		"$geometry":    bson.M{"type": "Point", "coordinates": []float64{q.Lng, q.Lat}},
		"$maxDistance": q.RadiusMeters,
	}}
}

type reportDoc struct {
	ID               string              `bson:"_id"`
	Title            string              `bson:"title"`
	Description      string              `bson:"description"`
	Category         models.Category     `bson:"category"`
	Location         point               `bson:"location"`
	Status           models.ReportStatus `bson:"status"`
	Priority         models.Priority     `bson:"priority"`
	PriorityRank     int                 `bson:"priority_rank"`
	Images           []string            `bson:"images"`
	OwnerAccountID   string              `bson:"owner_account_id,omitempty"`
	IsAnonymous      bool                `bson:"is_anonymous"`
	AssignedWorkerID string              `bson:"assigned_worker_id,omitempty"`
	CompletedAt      *time.Time          `bson:"completed_at,omitempty"`
	CreatedAt        time.Time           `bson:"created_at"`
	UpdatedAt        time.Time           `bson:"updated_at"`
}

func toReportDoc(r *models.Report) reportDoc {
	images := r.Images
	if images == nil {
		images = []string{}
	}
	return reportDoc{
		ID: r.ID, Title: r.Title, Description: r.Description, Category: r.Category,
		Location: toPoint(r.Location), Status: r.Status, Priority: r.Priority,
		PriorityRank: r.Priority.Rank(), Images: images, OwnerAccountID: r.OwnerAccountID,
		IsAnonymous: r.IsAnonymous, AssignedWorkerID: r.AssignedWorkerID, CompletedAt: r.CompletedAt,
		CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt,
	}
}

func (d reportDoc) report() models.Report {
	r := models.Report{
		ID: d.ID, Title: d.Title, Description: d.Description, Category: d.Category,
		Location: d.Location.location(), Status: d.Status, Priority: d.Priority, Images: d.Images,
		OwnerAccountID: d.OwnerAccountID, IsAnonymous: d.IsAnonymous, AssignedWorkerID: d.AssignedWorkerID,
		CreatedAt: d.CreatedAt.UTC(), UpdatedAt: d.UpdatedAt.UTC(),
	}
	if r.Images == nil {
		r.Images = []string{}
	}
	if d.CompletedAt != nil {
		t := d.CompletedAt.UTC()
		r.CompletedAt = &t
	}
	return r
}

func (s *Store) CreateReport(ctx context.Context, r *models.Report) error {
	if r.IsAnonymous && r.OwnerAccountID != "" {
		return apperr.Validation("anonymous report cannot have an owner")
	}
	_, err := s.col(colReports).InsertOne(ctx, toReportDoc(r))
	return translate(err, "report")
}

func (s *Store) ReportByID(ctx context.Context, id string) (*models.Report, error) {
	var d reportDoc
	if err := s.col(colReports).FindOne(ctx, bson.M{"_id": id}).Decode(&d); err != nil {
		return nil, translate(err, "report")
	}
	r := d.report()
	return &r, nil
}

func (s *Store) UpdateReport(ctx context.Context, r *models.Report) error {
	res, err := s.col(colReports).ReplaceOne(ctx, bson.M{"_id": r.ID}, toReportDoc(r))
	if err != nil {
		return translate(err, "report")
	}
	if res.MatchedCount == 0 {
		return apperr.NotFoundf("report not found")
	}
	return nil
}

func (s *Store) DeleteReport(ctx context.Context, id string) error {
	res, err := s.col(colReports).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return translate(err, "report")
	}
	if res.DeletedCount == 0 {
		return apperr.NotFoundf("report not found")
	}
	return nil
}

var reportSortFields = map[models.ReportSortField]string{
	models.SortCreatedAt: "created_at",
	models.SortUpdatedAt: "updated_at",
	models.SortPriority:  "priority_rank",
	models.SortStatus:    "status",
}

func (s *Store) ListReports(ctx context.Context, q models.ReportQuery) ([]models.Report, int64, error) {
	filter := bson.M{}
	if q.Status != "" {
		filter["status"] = q.Status
	}
	if q.Priority != "" {
		filter["priority"] = q.Priority
	}
	if q.Category != "" {
		filter["category"] = q.Category
	}
	if q.OwnerID != "" {
		filter["owner_account_id"] = q.OwnerID
	}
	if q.VisibleTo != "" {
		filter["$or"] = []bson.M{
			{"owner_account_id": q.VisibleTo},
			{"is_anonymous": true},
		}
	}

	field, ok := reportSortFields[q.SortBy]
	if !ok {
		return nil, 0, apperr.Validation("invalid sort field %q", q.SortBy)
	}
	dir := -1
	if q.Order == models.Asc {
		dir = 1
	}

	total, err := s.col(colReports).CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, translate(err, "report")
	}

	sort := bson.D{{Key: field, Value: dir}}
	if field != "created_at" {
		sort = append(sort, bson.E{Key: "created_at", Value: -1})
	}
	sort = append(sort, bson.E{Key: "_id", Value: 1})

	opts := options.Find().SetSort(sort).SetSkip(int64(q.Offset())).SetLimit(int64(q.Limit))
	reports, err := s.findReports(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	return reports, total, nil
}

func (s *Store) NearbyReports(ctx context.Context, q models.NearbyQuery) ([]models.Report, error) {
	opts := options.Find()
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}
	return s.findReports(ctx, bson.M{"location": nearSphere(q)}, opts)
}

func (s *Store) CompletedReportsByWorker(ctx context.Context, workerAccountID string) ([]models.Report, error) {
	filter := bson.M{"assigned_worker_id": workerAccountID, "status": models.StatusCompleted}
	opts := options.Find().SetSort(bson.D{{Key: "completed_at", Value: -1}})
	return s.findReports(ctx, filter, opts)
}

func (s *Store) findReports(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Report, error) {
	cur, err := s.col(colReports).Find(ctx, filter, opts)
	if err != nil {
		return nil, translate(err, "report")
	}
	var docs []reportDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, translate(err, "report")
	}
	reports := make([]models.Report, len(docs))
	for i, d := range docs {
		reports[i] = d.report()
	}
	return reports, nil
}

type alertDoc struct {
	ID                string             `bson:"_id"`
	Message           string             `bson:"message"`
	Location          point              `bson:"location"`
	Severity          models.Severity    `bson:"severity"`
	SeverityRank      int                `bson:"severity_rank"`
	Status            models.AlertStatus `bson:"status"`
	Images            []string           `bson:"images"`
	ReporterAccountID string             `bson:"reporter_account_id,omitempty"`
	ResolvedAt        *time.Time         `bson:"resolved_at,omitempty"`
	CreatedAt         time.Time          `bson:"created_at"`
	UpdatedAt         time.Time          `bson:"updated_at"`
}

func toAlertDoc(a *models.EmergencyAlert) alertDoc {
	images := a.Images
	if images == nil {
		images = []string{}
	}
	return alertDoc{
		ID: a.ID, Message: a.Message, Location: toPoint(a.Location), Severity: a.Severity,
		SeverityRank: a.Severity.Rank(), Status: a.Status, Images: images,
		ReporterAccountID: a.ReporterAccountID, ResolvedAt: a.ResolvedAt,
		CreatedAt: a.CreatedAt, UpdatedAt: a.UpdatedAt,
	}
}

func (d alertDoc) alert() models.EmergencyAlert {
	a := models.EmergencyAlert{
		ID: d.ID, Message: d.Message, Location: d.Location.location(), Severity: d.Severity,
		Status: d.Status, Images: d.Images, ReporterAccountID: d.ReporterAccountID,
		CreatedAt: d.CreatedAt.UTC(), UpdatedAt: d.UpdatedAt.UTC(),
	}
	if a.Images == nil {
		a.Images = []string{}
	}
	if d.ResolvedAt != nil {
		t := d.ResolvedAt.UTC()
		a.ResolvedAt = &t
	}
	return a
}

func (s *Store) CreateAlert(ctx context.Context, a *models.EmergencyAlert) error {
	_, err := s.col(colAlerts).InsertOne(ctx, toAlertDoc(a))
	return translate(err, "emergency alert")
}

func (s *Store) AlertByID(ctx context.Context, id string) (*models.EmergencyAlert, error) {
	var d alertDoc
	if err := s.col(colAlerts).FindOne(ctx, bson.M{"_id": id}).Decode(&d); err != nil {
		return nil, translate(err, "emergency alert")
	}
	a := d.alert()
	return &a, nil
}

func (s *Store) ResolveAlert(ctx context.Context, id string, at time.Time) error {
	res, err := s.col(colAlerts).UpdateOne(ctx,
		bson.M{"_id": id, "status": models.AlertActive},
		bson.M{"$set": bson.M{"status": models.AlertResolved, "resolved_at": at, "updated_at": at}},
	)
	if err != nil {
		return translate(err, "emergency alert")
	}
	if res.MatchedCount > 0 {
		return nil
	}
	if _, err := s.AlertByID(ctx, id); err != nil {
		return err
	}
	return apperr.Conflictf("alert already resolved")
}

func (s *Store) DeleteAlert(ctx context.Context, id string) error {
	res, err := s.col(colAlerts).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return translate(err, "emergency alert")
	}
	if res.DeletedCount == 0 {
		return apperr.NotFoundf("emergency alert not found")
	}
	return nil
}

func (s *Store) ListAlerts(ctx context.Context, q models.AlertQuery) ([]models.EmergencyAlert, int64, error) {
	filter := bson.M{}
	if q.Status != "" {
		filter["status"] = q.Status
	}
	if q.Severity != "" {
		filter["severity"] = q.Severity
	}

	total, err := s.col(colAlerts).CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, translate(err, "emergency alert")
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "severity_rank", Value: -1}, {Key: "created_at", Value: -1}, {Key: "_id", Value: 1}}).
		SetSkip(int64(q.Offset())).
		SetLimit(int64(q.Limit))
	alerts, err := s.findAlerts(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	return alerts, total, nil
}

func (s *Store) NearbyActiveAlerts(ctx context.Context, q models.NearbyQuery) ([]models.EmergencyAlert, error) {
	opts := options.Find()
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}
	filter := bson.M{"status": models.AlertActive, "location": nearSphere(q)}
	return s.findAlerts(ctx, filter, opts)
}

func (s *Store) findAlerts(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.EmergencyAlert, error) {
	cur, err := s.col(colAlerts).Find(ctx, filter, opts)
	if err != nil {
		return nil, translate(err, "emergency alert")
	}
	var docs []alertDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, translate(err, "emergency alert")
	}
	alerts := make([]models.EmergencyAlert, len(docs))
	for i, d := range docs {
		alerts[i] = d.alert()
	}
	return alerts, nil
}
