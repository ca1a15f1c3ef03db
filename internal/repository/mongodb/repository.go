package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mamadbah2/agroirrigate/internal/domain/models"
)


const collectionName = "daily_usage_reports"

// Repository defines the interface for report storage.
type Repository interface {
	SaveDailyReport(ctx context.Context, report models.DailyUsageReport) error
	FindDailyReport(ctx context.Context, date string) (models.DailyUsageReport, error)
}

// MongoDBRepository implements the Repository interface for MongoDB.
type MongoDBRepository struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// NewMongoDBRepository creates a new MongoDB repository.
func NewMongoDBRepository(ctx context.Context, uri string, dbName string) (*MongoDBRepository, error) {
	clientOptions := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	// Ping the database to verify connection
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	return &MongoDBRepository{
		client:     client,
		collection: client.Database(dbName).Collection(collectionName),
	}, nil
}

// NewWithCollection builds a repository over an existing collection handle.
func NewWithCollection(coll *mongo.Collection) *MongoDBRepository {
	return &MongoDBRepository{client: coll.Database().Client(), collection: coll}
}

// SaveDailyReport stores the snapshot for report.Date, replacing an earlier one for the same day.
func (r *MongoDBRepository) SaveDailyReport(ctx context.Context, report models.DailyUsageReport) error {
	_, err := r.collection.ReplaceOne(ctx,
		bson.M{"date": report.Date},
		report,
		options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to upsert daily report: %w", err)
	}
	return nil
}

// FindDailyReport loads the snapshot for a YYYY-MM-DD date.
func (r *MongoDBRepository) FindDailyReport(ctx context.Context, date string) (models.DailyUsageReport, error) {
	var report models.DailyUsageReport
	err := r.collection.FindOne(ctx, bson.M{"date": date}).Decode(&report)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.DailyUsageReport{}, models.ErrReportNotFound
	}
	if err != nil {
		return models.DailyUsageReport{}, fmt.Errorf("failed to find daily report: %w", err)
	}
	return report, nil
}

// Ping verifies the server is reachable.
func (r *MongoDBRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx, nil)
}

// Close closes the MongoDB connection.
func (r *MongoDBRepository) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}
