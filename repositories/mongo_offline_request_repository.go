package repositories

import (
	"aaisaheb/models"
	"aaisaheb/utils"
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoOfflineRequestRepository is the MongoDB flavour of the interception log.
type MongoOfflineRequestRepository struct {
	collection *mongo.Collection
}

func NewMongoOfflineRequestRepository(database *mongo.Database) *MongoOfflineRequestRepository {
	return &MongoOfflineRequestRepository{
		collection: database.Collection("offline_requests"),
	}
}

// EnsureIndexes creates the indexes used by the reconciliation scan.
func (r *MongoOfflineRequestRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "synced", Value: 1}, {Key: "timestamp", Value: 1}}},
		{Keys: bson.D{{Key: "timestamp", Value: -1}}},
	})
	if err != nil {
		return utils.NewDatabaseError("create offline request indexes", err)
	}
	return nil
}

func (r *MongoOfflineRequestRepository) Create(ctx context.Context, req *models.OfflineRequest) error {
	if req.ID == "" {
		req.ID = utils.GenerateUUID()
	}
	if req.Timestamp.IsZero() {
		req.Timestamp = time.Now()
	}
	req.Synced = false

	if _, err := r.collection.InsertOne(ctx, req); err != nil {
		logrus.Errorf("Failed to store offline request: %v", err)
		return utils.NewDatabaseError("create offline request", err)
	}
	return nil
}

func (r *MongoOfflineRequestRepository) ListUnsynced(ctx context.Context, limit int) ([]models.OfflineRequest, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return r.find(ctx, bson.M{"synced": false}, opts)
}

func (r *MongoOfflineRequestRepository) List(ctx context.Context, limit int) ([]models.OfflineRequest, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return r.find(ctx, bson.M{}, opts)
}

func (r *MongoOfflineRequestRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.OfflineRequest, error) {
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, utils.NewDatabaseError("list offline requests", err)
	}
	defer cursor.Close(ctx)

	var out []models.OfflineRequest
	if err := cursor.All(ctx, &out); err != nil {
		return nil, utils.NewDatabaseError("decode offline requests", err)
	}
	return out, nil
}

func (r *MongoOfflineRequestRepository) MarkSynced(ctx context.Context, id string, syncedAt time.Time) error {
	result, err := r.collection.UpdateByID(ctx, id, bson.M{
		"$set": bson.M{"synced": true, "syncedAt": syncedAt, "lastError": ""},
		"$inc": bson.M{"attempts": 1},
	})
	if err != nil {
		return utils.NewDatabaseError("mark offline request synced", err)
	}
	if result.MatchedCount == 0 {
		return utils.NewNotFoundError("Offline request")
	}
	return nil
}

func (r *MongoOfflineRequestRepository) RecordFailure(ctx context.Context, id string, reason string) error {
	result, err := r.collection.UpdateByID(ctx, id, bson.M{
		"$set": bson.M{"lastError": utils.Truncate(reason, 512)},
		"$inc": bson.M{"attempts": 1},
	})
	if err != nil {
		return utils.NewDatabaseError("record offline request failure", err)
	}
	if result.MatchedCount == 0 {
		return utils.NewNotFoundError("Offline request")
	}
	return nil
}
