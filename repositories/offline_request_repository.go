package repositories

import (
	"aaisaheb/models"
	"aaisaheb/utils"
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// OfflineRequestRepository is the interception layer's durable log backed by
// SQLite through gorm.
type OfflineRequestRepository struct {
	db *gorm.DB
}

func NewOfflineRequestRepository(db *gorm.DB) *OfflineRequestRepository {
	return &OfflineRequestRepository{db: db}
}

func (r *OfflineRequestRepository) Create(ctx context.Context, req *models.OfflineRequest) error {
	if req.ID == "" {
		req.ID = utils.GenerateUUID()
	}
	if req.Timestamp.IsZero() {
		req.Timestamp = time.Now()
	}
	req.Synced = false

	if err := r.db.WithContext(ctx).Create(req).Error; err != nil {
		logrus.Errorf("Failed to store offline request: %v", err)
		return utils.NewDatabaseError("create offline request", err)
	}
	return nil
}

// ListUnsynced returns unsynced records oldest first.
func (r *OfflineRequestRepository) ListUnsynced(ctx context.Context, limit int) ([]models.OfflineRequest, error) {
	var out []models.OfflineRequest
	query := r.db.WithContext(ctx).
		Where("synced = ?", false).
		Order("timestamp ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&out).Error; err != nil {
		return nil, utils.NewDatabaseError("list unsynced offline requests", err)
	}
	return out, nil
}

// List returns the whole log, newest first, including synced entries.
func (r *OfflineRequestRepository) List(ctx context.Context, limit int) ([]models.OfflineRequest, error) {
	var out []models.OfflineRequest
	query := r.db.WithContext(ctx).Order("timestamp DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&out).Error; err != nil {
		return nil, utils.NewDatabaseError("list offline requests", err)
	}
	return out, nil
}

func (r *OfflineRequestRepository) MarkSynced(ctx context.Context, id string, syncedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&models.OfflineRequest{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"synced":     true,
			"synced_at":  syncedAt,
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": "",
		})
	if result.Error != nil {
		return utils.NewDatabaseError("mark offline request synced", result.Error)
	}
	if result.RowsAffected == 0 {
		return utils.NewNotFoundError("Offline request")
	}
	return nil
}

func (r *OfflineRequestRepository) RecordFailure(ctx context.Context, id string, reason string) error {
	result := r.db.WithContext(ctx).
		Model(&models.OfflineRequest{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": utils.Truncate(reason, 512),
		})
	if result.Error != nil {
		return utils.NewDatabaseError("record offline request failure", result.Error)
	}
	if result.RowsAffected == 0 {
		return utils.NewNotFoundError("Offline request")
	}
	return nil
}
