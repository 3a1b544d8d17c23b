package repositories

import (
	"aaisaheb/models"
	"aaisaheb/utils"
	"context"
	"encoding/json"
	"errors"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

const (
	DefaultQueueKey   = "aaisaheb:offline_alerts"
	maxQueueTxRetries = 5
)

// RedisQueueRepository stores the ordered queue as one JSON array under a
// single key. Mutations run inside WATCH transactions.
type RedisQueueRepository struct {
	client *redis.Client
	key    string
}

func NewRedisQueueRepository(client *redis.Client, key string) *RedisQueueRepository {
	if key == "" {
		key = DefaultQueueKey
	}
	return &RedisQueueRepository{client: client, key: key}
}

// decode returns the stored queue. Undecodable content is reset to an empty
// queue; only transport errors are returned.
func (r *RedisQueueRepository) decode(ctx context.Context, cmd *redis.StringCmd) ([]models.Alert, error) {
	data, err := cmd.Bytes()
	if errors.Is(err, redis.Nil) || (err == nil && len(data) == 0) {
		return []models.Alert{}, nil
	}
	if err != nil {
		return nil, err
	}

	var alerts []models.Alert
	if err := json.Unmarshal(data, &alerts); err != nil {
		r.reset(ctx, utils.NewQueueCorruptionError(err))
		return []models.Alert{}, nil
	}
	if alerts == nil {
		alerts = []models.Alert{}
	}
	return alerts, nil
}

func (r *RedisQueueRepository) reset(ctx context.Context, cause error) {
	logrus.WithFields(logrus.Fields{
		"key":   r.key,
		"error": cause,
	}).Error("Offline alert queue unreadable, resetting to empty")

	if err := r.client.Set(ctx, r.key, "[]", 0).Err(); err != nil {
		logrus.Errorf("Failed to reset offline alert queue: %v", err)
	}
}

func (r *RedisQueueRepository) mutate(ctx context.Context, fn func([]models.Alert) ([]models.Alert, bool, error)) error {
	txf := func(tx *redis.Tx) error {
		alerts, err := r.decode(ctx, tx.Get(ctx, r.key))
		if err != nil {
			return err
		}

		next, changed, err := fn(alerts)
		if err != nil || !changed {
			return err
		}
		data, err := json.Marshal(next)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, r.key, data, 0)
			return nil
		})
		return err
	}

	for i := 0; i < maxQueueTxRetries; i++ {
		err := r.client.Watch(ctx, txf, r.key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return utils.NewConflictError("offline alert queue is being modified concurrently")
}

func (r *RedisQueueRepository) Enqueue(ctx context.Context, alert models.Alert) error {
	err := r.mutate(ctx, func(alerts []models.Alert) ([]models.Alert, bool, error) {
		next, err := appendAlert(alerts, alert)
		return next, err == nil, err
	})
	if err != nil {
		if _, ok := utils.GetServiceError(err); ok {
			return err
		}
		return utils.NewDatabaseError("persist offline alert", err)
	}

	logrus.WithField("alertId", alert.ID).Info("SOS alert stored offline for retry")
	return nil
}

func (r *RedisQueueRepository) ListPending(ctx context.Context) ([]models.Alert, error) {
	alerts, err := r.decode(ctx, r.client.Get(ctx, r.key))
	if err != nil {
		return nil, utils.NewDatabaseError("read offline alert queue", err)
	}
	return pendingAlerts(alerts), nil
}

func (r *RedisQueueRepository) Remove(ctx context.Context, alertID string) error {
	err := r.mutate(ctx, func(alerts []models.Alert) ([]models.Alert, bool, error) {
		next, removed := removeAlert(alerts, alertID)
		return next, removed, nil
	})
	if err != nil {
		return utils.NewDatabaseError("remove offline alert", err)
	}
	return nil
}

func (r *RedisQueueRepository) Update(ctx context.Context, alert models.Alert) error {
	err := r.mutate(ctx, func(alerts []models.Alert) ([]models.Alert, bool, error) {
		next, err := updateAlert(alerts, alert)
		return next, err == nil, err
	})
	if err != nil {
		if _, ok := utils.GetServiceError(err); ok {
			return err
		}
		return utils.NewDatabaseError("update offline alert", err)
	}
	return nil
}
