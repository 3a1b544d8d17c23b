package repositories

import (
	"aaisaheb/models"
	"aaisaheb/utils"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
)

// FileQueueRepository keeps the pending-alert queue in a JSON file so that it
// survives process restarts. Every mutation is written through before returning.
type FileQueueRepository struct {
	path   string
	mutex  sync.Mutex
	alerts []models.Alert
}

func NewFileQueueRepository(path string) (*FileQueueRepository, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, utils.NewDatabaseError("create queue directory", err)
	}

	repo := &FileQueueRepository{path: path}
	repo.alerts = repo.load()
	return repo, nil
}

func (r *FileQueueRepository) load() []models.Alert {
	data, err := os.ReadFile(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return []models.Alert{}
	}
	if err != nil {
		r.reset(utils.NewQueueCorruptionError(err))
		return []models.Alert{}
	}
	if len(data) == 0 {
		return []models.Alert{}
	}

	var alerts []models.Alert
	if err := json.Unmarshal(data, &alerts); err != nil {
		r.reset(utils.NewQueueCorruptionError(err))
		return []models.Alert{}
	}
	if alerts == nil {
		alerts = []models.Alert{}
	}
	return alerts
}

func (r *FileQueueRepository) reset(cause error) {
	logrus.WithFields(logrus.Fields{
		"path":  r.path,
		"error": cause,
	}).Error("Offline alert queue unreadable, resetting to empty")

	if err := r.persist([]models.Alert{}); err != nil {
		logrus.Errorf("Failed to rewrite offline alert queue: %v", err)
	}
}

func (r *FileQueueRepository) persist(alerts []models.Alert) error {
	data, err := json.MarshalIndent(alerts, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(r.path), ".queue-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, r.path)
}

func (r *FileQueueRepository) Enqueue(ctx context.Context, alert models.Alert) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	next, err := appendAlert(r.alerts, alert)
	if err != nil {
		return err
	}
	if err := r.persist(next); err != nil {
		return utils.NewDatabaseError("persist offline alert", err)
	}
	r.alerts = next

	logrus.WithField("alertId", alert.ID).Info("SOS alert stored offline for retry")
	return nil
}

func (r *FileQueueRepository) ListPending(ctx context.Context) ([]models.Alert, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	return pendingAlerts(r.alerts), nil
}

func (r *FileQueueRepository) Remove(ctx context.Context, alertID string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	next, removed := removeAlert(r.alerts, alertID)
	if !removed {
		return nil
	}
	if err := r.persist(next); err != nil {
		return utils.NewDatabaseError("remove offline alert", err)
	}
	r.alerts = next
	return nil
}

func (r *FileQueueRepository) Update(ctx context.Context, alert models.Alert) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	next, err := updateAlert(r.alerts, alert)
	if err != nil {
		return err
	}
	if err := r.persist(next); err != nil {
		return utils.NewDatabaseError("update offline alert", err)
	}
	r.alerts = next
	return nil
}

func (r *FileQueueRepository) Path() string {
	return r.path
}
