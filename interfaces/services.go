package interfaces

import (
	"aaisaheb/models"
	"context"
	"time"
)

// AlertQueue is the persistent store of alerts awaiting delivery.
type AlertQueue interface {
	Enqueue(ctx context.Context, alert models.Alert) error
	ListPending(ctx context.Context) ([]models.Alert, error)
	Remove(ctx context.Context, alertID string) error
	Update(ctx context.Context, alert models.Alert) error
}

// AlertSubmitter delivers alerts to the remote SOS endpoints, one call per invocation.
type AlertSubmitter interface {
	Submit(ctx context.Context, alert models.Alert) (string, error)
	Cancel(ctx context.Context, alertID, reason string) error
}

// Notifier surfaces a message to the user. Fire-and-forget.
type Notifier interface {
	Notify(message string, severity models.Severity)
}

// LocationProvider returns the current position; implementations should honor ctx.
type LocationProvider interface {
	CurrentLocation(ctx context.Context) (*models.Location, error)
}

// EvidenceCollector gathers audio/photo evidence. It reports whether anything was captured.
type EvidenceCollector interface {
	Collect(ctx context.Context) (bool, error)
}

// SMSSender delivers a text message to a phone number.
type SMSSender interface {
	SendSMS(ctx context.Context, phone, message string) error
}

// OfflineRequestStore is the interception layer's durable log.
type OfflineRequestStore interface {
	Create(ctx context.Context, req *models.OfflineRequest) error
	ListUnsynced(ctx context.Context, limit int) ([]models.OfflineRequest, error)
	List(ctx context.Context, limit int) ([]models.OfflineRequest, error)
	MarkSynced(ctx context.Context, id string, syncedAt time.Time) error
	RecordFailure(ctx context.Context, id string, reason string) error
}

// SessionObserver receives a snapshot on every session change.
type SessionObserver interface {
	SessionChanged(session models.Session)
}
