package models

import "time"

// OfflineRequest is one entry of the interception layer's durable log.
// Entries are flagged as synced, never deleted.
type OfflineRequest struct {
	ID          string     `json:"id" gorm:"primaryKey;size:64" bson:"_id"`
	URL         string     `json:"url" gorm:"size:1024" bson:"url"`
	Method      string     `json:"method" gorm:"size:16" bson:"method"`
	ContentType string     `json:"contentType" gorm:"size:128" bson:"contentType"`
	Payload     []byte     `json:"payload" bson:"payload"`
	Timestamp   time.Time  `json:"timestamp" gorm:"index" bson:"timestamp"`
	Synced      bool       `json:"synced" gorm:"index" bson:"synced"`
	SyncedAt    *time.Time `json:"syncedAt,omitempty" bson:"syncedAt,omitempty"`
	Attempts    int        `json:"attempts" bson:"attempts"`
	LastError   string     `json:"lastError,omitempty" gorm:"size:512" bson:"lastError,omitempty"`
}

func (OfflineRequest) TableName() string {
	return "offline_requests"
}

type ReconcileResult struct {
	Scanned int       `json:"scanned"`
	Synced  int       `json:"synced"`
	Failed  int       `json:"failed"`
	RanAt   time.Time `json:"ranAt"`
}
