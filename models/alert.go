package models

import "time"

type AlertStatus string

const (
	AlertStatusPending           AlertStatus = "pending"
	AlertStatusSent              AlertStatus = "sent"
	AlertStatusFailedPermanently AlertStatus = "failed_permanently"
)

// CanTransitionTo reports whether an alert may move from s to next.
// Only pending alerts change status, and never back to pending.
func (s AlertStatus) CanTransitionTo(next AlertStatus) bool {
	if s == next {
		return true
	}
	if s != AlertStatusPending {
		return false
	}
	return next == AlertStatusSent || next == AlertStatusFailedPermanently
}

func (s AlertStatus) IsTerminal() bool {
	return s == AlertStatusSent || s == AlertStatusFailedPermanently
}

// Location is a best-effort position fix taken when the alert was built.
type Location struct {
	Latitude  float64   `json:"latitude" validate:"latitude"`
	Longitude float64   `json:"longitude" validate:"longitude"`
	Accuracy  float64   `json:"accuracy,omitempty" validate:"min=0"`
	Timestamp time.Time `json:"timestamp"`
}

// Alert is one emergency activation and the unit of durability and sync.
type Alert struct {
	ID                string      `json:"id"`
	Location          *Location   `json:"location,omitempty"`
	Address           string      `json:"address,omitempty"`
	Notes             string      `json:"notes,omitempty"`
	CreatedAt         time.Time   `json:"createdAt"`
	EvidenceAvailable bool        `json:"evidenceAvailable"`
	RetryCount        int         `json:"retryCount"`
	Status            AlertStatus `json:"status"`
}

func (a Alert) HasLocation() bool {
	return a.Location != nil
}

// ToSubmitRequest builds the wire payload sent to the submit-alert endpoint.
func (a Alert) ToSubmitRequest() SubmitAlertRequest {
	req := SubmitAlertRequest{
		Address:           a.Address,
		Notes:             a.Notes,
		Timestamp:         a.CreatedAt.UnixMilli(),
		EvidenceAvailable: a.EvidenceAvailable,
	}
	if a.Location != nil {
		lat, lon, acc := a.Location.Latitude, a.Location.Longitude, a.Location.Accuracy
		req.Latitude = &lat
		req.Longitude = &lon
		if acc > 0 {
			req.Accuracy = &acc
		}
	}
	return req
}

// Request/response payloads of the remote SOS endpoints
type SubmitAlertRequest struct {
	Latitude          *float64 `json:"latitude,omitempty" validate:"omitempty,latitude"`
	Longitude         *float64 `json:"longitude,omitempty" validate:"omitempty,longitude"`
	Accuracy          *float64 `json:"accuracy,omitempty" validate:"omitempty,min=0"`
	Address           string   `json:"address,omitempty" validate:"max=500"`
	Notes             string   `json:"notes,omitempty" validate:"max=2000"`
	Timestamp         int64    `json:"timestamp" validate:"required,gt=0"`
	EvidenceAvailable bool     `json:"evidence_available,omitempty"`
}

type SubmitAlertResponse struct {
	Success bool   `json:"success"`
	AlertID string `json:"alert_id"`
	Offline bool   `json:"offline,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

type CancelAlertRequest struct {
	AlertID string `json:"alert_id" validate:"required"`
	Reason  string `json:"reason,omitempty"`
}
