package models

import "time"

// SyncReport summarizes one pass of the offline sync coordinator.
type SyncReport struct {
	Coalesced         bool      `json:"coalesced"`
	Scanned           int       `json:"scanned"`
	Sent              []string  `json:"sent"`
	Retried           []string  `json:"retried"`
	FailedPermanently []string  `json:"failedPermanently"`
	StartedAt         time.Time `json:"startedAt"`
	FinishedAt        time.Time `json:"finishedAt"`
}

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

type Notification struct {
	Message   string    `json:"message"`
	Severity  Severity  `json:"severity"`
	Timestamp time.Time `json:"timestamp"`
}

// EmergencyContact receives fallback SMS when the server cannot be reached.
type EmergencyContact struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}
