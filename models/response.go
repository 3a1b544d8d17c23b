package models

import (
	"encoding/json"
	"time"
)

// Standard API Response wrapper
type APIResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Error     *APIError   `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

type APIError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// Health Check Response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Services  map[string]string `json:"services"`
	Version   string            `json:"version"`
	Uptime    string            `json:"uptime"`
}

// WebSocket envelope exchanged with the UI
type WSMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

const (
	WSTypeNotification = "notification"
	WSTypeSession      = "session"
	WSTypeTrigger      = "trigger"
	WSTypeMotion       = "motion"
	WSTypeKey          = "key"
	WSTypeVoice        = "voice"
	WSTypeCancel       = "cancel"
	WSTypeLocation     = "location"
	WSTypeError        = "error"
	WSTypeAck          = "ack"
)

// WSRequest is an inbound frame; Data is decoded per Type.
type WSRequest struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type WSError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

const (
	WSErrorInvalidMessage = "INVALID_MESSAGE"
	WSErrorRateLimit      = "RATE_LIMIT"
	WSErrorRejected       = "REJECTED"
)

// Inbound sensor/UI events
type WSTriggerEvent struct {
	Source ActivationSource `json:"source"`
}

type WSMotionEvent struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

type WSKeyEvent struct {
	Code   string `json:"code"`
	Ctrl   bool   `json:"ctrl"`
	Target string `json:"target,omitempty"`
}

type WSCancelEvent struct {
	Reason string `json:"reason,omitempty"`
}

type WSVoiceEvent struct {
	Transcript string `json:"transcript"`
}

// WSLocationEvent carries a position fix, or Denied when the user refused access.
type WSLocationEvent struct {
	Latitude  float64 `json:"latitude" validate:"latitude"`
	Longitude float64 `json:"longitude" validate:"longitude"`
	Accuracy  float64 `json:"accuracy" validate:"min=0"`
	Denied    bool    `json:"denied,omitempty"`
}

// Error Response Codes
const (
	ErrCodeValidation   = "VALIDATION_ERROR"
	ErrCodeNotFound     = "NOT_FOUND"
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeConflict     = "CONFLICT"
	ErrCodeInternal     = "INTERNAL_ERROR"
	ErrCodeExternal     = "EXTERNAL_SERVICE_ERROR"
)
