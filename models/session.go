package models

import "time"

type SessionState string

const (
	SessionStateIdle         SessionState = "idle"
	SessionStateCountingDown SessionState = "counting_down"
	SessionStateSubmitting   SessionState = "submitting"
	SessionStateActive       SessionState = "active"
	SessionStateCancelled    SessionState = "cancelled"
	SessionStateFailed       SessionState = "failed"
)

// IsBusy reports whether a session in this state blocks a new activation.
func (s SessionState) IsBusy() bool {
	switch s {
	case SessionStateCountingDown, SessionStateSubmitting, SessionStateActive:
		return true
	}
	return false
}

// ActivationSource records what triggered an activation. It never changes behavior.
type ActivationSource string

const (
	SourceButton    ActivationSource = "button"
	SourceLongPress ActivationSource = "long_press"
	SourceShake     ActivationSource = "shake"
	SourceVoice     ActivationSource = "voice"
	SourceKeyboard  ActivationSource = "keyboard"
	SourcePanic     ActivationSource = "panic"
	SourceAPI       ActivationSource = "api"
)

// Session is one user-facing activation attempt. It lives in memory only.
type Session struct {
	ID                 string           `json:"id"`
	State              SessionState     `json:"state"`
	Source             ActivationSource `json:"source,omitempty"`
	ActiveAlertID      string           `json:"activeAlertId,omitempty"`
	CountdownRemaining int              `json:"countdownRemaining"`
	CancelRequested    bool             `json:"cancelRequested,omitempty"`
	StartedAt          time.Time        `json:"startedAt"`
	UpdatedAt          time.Time        `json:"updatedAt"`
}

type ActivateSOSRequest struct {
	Source ActivationSource `json:"source" validate:"omitempty,oneof=button long_press shake voice keyboard panic api"`
}

type CancelSOSRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

type SOSStatus struct {
	Session      Session  `json:"session"`
	LastSession  *Session `json:"lastSession,omitempty"`
	Online       bool     `json:"online"`
	PendingCount int      `json:"pendingCount"`
}
