package repositories

import (
	"aaisaheb/models"
	"aaisaheb/utils"
	"fmt"
)

// The queue backends share these pure operations over the ordered alert slice.

func appendAlert(alerts []models.Alert, alert models.Alert) ([]models.Alert, error) {
	if alert.ID == "" {
		return alerts, utils.NewValidationError("alert id is required")
	}
	for _, existing := range alerts {
		if existing.ID == alert.ID {
			return alerts, utils.NewConflictError(fmt.Sprintf("alert %s already queued", alert.ID))
		}
	}
	alert.Status = models.AlertStatusPending
	return append(alerts, alert), nil
}

func removeAlert(alerts []models.Alert, id string) ([]models.Alert, bool) {
	for i, existing := range alerts {
		if existing.ID == id {
			out := make([]models.Alert, 0, len(alerts)-1)
			out = append(out, alerts[:i]...)
			return append(out, alerts[i+1:]...), true
		}
	}
	return alerts, false
}

// updateAlert copies the mutable fields (RetryCount, Status) onto the stored alert.
func updateAlert(alerts []models.Alert, alert models.Alert) ([]models.Alert, error) {
	for i, existing := range alerts {
		if existing.ID != alert.ID {
			continue
		}
		if !existing.Status.CanTransitionTo(alert.Status) {
			return alerts, utils.NewConflictError(fmt.Sprintf("alert %s cannot move from %s to %s", alert.ID, existing.Status, alert.Status))
		}
		if alert.RetryCount < 0 {
			return alerts, utils.NewValidationError("retry count must not be negative")
		}
		out := make([]models.Alert, len(alerts))
		copy(out, alerts)
		out[i].RetryCount = alert.RetryCount
		out[i].Status = alert.Status
		return out, nil
	}
	return alerts, utils.NewNotFoundError("Alert")
}

func pendingAlerts(alerts []models.Alert) []models.Alert {
	out := make([]models.Alert, 0, len(alerts))
	for _, alert := range alerts {
		if !alert.Status.IsTerminal() {
			out = append(out, alert)
		}
	}
	return out
}
