package services

import (
	"aaisaheb/models"
	"aaisaheb/utils"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const DefaultCancelReason = "User cancelled - safe now"

// SubmissionService performs single delivery attempts against the remote SOS
// endpoints. It never retries and never touches the offline queue.
type SubmissionService struct {
	submitURL      string
	cancelURL      string
	token          string
	requestTimeout time.Duration
	httpClient     *http.Client
	validator      *utils.ValidationService
}

type endpointErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func NewSubmissionService(submitURL, cancelURL, token string, requestTimeout time.Duration, httpClient *http.Client) *SubmissionService {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if requestTimeout <= 0 {
		requestTimeout = 15 * time.Second
	}
	return &SubmissionService{
		submitURL:      strings.TrimSpace(submitURL),
		cancelURL:      strings.TrimSpace(cancelURL),
		token:          strings.TrimSpace(token),
		requestTimeout: requestTimeout,
		httpClient:     httpClient,
		validator:      utils.NewValidationService(),
	}
}

// Submit sends the alert and returns the server-assigned alert id.
func (ss *SubmissionService) Submit(ctx context.Context, alert models.Alert) (string, error) {
	payload := alert.ToSubmitRequest()
	if err := ss.validator.Validate(payload); err != nil {
		return "", err
	}

	var out models.SubmitAlertResponse
	if err := ss.post(ctx, ss.submitURL, payload, &out); err != nil {
		logrus.WithFields(logrus.Fields{
			"alertId": alert.ID,
			"error":   err,
		}).Warn("Failed to send SOS alert")
		return "", err
	}

	// An edge proxy answers offline submissions with a synthesized success;
	// that is not an acknowledgment from the server.
	if out.Offline {
		return "", utils.NewTransportFailureError(errors.New("submission was stored offline by the edge proxy"))
	}
	if strings.TrimSpace(out.AlertID) == "" {
		return "", utils.NewServerRejectedError(http.StatusOK, "response carried no alert_id")
	}

	logrus.WithField("serverAlertId", out.AlertID).Info("SOS alert sent successfully")
	return out.AlertID, nil
}

// Cancel asks the server to cancel an active alert.
func (ss *SubmissionService) Cancel(ctx context.Context, alertID, reason string) error {
	if strings.TrimSpace(alertID) == "" {
		return utils.NewValidationError("alert_id is required")
	}
	if reason == "" {
		reason = DefaultCancelReason
	}

	err := ss.post(ctx, ss.cancelURL, models.CancelAlertRequest{AlertID: alertID, Reason: reason}, nil)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"alertId": alertID,
			"error":   err,
		}).Warn("Failed to cancel SOS alert")
		return err
	}

	logrus.WithField("alertId", alertID).Info("SOS alert cancelled successfully")
	return nil
}

func (ss *SubmissionService) post(ctx context.Context, url string, body interface{}, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return utils.NewServiceErrorWithCause(utils.ErrCodeInternal, "failed to encode request", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, ss.requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return utils.NewTransportFailureError(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	if ss.token != "" {
		token := ss.token
		if !strings.HasPrefix(strings.ToLower(token), "bearer ") {
			token = "Bearer " + token
		}
		req.Header.Set("Authorization", token)
	}

	resp, err := ss.httpClient.Do(req)
	if err != nil {
		return classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var eb endpointErrorBody
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		_ = json.Unmarshal(raw, &eb)
		details := strings.TrimSpace(eb.Error)
		if details == "" {
			details = strings.TrimSpace(eb.Message)
		}
		return utils.NewServerRejectedError(resp.StatusCode, details)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if isTimeout(err) {
			return utils.NewTimeoutError("SOS endpoint", err)
		}
		return utils.NewServerRejectedError(resp.StatusCode, "malformed response body")
	}
	return nil
}

func classifyTransportError(err error) error {
	if isTimeout(err) {
		return utils.NewTimeoutError("SOS endpoint", err)
	}
	return utils.NewTransportFailureError(err)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
