package controllers

import (
	"aaisaheb/interfaces"
	"aaisaheb/models"
	"aaisaheb/services"
	"aaisaheb/utils"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// ConnectivityStatus reports the last observed reachability of the server.
type ConnectivityStatus interface {
	IsOnline() bool
}

type SOSController struct {
	sosService   *services.SOSService
	syncService  *services.SyncCoordinator
	queue        interfaces.AlertQueue
	connectivity ConnectivityStatus
	validator    *utils.ValidationService
}

func NewSOSController(
	sosService *services.SOSService,
	syncService *services.SyncCoordinator,
	queue interfaces.AlertQueue,
	connectivity ConnectivityStatus,
) *SOSController {
	return &SOSController{
		sosService:   sosService,
		syncService:  syncService,
		queue:        queue,
		connectivity: connectivity,
		validator:    utils.NewValidationService(),
	}
}

// Activate starts the SOS countdown
func (sc *SOSController) Activate(c *gin.Context) {
	var req models.ActivateSOSRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err.Error())
			return
		}
	}
	if errs := sc.validator.ValidateStruct(req); len(errs) > 0 {
		utils.ValidationErrorResponse(c, errs)
		return
	}
	if req.Source == "" {
		req.Source = models.SourceAPI
	}

	if !sc.sosService.RequestActivation(req.Source) {
		utils.HandleServiceError(c, utils.NewConflictError("An SOS is already in progress"))
		return
	}

	utils.AcceptedResponse(c, "SOS countdown started", sc.sosService.Session())
}

// Cancel cancels the countdown or the active alert
func (sc *SOSController) Cancel(c *gin.Context) {
	var req models.CancelSOSRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err.Error())
			return
		}
	}
	if errs := sc.validator.ValidateStruct(req); len(errs) > 0 {
		utils.ValidationErrorResponse(c, errs)
		return
	}

	if err := sc.sosService.Cancel(c.Request.Context(), req.Reason); err != nil {
		logrus.Warnf("SOS cancel failed: %v", err)
		utils.HandleServiceError(c, err)
		return
	}

	session := sc.sosService.Session()
	message := "SOS cancelled"
	if session.CancelRequested {
		message = "Cancel recorded, it will be applied once the alert is acknowledged"
	}
	utils.SuccessResponse(c, message, session)
}

// GetStatus returns the current session and queue summary
func (sc *SOSController) GetStatus(c *gin.Context) {
	status := models.SOSStatus{
		Session:     sc.sosService.Session(),
		LastSession: sc.sosService.LastSession(),
		Online:      true,
	}
	if sc.connectivity != nil {
		status.Online = sc.connectivity.IsOnline()
	}

	pending, err := sc.queue.ListPending(c.Request.Context())
	if err != nil {
		logrus.Warnf("Failed to read offline queue for status: %v", err)
	} else {
		status.PendingCount = len(pending)
	}

	utils.SuccessResponse(c, "SOS status retrieved successfully", status)
}

// GetQueue lists alerts waiting for delivery
func (sc *SOSController) GetQueue(c *gin.Context) {
	pending, err := sc.queue.ListPending(c.Request.Context())
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}
	if pending == nil {
		pending = []models.Alert{}
	}

	utils.SuccessResponse(c, "Offline alerts retrieved successfully", pending)
}

// Sync drains the offline queue now
func (sc *SOSController) Sync(c *gin.Context) {
	report, err := sc.syncService.SyncNow(c.Request.Context())
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}
	if report.Coalesced {
		utils.AcceptedResponse(c, "Sync already in progress", report)
		return
	}

	utils.SuccessResponse(c, "Offline alerts synced", report)
}

// GetFailed lists alerts that exhausted their retries
func (sc *SOSController) GetFailed(c *gin.Context) {
	utils.SuccessResponse(c, "Failed alerts retrieved successfully", sc.syncService.FailedAlerts())
}
