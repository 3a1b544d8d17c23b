package controllers

import (
	"aaisaheb/interfaces"
	"aaisaheb/models"
	"aaisaheb/utils"
	"context"
	"strconv"

	"github.com/gin-gonic/gin"
)

// ReconcileRunner runs one replay pass over the interception log.
type ReconcileRunner interface {
	RunNow(ctx context.Context) (*models.ReconcileResult, error)
}

type OfflineRequestController struct {
	store      interfaces.OfflineRequestStore
	reconciler ReconcileRunner
}

func NewOfflineRequestController(store interfaces.OfflineRequestStore, reconciler ReconcileRunner) *OfflineRequestController {
	return &OfflineRequestController{
		store:      store,
		reconciler: reconciler,
	}
}

// List returns logged offline requests, newest first
func (oc *OfflineRequestController) List(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 || limit > 500 {
		utils.HandleServiceError(c, utils.NewValidationError("limit must be between 1 and 500"))
		return
	}

	records, err := oc.store.List(c.Request.Context(), limit)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}
	if records == nil {
		records = []models.OfflineRequest{}
	}

	utils.SuccessResponse(c, "Offline requests retrieved successfully", records)
}

// Reconcile replays unsynced requests now
func (oc *OfflineRequestController) Reconcile(c *gin.Context) {
	result, err := oc.reconciler.RunNow(c.Request.Context())
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}
	if result == nil {
		utils.AcceptedResponse(c, "Reconcile already in progress", nil)
		return
	}

	utils.SuccessResponse(c, "Offline requests reconciled", result)
}
