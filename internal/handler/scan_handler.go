package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"inbox-janitor-go/internal/apperrors"
)

// StartScan starts a new mailbox scan
func (h *Handlers) StartScan(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}

	var req StartScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.Validationf("invalid request body: %v", err))
		return
	}

	scanRecord, err := h.orchestrator.StartScan(c.Request.Context(), uid, req.Filter, req.MaxItems)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, StartScanResponse{
		ScanID:   scanRecord.ID,
		Phase:    string(scanRecord.Phase),
		TotalIDs: scanRecord.TotalIDs,
	})
}

// GetScan returns the current state of a scan
func (h *Handlers) GetScan(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}

	scanRecord, err := h.orchestrator.GetScan(c.Request.Context(), uid, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, scanRecord)
}

// ProcessNextBatch processes the next batch of a scan
func (h *Handlers) ProcessNextBatch(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}

	var req ProcessBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.Validationf("invalid request body: %v", err))
		return
	}

	result, err := h.orchestrator.ProcessNextBatch(c.Request.Context(), uid, c.Param("id"), *req.Offset)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
