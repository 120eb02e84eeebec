package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"inbox-janitor-go/internal/apperrors"
	"inbox-janitor-go/internal/model"
)

// ExecuteActions executes a set of approved pending actions
func (h *Handlers) ExecuteActions(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}

	var req ExecuteActionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.Validationf("invalid request body: %v", err))
		return
	}

	var override *model.ActionType
	if req.TypeOverride != "" {
		t, valid := model.ParseActionType(req.TypeOverride)
		if !valid {
			respondError(c, apperrors.Validationf("unknown type_override %q", req.TypeOverride))
			return
		}
		override = &t
	}

	result, err := h.executor.Execute(c.Request.Context(), uid, req.ActionIDs, override)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// RejectAction rejects a single pending action
func (h *Handlers) RejectAction(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		respondError(c, apperrors.Validationf("invalid action ID"))
		return
	}

	if err := h.executor.Reject(c.Request.Context(), uid, uint(id)); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// UndoBatch reverts an executed batch within the undo window
func (h *Handlers) UndoBatch(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}

	result, err := h.executor.Undo(c.Request.Context(), uid, c.Param("batchId"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
