package handler

import "time"

// StartScanRequest represents the request structure for starting a scan
type StartScanRequest struct {
	Filter   string `json:"filter"`
	MaxItems int    `json:"max_items" binding:"required,min=1"`
}

// StartScanResponse represents the response structure for a started scan
type StartScanResponse struct {
	ScanID   string `json:"scan_id"`
	Phase    string `json:"phase"`
	TotalIDs int    `json:"total_ids"`
}

// ProcessBatchRequest represents the request structure for one batch call
type ProcessBatchRequest struct {
	Offset *int `json:"offset" binding:"required"`
}

// ExecuteActionsRequest represents the request structure for executing actions
type ExecuteActionsRequest struct {
	ActionIDs    []uint `json:"action_ids" binding:"required"`
	TypeOverride string `json:"type_override"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Database  string    `json:"database"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}
