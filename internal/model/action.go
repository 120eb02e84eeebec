package model

import (
	"time"

	"gorm.io/gorm"
)

// ActionStatus is the lifecycle status of a persisted action.
type ActionStatus string

const (
	StatusPending  ActionStatus = "pending"
	StatusExecuted ActionStatus = "executed"
	StatusRejected ActionStatus = "rejected"
)

// ActionRecord is one persisted cleanup action per classified email.
// Lifecycle: created pending; transitions to executed or rejected; an
// executed record may go back to pending only via undo, only within the
// undo window, and only once.
type ActionRecord struct {
	ID            uint             `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID        string           `json:"user_id" gorm:"type:varchar(255);not null;index"`
	ScanID        string           `json:"scan_id" gorm:"type:varchar(36);not null;uniqueIndex:idx_scan_email,priority:1"`
	EmailID       string           `json:"email_id" gorm:"type:varchar(255);not null;uniqueIndex:idx_scan_email,priority:2"`
	SenderAddress string           `json:"sender_address" gorm:"type:varchar(255);index"`
	Status        ActionStatus     `json:"status" gorm:"type:varchar(20);not null;index"`
	ActionType    ActionType       `json:"action_type" gorm:"type:varchar(20);not null"`
	Category      Category         `json:"category" gorm:"type:varchar(20);not null"`
	Confidence    float64          `json:"confidence"`
	Source        ResolutionSource `json:"source" gorm:"type:varchar(20)"`
	Reason        string           `json:"reason" gorm:"type:text"`
	ExecBatchID   string           `json:"exec_batch_id,omitempty" gorm:"type:varchar(36);index"`
	ExecutedAt    *time.Time       `json:"executed_at,omitempty"`
	Undone        bool             `json:"undone" gorm:"default:false"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
	DeletedAt     gorm.DeletedAt   `json:"-" gorm:"index"`
}

// TableName specifies the table name for ActionRecord
func (ActionRecord) TableName() string {
	return "action_records"
}
