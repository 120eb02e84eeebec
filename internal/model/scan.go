package model

import (
	"time"

	"gorm.io/gorm"
)

// ScanPhase is the lifecycle phase of a scan.
type ScanPhase string

const (
	PhaseListing    ScanPhase = "listing"
	PhaseProcessing ScanPhase = "processing"
	PhaseCompleted  ScanPhase = "completed"
	PhaseFailed     ScanPhase = "failed"
)

// StringList is a JSON-serialized list of strings stored in a single column.
type StringList []string

// ClassifyStats counts actual LLM provider usage during one classify call.
// Heuristic, cache and degraded-fallback resolutions incur none.
type ClassifyStats struct {
	LLMBatches int64
	LLMItems   int64
}

// ScanAggregates are the running totals accumulated batch by batch.
type ScanAggregates struct {
	ByCategory map[string]int64 `json:"by_category"`
	BySource   map[string]int64 `json:"by_source"`
	LLMBatches int64            `json:"llm_batches"`
	LLMItems   int64            `json:"llm_items"`
	CostMicro  int64            `json:"cost_micro_usd"`
}

// NewScanAggregates returns an empty aggregate set with initialized maps.
func NewScanAggregates() ScanAggregates {
	return ScanAggregates{
		ByCategory: make(map[string]int64),
		BySource:   make(map[string]int64),
	}
}

// Merge adds the other aggregate set into this one.
func (a *ScanAggregates) Merge(other ScanAggregates) {
	if a.ByCategory == nil {
		a.ByCategory = make(map[string]int64)
	}
	if a.BySource == nil {
		a.BySource = make(map[string]int64)
	}
	for k, v := range other.ByCategory {
		a.ByCategory[k] += v
	}
	for k, v := range other.BySource {
		a.BySource[k] += v
	}
	a.LLMBatches += other.LLMBatches
	a.LLMItems += other.LLMItems
	a.CostMicro += other.CostMicro
}

// ScanRecord is the single source of truth for scan resumability. Every
// batch update is a conditional read-modify-write keyed on processed_count.
type ScanRecord struct {
	ID             string         `json:"id" gorm:"type:varchar(36);primaryKey"`
	UserID         string         `json:"user_id" gorm:"type:varchar(255);not null;index"`
	Filter         string         `json:"filter" gorm:"type:varchar(500)"`
	Phase          ScanPhase      `json:"phase" gorm:"type:varchar(20);not null;index"`
	TotalIDs       int            `json:"total_ids" gorm:"not null"`
	ProcessedCount int            `json:"processed_count" gorm:"not null"`
	MessageIDs     StringList     `json:"-" gorm:"serializer:json"`
	Aggregates     ScanAggregates `json:"aggregates" gorm:"serializer:json"`
	ErrorMsg       string         `json:"error_msg,omitempty" gorm:"type:text"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName specifies the table name for ScanRecord
func (ScanRecord) TableName() string {
	return "scan_records"
}
