package models

import (
	"time"

	"gorm.io/datatypes"
)

// SyncRunStatus is the lifecycle state of a sync run. The only valid transitions
// are RUNNING -> SUCCESS and RUNNING -> FAILED, applied exactly once.
type SyncRunStatus string

const (
	SyncRunning SyncRunStatus = "RUNNING"
	SyncSuccess SyncRunStatus = "SUCCESS"
	SyncFailed  SyncRunStatus = "FAILED"
)

// SyncTrigger records what started a run.
type SyncTrigger string

const (
	TriggerScheduled SyncTrigger = "scheduled"
	TriggerManual    SyncTrigger = "manual"
)

// SyncRun is the append-only audit ledger of sync attempts. Rows are never
// mutated after the terminal state transition. A row stuck in RUNNING means the
// process died mid-run; an external monitor decides when that counts as stale.
type SyncRun struct {
	ID         uint64      `gorm:"primaryKey;autoIncrement" json:"id"`
	ExternalID string      `gorm:"size:36;uniqueIndex" json:"external_id"`
	Trigger    SyncTrigger `gorm:"size:20;not null" json:"trigger"`

	CompanyCode  string `gorm:"size:10;not null" json:"company_code"`
	Divisions    string `gorm:"size:255" json:"divisions"`     // CSV scope
	StatusFilter string `gorm:"size:20" json:"status_filter"`  // CSV scope
	JobNumber    string `gorm:"size:20" json:"job_number"`     // manual narrow-scope override
	CostType     string `gorm:"size:10" json:"cost_type"`      // manual narrow-scope override

	Status       SyncRunStatus  `gorm:"size:10;not null;default:'RUNNING';index" json:"status"`
	Stats        datatypes.JSON `gorm:"type:json" json:"stats"`
	ErrorMessage string         `gorm:"type:text" json:"error_message,omitempty"`

	StartedAt       time.Time  `gorm:"autoCreateTime" json:"started_at"`
	FinishedAt      *time.Time `json:"finished_at,omitempty"`
	DurationSeconds *float64   `json:"duration_seconds,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName overrides the table name for SyncRun
func (SyncRun) TableName() string {
	return "sync_runs"
}

// RawPayloadRecord stores a gzip-compressed vendor response body for forensic
// replay. Feature-flagged; purged on a time-based retention window.
type RawPayloadRecord struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement"`
	SyncRunID uint64 `gorm:"index;not null"`
	Operation string `gorm:"size:50;not null"`
	Params    string `gorm:"size:255"`
	Payload   []byte `gorm:"type:blob"` // gzip-compressed response body
	CreatedAt time.Time `gorm:"index"`
}

// TableName overrides the table name for RawPayloadRecord
func (RawPayloadRecord) TableName() string {
	return "raw_payload_records"
}
