package models

import (
	"encoding/json"
	"time"
)

// Audit actions. APPROVE and REJECT are finer-grained TRANSITION tags so
// the trail reads without decoding snapshots.
const (
	AuditActionCreate     = "CREATE"
	AuditActionTransition = "TRANSITION"
	AuditActionApprove    = "APPROVE"
	AuditActionReject     = "REJECT"
	AuditActionAssign     = "ASSIGN"
	AuditActionAttach     = "ATTACH"
	AuditActionDetach     = "DETACH"
	AuditActionExport     = "EXPORT"
)

// Audit subject types.
const (
	AuditSubjectSubmission = "submission"
	AuditSubjectDocument   = "document"
	AuditSubjectUser       = "user"
)

// AuditLog represents the audit_logs table: one immutable row per
// successful mutating operation. Rows are appended and never edited or
// deleted; they are the sole ground truth for what happened and when.
type AuditLog struct {
	AuditID       string          `gorm:"primaryKey;column:audit_id" json:"audit_id"`
	Timestamp     time.Time       `gorm:"column:timestamp;index" json:"timestamp"`
	ActorID       int             `gorm:"column:actor_id" json:"actor_id"`
	ActorName     string          `gorm:"column:actor_name" json:"actor_name"`
	Action        string          `gorm:"column:action" json:"action"`
	SubjectType   string          `gorm:"column:subject_type" json:"subject_type"`
	SubjectID     string          `gorm:"column:subject_id" json:"subject_id"`
	BeforeState   json.RawMessage `gorm:"column:before_state;type:json" json:"before_state,omitempty"`
	AfterState    json.RawMessage `gorm:"column:after_state;type:json" json:"after_state,omitempty"`
	SourceAddress *string         `gorm:"column:source_address" json:"source_address,omitempty"`
}

// TableName overrides the table name for AuditLog.
func (AuditLog) TableName() string {
	return "audit_logs"
}
