package models

import (
	"encoding/json"
	"time"
)

// Submission statuses. The lifecycle service owns which transitions
// between them are legal.
type SubmissionStatus string

const (
	StatusPending  SubmissionStatus = "pending"
	StatusInReview SubmissionStatus = "in_review"
	StatusApproved SubmissionStatus = "approved"
	StatusRejected SubmissionStatus = "rejected"
)

// IsTerminal reports whether the status is a final rest state. Rejected
// still allows the reopen edge back to pending.
func (s SubmissionStatus) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// SubmissionPriority orders the review queue.
type SubmissionPriority string

const (
	PriorityNormal SubmissionPriority = "normal"
	PriorityHigh   SubmissionPriority = "high"
	PriorityUrgent SubmissionPriority = "urgent"
)

// IsValidPriority reports whether p is a known priority value.
func IsValidPriority(p SubmissionPriority) bool {
	return p == PriorityNormal || p == PriorityHigh || p == PriorityUrgent
}

// Submission represents the submissions table: one registration package
// moving through the review workflow.
type Submission struct {
	SubmissionID     int                `gorm:"primaryKey;column:submission_id" json:"submission_id"`
	SubmissionNumber string             `gorm:"column:submission_number" json:"submission_number"`
	Category         string             `gorm:"column:category" json:"category"`
	Status           SubmissionStatus   `gorm:"column:status" json:"status"`
	Priority         SubmissionPriority `gorm:"column:priority" json:"priority"`
	CreatedBy        int                `gorm:"column:created_by" json:"created_by"`
	AssigneeID       *int               `gorm:"column:assignee_id" json:"assignee_id,omitempty"`
	RejectionReason  *string            `gorm:"column:rejection_reason" json:"rejection_reason,omitempty"`
	FieldValues      json.RawMessage    `gorm:"column:field_values;type:json" json:"field_values,omitempty"`
	DeclaredValue    *float64           `gorm:"column:declared_value" json:"declared_value,omitempty"`
	RequiresTracking bool               `gorm:"column:requires_tracking" json:"requires_tracking"`
	CreatedAt        time.Time          `gorm:"column:created_at" json:"created_at"`
	StartedAt        *time.Time         `gorm:"column:started_at" json:"started_at,omitempty"`
	FinishedAt       *time.Time         `gorm:"column:finished_at" json:"finished_at,omitempty"`
	UpdateAt         *time.Time         `gorm:"column:update_at" json:"update_at,omitempty"`
	DeleteAt         *time.Time         `gorm:"column:delete_at" json:"delete_at,omitempty"`

	// Relations
	Creator   *User      `gorm:"foreignKey:CreatedBy" json:"creator,omitempty"`
	Assignee  *User      `gorm:"foreignKey:AssigneeID" json:"assignee,omitempty"`
	Documents []Document `gorm:"foreignKey:SubmissionID" json:"documents,omitempty"`
}

// TableName overrides the table name for Submission.
func (Submission) TableName() string {
	return "submissions"
}

// ParseFieldValues decodes the field_values JSON column.
func (s *Submission) ParseFieldValues() (map[string]string, error) {
	if s.FieldValues == nil {
		return map[string]string{}, nil
	}
	var fields map[string]string
	if err := json.Unmarshal(s.FieldValues, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// SetFieldValues encodes fields into the field_values JSON column.
func (s *Submission) SetFieldValues(fields map[string]string) error {
	if fields == nil {
		s.FieldValues = nil
		return nil
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	s.FieldValues = data
	return nil
}
