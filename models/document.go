package models

import (
	"time"
)

// Document represents the documents table. A document belongs to exactly
// one submission for its lifetime; the bytes themselves live with the
// upload storage collaborator, referenced here by stored filename only.
type Document struct {
	DocumentID       int        `gorm:"primaryKey;column:document_id" json:"document_id"`
	SubmissionID     int        `gorm:"column:submission_id" json:"submission_id"`
	DocType          string     `gorm:"column:doc_type" json:"doc_type"`
	Description      *string    `gorm:"column:description" json:"description,omitempty"`
	OriginalFilename string     `gorm:"column:original_filename" json:"original_filename"`
	StoredFilename   string     `gorm:"column:stored_filename" json:"stored_filename"`
	FileSize         int64      `gorm:"column:file_size" json:"file_size"`
	MimeType         string     `gorm:"column:mime_type" json:"mime_type"`
	UploadedBy       int        `gorm:"column:uploaded_by" json:"uploaded_by"`
	UploadedAt       time.Time  `gorm:"column:uploaded_at" json:"uploaded_at"`
	CreateAt         time.Time  `gorm:"column:create_at" json:"create_at"`
	UpdateAt         *time.Time `gorm:"column:update_at" json:"update_at,omitempty"`
	DeleteAt         *time.Time `gorm:"column:delete_at" json:"delete_at,omitempty"`

	// Relations
	Uploader *User `gorm:"foreignKey:UploadedBy" json:"uploader,omitempty"`
}

// TableName overrides the table name for Document.
func (Document) TableName() string {
	return "documents"
}

// IsValidDocumentMime checks the upload content kind against the accepted set.
func (d *Document) IsValidDocumentMime() bool {
	validTypes := []string{
		"application/pdf",
		"image/jpeg",
		"image/jpg",
		"image/png",
	}
	for _, validType := range validTypes {
		if d.MimeType == validType {
			return true
		}
	}
	return false
}

// FileSizeMB returns the upload size in megabytes for display.
func (d *Document) FileSizeMB() float64 {
	return float64(d.FileSize) / (1024 * 1024)
}
