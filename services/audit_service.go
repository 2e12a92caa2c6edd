package services

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"registration-api/models"
)

// AuditService appends and queries the immutable audit trail. There is no
// update or delete on its public surface, which preserves the append-only
// guarantee.
type AuditService struct {
	db *gorm.DB
}

func NewAuditService(db *gorm.DB) *AuditService {
	return &AuditService{db: db}
}

// AuditInput is one recordable action. Before and After are free-form
// snapshots, stored as JSON.
type AuditInput struct {
	ActorID       int
	ActorName     string
	Action        string
	SubjectType   string
	SubjectID     string
	Before        interface{}
	After         interface{}
	SourceAddress *string
}

// Record appends one audit row and returns it with the generated id and
// timestamp. When tx is non-nil the row joins the caller's transaction, so
// a failed audit write rolls the whole mutation back.
func (s *AuditService) Record(tx *gorm.DB, input AuditInput) (*models.AuditLog, error) {
	db := tx
	if db == nil {
		db = s.db
	}

	entry := models.AuditLog{
		AuditID:       uuid.NewString(),
		Timestamp:     time.Now(),
		ActorID:       input.ActorID,
		ActorName:     input.ActorName,
		Action:        input.Action,
		SubjectType:   input.SubjectType,
		SubjectID:     input.SubjectID,
		SourceAddress: input.SourceAddress,
	}

	if input.Before != nil {
		data, err := json.Marshal(input.Before)
		if err != nil {
			return nil, fmt.Errorf("failed to encode before state: %w", err)
		}
		entry.BeforeState = data
	}
	if input.After != nil {
		data, err := json.Marshal(input.After)
		if err != nil {
			return nil, fmt.Errorf("failed to encode after state: %w", err)
		}
		entry.AfterState = data
	}

	if err := db.Create(&entry).Error; err != nil {
		return nil, fmt.Errorf("failed to append audit entry: %w", err)
	}
	return &entry, nil
}

// AuditQuery filters the trail. Zero values mean "no filter".
type AuditQuery struct {
	ActorID     *int
	Actions     []string
	SubjectType string
	SubjectID   string
	From        *time.Time
	To          *time.Time
	Page        int
	Limit       int
}

// Query returns matching entries ordered by timestamp descending, plus the
// unpaginated total.
func (s *AuditService) Query(q AuditQuery) ([]models.AuditLog, int64, error) {
	page := q.Page
	if page < 1 {
		page = 1
	}
	limit := q.Limit
	if limit < 1 || limit > 100 {
		limit = 20
	}

	query := s.db.Model(&models.AuditLog{})
	if q.ActorID != nil {
		query = query.Where("actor_id = ?", *q.ActorID)
	}
	if len(q.Actions) > 0 {
		query = query.Where("action IN ?", q.Actions)
	}
	if q.SubjectType != "" {
		query = query.Where("subject_type = ?", q.SubjectType)
	}
	if q.SubjectID != "" {
		query = query.Where("subject_id = ?", q.SubjectID)
	}
	if q.From != nil {
		query = query.Where("timestamp >= ?", *q.From)
	}
	if q.To != nil {
		query = query.Where("timestamp <= ?", *q.To)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count audit entries: %w", err)
	}

	var entries []models.AuditLog
	offset := (page - 1) * limit
	if err := query.Order("timestamp DESC").Offset(offset).Limit(limit).Find(&entries).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to query audit entries: %w", err)
	}
	return entries, total, nil
}
