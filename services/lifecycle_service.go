package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"registration-api/models"
	"registration-api/rules"
	"registration-api/utils"
)

// statusTransitions is the full edge set of the submission state machine.
// approved is terminal; rejected keeps one recovery edge back to pending
// ("resubmit after fixing issues").
var statusTransitions = map[models.SubmissionStatus][]models.SubmissionStatus{
	models.StatusPending:  {models.StatusInReview, models.StatusRejected},
	models.StatusInReview: {models.StatusApproved, models.StatusRejected, models.StatusPending},
	models.StatusApproved: {},
	models.StatusRejected: {models.StatusPending},
}

// CanTransition reports whether target is reachable from current in one step.
func CanTransition(current, target models.SubmissionStatus) bool {
	for _, allowed := range statusTransitions[current] {
		if allowed == target {
			return true
		}
	}
	return false
}

// transitionEffects describes the timestamp side effects of taking one
// edge. Keeping them in a table keeps the state machine declarative.
type transitionEffects struct {
	touchStarted   bool // set started_at to the entry time
	touchFinished  bool // set finished_at to the entry time
	clearFinished  bool // reopen: clear finished_at
	clearRejection bool // reopen: clear rejection_reason
	auditAction    string
}

// effectsFor returns the side effects of the current→target edge. Each
// pending→in_review entry counts as a fresh review cycle, so started_at is
// updated to the latest entry time rather than preserved.
func effectsFor(current, target models.SubmissionStatus) transitionEffects {
	switch target {
	case models.StatusInReview:
		return transitionEffects{touchStarted: true, auditAction: models.AuditActionTransition}
	case models.StatusApproved:
		return transitionEffects{touchFinished: true, auditAction: models.AuditActionApprove}
	case models.StatusRejected:
		return transitionEffects{touchFinished: true, auditAction: models.AuditActionReject}
	case models.StatusPending:
		if current == models.StatusRejected || current == models.StatusInReview {
			return transitionEffects{clearFinished: true, clearRejection: true, auditAction: models.AuditActionTransition}
		}
	}
	return transitionEffects{auditAction: models.AuditActionTransition}
}

// PriorityRank maps a priority to its queue weight; lower is processed
// first. Unknown values sort last.
func PriorityRank(p models.SubmissionPriority) int {
	switch p {
	case models.PriorityUrgent:
		return 0
	case models.PriorityHigh:
		return 1
	case models.PriorityNormal:
		return 2
	}
	return 3
}

// SortQueue orders submissions for review: priority rank first, then
// created_at ascending. Stable, so the result is a pure function of the
// input snapshot rather than of storage insertion order.
func SortQueue(submissions []models.Submission) {
	sort.SliceStable(submissions, func(i, j int) bool {
		ri, rj := PriorityRank(submissions[i].Priority), PriorityRank(submissions[j].Priority)
		if ri != rj {
			return ri < rj
		}
		return submissions[i].CreatedAt.Before(submissions[j].CreatedAt)
	})
}

// WaitMinutes returns how long a submission has been (or was) waiting:
// floor((finished_at ?? now) - created_at) in minutes.
func WaitMinutes(s *models.Submission, now time.Time) int {
	end := now
	if s.FinishedAt != nil {
		end = *s.FinishedAt
	}
	minutes := end.Sub(s.CreatedAt).Minutes()
	if minutes < 0 {
		return 0
	}
	return int(math.Floor(minutes))
}

// Actor identifies who performed a mutation, for audit attribution.
// Permission checks are assumed already done by the caller.
type Actor struct {
	ID            int
	Name          string
	SourceAddress *string
}

// DocumentInput describes one upload attached at create time.
type DocumentInput struct {
	Type             rules.DocumentType
	Description      *string
	OriginalFilename string
	StoredFilename   string
	FileSize         int64
	MimeType         string
}

// CreateInput carries everything needed to create a submission.
type CreateInput struct {
	Category      rules.Category
	Priority      models.SubmissionPriority
	Fields        map[string]string
	DeclaredValue *float64
	Documents     []DocumentInput
}

// QueueFilters narrows ListQueue. Zero values mean "no filter"; Statuses
// defaults to the open states.
type QueueFilters struct {
	Statuses   []models.SubmissionStatus
	Category   rules.Category
	AssigneeID *int
	CreatorID  *int
}

// LifecycleService owns submission creation, the status state machine,
// assignment and queue ordering. Every successful mutation writes exactly
// one audit entry (inside the same transaction) and publishes exactly one
// fan-out event (after commit).
type LifecycleService struct {
	db     *gorm.DB
	audit  *AuditService
	fanout *Fanout

	// locks serializes mutations per submission id within this process.
	// Entries are never evicted: a mutex is a few words, so the map stays
	// negligible next to the table it guards. Revisit with a refcounted or
	// sharded lock if submission volume ever makes it measurable.
	locks sync.Map

	// allowIncomplete restores source-system parity: skip server-side
	// completeness enforcement at create.
	allowIncomplete bool
}

func NewLifecycleService(db *gorm.DB, audit *AuditService, fanout *Fanout) *LifecycleService {
	return &LifecycleService{
		db:              db,
		audit:           audit,
		fanout:          fanout,
		allowIncomplete: os.Getenv("ALLOW_INCOMPLETE_CREATE") == "1",
	}
}

func (s *LifecycleService) lock(submissionID int) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(submissionID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// Create persists a brand-new submission in state pending. Completeness is
// enforced server-side; an incomplete package fails with
// IncompleteSubmissionError carrying the full checklist.
func (s *LifecycleService) Create(ctx context.Context, actor Actor, input CreateInput) (*models.Submission, error) {
	if !rules.IsValid(input.Category) {
		return nil, fmt.Errorf("%w: %q", rules.ErrUnknownCategory, input.Category)
	}

	priority := input.Priority
	if priority == "" {
		priority = models.PriorityNormal
	}
	if !models.IsValidPriority(priority) {
		return nil, fmt.Errorf("invalid priority %q", priority)
	}

	docTypes := make([]rules.DocumentType, 0, len(input.Documents))
	for _, doc := range input.Documents {
		if !rules.IsValidDocumentType(doc.Type) {
			return nil, fmt.Errorf("invalid document type %q", doc.Type)
		}
		docTypes = append(docTypes, doc.Type)
	}

	fields := make(map[string]string, len(input.Fields))
	for key, value := range input.Fields {
		fields[key] = utils.SanitizeInput(value)
	}

	result, err := ValidateCompleteness(input.Category, fields, docTypes, input.DeclaredValue)
	if err != nil {
		return nil, err
	}
	if !result.Valid && !s.allowIncomplete {
		return nil, &IncompleteSubmissionError{Result: result}
	}

	now := time.Now()
	submission := models.Submission{
		SubmissionNumber: "REG-" + uuid.NewString(),
		Category:         string(input.Category),
		Status:           models.StatusPending,
		Priority:         priority,
		CreatedBy:        actor.ID,
		DeclaredValue:    input.DeclaredValue,
		RequiresTracking: result.RequiresTracking,
		CreatedAt:        now,
	}
	if err := submission.SetFieldValues(fields); err != nil {
		return nil, fmt.Errorf("failed to encode field values: %w", err)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&submission).Error; err != nil {
			return fmt.Errorf("failed to create submission: %w", err)
		}
		for _, doc := range input.Documents {
			row := models.Document{
				SubmissionID:     submission.SubmissionID,
				DocType:          string(doc.Type),
				Description:      doc.Description,
				OriginalFilename: doc.OriginalFilename,
				StoredFilename:   doc.StoredFilename,
				FileSize:         doc.FileSize,
				MimeType:         doc.MimeType,
				UploadedBy:       actor.ID,
				UploadedAt:       now,
				CreateAt:         now,
			}
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("failed to attach document: %w", err)
			}
		}
		_, err := s.audit.Record(tx, AuditInput{
			ActorID:       actor.ID,
			ActorName:     actor.Name,
			Action:        models.AuditActionCreate,
			SubjectType:   models.AuditSubjectSubmission,
			SubjectID:     fmt.Sprint(submission.SubmissionID),
			After:         submissionSnapshot(&submission),
			SourceAddress: actor.SourceAddress,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.fanout.Publish(ctx, Event{
		Kind:    EventSubmissionCreated,
		Payload: submissionEventPayload(&submission),
	})
	return &submission, nil
}

// Transition moves a submission along one edge of the state machine.
// Mutations on the same id are serialized; a lost race against another
// writer is retried once before surfacing ErrConcurrentModification.
func (s *LifecycleService) Transition(ctx context.Context, submissionID int, target models.SubmissionStatus, actor Actor, reason *string) (*models.Submission, error) {
	if _, known := statusTransitions[target]; !known {
		return nil, fmt.Errorf("unknown status %q", target)
	}

	mu := s.lock(submissionID)
	mu.Lock()
	defer mu.Unlock()

	var submission *models.Submission
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		submission, err = s.transitionOnce(ctx, submissionID, target, actor, reason)
		if !errors.Is(err, ErrConcurrentModification) {
			break
		}
	}
	if err != nil {
		return nil, err
	}

	s.fanout.Publish(ctx, Event{
		Kind:    EventSubmissionUpdated,
		Payload: submissionEventPayload(submission),
	})
	return submission, nil
}

func (s *LifecycleService) transitionOnce(ctx context.Context, submissionID int, target models.SubmissionStatus, actor Actor, reason *string) (*models.Submission, error) {
	var submission models.Submission

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("submission_id = ? AND delete_at IS NULL", submissionID).
			First(&submission).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("failed to load submission: %w", err)
		}

		current := submission.Status
		if !CanTransition(current, target) {
			return &InvalidTransitionError{Current: current, Attempted: target}
		}
		if target == models.StatusRejected && (reason == nil || *reason == "") {
			return ErrMissingReason
		}

		before := submissionSnapshot(&submission)
		now := time.Now()
		effects := effectsFor(current, target)

		updates := map[string]interface{}{
			"status":    target,
			"update_at": now,
		}
		if effects.touchStarted {
			updates["started_at"] = now
		}
		if effects.touchFinished {
			updates["finished_at"] = now
		}
		if effects.clearFinished {
			updates["finished_at"] = nil
		}
		if effects.clearRejection {
			updates["rejection_reason"] = nil
		}
		if target == models.StatusRejected {
			updates["rejection_reason"] = *reason
		}

		// Status guard: a concurrent transition that already moved the row
		// off `current` matches zero rows here instead of double-applying.
		res := tx.Model(&models.Submission{}).
			Where("submission_id = ? AND status = ?", submissionID, current).
			Updates(updates)
		if res.Error != nil {
			return fmt.Errorf("failed to update submission status: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrConcurrentModification
		}

		applyTransition(&submission, target, effects, now, reason)

		_, err := s.audit.Record(tx, AuditInput{
			ActorID:       actor.ID,
			ActorName:     actor.Name,
			Action:        effects.auditAction,
			SubjectType:   models.AuditSubjectSubmission,
			SubjectID:     fmt.Sprint(submissionID),
			Before:        before,
			After:         submissionSnapshot(&submission),
			SourceAddress: actor.SourceAddress,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return &submission, nil
}

// applyTransition mirrors the column updates onto the loaded struct so the
// caller gets the post-transition state without a reload.
func applyTransition(s *models.Submission, target models.SubmissionStatus, effects transitionEffects, now time.Time, reason *string) {
	s.Status = target
	s.UpdateAt = &now
	if effects.touchStarted {
		started := now
		s.StartedAt = &started
	}
	if effects.touchFinished {
		finished := now
		s.FinishedAt = &finished
	}
	if effects.clearFinished {
		s.FinishedAt = nil
	}
	if effects.clearRejection {
		s.RejectionReason = nil
	}
	if target == models.StatusRejected {
		s.RejectionReason = reason
	}
}

// Assign sets the assignee of a non-terminal submission. It never changes
// status; repeated assignment of the same reviewer is a no-op for state
// but still audited per call.
func (s *LifecycleService) Assign(ctx context.Context, submissionID, reviewerID int, actor Actor) (*models.Submission, error) {
	mu := s.lock(submissionID)
	mu.Lock()
	defer mu.Unlock()

	var submission models.Submission
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("submission_id = ? AND delete_at IS NULL", submissionID).
			First(&submission).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("failed to load submission: %w", err)
		}
		if submission.Status.IsTerminal() {
			return fmt.Errorf("%w: cannot assign a %s submission", ErrSubmissionClosed, submission.Status)
		}

		before := submissionSnapshot(&submission)
		now := time.Now()
		res := tx.Model(&models.Submission{}).
			Where("submission_id = ?", submissionID).
			Updates(map[string]interface{}{"assignee_id": reviewerID, "update_at": now})
		if res.Error != nil {
			return fmt.Errorf("failed to assign submission: %w", res.Error)
		}
		submission.AssigneeID = &reviewerID
		submission.UpdateAt = &now

		_, err := s.audit.Record(tx, AuditInput{
			ActorID:       actor.ID,
			ActorName:     actor.Name,
			Action:        models.AuditActionAssign,
			SubjectType:   models.AuditSubjectSubmission,
			SubjectID:     fmt.Sprint(submissionID),
			Before:        before,
			After:         submissionSnapshot(&submission),
			SourceAddress: actor.SourceAddress,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.fanout.Publish(ctx, Event{
		Kind:    EventSubmissionUpdated,
		Payload: submissionEventPayload(&submission),
	})
	return &submission, nil
}

// Get loads one submission with its creator, assignee and documents.
func (s *LifecycleService) Get(ctx context.Context, submissionID int) (*models.Submission, error) {
	var submission models.Submission
	err := s.db.WithContext(ctx).
		Preload("Creator").Preload("Assignee").
		Preload("Documents", "delete_at IS NULL").
		Where("submission_id = ? AND delete_at IS NULL", submissionID).
		First(&submission).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load submission: %w", err)
	}
	return &submission, nil
}

// ListQueue returns the filtered submissions in review order: urgent
// before high before normal, then oldest first within a priority.
func (s *LifecycleService) ListQueue(ctx context.Context, filters QueueFilters) ([]models.Submission, error) {
	statuses := filters.Statuses
	if len(statuses) == 0 {
		statuses = []models.SubmissionStatus{models.StatusPending, models.StatusInReview}
	}

	query := s.db.WithContext(ctx).
		Preload("Creator").Preload("Assignee").
		Where("delete_at IS NULL").
		Where("status IN ?", statuses)
	if filters.Category != "" {
		query = query.Where("category = ?", string(filters.Category))
	}
	if filters.AssigneeID != nil {
		query = query.Where("assignee_id = ?", *filters.AssigneeID)
	}
	if filters.CreatorID != nil {
		query = query.Where("created_by = ?", *filters.CreatorID)
	}

	var submissions []models.Submission
	if err := query.Find(&submissions).Error; err != nil {
		return nil, fmt.Errorf("failed to list queue: %w", err)
	}
	SortQueue(submissions)
	return submissions, nil
}

// SweepDelayed publishes a submission-delayed event for every open
// submission waiting at least threshold minutes. Intended to run on a
// timer; delivery shares the fan-out's best-effort contract, so observers
// may see the same submission flagged on consecutive sweeps. Returns the
// number of submissions flagged.
func (s *LifecycleService) SweepDelayed(ctx context.Context, threshold int, now time.Time) (int, error) {
	var open []models.Submission
	err := s.db.WithContext(ctx).
		Where("delete_at IS NULL AND status IN ?", []models.SubmissionStatus{models.StatusPending, models.StatusInReview}).
		Find(&open).Error
	if err != nil {
		return 0, fmt.Errorf("failed to load open submissions: %w", err)
	}

	flagged := 0
	for i := range open {
		wait := WaitMinutes(&open[i], now)
		if wait < threshold {
			continue
		}
		flagged++
		s.fanout.Publish(ctx, Event{
			Kind: EventSubmissionDelayed,
			Payload: map[string]interface{}{
				"submission_id":     open[i].SubmissionID,
				"submission_number": open[i].SubmissionNumber,
				"status":            open[i].Status,
				"priority":          open[i].Priority,
				"wait_minutes":      wait,
			},
		})
	}
	return flagged, nil
}

// AttachDocument binds one more upload to an open submission.
func (s *LifecycleService) AttachDocument(ctx context.Context, submissionID int, input DocumentInput, actor Actor) (*models.Document, error) {
	if !rules.IsValidDocumentType(input.Type) {
		return nil, fmt.Errorf("invalid document type %q", input.Type)
	}

	mu := s.lock(submissionID)
	mu.Lock()
	defer mu.Unlock()

	var doc models.Document
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var submission models.Submission
		if err := tx.Where("submission_id = ? AND delete_at IS NULL", submissionID).
			First(&submission).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("failed to load submission: %w", err)
		}
		if submission.Status.IsTerminal() {
			return fmt.Errorf("%w: cannot attach to a %s submission", ErrSubmissionClosed, submission.Status)
		}

		now := time.Now()
		doc = models.Document{
			SubmissionID:     submissionID,
			DocType:          string(input.Type),
			Description:      input.Description,
			OriginalFilename: input.OriginalFilename,
			StoredFilename:   input.StoredFilename,
			FileSize:         input.FileSize,
			MimeType:         input.MimeType,
			UploadedBy:       actor.ID,
			UploadedAt:       now,
			CreateAt:         now,
		}
		if err := tx.Create(&doc).Error; err != nil {
			return fmt.Errorf("failed to attach document: %w", err)
		}

		_, err := s.audit.Record(tx, AuditInput{
			ActorID:       actor.ID,
			ActorName:     actor.Name,
			Action:        models.AuditActionAttach,
			SubjectType:   models.AuditSubjectDocument,
			SubjectID:     fmt.Sprint(doc.DocumentID),
			After:         map[string]interface{}{"submission_id": submissionID, "doc_type": doc.DocType, "original_filename": doc.OriginalFilename},
			SourceAddress: actor.SourceAddress,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.fanout.Publish(ctx, Event{
		Kind:    EventSubmissionUpdated,
		Payload: map[string]interface{}{"submission_id": submissionID, "document_id": doc.DocumentID, "change": "document-attached"},
	})
	return &doc, nil
}

// DetachDocument soft-deletes an upload from an open submission.
func (s *LifecycleService) DetachDocument(ctx context.Context, documentID int, actor Actor) error {
	var doc models.Document
	if err := s.db.WithContext(ctx).
		Where("document_id = ? AND delete_at IS NULL", documentID).
		First(&doc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to load document: %w", err)
	}

	mu := s.lock(doc.SubmissionID)
	mu.Lock()
	defer mu.Unlock()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var submission models.Submission
		if err := tx.Where("submission_id = ? AND delete_at IS NULL", doc.SubmissionID).
			First(&submission).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("failed to load submission: %w", err)
		}
		if submission.Status.IsTerminal() {
			return fmt.Errorf("%w: cannot detach from a %s submission", ErrSubmissionClosed, submission.Status)
		}

		now := time.Now()
		res := tx.Model(&models.Document{}).
			Where("document_id = ? AND delete_at IS NULL", documentID).
			Updates(map[string]interface{}{"delete_at": now, "update_at": now})
		if res.Error != nil {
			return fmt.Errorf("failed to detach document: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}

		_, err := s.audit.Record(tx, AuditInput{
			ActorID:       actor.ID,
			ActorName:     actor.Name,
			Action:        models.AuditActionDetach,
			SubjectType:   models.AuditSubjectDocument,
			SubjectID:     fmt.Sprint(documentID),
			Before:        map[string]interface{}{"submission_id": doc.SubmissionID, "doc_type": doc.DocType, "original_filename": doc.OriginalFilename},
			SourceAddress: actor.SourceAddress,
		})
		return err
	})
	if err != nil {
		return err
	}

	s.fanout.Publish(ctx, Event{
		Kind:    EventSubmissionUpdated,
		Payload: map[string]interface{}{"submission_id": doc.SubmissionID, "document_id": documentID, "change": "document-detached"},
	})
	return nil
}

// submissionSnapshot is the free-form audit payload for before/after states.
func submissionSnapshot(s *models.Submission) map[string]interface{} {
	snapshot := map[string]interface{}{
		"status":   s.Status,
		"priority": s.Priority,
		"category": s.Category,
	}
	if s.AssigneeID != nil {
		snapshot["assignee_id"] = *s.AssigneeID
	}
	if s.RejectionReason != nil {
		snapshot["rejection_reason"] = *s.RejectionReason
	}
	if s.StartedAt != nil {
		snapshot["started_at"] = s.StartedAt
	}
	if s.FinishedAt != nil {
		snapshot["finished_at"] = s.FinishedAt
	}
	return snapshot
}

// submissionEventPayload is what observers receive on create/update.
func submissionEventPayload(s *models.Submission) map[string]interface{} {
	payload := map[string]interface{}{
		"submission_id":     s.SubmissionID,
		"submission_number": s.SubmissionNumber,
		"category":          s.Category,
		"status":            s.Status,
		"priority":          s.Priority,
		"created_by":        s.CreatedBy,
		"created_at":        s.CreatedAt,
	}
	if s.AssigneeID != nil {
		payload["assignee_id"] = *s.AssigneeID
	}
	if s.RejectionReason != nil {
		payload["rejection_reason"] = *s.RejectionReason
	}
	return payload
}
