package services

import (
	"context"
	"fmt"
	"html/template"
	"log"
	"os"
	"time"

	"gorm.io/gorm"

	"registration-api/config"
	"registration-api/models"
)

// NotificationService maintains the persisted per-user inbox and sends the
// decision emails. Both are delivery conveniences layered on top of the
// audit trail; neither failure mode may fail the calling operation.
type NotificationService struct {
	db     *gorm.DB
	fanout *Fanout
}

func NewNotificationService(db *gorm.DB, fanout *Fanout) *NotificationService {
	return &NotificationService{db: db, fanout: fanout}
}

// Push appends an inbox row for one user and mirrors it onto the user's
// private real-time channel.
func (s *NotificationService) Push(ctx context.Context, userID int, title, message, kind string, submissionID *int) error {
	if kind == "" {
		kind = "info"
	}
	row := models.Notification{
		UserID:   uint(userID),
		Title:    title,
		Message:  message,
		Type:     kind,
		IsRead:   false,
		CreateAt: time.Now(),
	}
	if submissionID != nil {
		related := uint(*submissionID)
		row.RelatedSubmissionID = &related
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}

	target := userID
	s.fanout.Publish(ctx, Event{
		Kind:         EventNotification,
		TargetUserID: &target,
		Payload: map[string]interface{}{
			"notification_id": row.NotificationID,
			"title":           title,
			"message":         message,
			"type":            kind,
		},
	})
	return nil
}

// NotifyDecision informs the submitting operator that a submission reached
// a decision: inbox row plus a formal email. Email failure is logged and
// swallowed.
func (s *NotificationService) NotifyDecision(ctx context.Context, submission *models.Submission, approved bool, reason string) {
	var creator models.User
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND delete_at IS NULL", submission.CreatedBy).
		First(&creator).Error; err != nil {
		log.Printf("notification: creator %d not found for submission %d: %v",
			submission.CreatedBy, submission.SubmissionID, err)
		return
	}

	var title, message, kind string
	if approved {
		title = "Registration package approved"
		message = fmt.Sprintf("Your registration package %s has been approved.", submission.SubmissionNumber)
		kind = "success"
	} else {
		title = "Registration package rejected"
		message = fmt.Sprintf("Your registration package %s was rejected: %s", submission.SubmissionNumber, reason)
		kind = "error"
	}

	subID := submission.SubmissionID
	if err := s.Push(ctx, creator.UserID, title, message, kind, &subID); err != nil {
		log.Printf("notification: inbox push failed for user %d: %v", creator.UserID, err)
	}

	if creator.Email != "" {
		html := buildDecisionEmailHTML(title, creator.DisplayName(), message)
		sendMailSafe([]string{creator.Email}, title, html)
	}
}

// List returns one user's inbox, newest first, with the unread count.
func (s *NotificationService) List(ctx context.Context, userID int, unreadOnly bool, limit int) ([]models.Notification, int64, error) {
	if limit < 1 || limit > 100 {
		limit = 50
	}
	query := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if unreadOnly {
		query = query.Where("is_read = ?", false)
	}

	var rows []models.Notification
	if err := query.Order("create_at DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list notifications: %w", err)
	}

	var unread int64
	if err := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&unread).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count notifications: %w", err)
	}
	return rows, unread, nil
}

// MarkRead marks one inbox row read. Scoped to the owner.
func (s *NotificationService) MarkRead(ctx context.Context, userID int, notificationID uint) error {
	now := time.Now()
	res := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("notification_id = ? AND user_id = ?", notificationID, userID).
		Updates(map[string]interface{}{"is_read": true, "update_at": now})
	if res.Error != nil {
		return fmt.Errorf("failed to mark notification read: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkAllRead marks every unread row of one user read.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID int) error {
	now := time.Now()
	err := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Updates(map[string]interface{}{"is_read": true, "update_at": now}).Error
	if err != nil {
		return fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return nil
}

func buildDecisionEmailHTML(subject, recipientName, message string) string {
	org := os.Getenv("ORG_NAME")
	if org == "" {
		org = "Registration Office"
	}
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #333;">
  <div style="max-width: 600px; margin: 0 auto; padding: 24px;">
    <h2 style="color: #1a3c6e;">%s</h2>
    <p>Dear %s,</p>
    <p>%s</p>
    <p>You can review the details by signing in to the registration portal.</p>
    <hr style="border: none; border-top: 1px solid #ddd;">
    <p style="font-size: 12px; color: #888;">%s - this is an automated message, please do not reply.</p>
  </div>
</body>
</html>`,
		template.HTMLEscapeString(subject),
		template.HTMLEscapeString(recipientName),
		template.HTMLEscapeString(message),
		template.HTMLEscapeString(org))
}

// sendMailSafe sends in the current goroutine but never propagates failure.
func sendMailSafe(to []string, subject, html string) {
	if err := config.SendMail(to, subject, html); err != nil {
		log.Printf("notification: mail to %v failed: %v", to, err)
	}
}
