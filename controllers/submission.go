package controllers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"registration-api/models"
	"registration-api/rules"
	"registration-api/services"
)

type documentPayload struct {
	Type             string  `json:"type" binding:"required"`
	Description      *string `json:"description,omitempty"`
	OriginalFilename string  `json:"original_filename"`
	StoredFilename   string  `json:"stored_filename"`
	FileSize         int64   `json:"file_size"`
	MimeType         string  `json:"mime_type"`
}

type createSubmissionRequest struct {
	Category      string            `json:"category" binding:"required"`
	Priority      string            `json:"priority"`
	Fields        map[string]string `json:"fields"`
	DeclaredValue *float64          `json:"declared_value,omitempty"`
	Documents     []documentPayload `json:"documents"`
}

func (r *createSubmissionRequest) toInput() services.CreateInput {
	input := services.CreateInput{
		Category:      rules.Category(r.Category),
		Priority:      models.SubmissionPriority(r.Priority),
		Fields:        r.Fields,
		DeclaredValue: r.DeclaredValue,
	}
	for _, doc := range r.Documents {
		input.Documents = append(input.Documents, services.DocumentInput{
			Type:             rules.DocumentType(doc.Type),
			Description:      doc.Description,
			OriginalFilename: doc.OriginalFilename,
			StoredFilename:   doc.StoredFilename,
			FileSize:         doc.FileSize,
			MimeType:         doc.MimeType,
		})
	}
	return input
}

// CreateSubmission creates a registration package after server-side
// completeness enforcement.
func CreateSubmission(c *gin.Context) {
	var req createSubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data"})
		return
	}

	submission, err := lifecycleService.Create(c.Request.Context(), currentActor(c), req.toInput())
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success":    true,
		"message":    "Submission created successfully",
		"submission": submission,
	})
}

// ValidateSubmission runs the completeness checklist without persisting
// anything, so clients can render live feedback while the operator types.
func ValidateSubmission(c *gin.Context) {
	var req createSubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data"})
		return
	}

	docTypes := make([]rules.DocumentType, 0, len(req.Documents))
	for _, doc := range req.Documents {
		docTypes = append(docTypes, rules.DocumentType(doc.Type))
	}

	result, err := services.ValidateCompleteness(rules.Category(req.Category), req.Fields, docTypes, req.DeclaredValue)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"completeness": result,
	})
}

// GetSubmission returns one submission with documents and identities.
func GetSubmission(c *gin.Context) {
	submissionID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid submission ID"})
		return
	}

	submission, err := lifecycleService.Get(c.Request.Context(), submissionID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	// Operators only see their own packages; reviewers and admins see all.
	roleID, _ := c.Get("roleID")
	userID, _ := c.Get("userID")
	if roleID.(int) == models.RoleOperator && submission.CreatedBy != userID.(int) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Submission not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"submission":   submission,
		"wait_minutes": services.WaitMinutes(submission, time.Now()),
	})
}

// ListQueue returns the review queue in deterministic order: urgent before
// high before normal, oldest first within a priority.
func ListQueue(c *gin.Context) {
	filters := services.QueueFilters{
		Category: rules.Category(c.Query("category")),
	}
	for _, status := range c.QueryArray("status") {
		filters.Statuses = append(filters.Statuses, models.SubmissionStatus(status))
	}
	if assignee := c.Query("assignee_id"); assignee != "" {
		if id, err := strconv.Atoi(assignee); err == nil {
			filters.AssigneeID = &id
		}
	}

	// Operators are restricted to their own submissions.
	roleID, _ := c.Get("roleID")
	userID, _ := c.Get("userID")
	if roleID.(int) == models.RoleOperator {
		uid := userID.(int)
		filters.CreatorID = &uid
	}

	submissions, err := lifecycleService.ListQueue(c.Request.Context(), filters)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	now := time.Now()
	items := make([]gin.H, 0, len(submissions))
	for i := range submissions {
		items = append(items, gin.H{
			"submission":   submissions[i],
			"wait_minutes": services.WaitMinutes(&submissions[i], now),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"queue":   items,
		"count":   len(items),
	})
}

// StartReview moves a pending submission into in_review.
func StartReview(c *gin.Context) {
	transitionTo(c, models.StatusInReview, nil)
}

// ApproveSubmission finishes a review with approval and notifies the
// submitting operator.
func ApproveSubmission(c *gin.Context) {
	transitionTo(c, models.StatusApproved, nil)
}

// RejectSubmission finishes a review with rejection; the reason is
// mandatory and surfaced to the operator.
func RejectSubmission(c *gin.Context) {
	var req struct {
		Reason string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data"})
		return
	}
	transitionTo(c, models.StatusRejected, &req.Reason)
}

// ReopenSubmission takes a rejected submission back to pending so the
// operator can resubmit after fixing issues.
func ReopenSubmission(c *gin.Context) {
	transitionTo(c, models.StatusPending, nil)
}

func transitionTo(c *gin.Context, target models.SubmissionStatus, reason *string) {
	submissionID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid submission ID"})
		return
	}

	submission, err := lifecycleService.Transition(c.Request.Context(), submissionID, target, currentActor(c), reason)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	switch target {
	case models.StatusApproved:
		notifyService.NotifyDecision(c.Request.Context(), submission, true, "")
	case models.StatusRejected:
		notifyService.NotifyDecision(c.Request.Context(), submission, false, *reason)
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"submission": submission,
	})
}

// AssignSubmission sets the reviewer responsible for a submission.
func AssignSubmission(c *gin.Context) {
	submissionID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid submission ID"})
		return
	}

	var req struct {
		ReviewerID int `json:"reviewer_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data"})
		return
	}

	submission, err := lifecycleService.Assign(c.Request.Context(), submissionID, req.ReviewerID, currentActor(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"submission": submission,
	})
}

// GetCategories returns the closed category set with each category's
// completeness rules, for client-side checklist rendering.
func GetCategories(c *gin.Context) {
	categories := make([]gin.H, 0)
	for _, category := range rules.Categories() {
		def, err := rules.Get(category)
		if err != nil {
			continue
		}
		categories = append(categories, gin.H{
			"category":           category,
			"required_fields":    def.RequiredFields,
			"optional_fields":    def.OptionalFields,
			"required_documents": def.RequiredDocuments,
			"optional_documents": def.OptionalDocuments,
			"tracking_threshold": def.TrackingThreshold,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"categories": categories,
	})
}
