package controllers

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"registration-api/config"
	"registration-api/models"
	"registration-api/rules"
	"registration-api/services"
)

const maxUploadBytes = 20 * 1024 * 1024

func uploadPath() string {
	path := os.Getenv("UPLOAD_PATH")
	if path == "" {
		path = "./uploads"
	}
	return path
}

// UploadDocument attaches one uploaded file to a submission. The bytes go
// to the upload directory; the lifecycle records the metadata row, the
// audit entry and the fan-out event.
func UploadDocument(c *gin.Context) {
	submissionID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid submission ID"})
		return
	}

	docType := rules.DocumentType(c.PostForm("doc_type"))
	if !rules.IsValidDocumentType(docType) {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Invalid document type %q", docType)})
		return
	}
	var description *string
	if d := c.PostForm("description"); d != "" {
		description = &d
	}

	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File is required"})
		return
	}
	if file.Size > maxUploadBytes {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File exceeds the 20MB limit"})
		return
	}

	storedName := fmt.Sprintf("%s%s", uuid.NewString(), filepath.Ext(file.Filename))
	storedFull := filepath.Join(uploadPath(), storedName)
	if err := c.SaveUploadedFile(file, storedFull); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store file"})
		return
	}

	doc, err := lifecycleService.AttachDocument(c.Request.Context(), submissionID, services.DocumentInput{
		Type:             docType,
		Description:      description,
		OriginalFilename: file.Filename,
		StoredFilename:   storedName,
		FileSize:         file.Size,
		MimeType:         file.Header.Get("Content-Type"),
	}, currentActor(c))
	if err != nil {
		// The metadata row is the source of truth; without it the stored
		// bytes are orphaned.
		os.Remove(storedFull)
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success":  true,
		"document": doc,
	})
}

// GetDocuments lists the live documents of one submission.
func GetDocuments(c *gin.Context) {
	submissionID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid submission ID"})
		return
	}

	var documents []models.Document
	if err := config.DB.
		Where("submission_id = ? AND delete_at IS NULL", submissionID).
		Order("uploaded_at ASC").
		Find(&documents).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch documents"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"documents": documents,
	})
}

// DownloadDocument streams the stored file.
func DownloadDocument(c *gin.Context) {
	documentID, err := strconv.Atoi(c.Param("document_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid document ID"})
		return
	}

	var doc models.Document
	if err := config.DB.
		Where("document_id = ? AND delete_at IS NULL", documentID).
		First(&doc).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Document not found"})
		return
	}

	fullPath := filepath.Join(uploadPath(), doc.StoredFilename)
	if _, err := os.Stat(fullPath); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Stored file is missing"})
		return
	}

	// Download access is audited so the trail covers reads of submitted
	// evidence, not just mutations.
	actor := currentActor(c)
	if _, err := auditService.Record(nil, services.AuditInput{
		ActorID:       actor.ID,
		ActorName:     actor.Name,
		Action:        models.AuditActionExport,
		SubjectType:   models.AuditSubjectDocument,
		SubjectID:     strconv.Itoa(documentID),
		After:         gin.H{"original_filename": doc.OriginalFilename, "submission_id": doc.SubmissionID},
		SourceAddress: actor.SourceAddress,
	}); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record download"})
		return
	}

	c.FileAttachment(fullPath, doc.OriginalFilename)
}

// DeleteDocument detaches a document from its submission (soft delete).
func DeleteDocument(c *gin.Context) {
	documentID, err := strconv.Atoi(c.Param("document_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid document ID"})
		return
	}

	if err := lifecycleService.DetachDocument(c.Request.Context(), documentID, currentActor(c)); err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Document removed",
	})
}

// GetDocumentTypes returns the accepted document types.
func GetDocumentTypes(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"document_types": rules.DocumentTypes(),
	})
}
