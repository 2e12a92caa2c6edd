package controllers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"registration-api/services"
)

// QueryAuditLog returns audit entries, newest first. Admin only; filters
// by actor, action kinds, subject and a time range.
func QueryAuditLog(c *gin.Context) {
	query := services.AuditQuery{
		SubjectType: c.Query("subject_type"),
		SubjectID:   c.Query("subject_id"),
	}
	query.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	query.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))

	if actor := c.Query("actor_id"); actor != "" {
		if id, err := strconv.Atoi(actor); err == nil {
			query.ActorID = &id
		}
	}
	if actions := c.Query("actions"); actions != "" {
		for _, action := range strings.Split(actions, ",") {
			if action = strings.TrimSpace(action); action != "" {
				query.Actions = append(query.Actions, strings.ToUpper(action))
			}
		}
	}
	if from := c.Query("from"); from != "" {
		if t, err := time.Parse(time.RFC3339, from); err == nil {
			query.From = &t
		}
	}
	if to := c.Query("to"); to != "" {
		if t, err := time.Parse(time.RFC3339, to); err == nil {
			query.To = &t
		}
	}

	entries, total, err := auditService.Query(query)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to query audit log"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"entries":     entries,
		"total_count": total,
	})
}
