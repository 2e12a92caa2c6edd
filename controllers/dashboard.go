package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"registration-api/config"
	"registration-api/models"
	"registration-api/services"
)

// GetDashboardStats returns counts by status and priority plus wait-time
// figures for the management overview.
func GetDashboardStats(c *gin.Context) {
	type statusCount struct {
		Status models.SubmissionStatus `gorm:"column:status" json:"status"`
		Count  int64                   `gorm:"column:count" json:"count"`
	}
	type priorityCount struct {
		Priority models.SubmissionPriority `gorm:"column:priority" json:"priority"`
		Count    int64                     `gorm:"column:count" json:"count"`
	}

	var byStatus []statusCount
	if err := config.DB.Model(&models.Submission{}).
		Select("status, COUNT(*) AS count").
		Where("delete_at IS NULL").
		Group("status").
		Scan(&byStatus).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute statistics"})
		return
	}

	var byPriority []priorityCount
	if err := config.DB.Model(&models.Submission{}).
		Select("priority, COUNT(*) AS count").
		Where("delete_at IS NULL AND status IN ?", []models.SubmissionStatus{models.StatusPending, models.StatusInReview}).
		Group("priority").
		Scan(&byPriority).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute statistics"})
		return
	}

	// Wait minutes are computed in memory over the open set so dashboards
	// and queue rows agree on the same formula.
	var open []models.Submission
	if err := config.DB.
		Where("delete_at IS NULL AND status IN ?", []models.SubmissionStatus{models.StatusPending, models.StatusInReview}).
		Find(&open).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute statistics"})
		return
	}

	now := time.Now()
	maxWait, totalWait := 0, 0
	for i := range open {
		wait := services.WaitMinutes(&open[i], now)
		totalWait += wait
		if wait > maxWait {
			maxWait = wait
		}
	}
	avgWait := 0
	if len(open) > 0 {
		avgWait = totalWait / len(open)
	}

	c.JSON(http.StatusOK, gin.H{
		"success":          true,
		"by_status":        byStatus,
		"open_by_priority": byPriority,
		"open_count":       len(open),
		"avg_wait_minutes": avgWait,
		"max_wait_minutes": maxWait,
	})
}
