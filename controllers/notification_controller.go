package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"registration-api/services"
)

// GetNotifications returns the caller's inbox, newest first.
func GetNotifications(c *gin.Context) {
	userID, _ := c.Get("userID")
	unreadOnly := c.Query("unread") == "1"
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	rows, unread, err := notifyService.List(c.Request.Context(), userID.(int), unreadOnly, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch notifications"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"notifications": rows,
		"unread_count":  unread,
	})
}

// MarkNotificationRead marks one of the caller's notifications as read.
func MarkNotificationRead(c *gin.Context) {
	userID, _ := c.Get("userID")
	notificationID, err := strconv.ParseUint(c.Param("notification_id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid notification ID"})
		return
	}

	if err := notifyService.MarkRead(c.Request.Context(), userID.(int), uint(notificationID)); err != nil {
		if errors.Is(err, services.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Notification not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update notification"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// MarkAllNotificationsRead marks every unread notification of the caller.
func MarkAllNotificationsRead(c *gin.Context) {
	userID, _ := c.Get("userID")

	if err := notifyService.MarkAllRead(c.Request.Context(), userID.(int)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update notifications"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
