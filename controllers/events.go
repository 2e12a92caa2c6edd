package controllers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"registration-api/models"
	"registration-api/services"
)

// roomsForRole maps a role to the rooms it may observe.
func roomsForRole(roleID int) []string {
	switch roleID {
	case models.RoleAdmin:
		return []string{services.RoomQueue, services.RoomDashboard, services.RoomPublicDisplay}
	case models.RoleReviewer:
		return []string{services.RoomQueue, services.RoomDashboard}
	default:
		return nil
	}
}

// StreamEvents is the authenticated SSE endpoint. The connection joins the
// rooms its role allows plus its private per-user channel; events flow
// until the client disconnects. Missed events are recovered by re-fetching
// state, not replayed.
func StreamEvents(c *gin.Context) {
	userID, _ := c.Get("userID")
	roleID, _ := c.Get("roleID")

	uid := userID.(int)
	connID, ch := registry.Connect(&uid)
	defer registry.Disconnect(connID)

	// Operators join no rooms and get only their private channel; that is
	// still a live feed for their own submissions.
	for _, room := range roomsForRole(roleID.(int)) {
		_ = registry.Join(connID, room)
	}

	streamChannel(c, ch)
}

// StreamPublicDisplay is the unauthenticated feed for read-only display
// screens. It only ever sees the public-display room.
func StreamPublicDisplay(c *gin.Context) {
	connID, ch := registry.Connect(nil)
	defer registry.Disconnect(connID)

	if err := registry.Join(connID, services.RoomPublicDisplay); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to subscribe"})
		return
	}

	streamChannel(c, ch)
}

func streamChannel(c *gin.Context, ch <-chan []byte) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	c.Stream(func(w io.Writer) bool {
		select {
		case message, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent("message", string(message))
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
