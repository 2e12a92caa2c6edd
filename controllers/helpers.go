package controllers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"registration-api/config"
	"registration-api/rules"
	"registration-api/services"
)

// Package-level service instances, wired once at startup.
var (
	registry         *services.LocalRegistry
	fanout           *services.Fanout
	auditService     *services.AuditService
	lifecycleService *services.LifecycleService
	notifyService    *services.NotificationService
)

// InitServices wires the service layer. Call after config.InitDB (and
// optionally config.InitRedis).
func InitServices() {
	registry = services.NewLocalRegistry(32)
	fanout = services.NewFanout(registry, config.Redis)
	auditService = services.NewAuditService(config.DB)
	lifecycleService = services.NewLifecycleService(config.DB, auditService, fanout)
	notifyService = services.NewNotificationService(config.DB, fanout)
}

// StartDelaySweep launches the periodic sweep that flags open submissions
// waiting past DELAY_THRESHOLD_MINUTES. Disabled when the variable is
// unset or zero. Returns immediately.
func StartDelaySweep() {
	threshold, err := strconv.Atoi(os.Getenv("DELAY_THRESHOLD_MINUTES"))
	if err != nil || threshold <= 0 {
		return
	}
	interval := 5 * time.Minute
	if v, err := strconv.Atoi(os.Getenv("DELAY_SWEEP_INTERVAL_MINUTES")); err == nil && v > 0 {
		interval = time.Duration(v) * time.Minute
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for range ticker.C {
			flagged, err := lifecycleService.SweepDelayed(context.Background(), threshold, time.Now())
			if err != nil {
				log.Printf("delay sweep failed: %v", err)
				continue
			}
			if flagged > 0 {
				log.Printf("delay sweep: %d submissions waiting over %d minutes", flagged, threshold)
			}
		}
	}()
}

// currentActor builds audit attribution from the authenticated request.
func currentActor(c *gin.Context) services.Actor {
	actor := services.Actor{}
	if userID, ok := c.Get("userID"); ok {
		actor.ID = userID.(int)
	}
	if userName, ok := c.Get("userName"); ok {
		actor.Name = userName.(string)
	}
	if ip := c.ClientIP(); ip != "" {
		actor.SourceAddress = &ip
	}
	return actor
}

// respondServiceError translates the service error taxonomy into HTTP
// responses. Incompleteness and invalid transitions carry their structure
// so the client can render an actionable message.
func respondServiceError(c *gin.Context, err error) {
	var incomplete *services.IncompleteSubmissionError
	var invalid *services.InvalidTransitionError

	switch {
	case errors.Is(err, rules.ErrUnknownCategory):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrMissingReason):
		c.JSON(http.StatusBadRequest, gin.H{"error": "A rejection reason is required"})
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Submission not found"})
	case errors.As(err, &invalid):
		c.JSON(http.StatusConflict, gin.H{
			"error":            invalid.Error(),
			"current_status":   invalid.Current,
			"attempted_status": invalid.Attempted,
		})
	case errors.Is(err, services.ErrConcurrentModification):
		c.JSON(http.StatusConflict, gin.H{"error": "Submission was modified concurrently, please retry"})
	case errors.Is(err, services.ErrSubmissionClosed):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.As(err, &incomplete):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":        "Submission is incomplete",
			"completeness": incomplete.Result,
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
