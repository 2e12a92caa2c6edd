package routes

import (
	"registration-api/controllers"
	"registration-api/middleware"
	"registration-api/models"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(router *gin.Engine) {
	// API v1 group
	v1 := router.Group("/api/v1")
	{
		// Public routes
		public := v1.Group("")
		{
			public.POST("/login", controllers.Login)

			// Unauthenticated read-only display screens
			public.GET("/events/public-display", controllers.StreamPublicDisplay)

			public.GET("/health", func(c *gin.Context) {
				c.JSON(200, gin.H{
					"status":  "ok",
					"message": "Registration API is running",
				})
			})
		}

		// Protected routes (require authentication)
		protected := v1.Group("")
		protected.Use(middleware.AuthMiddleware())
		{
			// User profile
			protected.GET("/profile", controllers.GetProfile)
			protected.PUT("/change-password", controllers.ChangePassword)

			// Reference data
			protected.GET("/categories", controllers.GetCategories)

			// Submissions
			submissions := protected.Group("/submissions")
			{
				submissions.GET("/:id", controllers.GetSubmission)
				submissions.POST("/validate", controllers.ValidateSubmission)

				// Operators create and resubmit their packages
				submissions.POST("", middleware.RequireRole(models.RoleOperator, models.RoleAdmin), controllers.CreateSubmission)
				submissions.POST("/:id/reopen", middleware.RequireRole(models.RoleOperator, models.RoleAdmin), controllers.ReopenSubmission)

				// Review team works the queue
				submissions.POST("/:id/review", middleware.RequireRole(models.RoleReviewer, models.RoleAdmin), controllers.StartReview)
				submissions.POST("/:id/approve", middleware.RequireRole(models.RoleReviewer, models.RoleAdmin), controllers.ApproveSubmission)
				submissions.POST("/:id/reject", middleware.RequireRole(models.RoleReviewer, models.RoleAdmin), controllers.RejectSubmission)
				submissions.POST("/:id/assign", middleware.RequireRole(models.RoleReviewer, models.RoleAdmin), controllers.AssignSubmission)

				// Documents
				submissions.POST("/:id/documents", controllers.UploadDocument)
				submissions.GET("/:id/documents", controllers.GetDocuments)
			}

			protected.GET("/queue", controllers.ListQueue)

			documents := protected.Group("/documents")
			{
				documents.GET("/download/:document_id", controllers.DownloadDocument)
				documents.DELETE("/:document_id", controllers.DeleteDocument)
				documents.GET("/types", controllers.GetDocumentTypes)
			}

			// Notifications
			notifications := protected.Group("/notifications")
			{
				notifications.GET("", controllers.GetNotifications)
				notifications.PUT("/:notification_id/read", controllers.MarkNotificationRead)
				notifications.PUT("/read-all", controllers.MarkAllNotificationsRead)
			}

			// Real-time feed
			protected.GET("/events", controllers.StreamEvents)

			// Dashboard
			protected.GET("/dashboard/stats", middleware.RequireRole(models.RoleReviewer, models.RoleAdmin), controllers.GetDashboardStats)

			// Audit trail (admin only)
			protected.GET("/audit", middleware.RequireRole(models.RoleAdmin), controllers.QueryAuditLog)
		}

	}

	// 404 handler for unknown paths
	router.NoRoute(func(c *gin.Context) {
		c.JSON(404, gin.H{"error": "Endpoint not found"})
	})
}
