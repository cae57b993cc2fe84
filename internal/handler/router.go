package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/davmuu/curriculum-tracking-api/internal/middleware"
	"github.com/davmuu/curriculum-tracking-api/internal/repository"
	"github.com/davmuu/curriculum-tracking-api/internal/service"
)

// Router bundles the handlers and the services the route middleware
// needs. Exports may be nil when the export subsystem is disabled.
type Router struct {
	Auth      *AuthHandler
	Tracking  *TrackingHandler
	Documents *DocumentHandler
	Exports   *ExportHandler
	Metrics   *MetricsHandler

	AuthService    *service.AuthService
	MetricsService *service.MetricsService
	Users          *repository.UserRepository
}

// Register mounts every route group under the given API prefix.
func (rt *Router) Register(r *gin.Engine, prefix string) {
	api := r.Group(prefix)

	r.GET("/metrics", rt.Metrics.Prometheus)

	auth := api.Group("/auth")
	{
		auth.POST("/login", rt.Auth.Login)
		auth.POST("/refresh", rt.Auth.Refresh)

		protected := auth.Group("")
		protected.Use(middleware.JWT(rt.AuthService))
		protected.POST("/logout", rt.Auth.Logout)
		protected.POST("/change-password", rt.Auth.ChangePassword)
		protected.GET("/me", rt.Auth.Me)
	}

	tracking := api.Group("/tracking")
	tracking.Use(
		middleware.JWT(rt.AuthService),
		middleware.Metrics(rt.MetricsService),
		middleware.WithResponseMeta(),
	)
	{
		write := middleware.RBAC("SUPERADMIN", "ADMIN", "REGISTRAR")
		act := middleware.RBAC("SUPERADMIN", "ADMIN", "REGISTRAR", "REVIEWER")

		tracking.POST("/initiate", write, rt.Tracking.Initiate)
		tracking.POST("/action", act, rt.Tracking.Action)
		tracking.POST("/search", rt.Tracking.Search)
		tracking.GET("/statistics", rt.Tracking.Statistics)

		tracking.GET("/school/:id", rt.Tracking.BySchool)
		tracking.GET("/department/:id", rt.Tracking.ByDepartment)
		tracking.GET("/stage/:stage", rt.Tracking.ByStage)
		tracking.GET("/assignee/:id", rt.Tracking.ByAssignee)
		tracking.GET("/initiator/:id", rt.Tracking.ByInitiator)

		tracking.GET("/documents/:documentId", rt.Documents.Get)
		tracking.GET("/documents/:documentId/versions", rt.Documents.ListVersions)
		tracking.POST("/documents/:documentId/version", act,
			middleware.Audit(rt.Users, "DOCUMENT_VERSION", "document"),
			rt.Documents.UploadVersion)

		tracking.GET("/:id", rt.Tracking.Get)
		tracking.PUT("/:id", write, rt.Tracking.Update)
		tracking.POST("/:id/deactivate", write, rt.Tracking.Deactivate)
		tracking.POST("/:id/reactivate", write, rt.Tracking.Reactivate)
		tracking.POST("/:id/assign/:userId", write, rt.Tracking.Assign)

		tracking.GET("/:id/documents", rt.Documents.ListByTracking)
		tracking.POST("/:id/documents", act, rt.Documents.Upload)
	}

	// Signed token downloads stay outside the JWT group so links pasted
	// into a browser keep working.
	api.GET("/tracking/documents/:documentId/download", rt.Documents.Download)

	if rt.Exports != nil {
		exports := api.Group("/exports")
		exports.GET("/download/:token", rt.Exports.Download)

		jobs := exports.Group("")
		jobs.Use(middleware.JWT(rt.AuthService), middleware.Metrics(rt.MetricsService))
		jobs.POST("", middleware.Audit(rt.Users, "EXPORT_REQUEST", "export_job"), rt.Exports.Create)
		jobs.GET("/:id", rt.Exports.Status)
	}
}
