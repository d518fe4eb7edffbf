package router

import (
	"github.com/Byak-ko/Qualification-work-sub001/internal/config"
	"github.com/Byak-ko/Qualification-work-sub001/internal/handlers"
	"github.com/Byak-ko/Qualification-work-sub001/internal/middleware"
	"github.com/Byak-ko/Qualification-work-sub001/internal/services"
	"github.com/Byak-ko/Qualification-work-sub001/internal/session"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Deps are the long-lived collaborators the routes are built from.
type Deps struct {
	DB       *gorm.DB
	Redis    *redis.Client
	Gatherer prometheus.Gatherer

	Issuer    *session.TokenIssuer
	Blocklist *session.Blocklist
	Limiter   *middleware.RateLimiter

	Users      *services.UserService
	Ratings    *services.RatingService
	Responses  *services.ResponseService
	Reviews    *services.ReviewService
	Reports    *services.ReportService
	Documents  *services.DocumentService
	Activities *services.ActivityService
	Search     *services.SearchService
}

func Setup(cfg *config.Config, d Deps) *gin.Engine {
	// Set Gin mode
	gin.SetMode(cfg.GinMode)

	r := gin.Default()

	// CORS middleware
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept-Language"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
	}))

	r.GET("/health", handlers.HealthCheck(d.DB, d.Redis))
	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	// API v1 routes
	api := r.Group("/api/v1")
	{
		// Public routes
		auth := api.Group("/auth")
		{
			login := []gin.HandlerFunc{handlers.Login(d.Users, d.Issuer)}
			if d.Limiter != nil {
				login = append([]gin.HandlerFunc{d.Limiter.RateLimitByIP(cfg.LoginRateLimit, cfg.LoginRateWindow)}, login...)
			}
			auth.POST("/login", login...)
		}

		var revoked middleware.RevocationChecker
		if d.Blocklist != nil {
			revoked = d.Blocklist
		}

		// Protected routes
		protected := api.Group("")
		protected.Use(middleware.AuthRequired(d.Issuer, revoked))
		{
			// Auth
			protected.GET("/auth/me", handlers.GetCurrentUser(d.Users))
			protected.POST("/auth/logout", handlers.Logout(d.Blocklist))

			// Org structure
			protected.GET("/users", handlers.ListUsers(d.Users))
			protected.GET("/units", handlers.ListUnits(d.Users))
			protected.GET("/departments", handlers.ListDepartments(d.Users))

			// Ratings
			protected.GET("/ratings", handlers.ListRatings(d.Ratings))
			protected.POST("/ratings", middleware.AuthorRequired(d.DB), handlers.CreateRating(d.Ratings))
			protected.GET("/ratings/:id", handlers.GetRating(d.Ratings))
			protected.PUT("/ratings/:id", handlers.UpdateRating(d.Ratings))
			protected.DELETE("/ratings/:id", handlers.DeleteRating(d.Ratings))
			protected.POST("/ratings/:id/complete", handlers.CompleteRating(d.Ratings))
			protected.POST("/ratings/:id/finalize", handlers.FinalizeRating(d.Ratings))

			// Responses and review
			protected.GET("/ratings/:id/response", handlers.GetMyResponse(d.Responses))
			protected.PUT("/ratings/:id/response", handlers.FillRating(d.Responses))
			protected.POST("/ratings/:id/submit", handlers.SubmitRating(d.Responses))
			protected.POST("/ratings/:id/participants/:respondentId/review", handlers.ReviewParticipant(d.Reviews))

			// Reports
			protected.GET("/ratings/:id/report", handlers.GetReport(d.Reports))
			protected.GET("/ratings/:id/report.pdf", handlers.ExportReportPDF(d.Reports))
			protected.GET("/ratings/:id/activities", handlers.ListRatingActivities(d.Activities, d.Reports))

			// Documents
			protected.POST("/documents", handlers.UploadDocument(d.Documents))
			protected.GET("/documents", handlers.ListMyDocuments(d.Documents))
			protected.GET("/documents/:id", handlers.GetDocument(d.Documents))
			protected.GET("/documents/:id/download", handlers.DownloadDocument(d.Documents))
			protected.DELETE("/documents/:id", handlers.DeleteDocument(d.Documents))

			// Search
			if d.Search != nil {
				protected.GET("/search", handlers.SearchRatings(d.Search))
			}
		}

		// Admin routes
		admin := api.Group("/admin")
		admin.Use(middleware.AuthRequired(d.Issuer, revoked), middleware.AdminRequired())
		{
			admin.POST("/users", handlers.CreateUser(d.Users))
			admin.POST("/units", handlers.CreateUnit(d.Users))
			admin.POST("/departments", handlers.CreateDepartment(d.Users))
			admin.GET("/activities/recent", handlers.GetRecentActivities(d.Activities))
		}
	}

	return r
}
