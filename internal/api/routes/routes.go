package routes

import (
	"compliance-tracker/internal/api/handlers"
	"compliance-tracker/internal/api/middleware"
	"compliance-tracker/internal/config"
	"compliance-tracker/internal/metrics"
	"compliance-tracker/internal/policy"
	"compliance-tracker/internal/report"
	"compliance-tracker/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

// Options carries process-wide dependencies that tests replace.
type Options struct {
	// Registry receives the HTTP and domain collectors and backs /metrics.
	// A nil registry gets a fresh one with the Go and process collectors.
	Registry *prometheus.Registry
	// Clock drives license status decisions; nil means time.Now.
	Clock services.Clock
}

func SetupRoutes(r *gin.Engine, cfg *config.Config, db *gorm.DB, opts Options) {
	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	m := metrics.New(reg)

	// Initialize services
	audit := services.NewAuditRecorder(services.NewGormAuditStore(db), m, opts.Clock)
	storage := services.NewDocumentStorage(cfg.Uploads, m)
	authService := services.NewAuthService(db, cfg, audit, m, opts.Clock)
	userService := services.NewUserService(db, authService, audit)
	licenseService := services.NewLicenseService(db, storage, audit, m, opts.Clock)
	companyService := services.NewCompanyService(db, licenseService, audit)
	remittanceService := services.NewRemittanceService(db, storage, audit)
	auditService := services.NewAuditService(db)
	dashboardService := services.NewDashboardService(db, licenseService, auditService)
	reportService := services.NewReportService(licenseService, remittanceService, audit, opts.Clock)
	archiveService := services.NewArchiveService(db, storage, audit, opts.Clock)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService)
	userHandler := handlers.NewUserHandler(userService)
	companyHandler := handlers.NewCompanyHandler(companyService, archiveService)
	licenseHandler := handlers.NewLicenseHandler(licenseService)
	remittanceHandler := handlers.NewRemittanceHandler(remittanceService)
	dashboardHandler := handlers.NewDashboardHandler(dashboardService)
	auditHandler := handlers.NewAuditHandler(auditService)
	reportHandler := handlers.NewReportHandler(reportService)
	healthHandler := handlers.NewHealthHandler(db)

	// Middleware
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.Metrics(m))
	r.Use(middleware.CORSMiddleware(cfg.Server.CORSOrigins))

	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))

	edit := middleware.RequireAction(policy.EditRecords)

	// Public routes
	api := r.Group("/api")
	{
		api.GET("/health", healthHandler.GetHealth)

		// Auth routes (public)
		auth := api.Group("/auth")
		{
			auth.POST("/login", middleware.LoginRateLimit(cfg.Security.RateLimit), authHandler.Login)
		}
	}

	// Protected routes
	protected := api.Group("")
	protected.Use(middleware.AuthMiddleware(authService))
	{
		// Auth routes (protected)
		protected.POST("/auth/logout", authHandler.Logout)
		protected.GET("/auth/me", authHandler.GetMe)
		protected.POST("/auth/password", authHandler.ChangePassword)

		dashboard := protected.Group("/dashboard")
		{
			dashboard.GET("", dashboardHandler.GetSummary)
			dashboard.GET("/expiries", dashboardHandler.GetExpiries)
		}

		companies := protected.Group("/companies")
		{
			companies.GET("", companyHandler.GetCompanies)
			companies.GET("/:id", companyHandler.GetCompany)
			companies.POST("", edit, companyHandler.CreateCompany)
			companies.PUT("/:id", edit, companyHandler.UpdateCompany)
			companies.DELETE("/:id", middleware.RequireAction(policy.DeleteCompany), companyHandler.DeleteCompany)
			companies.GET("/:id/archive", middleware.RequireAction(policy.ExportDocuments), companyHandler.DownloadArchive)
		}

		licenses := protected.Group("/licenses")
		{
			licenses.GET("", licenseHandler.GetLicenses)
			licenses.GET("/types", licenseHandler.GetLicenseTypes)
			licenses.GET("/:id", licenseHandler.GetLicense)
			licenses.GET("/:id/document", licenseHandler.DownloadDocument)
			licenses.POST("", edit, licenseHandler.CreateLicense)
			licenses.PUT("/:id", edit, licenseHandler.UpdateLicense)
			licenses.DELETE("/:id", middleware.RequireAction(policy.DeleteLicense), licenseHandler.DeleteLicense)
		}

		remittances := protected.Group("/remittances")
		{
			remittances.GET("", remittanceHandler.GetRemittances)
			remittances.GET("/options", remittanceHandler.GetOptions)
			remittances.GET("/:id", remittanceHandler.GetRemittance)
			remittances.GET("/:id/proof", remittanceHandler.DownloadProof)
			remittances.POST("", edit, remittanceHandler.CreateRemittance)
			remittances.PUT("/:id", edit, remittanceHandler.UpdateRemittance)
			remittances.DELETE("/:id", middleware.RequireAction(policy.DeleteRemittance), remittanceHandler.DeleteRemittance)
		}

		// User management routes
		users := protected.Group("/users")
		users.Use(middleware.RequireAction(policy.ManageUsers))
		{
			users.GET("", userHandler.GetUsers)
			users.GET("/:id", userHandler.GetUser)
			users.POST("", userHandler.CreateUser)
			users.PUT("/:id", userHandler.UpdateUser)
			users.DELETE("/:id", userHandler.DeleteUser)
		}

		protected.GET("/audit-logs", middleware.RequireAction(policy.ViewAuditLog), auditHandler.GetAuditLogs)

		reports := protected.Group("/reports")
		{
			for _, format := range []string{report.FormatPDF, report.FormatCSV} {
				reports.GET("/licenses."+format, reportHandler.ExportLicenses(format))
				reports.GET("/remittances."+format, reportHandler.ExportRemittances(format))
			}
		}
	}
}
