package http

import (
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/growlin/internal/auth"
	"github.com/mrlokans/growlin/internal/entities"
	"github.com/mrlokans/growlin/internal/readonly"
	"github.com/mrlokans/growlin/internal/web"
)

// NewRouter creates and configures the HTTP router with all endpoints.
// AuthService and SessionManager are required.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(RequestIDMiddleware())

	// Apply security headers to all responses
	router.Use(auth.SecurityHeadersMiddleware())
	if cfg.SecureCookies {
		router.Use(auth.StrictTransportSecurityMiddleware())
	}

	// CSRF must run before session so that session context is preserved
	if len(cfg.CSRFSecret) > 0 {
		router.Use(auth.CSRFMiddleware(cfg.CSRFSecret, cfg.SecureCookies, cfg.AuthService))
	}

	// Session runs after CSRF so session context isn't overwritten by CSRF's request replacement
	router.Use(cfg.SessionManager.Middleware())

	authMiddleware := auth.NewMiddleware(cfg.AuthService, cfg.SessionManager)
	router.Use(authMiddleware.Handler())
	router.Use(readonly.NewMiddleware(cfg.ReadOnly).Handler())

	// Inject auth data for templates
	router.Use(AuthContextMiddleware())

	tmpl := template.Must(web.Templates())
	router.SetHTMLTemplate(tmpl)
	router.StaticFS("/static", web.Static())

	p := pages{templates: tmpl, sessions: cfg.SessionManager}

	authController := auth.NewAuthController(cfg.AuthService, cfg.SessionManager, tmpl, cfg.LoginAuditor, cfg.AuthConfig)
	authController.RegisterRoutes(router)

	// Health endpoints
	health := NewHealthController(cfg.Database, cfg.Scheduler, cfg.Version, cfg.ReadOnly)
	router.GET("/health", health.Status)
	router.GET("/ping", health.Ping)

	// Patron pages
	shelf := NewShelfController(cfg.Circulation, p)
	router.GET("/", shelf.Home)
	router.GET("/shelf", shelf.ShelfPage)
	router.GET("/shelf/history", shelf.HistoryPage)
	router.GET("/shelf/borrow", shelf.BorrowPage)
	router.POST("/shelf/borrow", shelf.Borrow)
	router.GET("/shelf/:itemID/return", shelf.ReturnPage)
	router.POST("/shelf/:itemID/return", shelf.Return)

	// Loans API
	loansAPI := NewLoansAPIController(cfg.Circulation)
	router.GET("/api/shelf", loansAPI.Shelf)
	router.GET("/api/shelf/history", loansAPI.History)
	router.POST("/api/loans", loansAPI.Borrow)
	router.POST("/api/loans/:itemID/return", loansAPI.Return)
	router.GET("/api/items/lookup", loansAPI.Lookup)
	if cfg.Catalog != nil {
		router.GET("/api/items/search", NewCatalogController(cfg.Catalog).Search)
	}

	// Profile routes
	profile := NewProfileController(cfg.AuthService, p)
	router.GET("/profile", profile.ProfilePage)
	router.POST("/profile/password", profile.ChangePassword)
	router.POST("/profile/token", profile.GenerateToken)
	router.POST("/profile/token/revoke", profile.RevokeToken)

	// Back office
	staff := router.Group("/admin", authMiddleware.RequireRole(entities.RoleAdmin))
	staffAPI := staff.Group("/api")

	if cfg.AuditLog != nil {
		auditController := NewAuditController(cfg.AuditLog, p)
		staff.GET("/audit", auditController.AuditLogPage)
		staffAPI.GET("/audit", auditController.GetAuditEvents)
		staffAPI.GET("/audit/:id", auditController.GetAuditEvent)
	}

	if cfg.Reports != nil {
		reportsController := NewReportsController(cfg.Reports)
		staffAPI.GET("/reports/loans-per-group", reportsController.LoansPerGroup)
		staffAPI.GET("/reports/most-borrowed", reportsController.MostBorrowed)
		staffAPI.GET("/reports/overdue", reportsController.Overdue)
		staffAPI.GET("/reports/status", reportsController.Status)
	}

	// Task management endpoints
	if cfg.TaskQueue != nil {
		tasksController := NewTasksController(cfg.TaskQueue, cfg.Scheduler, cfg.AdminAuditor)
		staffAPI.GET("/tasks/types", tasksController.ListTaskTypes)
		staffAPI.GET("/tasks/:id", tasksController.GetTaskStatus)
		staffAPI.POST("/tasks/:type/run", tasksController.RunTask)
	}

	if cfg.Admin != nil {
		adminController := NewAdminController(cfg.Admin, cfg.Reports, cfg.AdminAuditor, p)
		staff.GET("", adminController.IndexPage)
		staffAPI.GET("", adminController.ListResources)
		staffAPI.GET("/:resource", adminController.List)
		staffAPI.POST("/:resource", adminController.Create)
		staffAPI.GET("/:resource/:id", adminController.Get)
		staffAPI.PUT("/:resource/:id", adminController.Update)
		staffAPI.PATCH("/:resource/:id", adminController.Update)
		staffAPI.DELETE("/:resource/:id", adminController.Delete)
	}

	router.NoRoute(func(c *gin.Context) {
		if c.Request.Method == http.MethodGet && c.GetHeader("Accept") != "application/json" {
			p.render(c, http.StatusNotFound, "error.html", gin.H{"Title": "Page not found"})
			return
		}
		respondNotFound(c, "route")
	})

	return router
}
