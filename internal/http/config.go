package http

import (
	"github.com/mrlokans/growlin/internal/admin"
	"github.com/mrlokans/growlin/internal/auth"
	"github.com/mrlokans/growlin/internal/config"
)

// RouterConfig contains all dependencies and configuration needed
// to create the HTTP router.
type RouterConfig struct {
	// Core dependencies
	Database    Pinger
	Circulation Circulation
	Catalog     Catalog

	// Authentication
	AuthService    *auth.Service
	SessionManager *auth.SessionManager
	AuthConfig     config.Auth
	LoginAuditor   auth.LoginAuditor
	CSRFSecret     []byte // CSRF protection is off when empty
	SecureCookies  bool

	// Back office
	Admin        *admin.Registry
	AdminAuditor AdminAuditor
	Reports      Reports
	AuditLog     AuditLog

	// Task queue and scheduler (optional)
	TaskQueue TaskQueue
	Scheduler Schedule

	ReadOnly bool

	// Application info
	Version string
}
