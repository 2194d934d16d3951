// Package auth provides authentication and authorization for the web UI and
// the JSON API.
//
// Patrons log in with a username and password and get a session cookie
// (alexedwards/scs). Kiosk and barcode scanner clients send a bearer token
// generated from the profile page; only its SHA-256 hash is stored.
//
// # Configuration
//
//	AUTH_SESSION_SECRET=<hex-32-bytes>  # Auto-generated if empty
//	AUTH_SESSION_LIFETIME=12h           # Session duration
//	AUTH_TOKEN_EXPIRY=2160h             # API token expiry
//	AUTH_BCRYPT_COST=12                 # bcrypt cost factor
//	AUTH_SECURE_COOKIES=true            # HTTPS-only cookies
//	AUTH_MAX_LOGIN_ATTEMPTS=5           # Failures before lockout
//	AUTH_RATE_LIMIT_WINDOW=15m          # Window the login throttle counts in
//	AUTH_LOCKOUT_DURATION=30m           # How long the throttle holds a kiosk login
//
// # Usage
//
//	authService := auth.NewService(users.NewRepository(db.DB), cfg.Auth)
//	authMiddleware := auth.NewMiddleware(authService, sessionManager)
//	router.Use(sessionManager.Middleware())
//	router.Use(authMiddleware.Handler())
//	admin := router.Group("/admin", authMiddleware.RequireRole(entities.RoleAdmin))
//
// Extract user in handlers:
//
//	userID := auth.GetUserID(c)  // 0 on public paths
package auth
