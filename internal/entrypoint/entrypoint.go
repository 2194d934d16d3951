package entrypoint

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/growlin/internal/admin"
	"github.com/mrlokans/growlin/internal/audit"
	"github.com/mrlokans/growlin/internal/auth"
	"github.com/mrlokans/growlin/internal/circulation"
	"github.com/mrlokans/growlin/internal/config"
	"github.com/mrlokans/growlin/internal/database"
	auditrepo "github.com/mrlokans/growlin/internal/database/audit"
	"github.com/mrlokans/growlin/internal/database/catalog"
	"github.com/mrlokans/growlin/internal/database/loans"
	"github.com/mrlokans/growlin/internal/database/reports"
	"github.com/mrlokans/growlin/internal/database/users"
	http_controllers "github.com/mrlokans/growlin/internal/http"
	"github.com/mrlokans/growlin/internal/scheduler"
	"github.com/mrlokans/growlin/internal/tasks"
)

// ShutdownFunc is called during graceful shutdown to clean up resources.
type ShutdownFunc func(ctx context.Context)

func Serve(router *gin.Engine, cfg *config.Config, onShutdown ShutdownFunc) {
	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Starting server at %s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// kill -9 cannot be caught, so only SIGINT and SIGTERM are handled
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Printf("Shutdown Server, waiting %v before killing\n", timeout)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Stop background work before the listener goes away
	if onShutdown != nil {
		onShutdown(ctx)
	}

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server Shutdown:", err)
	}

	log.Println("Server exiting")
}

func Run(cfg *config.Config, version string) {
	log.Printf("Starting Growlin v%s", version)
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	db, err := database.Open(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
		}
	}()
	log.Printf("Database driver: %s", db.Driver)

	auditService := audit.NewService(auditrepo.NewRepository(db.DB))
	defer auditService.Flush()

	circulationService := circulation.NewService(loans.NewRepository(db.DB), auditService, circulation.Policy{
		Period:         cfg.Loans.Period,
		LongTermPeriod: cfg.Loans.LongTermPeriod,
		MaxPerBorrower: cfg.Loans.MaxPerBorrower,
	})

	authService := auth.NewService(users.NewRepository(db.DB), cfg.Auth)

	sqlDB, err := db.DB.DB()
	if err != nil {
		log.Fatalf("Failed to get SQL DB for sessions: %v", err)
	}
	sessionManager, err := auth.NewSessionManager(sqlDB, db.Driver, cfg.Auth)
	if err != nil {
		log.Fatalf("Failed to initialize session manager: %v", err)
	}

	csrfSecret, err := csrfSecret(cfg.Auth.SessionSecret)
	if err != nil {
		log.Fatalf("Failed to generate CSRF secret: %v", err)
	}

	if hasUsers, _ := authService.HasUsers(); !hasUsers {
		log.Printf("No users found. Visit /setup to create an administrator account.")
	}

	sqlxDB, err := db.SQLX()
	if err != nil {
		log.Fatalf("Failed to open reporting connection: %v", err)
	}

	routerCfg := http_controllers.RouterConfig{
		Database:       db,
		Circulation:    circulationService,
		Catalog:        catalog.NewRepository(db.DB),
		AuthService:    authService,
		SessionManager: sessionManager,
		AuthConfig:     cfg.Auth,
		LoginAuditor:   auditService,
		CSRFSecret:     csrfSecret,
		SecureCookies:  cfg.Auth.SecureCookies,
		Admin: admin.NewRegistry(db.DB, admin.Options{
			HashPassword: func(password string) (string, error) {
				return auth.HashPassword(password, cfg.Auth.BcryptCost)
			},
		}),
		AdminAuditor: auditService,
		Reports:      reports.NewRepository(sqlxDB, db.Dialect()),
		AuditLog:     auditService,
		ReadOnly:     cfg.ReadOnly.Enabled,
		Version:      version,
	}
	if cfg.ReadOnly.Enabled {
		log.Printf("Read-only mode enabled - write requests will be refused")
	}

	var (
		taskClient    *tasks.Client
		taskCtxCancel context.CancelFunc
		sched         *scheduler.Scheduler
	)
	if cfg.Tasks.Enabled {
		taskClient, err = tasks.NewClient(cfg.Database.Path, tasks.FromSettings(cfg.Tasks, cfg.Audit))
		if err != nil {
			log.Fatalf("Failed to initialize task queue: %v", err)
		}
		defer func() {
			if err := taskClient.Close(); err != nil {
				log.Printf("Error closing task client: %v", err)
			}
		}()

		taskClient.Register(
			tasks.NewScanOverdueLoansQueue(circulationService, auditService, auditService),
			tasks.NewExpireSubscriptionsQueue(catalog.NewRepository(db.DB), auditService),
			tasks.NewCleanupAuditEventsQueue(auditService, auditService),
		)

		var taskCtx context.Context
		taskCtx, taskCtxCancel = context.WithCancel(context.Background())
		go taskClient.Start(taskCtx)
		routerCfg.TaskQueue = taskClient

		if cfg.Scheduler.Enabled {
			sched = scheduler.New(taskClient, scheduler.Jobs(cfg.Scheduler))
			if err := sched.Start(taskCtx); err != nil {
				log.Fatalf("Failed to start scheduler: %v", err)
			}
			routerCfg.Scheduler = sched
		}
	} else if cfg.Scheduler.Enabled {
		log.Printf("WARNING: scheduler needs the task queue, set TASKS_ENABLED=true to run scheduled tasks")
	}

	router := http_controllers.NewRouter(routerCfg)

	onShutdown := func(ctx context.Context) {
		if sched != nil {
			sched.Stop()
		}
		if taskClient != nil && taskCtxCancel != nil {
			taskClient.Stop(ctx)
			taskCtxCancel()
		}
	}

	Serve(router, cfg, onShutdown)
}

// csrfSecret decodes a hex session secret, falls back to the raw bytes, or
// generates a secret that lasts until restart.
func csrfSecret(configured string) ([]byte, error) {
	if configured != "" {
		if secret, err := hex.DecodeString(configured); err == nil {
			return secret, nil
		}
		return []byte(configured), nil
	}

	secret, err := auth.GenerateSecret()
	if err != nil {
		return nil, err
	}
	log.Printf("Generated session secret (set AUTH_SESSION_SECRET to persist)")
	return secret, nil
}
