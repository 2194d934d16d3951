package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mikestefanello/backlite"
	"github.com/stretchr/testify/require"

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
	"github.com/mrlokans/growlin/internal/entities"
	"github.com/mrlokans/growlin/internal/tasks"
)

const testPassword = "correct-horse"

type fakeTaskQueue struct {
	mu       sync.Mutex
	enqueued []string
}

func (q *fakeTaskQueue) EnqueueType(_ context.Context, name string) (string, error) {
	if _, err := tasks.NewTask(name, 0); err != nil {
		return "", err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.enqueued = append(q.enqueued, name)
	return "task-1", nil
}

func (q *fakeTaskQueue) Status(_ context.Context, taskID string) (backlite.TaskStatus, error) {
	if taskID == "task-1" {
		return backlite.TaskStatusSuccess, nil
	}
	return backlite.TaskStatusNotFound, nil
}

type testEnv struct {
	t      *testing.T
	db     *database.Database
	router *gin.Engine
	auth   *auth.Service
	audit  *audit.Service
	queue  *fakeTaskQueue

	borrower *entities.User // phobos, Mars
	other    *entities.User // deimos, Mars
	staff    *entities.User // europa, admin
	seals    entities.Item
	felids   entities.Item
}

func testAuthConfig() config.Auth {
	return config.Auth{
		SessionLifetime:  time.Hour,
		TokenExpiry:      24 * time.Hour,
		BcryptCost:       4,
		MaxLoginAttempts: 5,
		RateLimitWindow:  time.Minute,
		LockoutDuration:  10 * time.Minute,
	}
}

func setupTestEnv(t *testing.T, mutate ...func(*RouterConfig)) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.OpenSilent(config.Database{
		Driver: config.DatabaseDriverSQLite,
		Path:   filepath.Join(t.TempDir(), "growlin.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	authCfg := testAuthConfig()
	authService := auth.NewService(users.NewRepository(db.DB), authCfg)
	sqlDB, err := db.DB.DB()
	require.NoError(t, err)
	sessions, err := auth.NewSessionManager(sqlDB, db.Driver, authCfg)
	require.NoError(t, err)

	auditService := audit.NewService(auditrepo.NewRepository(db.DB))
	t.Cleanup(auditService.Flush)

	sqlxDB, err := db.SQLX()
	require.NoError(t, err)

	env := &testEnv{t: t, db: db, auth: authService, audit: auditService, queue: &fakeTaskQueue{}}
	cfg := RouterConfig{
		Database: db,
		Catalog:  catalog.NewRepository(db.DB),
		Circulation: circulation.NewService(loans.NewRepository(db.DB), auditService, circulation.Policy{
			Period:         14 * 24 * time.Hour,
			MaxPerBorrower: 10,
		}),
		AuthService:    authService,
		SessionManager: sessions,
		AuthConfig:     authCfg,
		LoginAuditor:   auditService,
		Admin: admin.NewRegistry(db.DB, admin.Options{
			HashPassword: func(password string) (string, error) {
				return auth.HashPassword(password, authCfg.BcryptCost)
			},
		}),
		AdminAuditor: auditService,
		Reports:      reports.NewRepository(sqlxDB, db.Dialect()),
		AuditLog:     auditService,
		TaskQueue:    env.queue,
		Version:      "1.0.0",
	}
	for _, m := range mutate {
		m(&cfg)
	}
	env.router = NewRouter(cfg)

	env.borrower = env.createUser("phobos", "Phobos", "Mars")
	env.other = env.createUser("deimos", "Deimos", "Mars")
	env.staff = env.createUser("europa", "Europa", "Jupiter", entities.RoleAdmin)

	var location entities.CampusLocation
	require.NoError(t, db.DB.Where("name = ?", "Main").First(&location).Error)
	env.seals = entities.Item{Accession: "B-001", Kind: entities.ItemKindBook, Status: entities.ItemStatusAvailable,
		Title: "The Slippery Seals", CampusLocationID: location.ID}
	env.felids = entities.Item{Accession: "B-002", Kind: entities.ItemKindBook, Status: entities.ItemStatusAvailable,
		Title: "The Ferocious Felids", CampusLocationID: location.ID}
	require.NoError(t, db.DB.Create(&env.seals).Error)
	require.NoError(t, db.DB.Create(&env.felids).Error)

	return env
}

func (env *testEnv) createUser(username, name, group string, roles ...string) *entities.User {
	env.t.Helper()
	user, err := env.auth.CreateUser(auth.NewUser{
		Username: username,
		Name:     name,
		Password: testPassword,
		Group:    group,
		Roles:    roles,
	})
	require.NoError(env.t, err)
	return user
}

func (env *testEnv) token(user *entities.User) string {
	env.t.Helper()
	token, err := env.auth.GenerateToken(user.ID)
	require.NoError(env.t, err)
	return token
}

// client replays the cookies the router sets, like a browser would.
type client struct {
	env     *testEnv
	cookies map[string]*http.Cookie
	bearer  string
}

func (env *testEnv) anonymous() *client {
	return &client{env: env, cookies: map[string]*http.Cookie{}}
}

func (env *testEnv) login(user *entities.User) *client {
	env.t.Helper()
	c := env.anonymous()
	w := c.postForm("/login", url.Values{"username": {user.Username}, "password": {testPassword}})
	require.Equal(env.t, http.StatusFound, w.Code, w.Body.String())
	return c
}

func (env *testEnv) api(user *entities.User) *client {
	c := env.anonymous()
	c.bearer = env.token(user)
	return c
}

func (c *client) do(req *http.Request) *httptest.ResponseRecorder {
	for _, cookie := range c.cookies {
		req.AddCookie(cookie)
	}
	if c.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearer)
	}
	w := httptest.NewRecorder()
	c.env.router.ServeHTTP(w, req)
	for _, cookie := range w.Result().Cookies() {
		c.cookies[cookie.Name] = cookie
	}
	return w
}

func (c *client) get(path string) *httptest.ResponseRecorder {
	return c.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (c *client) postForm(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req)
}

func (c *client) sendJSON(method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return c.do(req)
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}
