package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"clubsite/internal/config"
	"clubsite/internal/content"
	"clubsite/internal/database"
	"clubsite/internal/handlers"
	"clubsite/internal/metrics"
	"clubsite/internal/repositories"
	"clubsite/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type testEnv struct {
	app  *fiber.App
	db   *gorm.DB
	hook *test.Hook
}

// setupApp sets up a Fiber app backed by a private in-memory SQLite database.
func setupApp(t *testing.T) *testEnv {
	t.Helper()

	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)

	cfg := &config.Config{
		DBDriver:    config.DriverSQLite,
		DatabaseDSN: fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
	}
	db, err := database.Open(cfg, log)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { _ = database.Close(db) })

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	authService, err := services.NewAuthService(repositories.NewGORMUserRepository(db), services.AuthOptions{
		BcryptCost:     bcrypt.MinCost,
		StorageTimeout: 2 * time.Second,
		Logger:         log,
		Metrics:        collector,
	})
	require.NoError(t, err)

	renderer, err := content.NewRenderer(content.Options{APIBase: "/api", WelcomePath: "/welcome.html"})
	require.NoError(t, err)

	app := handlers.NewApp(handlers.AppConfig{
		AuthService: authService,
		Renderer:    renderer,
		Logger:      log,
		Metrics:     collector,
		Gatherer:    registry,
		APIPrefix:   "/api",
		WelcomePath: "/welcome.html",
	})
	return &testEnv{app: app, db: db, hook: hook}
}

type response struct {
	status int
	raw    string
	body   handlers.AccountResponse
}

func (e *testEnv) postJSON(t *testing.T, path string, payload any) response {
	t.Helper()
	jsonBody, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(jsonBody))
	req.Header.Set("Content-Type", "application/json")
	return e.do(t, req)
}

func (e *testEnv) get(t *testing.T, path string) response {
	t.Helper()
	return e.do(t, httptest.NewRequest(http.MethodGet, path, nil))
}

func (e *testEnv) do(t *testing.T, req *http.Request) response {
	t.Helper()
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	r := response{status: resp.StatusCode, raw: string(raw)}
	if strings.HasPrefix(resp.Header.Get("Content-Type"), fiber.MIMEApplicationJSON) {
		require.NoError(t, json.Unmarshal(raw, &r.body))
	}
	return r
}

func TestAuthRegisterAndLogin(t *testing.T) {
	env := setupApp(t)

	resp := env.postJSON(t, "/register", map[string]string{
		"name": "Asha", "email": "asha@x.com", "password": "Secr3t!",
	})
	assert.Equal(t, http.StatusOK, resp.status)
	assert.True(t, resp.body.Success)
	assert.Equal(t, services.MsgRegistered, resp.body.Message)

	resp = env.postJSON(t, "/login", map[string]string{"email": "asha@x.com", "password": "Secr3t!"})
	assert.Equal(t, http.StatusOK, resp.status)
	assert.True(t, resp.body.Success)
	assert.Equal(t, "Asha", resp.body.Name)

	wrong := env.postJSON(t, "/login", map[string]string{"email": "asha@x.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, wrong.status)
	assert.False(t, wrong.body.Success)

	unknown := env.postJSON(t, "/login", map[string]string{"email": "ghost@x.com", "password": "Secr3t!"})
	assert.Equal(t, http.StatusUnauthorized, unknown.status)

	// Unknown email and wrong password are indistinguishable.
	assert.Equal(t, wrong.raw, unknown.raw)
}

func TestAuthRoutesUnderAPIPrefix(t *testing.T) {
	env := setupApp(t)

	resp := env.postJSON(t, "/api/register", map[string]string{
		"name": "Ravi", "email": "Ravi@Club.org", "password": "pa55word",
	})
	require.Equal(t, http.StatusOK, resp.status)

	resp = env.postJSON(t, "/api/login", map[string]string{"email": "ravi@club.org", "password": "pa55word"})
	assert.Equal(t, http.StatusOK, resp.status)
	assert.Equal(t, "Ravi", resp.body.Name)
}

func TestLoginRejectsSuffixedMaxLengthPassword(t *testing.T) {
	env := setupApp(t)
	password := strings.Repeat("p", 72)

	resp := env.postJSON(t, "/register", map[string]string{"name": "Asha", "email": "asha@x.com", "password": password})
	require.Equal(t, http.StatusOK, resp.status)

	resp = env.postJSON(t, "/login", map[string]string{"email": "asha@x.com", "password": password + "-not-mine"})
	assert.Equal(t, http.StatusUnauthorized, resp.status)
	assert.False(t, resp.body.Success)
	assert.Equal(t, services.MsgInvalidCredentials, resp.body.Message)

	resp = env.postJSON(t, "/login", map[string]string{"email": "asha@x.com", "password": password})
	assert.Equal(t, http.StatusOK, resp.status)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	env := setupApp(t)

	first := env.postJSON(t, "/register", map[string]string{"name": "Asha", "email": "asha@x.com", "password": "Secr3t!"})
	require.Equal(t, http.StatusOK, first.status)

	resp := env.postJSON(t, "/register", map[string]string{"name": "Someone", "email": "ASHA@x.com", "password": "different"})
	assert.Equal(t, http.StatusConflict, resp.status)
	assert.False(t, resp.body.Success)
	assert.Equal(t, services.MsgDuplicateEmail, resp.body.Message)

	// The first account still logs in with its own password.
	login := env.postJSON(t, "/login", map[string]string{"email": "asha@x.com", "password": "Secr3t!"})
	assert.Equal(t, http.StatusOK, login.status)
	assert.Equal(t, "Asha", login.body.Name)
}

func TestRegisterValidation(t *testing.T) {
	env := setupApp(t)

	cases := []struct {
		name    string
		payload map[string]string
	}{
		{"missing name", map[string]string{"email": "a@x.com", "password": "pw"}},
		{"missing email", map[string]string{"name": "Asha", "password": "pw"}},
		{"malformed email", map[string]string{"name": "Asha", "email": "asha-at-x", "password": "pw"}},
		{"blank password", map[string]string{"name": "Asha", "email": "a@x.com", "password": "   "}},
		{"oversized password", map[string]string{"name": "Asha", "email": "a@x.com", "password": strings.Repeat("x", 80)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := env.postJSON(t, "/register", tc.payload)
			assert.Equal(t, http.StatusBadRequest, resp.status)
			assert.False(t, resp.body.Success)
			assert.NotEmpty(t, resp.body.Message)
		})
	}

	resp := env.postJSON(t, "/login", map[string]string{"email": "a@x.com"})
	assert.Equal(t, http.StatusBadRequest, resp.status)
}

func TestMalformedBody(t *testing.T) {
	env := setupApp(t)

	req := httptest.NewRequest(http.MethodPost, "/register", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	resp := env.do(t, req)
	assert.Equal(t, http.StatusBadRequest, resp.status)
	assert.False(t, resp.body.Success)
}

func TestResponsesAndLogsNeverCarryPasswordMaterial(t *testing.T) {
	env := setupApp(t)
	const password = "Sup3r-Secret-Pa55"

	var bodies []string
	bodies = append(bodies, env.postJSON(t, "/register", map[string]string{"name": "Meera", "email": "meera@x.com", "password": password}).raw)
	bodies = append(bodies, env.postJSON(t, "/register", map[string]string{"name": "Meera", "email": "meera@x.com", "password": password}).raw)
	bodies = append(bodies, env.postJSON(t, "/login", map[string]string{"email": "meera@x.com", "password": password}).raw)
	bodies = append(bodies, env.postJSON(t, "/login", map[string]string{"email": "meera@x.com", "password": password + "?"}).raw)

	var stored struct{ PasswordCredential string }
	require.NoError(t, env.db.Table("users").Select("password_credential").Where("email = ?", "meera@x.com").Scan(&stored).Error)
	require.NotEmpty(t, stored.PasswordCredential)
	assert.NotEqual(t, password, stored.PasswordCredential)

	for _, body := range bodies {
		assert.NotContains(t, body, password)
		assert.NotContains(t, body, stored.PasswordCredential)
		assert.NotContains(t, body, "password_credential")
	}
	for _, entry := range env.hook.AllEntries() {
		line, err := entry.String()
		require.NoError(t, err)
		assert.NotContains(t, line, password)
		assert.NotContains(t, line, stored.PasswordCredential)
	}
}

func TestStorageFailureIsGeneric(t *testing.T) {
	env := setupApp(t)
	require.NoError(t, database.Close(env.db))

	resp := env.postJSON(t, "/register", map[string]string{"name": "Asha", "email": "asha@x.com", "password": "Secr3t!"})
	assert.Equal(t, http.StatusInternalServerError, resp.status)
	assert.False(t, resp.body.Success)
	assert.Equal(t, services.MsgStorageFailure, resp.body.Message)
	assert.NotContains(t, resp.raw, "closed")

	resp = env.postJSON(t, "/login", map[string]string{"email": "asha@x.com", "password": "Secr3t!"})
	assert.Equal(t, http.StatusInternalServerError, resp.status)
	assert.Equal(t, services.MsgStorageFailure, resp.body.Message)

	health := env.get(t, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, health.status)
	assert.Contains(t, health.raw, `"database":"down"`)
}

func TestConcurrentRegistrationOverHTTP(t *testing.T) {
	env := setupApp(t)

	const attempts = 8
	statuses := make([]int, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			jsonBody, _ := json.Marshal(map[string]string{
				"name": fmt.Sprintf("Racer %d", i), "email": "race@x.com", "password": "Secr3t!",
			})
			req := httptest.NewRequest(http.MethodPost, "/register", bytes.NewReader(jsonBody))
			req.Header.Set("Content-Type", "application/json")
			resp, err := env.app.Test(req, -1)
			if err != nil {
				t.Errorf("request failed: %v", err)
				return
			}
			resp.Body.Close()
			statuses[i] = resp.StatusCode
		}(i)
	}
	wg.Wait()

	ok, conflicts := 0, 0
	for _, s := range statuses {
		switch s {
		case http.StatusOK:
			ok++
		case http.StatusConflict:
			conflicts++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, attempts-1, conflicts)
}

func TestHealthCheck(t *testing.T) {
	env := setupApp(t)

	resp := env.get(t, "/health")
	assert.Equal(t, http.StatusOK, resp.status)
	assert.Contains(t, resp.raw, `"status":"OK"`)
	assert.Contains(t, resp.raw, `"database":"up"`)
}

func TestMetricsEndpoint(t *testing.T) {
	env := setupApp(t)

	env.postJSON(t, "/register", map[string]string{"name": "Asha", "email": "asha@x.com", "password": "Secr3t!"})
	env.postJSON(t, "/login", map[string]string{"email": "asha@x.com", "password": "nope"})

	resp := env.get(t, "/metrics")
	assert.Equal(t, http.StatusOK, resp.status)
	assert.Contains(t, resp.raw, `clubsite_register_total{outcome="success"} 1`)
	assert.Contains(t, resp.raw, `clubsite_login_total{outcome="invalid_credentials"} 1`)
	assert.Contains(t, resp.raw, "clubsite_http_requests_total")
}

func TestContentRoutes(t *testing.T) {
	env := setupApp(t)

	page := env.get(t, "/")
	assert.Equal(t, http.StatusOK, page.status)
	assert.Contains(t, page.raw, "Cricket History")
	assert.Contains(t, page.raw, `data-api-base="/api"`)

	for _, s := range content.Sections {
		resp := env.get(t, "/sections/"+string(s))
		assert.Equal(t, http.StatusOK, resp.status, "section %s", s)
		assert.NotEmpty(t, resp.raw)
	}

	login := env.get(t, "/sections/login")
	assert.Contains(t, login.raw, `data-redirect="/welcome.html"`)

	missing := env.get(t, "/sections/scores")
	assert.Equal(t, http.StatusNotFound, missing.status)
	assert.False(t, missing.body.Success)

	welcome := env.get(t, "/welcome.html")
	assert.Equal(t, http.StatusOK, welcome.status)
	assert.Contains(t, welcome.raw, "Welcome")

	script := env.get(t, "/static/script.js")
	assert.Equal(t, http.StatusOK, script.status)
	assert.Contains(t, script.raw, "account-form")
}
