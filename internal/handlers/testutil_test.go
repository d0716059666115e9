package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/tokengate/tokengate/internal/models"
	"github.com/tokengate/tokengate/internal/services"
	"github.com/tokengate/tokengate/internal/utils"
	"github.com/tokengate/tokengate/pkg/response"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type testApp struct {
	router *gin.Engine
	store  *services.TokenStore
	issuer *services.IssuerService
}

// newTestApp wires the full handler stack against a fresh in-memory
// database, with routes laid out as in production.
func newTestApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&models.UserToken{},
		&models.TokenIP{},
		&models.UsageDay{},
		&models.AccessLog{},
	); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}

	cipher, err := utils.NewSecretCipher("test-master-key")
	if err != nil {
		t.Fatalf("init cipher: %v", err)
	}

	store := services.NewTokenStore(db, cipher)
	issuer := services.NewIssuerService(store)
	summary := services.NewSummaryService(db)

	queue := services.NewSyncQueue()
	audit := services.NewAccessLogService(db, queue)
	queue.SetProcessor(audit.Persist)
	policy := services.NewPolicyService(store, audit)

	tokenHandler := NewUserTokenHandler(store, issuer, summary)
	accessHandler := NewAccessHandler(policy)
	accessLogHandler := NewAccessLogHandler(audit)

	r := gin.New()
	r.POST("/gateway/authorize", accessHandler.Authorize)
	api := r.Group("/api")
	{
		api.GET("/user-tokens", tokenHandler.List)
		api.GET("/user-tokens/summary", tokenHandler.Summary)
		api.POST("/user-tokens", tokenHandler.Create)
		api.GET("/user-tokens/:id", tokenHandler.GetByID)
		api.GET("/user-tokens/:id/ips", tokenHandler.ListIPs)
		api.PUT("/user-tokens/:id", tokenHandler.Update)
		api.DELETE("/user-tokens/:id", tokenHandler.Delete)
		api.POST("/user-tokens/:id/renew", tokenHandler.Renew)
		api.GET("/access-logs", accessLogHandler.List)
	}

	return &testApp{router: r, store: store, issuer: issuer}
}

// do performs one request; a non-nil body is sent as JSON, headers are
// optional "Key: Value" pairs.
func (a *testApp) do(t *testing.T, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

// decodeData unmarshals the data field of a success envelope into out.
func decodeData(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()

	var envelope struct {
		Code    int             `json:"code"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode envelope: %v (body: %s)", err, w.Body.String())
	}
	if envelope.Code != 0 {
		t.Fatalf("envelope code = %d, want 0 (body: %s)", envelope.Code, w.Body.String())
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			t.Fatalf("decode data: %v (body: %s)", err, w.Body.String())
		}
	}
}

// decodeError unmarshals an error envelope.
func decodeError(t *testing.T, w *httptest.ResponseRecorder) response.Response {
	t.Helper()

	var envelope response.Response
	if err := json.Unmarshal(w.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode error envelope: %v (body: %s)", err, w.Body.String())
	}
	return envelope
}

// createToken issues a token through the HTTP surface and returns its
// wire representation.
func (a *testApp) createToken(t *testing.T, req CreateUserTokenRequest) UserTokenResponse {
	t.Helper()

	w := a.do(t, http.MethodPost, "/api/user-tokens", req, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("create token: status %d, body %s", w.Code, w.Body.String())
	}
	var tok UserTokenResponse
	decodeData(t, w, &tok)
	return tok
}

func strPtr(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }
