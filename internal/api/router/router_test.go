package router

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"project-selector/backend/config"
	"project-selector/backend/internal/api/handler"
	"project-selector/backend/internal/repository"
	"project-selector/backend/internal/service"
	"project-selector/backend/pkg/jwt"
	"project-selector/backend/pkg/signature"
)

func setupEngine() http.Handler {
	cfg := &config.Config{
		Auth:   config.AuthConfig{JWTSecret: "router-test-secret"},
		Solver: config.SolverConfig{CallbackSecret: "cb-secret", Mode: config.SolverModeDeferred},
	}
	logger := zap.NewNop()
	svc := service.NewService(cfg, &repository.Repository{}, service.Deps{}, logger)
	h := handler.NewHandler(svc, nil, logger)
	return Setup(cfg, h, jwt.NewManager(&cfg.Auth), nil, logger)
}

func TestRouter_Health(t *testing.T) {
	w := httptest.NewRecorder()
	setupEngine().ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))

	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"status":"ok"`) {
		t.Errorf("unexpected health response: %d %s", w.Code, w.Body.String())
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected request id header")
	}
}

func TestRouter_Metrics(t *testing.T) {
	w := httptest.NewRecorder()
	setupEngine().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

func TestRouter_CallbackSkipsJWT(t *testing.T) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", config.CallbackPath, strings.NewReader(`{}`))
	setupEngine().ServeHTTP(w, req)

	// 缺少字段的回调应被判为格式错误，而不是未认证
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d (%s)", w.Code, w.Body.String())
	}
}

func TestRouter_CallbackWithoutEvaluationID(t *testing.T) {
	body, err := signature.Sign("cb-secret", map[string]any{
		"deferredId": "job-1",
		"data":       map[string]any{"assignments": []any{map[string]any{"student": 0, "group": 0}}},
	})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	w := httptest.NewRecorder()
	setupEngine().ServeHTTP(w, httptest.NewRequest("POST", config.CallbackPath, bytes.NewReader(body)))

	if w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), `"code":23001`) {
		t.Errorf("expected 400/23001, got %d (%s)", w.Code, w.Body.String())
	}
}

func TestRouter_PeriodsRequireJWT(t *testing.T) {
	for _, target := range []string{"/api/v1/periods", "/api/v1/periods/p1/calendar.ics", "/api/v1/jobs/j1"} {
		w := httptest.NewRecorder()
		setupEngine().ServeHTTP(w, httptest.NewRequest("GET", target, nil))
		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s: expected 401, got %d", target, w.Code)
		}
	}
}
