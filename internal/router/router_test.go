package router_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"pomodoro/daemon/internal/db"
	"pomodoro/daemon/internal/handler"
	"pomodoro/daemon/internal/model"
	"pomodoro/daemon/internal/repository"
	"pomodoro/daemon/internal/router"
	"pomodoro/daemon/internal/service"
	"pomodoro/daemon/internal/snapshot"
	"pomodoro/daemon/internal/timer"
)

type authResponse struct {
	Token string `json:"token"`
	User  struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}

type stateResponse struct {
	DisplayMode              string `json:"displayMode"`
	CurrentPhaseIndex        int    `json:"currentPhaseIndex"`
	CurrentPhaseName         string `json:"currentPhaseName"`
	TimerRunning             bool   `json:"timerRunning"`
	RemainingSeconds         int    `json:"remainingSeconds"`
	HasSkippedInCurrentCycle bool   `json:"hasSkippedInCurrentCycle"`
}

type historyEnvelope struct {
	Sessions []struct {
		PhaseName string `json:"phaseName"`
		Outcome   string `json:"outcome"`
	} `json:"sessions"`
}

type apiErrorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type testServer struct {
	engine       http.Handler
	snapshotPath string
}

func TestTimerLifecycleOverHTTP(t *testing.T) {
	server := setupTestServer(t)

	account := registerAccount(t, server.engine, "owner@example.com", "123456")

	// Registration is one-shot: a second account must conflict.
	status, raw := requestJSON(t, server.engine, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email":    "second@example.com",
		"password": "123456",
	})
	if status != http.StatusConflict {
		t.Fatalf("expected 409 for second registration, got %d", status)
	}
	var conflict apiErrorEnvelope
	if err := json.Unmarshal(raw, &conflict); err != nil {
		t.Fatalf("unmarshal conflict response: %v", err)
	}
	if conflict.Error.Code != "account_exists" {
		t.Fatalf("expected account_exists, got %s", conflict.Error.Code)
	}

	state := getState(t, server.engine, account.Token)
	if state.DisplayMode != model.DisplayPaused {
		t.Fatalf("expected paused before first start, got %s", state.DisplayMode)
	}
	if state.CurrentPhaseName != model.PhaseWork {
		t.Fatalf("expected work phase first, got %s", state.CurrentPhaseName)
	}

	status, raw = requestJSON(t, server.engine, http.MethodPost, "/api/timer/start", account.Token, nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200 on start, got %d: %s", status, string(raw))
	}
	var started stateResponse
	if err := json.Unmarshal(raw, &started); err != nil {
		t.Fatalf("unmarshal start response: %v", err)
	}
	if !started.TimerRunning || started.DisplayMode != model.DisplayCountdown {
		t.Fatalf("expected running countdown after start, got %+v", started)
	}

	status, raw = requestJSON(t, server.engine, http.MethodPost, "/api/timer/skip", account.Token, nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200 on skip, got %d", status)
	}
	var skipped stateResponse
	if err := json.Unmarshal(raw, &skipped); err != nil {
		t.Fatalf("unmarshal skip response: %v", err)
	}
	if skipped.CurrentPhaseIndex != 1 || !skipped.HasSkippedInCurrentCycle {
		t.Fatalf("expected skip to advance and void credit, got %+v", skipped)
	}

	// The skipped session must appear in history.
	status, raw = requestJSON(t, server.engine, http.MethodGet, "/api/timer/history?limit=10", account.Token, nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200 for history, got %d", status)
	}
	var history historyEnvelope
	if err := json.Unmarshal(raw, &history); err != nil {
		t.Fatalf("unmarshal history: %v", err)
	}
	if len(history.Sessions) == 0 {
		t.Fatal("expected at least one session in history")
	}
	if history.Sessions[0].Outcome != model.OutcomeSkipped {
		t.Fatalf("expected latest session skipped, got %s", history.Sessions[0].Outcome)
	}

	// Every mutation publishes: the snapshot file must exist and agree.
	if _, err := os.Stat(server.snapshotPath); err != nil {
		t.Fatalf("expected snapshot file after mutations: %v", err)
	}
	snap, ok := snapshot.Read(server.snapshotPath)
	if !ok {
		t.Fatal("snapshot file unreadable")
	}
	if snap.CurrentPhaseIndex != 1 {
		t.Fatalf("snapshot index %d, want 1", snap.CurrentPhaseIndex)
	}

	status, raw = requestJSON(t, server.engine, http.MethodGet, "/api/timer/snapshot", account.Token, nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200 for snapshot endpoint, got %d: %s", status, string(raw))
	}
}

func TestTimerRequiresAuth(t *testing.T) {
	server := setupTestServer(t)

	status, _ := requestJSON(t, server.engine, http.MethodPost, "/api/timer/start", "", nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", status)
	}

	status, _ = requestJSON(t, server.engine, http.MethodGet, "/api/timer/state", "not-a-token", nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401 with bogus token, got %d", status)
	}
}

func TestInvalidCadenceRejected(t *testing.T) {
	server := setupTestServer(t)
	account := registerAccount(t, server.engine, "owner@example.com", "123456")

	status, raw := requestJSON(t, server.engine, http.MethodPost, "/api/timer/cadence", account.Token, map[string]string{
		"cadence": "turbo",
	})
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown cadence, got %d: %s", status, string(raw))
	}

	status, _ = requestJSON(t, server.engine, http.MethodPost, "/api/timer/cadence", account.Token, map[string]string{
		"cadence": "power_saving",
	})
	if status != http.StatusOK {
		t.Fatalf("expected 200 for power_saving cadence, got %d", status)
	}
}

func TestAuthRejectsMalformedJSON(t *testing.T) {
	server := setupTestServer(t)

	for _, path := range []string{"/api/auth/register", "/api/auth/login"} {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader("{not json"))
		req.Header.Set("Content-Type", "application/json")
		recorder := httptest.NewRecorder()

		server.engine.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for malformed body on %s, got %d", path, recorder.Code)
		}
		var envelope apiErrorEnvelope
		if err := json.Unmarshal(recorder.Body.Bytes(), &envelope); err != nil {
			t.Fatalf("unmarshal error envelope: %v", err)
		}
		if envelope.Error.Code != "invalid_json" {
			t.Fatalf("expected invalid_json on %s, got %s", path, envelope.Error.Code)
		}
	}
}

func TestCORSPreflight(t *testing.T) {
	server := setupTestServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/auth/login", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")
	recorder := httptest.NewRecorder()

	server.engine.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for preflight, got %d", recorder.Code)
	}
	if recorder.Header().Get("Access-Control-Allow-Origin") != "http://localhost:5173" {
		t.Fatalf("unexpected allow-origin header: %s", recorder.Header().Get("Access-Control-Allow-Origin"))
	}
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()

	dir := t.TempDir()
	database, err := db.Open(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		_ = database.Close()
	})
	if err := db.Migrate(database); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	snapshotPath := filepath.Join(dir, "snapshot.json")
	pub := snapshot.NewPublisher(snapshotPath, nil, 0)

	core := timer.New(timer.Options{
		Pub:      pub,
		States:   repository.NewStateRepository(database),
		Sessions: repository.NewSessionRepository(database),
	})
	ctx, cancel := context.WithCancel(context.Background())
	go core.Run(ctx)
	t.Cleanup(cancel)

	userRepo := repository.NewUserRepository(database)
	authService := service.NewAuthService(userRepo, "test-secret", 24*time.Hour)
	authHandler := handler.NewAuthHandler(authService)
	timerHandler := handler.NewTimerHandler(core, pub, snapshotPath)

	engine := router.New(authService, authHandler, timerHandler, []string{"http://localhost:5173"})
	return &testServer{engine: engine, snapshotPath: snapshotPath}
}

func registerAccount(t *testing.T, server http.Handler, email, password string) authResponse {
	t.Helper()
	status, body := requestJSON(t, server, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email":    email,
		"password": password,
	})
	if status != http.StatusCreated {
		t.Fatalf("register %s failed with status %d: %s", email, status, string(body))
	}
	var resp authResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("unmarshal register response: %v", err)
	}
	if resp.Token == "" {
		t.Fatalf("empty token for account %s", email)
	}
	return resp
}

func getState(t *testing.T, server http.Handler, token string) stateResponse {
	t.Helper()
	status, body := requestJSON(t, server, http.MethodGet, "/api/timer/state", token, nil)
	if status != http.StatusOK {
		t.Fatalf("get state failed with status %d: %s", status, string(body))
	}
	var state stateResponse
	if err := json.Unmarshal(body, &state); err != nil {
		t.Fatalf("unmarshal state response: %v", err)
	}
	return state
}

func requestJSON(
	t *testing.T,
	server http.Handler,
	method, path, token string,
	body interface{},
) (int, []byte) {
	t.Helper()

	var payload []byte
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		payload = raw
	}

	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	recorder := httptest.NewRecorder()
	server.ServeHTTP(recorder, req)
	return recorder.Code, recorder.Body.Bytes()
}
