package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lib64hardcoded/lib64hardcoded.github.io-sub000/internal/auth"
	"github.com/lib64hardcoded/lib64hardcoded.github.io-sub000/internal/cache"
	"github.com/lib64hardcoded/lib64hardcoded.github.io-sub000/internal/database"
	"github.com/lib64hardcoded/lib64hardcoded.github.io-sub000/internal/hook"
	"github.com/lib64hardcoded/lib64hardcoded.github.io-sub000/internal/models"
	"github.com/lib64hardcoded/lib64hardcoded.github.io-sub000/internal/remote"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const (
	testSigningSecret = "server-test-secret"
	testCookieName    = "app_session"
	testIssuer        = "dashboard-auth"
)

var testNow = time.Date(2026, time.October, 17, 9, 30, 0, 0, time.UTC)

type sequenceIDs struct {
	mu   sync.Mutex
	next int
}

func (s *sequenceIDs) NewID() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	return fmt.Sprintf("id-%04d", s.next), nil
}

// streamRecorder adds the close notification gin's Stream expects from a live connection.
type streamRecorder struct {
	*httptest.ResponseRecorder
	closed chan bool
}

func newStreamRecorder() *streamRecorder {
	return &streamRecorder{ResponseRecorder: httptest.NewRecorder(), closed: make(chan bool, 1)}
}

func (r *streamRecorder) CloseNotify() <-chan bool {
	return r.closed
}

type apiFixture struct {
	handler    http.Handler
	hook       *hook.Hook
	remote     *remote.Switch
	issuer     *auth.TokenIssuer
	dispatcher *RealtimeDispatcher
	registry   *prometheus.Registry
}

func newAPIFixture(t *testing.T, logger *zap.Logger) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:server_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := database.OpenSQLite(dsn, zap.NewNop())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	client, err := remote.NewGormClient(db)
	if err != nil {
		t.Fatalf("failed to build remote client: %v", err)
	}
	gate := remote.NewSwitch(client)
	clock := func() time.Time { return testNow }
	registry := prometheus.NewRegistry()
	dispatcher := NewRealtimeDispatcher()

	h, err := hook.New(hook.Config{
		Remote:     gate,
		Cache:      cache.New(cache.Config{Store: cache.NewMemoryStore(), Prefix: "dashboard"}),
		Clock:      clock,
		IDProvider: &sequenceIDs{},
		Registerer: registry,
		Publisher:  dispatcher,
	})
	if err != nil {
		t.Fatalf("failed to build hook: %v", err)
	}
	validator, err := auth.NewSessionValidator(auth.SessionValidatorConfig{
		SigningSecret: []byte(testSigningSecret),
		Issuer:        testIssuer,
		CookieName:    testCookieName,
		Clock:         clock,
	})
	if err != nil {
		t.Fatalf("failed to build validator: %v", err)
	}
	issuer, err := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte(testSigningSecret),
		Issuer:        testIssuer,
		Clock:         clock,
	})
	if err != nil {
		t.Fatalf("failed to build issuer: %v", err)
	}

	if logger == nil {
		logger = zap.NewNop()
	}
	handler, err := NewHTTPHandler(Dependencies{
		Hook:       h,
		Sessions:   validator,
		Issuer:     issuer,
		Dispatcher: dispatcher,
		Logger:     logger,
		Registry:   registry,
	})
	if err != nil {
		t.Fatalf("failed to build handler: %v", err)
	}
	return &apiFixture{
		handler:    handler,
		hook:       h,
		remote:     gate,
		issuer:     issuer,
		dispatcher: dispatcher,
		registry:   registry,
	}
}

// userToken creates a user with grade and returns a bearer token for it.
func (f *apiFixture) userToken(t *testing.T, name string, grade models.Grade) (models.User, string) {
	t.Helper()
	user, _, err := f.hook.Users.Create(context.Background(), models.User{Name: name, Grade: grade})
	if err != nil {
		t.Fatalf("failed to create user %s: %v", name, err)
	}
	token, _, err := f.issuer.IssueSession(user)
	if err != nil {
		t.Fatalf("failed to issue session: %v", err)
	}
	return user, token
}

func (f *apiFixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader = http.NoBody
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	}
	request := httptest.NewRequest(method, path, reader)
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}
	recorder := httptest.NewRecorder()
	f.handler.ServeHTTP(recorder, request)
	return recorder
}

type envelope[T any] struct {
	Data   T           `json:"data"`
	Source hook.Source `json:"source"`
	Error  string      `json:"error"`
}

func decode[T any](t *testing.T, recorder *httptest.ResponseRecorder) envelope[T] {
	t.Helper()
	var payload envelope[T]
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode response %q: %v", recorder.Body.String(), err)
	}
	return payload
}

func expectStatus(t *testing.T, recorder *httptest.ResponseRecorder, want int) {
	t.Helper()
	if recorder.Code != want {
		t.Fatalf("expected status %d, got %d: %s", want, recorder.Code, recorder.Body.String())
	}
}
