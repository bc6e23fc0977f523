package trigger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/ingestkit/ingestkit/config"
	"github.com/ingestkit/ingestkit/secrets"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func webhookSnapshot(t *testing.T, auth config.WebhookAuth) *config.Snapshot {
	t.Helper()
	return &config.Snapshot{
		Environment: config.EnvDev,
		Triggers: map[string]*config.TriggerDefinition{
			"deploy-hook": {
				Name: "deploy-hook", Type: config.TriggerWebhook, Job: "nightly",
				Webhook: &config.WebhookSpec{Path: "/hooks/deploy", Auth: auth},
			},
		},
	}
}

func fireRequest(t *testing.T, srv *Server, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/hooks/deploy", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func waitForRuns(t *testing.T, invoker *fakeInvoker, want int) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for invoker.runCount() < want {
		select {
		case <-deadline:
			t.Fatalf("expected %d runs, got %d", want, invoker.runCount())
		case <-time.After(5 * time.Millisecond):
		}
	}
}

// --- Webhook server tests ---

func TestWebhook_NoAuthAccepted(t *testing.T) {
	invoker := &fakeInvoker{}
	srv := NewServer(":0", invoker, webhookSnapshot(t, config.WebhookAuth{}), secrets.StaticSource{}, t.TempDir())

	w := fireRequest(t, srv, "")
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
	}

	var resp FireResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.FireID == "" || resp.Job != "nightly" || resp.Trigger != "deploy-hook" {
		t.Errorf("unexpected response %+v", resp)
	}
	waitForRuns(t, invoker, 1)
}

func TestWebhook_TokenAuth(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hook-token"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	auth := config.WebhookAuth{Type: "token", TokenHash: string(hash)}
	invoker := &fakeInvoker{}
	srv := NewServer(":0", invoker, webhookSnapshot(t, auth), secrets.StaticSource{}, t.TempDir())

	if w := fireRequest(t, srv, "hook-token"); w.Code != http.StatusAccepted {
		t.Errorf("expected 202 for valid token, got %d", w.Code)
	}
	if w := fireRequest(t, srv, "wrong"); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for bad token, got %d", w.Code)
	}
	if w := fireRequest(t, srv, ""); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for missing token, got %d", w.Code)
	}
}

func TestWebhook_JWTAuth(t *testing.T) {
	auth := config.WebhookAuth{Type: "jwt", SigningSecretKey: "HOOK_SIGNING_SECRET"}
	source := secrets.StaticSource{"HOOK_SIGNING_SECRET": "signing-secret"}
	invoker := &fakeInvoker{}
	srv := NewServer(":0", invoker, webhookSnapshot(t, auth), source, t.TempDir())

	claims := jwt.MapClaims{"sub": "ci", "exp": time.Now().Add(time.Hour).Unix()}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("signing-secret"))
	if err != nil {
		t.Fatal(err)
	}

	if w := fireRequest(t, srv, signed); w.Code != http.StatusAccepted {
		t.Errorf("expected 202 for valid jwt, got %d: %s", w.Code, w.Body.String())
	}

	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("other-secret"))
	if err != nil {
		t.Fatal(err)
	}
	if w := fireRequest(t, srv, forged); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for forged jwt, got %d", w.Code)
	}
}

func TestWebhook_ExpiredJWTRejected(t *testing.T) {
	auth := config.WebhookAuth{Type: "jwt", SigningSecretKey: "HOOK_SIGNING_SECRET"}
	source := secrets.StaticSource{"HOOK_SIGNING_SECRET": "signing-secret"}
	srv := NewServer(":0", &fakeInvoker{}, webhookSnapshot(t, auth), source, t.TempDir())

	claims := jwt.MapClaims{"sub": "ci", "exp": time.Now().Add(-time.Hour).Unix()}
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("signing-secret"))
	if err != nil {
		t.Fatal(err)
	}
	if w := fireRequest(t, srv, expired); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for expired jwt, got %d", w.Code)
	}
}

func TestWebhook_DisabledTriggerNotRouted(t *testing.T) {
	off := false
	snapshot := webhookSnapshot(t, config.WebhookAuth{})
	snapshot.Triggers["deploy-hook"].Enabled = &off

	srv := NewServer(":0", &fakeInvoker{}, snapshot, secrets.StaticSource{}, t.TempDir())
	if w := fireRequest(t, srv, ""); w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for disabled trigger, got %d", w.Code)
	}
}

func TestWebhook_Health(t *testing.T) {
	srv := NewServer(":0", &fakeInvoker{}, webhookSnapshot(t, config.WebhookAuth{}), secrets.StaticSource{}, t.TempDir())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var health struct {
		Service string `json:"service"`
		Status  string `json:"status"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &health); err != nil {
		t.Fatal(err)
	}
	if health.Service != "ingestkit" || health.Status != "up" {
		t.Errorf("unexpected health %+v", health)
	}
}

func TestWebhook_HealthDownWhenConfigMissing(t *testing.T) {
	srv := NewServer(":0", &fakeInvoker{}, webhookSnapshot(t, config.WebhookAuth{}), secrets.StaticSource{}, "/nonexistent/config/root")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 when config root missing, got %d", w.Code)
	}
}

func TestWebhook_StartStop(t *testing.T) {
	srv := NewServer("127.0.0.1:0", &fakeInvoker{}, webhookSnapshot(t, config.WebhookAuth{}), secrets.StaticSource{}, t.TempDir())

	ctx := context.Background()
	if err := srv.Start(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := srv.Stop(ctx); err != nil {
		t.Errorf("stop failed: %v", err)
	}
}
