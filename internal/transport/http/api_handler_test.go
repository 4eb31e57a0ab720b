package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"histosaga-service/internal/app"
	"histosaga-service/internal/connectivity"
	"histosaga-service/internal/domain"
	"histosaga-service/internal/infra/memory"
	"histosaga-service/internal/offline"
)

type capturingMailer struct {
	code string
}

func (m *capturingMailer) SendResetCode(_ context.Context, _, code string) error {
	m.code = code
	return nil
}

type apiStack struct {
	remote *memory.RemoteStore
	queue  *offline.Queue
	mailer *capturingMailer
	mux    *http.ServeMux
}

func newAPIStack() *apiStack {
	log := zap.NewNop()
	remote := memory.NewRemoteStore(sampleActivity())
	local := memory.NewLocalStore()
	queue := offline.NewQueue(local)
	repo := app.NewActivityRepository(remote, offline.NewActivityCache(local), log)
	mailer := &capturingMailer{}
	accounts := app.NewAccountService(remote, remote, mailer, app.AccountPolicy{BcryptCost: bcrypt.MinCost}, log)
	profiles := app.NewProfileService(remote, remote, repo)
	reconciler := app.NewReconciler(app.NewProgressWriter(remote), queue, log)

	mux := http.NewServeMux()
	NewAPIHandler(accounts, profiles, reconciler, connectivity.NewStatic(true), log).Register(mux)
	return &apiStack{remote: remote, queue: queue, mailer: mailer, mux: mux}
}

func (s *apiStack) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, httptest.NewRequest(method, path, &buf))
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func registration() app.Registration {
	return app.Registration{
		Name:            "Ana Souza",
		Email:           "ana@example.com",
		Username:        "ana",
		Password:        "senha123",
		PasswordConfirm: "senha123",
	}
}

func TestRegisterAndLogin(t *testing.T) {
	stack := newAPIStack()

	rec := stack.do(t, http.MethodPost, "/api/register", registration())
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d: %s", rec.Code, rec.Body)
	}
	user := decodeBody[map[string]any](t, rec)
	if _, leaked := user["senha"]; leaked {
		t.Fatalf("password hash must not be returned")
	}

	rec = stack.do(t, http.MethodPost, "/api/login", loginRequest{Username: "ana", Password: "senha123"})
	if rec.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d", rec.Code)
	}
	rec = stack.do(t, http.MethodPost, "/api/login", loginRequest{Username: "ana", Password: "errada1"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad login: expected 401, got %d", rec.Code)
	}
}

func TestRegisterValidationFields(t *testing.T) {
	stack := newAPIStack()
	reg := registration()
	reg.Email = "not-an-email"
	reg.PasswordConfirm = "outra123"

	rec := stack.do(t, http.MethodPost, "/api/register", reg)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	verr := decodeBody[domain.ValidationError](t, rec)
	if verr.Fields["email"] == "" || verr.Fields["confirmarSenha"] == "" {
		t.Fatalf("expected email and confirmarSenha messages, got %+v", verr.Fields)
	}
}

func TestPasswordResetFlow(t *testing.T) {
	stack := newAPIStack()
	if rec := stack.do(t, http.MethodPost, "/api/register", registration()); rec.Code != http.StatusCreated {
		t.Fatalf("register: %d", rec.Code)
	}

	rec := stack.do(t, http.MethodPost, "/api/password-reset", resetRequest{Email: "ana@example.com"})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("request reset: expected 202, got %d", rec.Code)
	}
	userID := decodeBody[map[string]string](t, rec)["userId"]

	rec = stack.do(t, http.MethodPost, "/api/password-reset/confirm", confirmRequest{UserID: userID, Password: "nova123", PasswordConfirm: "nova123"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unverified confirm: expected 400, got %d", rec.Code)
	}

	rec = stack.do(t, http.MethodPost, "/api/password-reset/verify", verifyRequest{UserID: userID, Code: stack.mailer.code})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("verify: expected 204, got %d: %s", rec.Code, rec.Body)
	}
	rec = stack.do(t, http.MethodPost, "/api/password-reset/confirm", confirmRequest{UserID: userID, Password: "nova123", PasswordConfirm: "nova123"})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("confirm: expected 204, got %d: %s", rec.Code, rec.Body)
	}
	if rec := stack.do(t, http.MethodPost, "/api/login", loginRequest{Username: "ana", Password: "nova123"}); rec.Code != http.StatusOK {
		t.Fatalf("login with new password: %d", rec.Code)
	}
}

func TestProfileAndActivities(t *testing.T) {
	stack := newAPIStack()
	rec := stack.do(t, http.MethodPost, "/api/register", registration())
	userID := decodeBody[map[string]any](t, rec)["id"].(string)

	rec = stack.do(t, http.MethodGet, "/api/users/"+userID+"/profile", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("profile: expected 200, got %d", rec.Code)
	}
	profile := decodeBody[app.Profile](t, rec)
	if profile.Level != 1 || profile.Username != "ana" {
		t.Fatalf("unexpected profile %+v", profile)
	}

	rec = stack.do(t, http.MethodGet, "/api/users/"+userID+"/subjects/historia/activities", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("activities: expected 200, got %d", rec.Code)
	}
	statuses := decodeBody[[]map[string]any](t, rec)
	if len(statuses) != 1 {
		t.Fatalf("expected one activity, got %v", statuses)
	}

	if rec := stack.do(t, http.MethodGet, "/api/users/nobody/profile", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown user: expected 404, got %d", rec.Code)
	}
}

func TestSyncDrainsQueue(t *testing.T) {
	stack := newAPIStack()
	ctx := context.Background()
	if err := stack.remote.CreateUser(ctx, domain.User{ID: "u1", Username: "u1"}); err != nil {
		t.Fatalf("create user: %v", err)
	}
	progress := domain.SessionProgress{}
	progress.Record(0, true)
	if err := stack.queue.Put(ctx, domain.OfflineProgressEntry{
		SubmissionID: "s1",
		UserID:       "u1",
		ActivityID:   "act-1",
		Subject:      "historia",
		Progress:     progress,
		Completed:    true,
	}); err != nil {
		t.Fatalf("queue: %v", err)
	}

	rec := stack.do(t, http.MethodPost, "/api/sync", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("sync: expected 200, got %d", rec.Code)
	}
	report := decodeBody[domain.ReconcileReport](t, rec)
	if report.Pending != 1 || len(report.Synced) != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
	entries, _ := stack.queue.List(ctx)
	if len(entries) != 0 {
		t.Fatalf("expected queue drained, got %d", len(entries))
	}
}

func TestHealth(t *testing.T) {
	stack := newAPIStack()
	rec := stack.do(t, http.MethodGet, "/healthz", nil)
	health := decodeBody[healthResponse](t, rec)
	if rec.Code != http.StatusOK || !health.Remote {
		t.Fatalf("unexpected health %d %+v", rec.Code, health)
	}
}
