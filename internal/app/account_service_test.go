package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"histosaga-service/internal/app"
	"histosaga-service/internal/domain"
	"histosaga-service/internal/infra/memory"
)

type capturingMailer struct {
	codes map[string]string
}

func (m *capturingMailer) SendResetCode(_ context.Context, email, code string) error {
	m.codes[email] = code
	return nil
}

func newAccounts() (*app.AccountService, *memory.RemoteStore, *capturingMailer) {
	remote := memory.NewRemoteStore()
	mailer := &capturingMailer{codes: make(map[string]string)}
	svc := app.NewAccountService(remote, remote, mailer, app.AccountPolicy{BcryptCost: bcrypt.MinCost}, zap.NewNop())
	return svc, remote, mailer
}

func validRegistration() app.Registration {
	return app.Registration{
		Name:            "Ana Júlia",
		Age:             "15",
		Phone:           "11999990000",
		Email:           "ana@example.com",
		Username:        "ana",
		Password:        "segredo1",
		PasswordConfirm: "segredo1",
	}
}

func TestRegisterValidatesFields(t *testing.T) {
	svc, _, _ := newAccounts()
	reg := app.Registration{
		Name:            "R2D2",
		Age:             "quinze",
		Email:           "not-an-email",
		Username:        "",
		Password:        "abcdef",
		PasswordConfirm: "abcdeg",
	}
	_, err := svc.Register(context.Background(), reg)
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	for _, field := range []string{"nome", "idade", "email", "usuario", "senha", "confirmarSenha"} {
		if _, ok := verr.Fields[field]; !ok {
			t.Fatalf("expected message for %s, got %+v", field, verr.Fields)
		}
	}
}

func TestRegisterRejectsTakenUsername(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newAccounts()
	if _, err := svc.Register(ctx, validRegistration()); err != nil {
		t.Fatalf("register: %v", err)
	}
	reg := validRegistration()
	reg.Email = "outra@example.com"
	_, err := svc.Register(ctx, reg)
	var verr *domain.ValidationError
	if !errors.As(err, &verr) || verr.Fields["usuario"] == "" {
		t.Fatalf("expected username taken, got %v", err)
	}
}

func TestLoginTouchesStreak(t *testing.T) {
	ctx := context.Background()
	svc, remote, _ := newAccounts()
	user, err := svc.Register(ctx, validRegistration())
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.PasswordHash == "segredo1" {
		t.Fatalf("password stored in clear")
	}

	if _, err := svc.Login(ctx, "ana", "errada1"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if _, err := svc.Login(ctx, "ninguem", "segredo1"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}

	logged, err := svc.Login(ctx, "ana", "segredo1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if logged.Streak != 1 {
		t.Fatalf("expected first streak day, got %d", logged.Streak)
	}
	stored, _ := remote.GetUser(ctx, user.ID)
	if stored.Streak != 1 || stored.LastAccess.IsZero() {
		t.Fatalf("streak not persisted: %+v", stored.UserAggregate)
	}
}

func TestPasswordResetFlow(t *testing.T) {
	ctx := context.Background()
	svc, _, mailer := newAccounts()
	user, _ := svc.Register(ctx, validRegistration())

	userID, err := svc.RequestPasswordReset(ctx, "ana@example.com")
	if err != nil {
		t.Fatalf("request reset: %v", err)
	}
	if userID != user.ID {
		t.Fatalf("expected reset for %s, got %s", user.ID, userID)
	}
	code := mailer.codes["ana@example.com"]
	if len(code) != 6 {
		t.Fatalf("expected 6 digit code, got %q", code)
	}

	if err := svc.ResetPassword(ctx, userID, "novaSenha2", "novaSenha2"); !errors.Is(err, domain.ErrResetCodeUnverified) {
		t.Fatalf("expected unverified code, got %v", err)
	}
	if err := svc.VerifyResetCode(ctx, userID, "000000"); !errors.Is(err, domain.ErrResetCodeIncorrect) {
		t.Fatalf("expected incorrect code, got %v", err)
	}
	if err := svc.VerifyResetCode(ctx, userID, code); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if err := svc.ResetPassword(ctx, userID, "novaSenha2", "novaSenha2"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if _, err := svc.Login(ctx, "ana", "novaSenha2"); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
	if err := svc.VerifyResetCode(ctx, userID, code); !errors.Is(err, domain.ErrResetCodeNotFound) {
		t.Fatalf("expected code deleted after reset, got %v", err)
	}
}

func TestResetCodeAttemptLimit(t *testing.T) {
	ctx := context.Background()
	svc, remote, _ := newAccounts()
	_ = remote.CreateUser(ctx, domain.User{ID: "u1", Email: "u1@example.com"})
	_ = remote.SaveResetCode(ctx, domain.ResetCode{UserID: "u1", Code: "123456", ExpiresAt: time.Now().Add(time.Minute)})

	for i := 0; i < 3; i++ {
		if err := svc.VerifyResetCode(ctx, "u1", "654321"); !errors.Is(err, domain.ErrResetCodeIncorrect) {
			t.Fatalf("attempt %d: expected incorrect, got %v", i, err)
		}
	}
	if err := svc.VerifyResetCode(ctx, "u1", "123456"); !errors.Is(err, domain.ErrResetCodeAttempts) {
		t.Fatalf("expected too many attempts, got %v", err)
	}
	if _, err := remote.GetResetCode(ctx, "u1"); !errors.Is(err, domain.ErrResetCodeNotFound) {
		t.Fatalf("expected code discarded, got %v", err)
	}
}

func TestExpiredResetCode(t *testing.T) {
	ctx := context.Background()
	svc, remote, _ := newAccounts()
	_ = remote.SaveResetCode(ctx, domain.ResetCode{UserID: "u1", Code: "123456", ExpiresAt: time.Now().Add(-time.Minute)})
	if err := svc.VerifyResetCode(ctx, "u1", "123456"); !errors.Is(err, domain.ErrResetCodeExpired) {
		t.Fatalf("expected expired, got %v", err)
	}
}
