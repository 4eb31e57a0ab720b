package app

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"histosaga-service/internal/domain"
)

var (
	nameRe   = regexp.MustCompile(`^[\p{L}\s]+$`)
	digitsRe = regexp.MustCompile(`^[0-9]+$`)
	emailRe  = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	letterRe = regexp.MustCompile(`[A-Za-z]`)
	digitRe  = regexp.MustCompile(`[0-9]`)
)

const minPasswordLength = 6

// Mailer delivers password reset codes.
type Mailer interface {
	SendResetCode(ctx context.Context, email, code string) error
}

// LogMailer only logs the delivery; sending email is left to an external system.
type LogMailer struct {
	Log *zap.Logger
}

func (m LogMailer) SendResetCode(_ context.Context, email, _ string) error {
	m.Log.Info("password reset code issued", zap.String("email", email))
	return nil
}

// AccountPolicy tunes password reset codes.
type AccountPolicy struct {
	ResetCodeTTL    time.Duration
	MaxCodeAttempts int
	BcryptCost      int
}

func (p AccountPolicy) withDefaults() AccountPolicy {
	if p.ResetCodeTTL <= 0 {
		p.ResetCodeTTL = 10 * time.Minute
	}
	if p.MaxCodeAttempts <= 0 {
		p.MaxCodeAttempts = 3
	}
	if p.BcryptCost == 0 {
		p.BcryptCost = bcrypt.DefaultCost
	}
	return p
}

// AccountService covers registration, login and password reset.
type AccountService struct {
	users  UserStore
	codes  ResetCodeStore
	mailer Mailer
	policy AccountPolicy
	log    *zap.Logger
	clock  func() time.Time
	newID  func() string
}

func NewAccountService(users UserStore, codes ResetCodeStore, mailer Mailer, policy AccountPolicy, log *zap.Logger) *AccountService {
	return &AccountService{
		users:  users,
		codes:  codes,
		mailer: mailer,
		policy: policy.withDefaults(),
		log:    log,
		clock:  time.Now,
		newID:  uuid.NewString,
	}
}

// Registration is the sign-up form.
type Registration struct {
	Name            string `json:"nome"`
	Age             string `json:"idade"`
	Phone           string `json:"telefone"`
	Email           string `json:"email"`
	Username        string `json:"usuario"`
	Password        string `json:"senha"`
	PasswordConfirm string `json:"confirmarSenha"`
}

// Register validates the form and creates the user. Field problems are
// returned together as a *domain.ValidationError.
func (s *AccountService) Register(ctx context.Context, reg Registration) (domain.User, error) {
	reg.Username = strings.TrimSpace(reg.Username)
	reg.Email = strings.TrimSpace(reg.Email)

	verr := &domain.ValidationError{}
	switch {
	case strings.TrimSpace(reg.Name) == "":
		verr.Add("nome", "Nome é obrigatório")
	case !nameRe.MatchString(reg.Name):
		verr.Add("nome", "Nome deve conter apenas letras")
	}
	if reg.Age != "" && !digitsRe.MatchString(reg.Age) {
		verr.Add("idade", "Idade deve conter apenas números")
	}
	if reg.Phone != "" && !digitsRe.MatchString(reg.Phone) {
		verr.Add("telefone", "Telefone deve conter apenas números")
	}
	switch {
	case reg.Email == "":
		verr.Add("email", "Email é obrigatório")
	case !emailRe.MatchString(reg.Email):
		verr.Add("email", "Email inválido")
	}
	if reg.Username == "" {
		verr.Add("usuario", "Usuário é obrigatório")
	}
	if msg := passwordProblem(reg.Password); msg != "" {
		verr.Add("senha", msg)
	}
	if reg.Password != reg.PasswordConfirm {
		verr.Add("confirmarSenha", "As senhas não conferem")
	}

	if reg.Username != "" {
		taken, err := s.exists(ctx, "usuario", reg.Username)
		if err != nil {
			return domain.User{}, err
		}
		if taken {
			verr.Add("usuario", "O nome de usuário já está em uso")
		}
	}
	if _, bad := verr.Fields["email"]; !bad && reg.Email != "" {
		taken, err := s.exists(ctx, "email", reg.Email)
		if err != nil {
			return domain.User{}, err
		}
		if taken {
			verr.Add("email", "Email já cadastrado")
		}
	}
	if err := verr.OrNil(); err != nil {
		return domain.User{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), s.policy.BcryptCost)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}
	user := domain.User{
		ID:           s.newID(),
		Name:         strings.TrimSpace(reg.Name),
		Age:          reg.Age,
		Phone:        reg.Phone,
		Email:        reg.Email,
		Username:     reg.Username,
		PasswordHash: string(hash),
		CreatedAt:    s.clock().UTC(),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}
	s.log.Info("user registered", zap.String("user_id", user.ID))
	return user, nil
}

func passwordProblem(password string) string {
	if len(password) < minPasswordLength {
		return "A senha deve ter pelo menos 6 caracteres"
	}
	if !letterRe.MatchString(password) || !digitRe.MatchString(password) {
		return "A senha deve conter pelo menos uma letra e um número"
	}
	return ""
}

func (s *AccountService) exists(ctx context.Context, field, value string) (bool, error) {
	users, err := s.users.FindUsers(ctx, field, value)
	if err != nil {
		return false, fmt.Errorf("check %s: %w", field, err)
	}
	return len(users) > 0, nil
}

// Login checks the credentials and touches the daily streak.
func (s *AccountService) Login(ctx context.Context, username, password string) (domain.User, error) {
	users, err := s.users.FindUsers(ctx, "usuario", strings.TrimSpace(username))
	if err != nil {
		return domain.User{}, fmt.Errorf("find user: %w", err)
	}
	if len(users) == 0 {
		return domain.User{}, domain.ErrInvalidCredentials
	}
	user := users[0]
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return domain.User{}, domain.ErrInvalidCredentials
	}

	now := s.clock().UTC()
	streak := domain.NextStreak(user.Streak, user.LastAccess, now)
	if err := s.users.UpdateUser(ctx, user.ID, domain.UserUpdate{
		Streak:     &streak,
		LastAccess: &now,
		LastLogin:  &now,
	}); err != nil {
		return domain.User{}, fmt.Errorf("touch streak: %w", err)
	}
	user.Streak = streak
	user.LastAccess = now
	user.LastLogin = now
	return user, nil
}

// RequestPasswordReset issues a fresh code to the account registered with
// email. An unknown email yields domain.ErrUserNotFound.
func (s *AccountService) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	users, err := s.users.FindUsers(ctx, "email", strings.TrimSpace(email))
	if err != nil {
		return "", fmt.Errorf("find user: %w", err)
	}
	if len(users) == 0 {
		return "", domain.ErrUserNotFound
	}
	user := users[0]

	code, err := resetCode()
	if err != nil {
		return "", err
	}
	if err := s.codes.SaveResetCode(ctx, domain.ResetCode{
		UserID:    user.ID,
		Email:     user.Email,
		Code:      code,
		ExpiresAt: s.clock().UTC().Add(s.policy.ResetCodeTTL),
	}); err != nil {
		return "", fmt.Errorf("save reset code: %w", err)
	}
	if err := s.mailer.SendResetCode(ctx, user.Email, code); err != nil {
		return "", fmt.Errorf("send reset code: %w", err)
	}
	return user.ID, nil
}

func resetCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("generate reset code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

// VerifyResetCode checks a submitted code. Expired codes and codes with too
// many failed attempts are discarded.
func (s *AccountService) VerifyResetCode(ctx context.Context, userID, code string) error {
	stored, err := s.codes.GetResetCode(ctx, userID)
	if err != nil {
		return err
	}
	if s.clock().After(stored.ExpiresAt) {
		s.discardCode(ctx, userID)
		return domain.ErrResetCodeExpired
	}
	if stored.Attempts >= s.policy.MaxCodeAttempts {
		s.discardCode(ctx, userID)
		return domain.ErrResetCodeAttempts
	}
	if stored.Code != strings.TrimSpace(code) {
		if err := s.codes.IncrementResetAttempts(ctx, userID); err != nil {
			return fmt.Errorf("count attempt: %w", err)
		}
		return domain.ErrResetCodeIncorrect
	}
	if err := s.codes.MarkResetCodeUsed(ctx, userID); err != nil {
		return fmt.Errorf("mark code used: %w", err)
	}
	return nil
}

// ResetPassword sets a new password once the user's code was verified.
func (s *AccountService) ResetPassword(ctx context.Context, userID, password, confirm string) error {
	stored, err := s.codes.GetResetCode(ctx, userID)
	if err != nil {
		return err
	}
	if !stored.Used {
		return domain.ErrResetCodeUnverified
	}

	verr := &domain.ValidationError{}
	if msg := passwordProblem(password); msg != "" {
		verr.Add("senha", msg)
	}
	if password != confirm {
		verr.Add("confirmarSenha", "As senhas não conferem")
	}
	if err := verr.OrNil(); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.policy.BcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	hashed := string(hash)
	if err := s.users.UpdateUser(ctx, userID, domain.UserUpdate{PasswordHash: &hashed}); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	s.discardCode(ctx, userID)
	return nil
}

func (s *AccountService) discardCode(ctx context.Context, userID string) {
	if err := s.codes.DeleteResetCode(ctx, userID); err != nil && !errors.Is(err, domain.ErrResetCodeNotFound) {
		s.log.Warn("delete reset code", zap.String("user_id", userID), zap.Error(err))
	}
}
