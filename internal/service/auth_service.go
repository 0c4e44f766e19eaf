package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"authweb/internal/domain"
	"authweb/internal/repository"
)

// AuthService coordina registro, login y ciclo de vida de sesiones.
type AuthService struct {
	logger   *zap.Logger
	users    repository.UserRepository
	hasher   PasswordHasher
	sessions SessionManager
}

func NewAuthService(logger *zap.Logger, users repository.UserRepository, hasher PasswordHasher, sessions SessionManager) *AuthService {
	return &AuthService{
		logger:   logger,
		users:    users,
		hasher:   hasher,
		sessions: sessions,
	}
}

var (
	ErrDuplicateUser      = errors.New("duplicate user")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrValidation         = errors.New("validation failed")
)

const minPasswordLen = 8

type RegisterInput struct {
	Email    string
	Username string
	Password string
}

func (s *AuthService) Register(ctx context.Context, input RegisterInput) (domain.User, error) {
	if s.users == nil || s.hasher == nil {
		return domain.User{}, errors.New("auth service not configured")
	}

	emailAddr := normalizeEmail(input.Email)
	username := strings.TrimSpace(input.Username)
	password := input.Password

	// La validación ocurre antes de hashear para no gastar trabajo en
	// entradas que igual se rechazan.
	if !isValidEmail(emailAddr) {
		return domain.User{}, ErrValidation
	}
	if username == "" {
		return domain.User{}, ErrValidation
	}
	if len(password) < minPasswordLen {
		return domain.User{}, ErrValidation
	}

	passwordHash, err := s.hasher.Hash(password)
	if err != nil {
		return domain.User{}, err
	}

	user := domain.User{
		ID:           uuid.NewString(),
		Email:        emailAddr,
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.users.Create(ctx, user); err != nil {
		if repository.IsUniqueViolation(err) {
			return domain.User{}, ErrDuplicateUser
		}
		return domain.User{}, err
	}

	return user, nil
}

// Login autentica por email y contraseña y emite un token de sesión.
// Email inexistente y contraseña incorrecta devuelven el mismo
// ErrInvalidCredentials para no filtrar qué cuentas existen.
func (s *AuthService) Login(ctx context.Context, emailAddr, password string) (string, error) {
	if s.users == nil || s.hasher == nil || s.sessions == nil {
		return "", errors.New("auth service not configured")
	}

	emailAddr = normalizeEmail(emailAddr)
	if emailAddr == "" || password == "" {
		return "", ErrInvalidCredentials
	}

	user, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrInvalidCredentials
		}
		return "", err
	}
	if user.PasswordHash == "" {
		return "", ErrInvalidCredentials
	}

	ok, err := s.hasher.Verify(user.PasswordHash, password)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("password verify failed", zap.Error(err), zap.String("user_id", user.ID))
		}
		return "", err
	}
	if !ok {
		return "", ErrInvalidCredentials
	}

	return s.sessions.Issue(user.ID)
}

// Logout revoca la sesión; es idempotente.
func (s *AuthService) Logout(token string) error {
	if s.sessions == nil {
		return nil
	}
	return s.sessions.Revoke(token)
}

// CurrentUser resuelve el usuario detrás de un token de sesión. Si el
// usuario ya no existe, la sesión se revoca y se reporta como inválida.
func (s *AuthService) CurrentUser(ctx context.Context, token string) (domain.User, error) {
	if s.users == nil || s.sessions == nil {
		return domain.User{}, errors.New("auth service not configured")
	}

	userID, err := s.sessions.Validate(token)
	if err != nil {
		return domain.User{}, err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			_ = s.sessions.Revoke(token)
			return domain.User{}, ErrSessionInvalid
		}
		return domain.User{}, err
	}
	return user, nil
}

// SetAvatar persiste la referencia de imagen subida en el registro del
// usuario. Nunca en estado global del proceso: cada request ve solo lo suyo.
func (s *AuthService) SetAvatar(ctx context.Context, userID, avatarPath string) error {
	if s.users == nil {
		return errors.New("auth service not configured")
	}
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(avatarPath) == "" {
		return ErrValidation
	}
	return s.users.UpdateAvatar(ctx, userID, avatarPath)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func isValidEmail(email string) bool {
	if email == "" || strings.ContainsAny(email, " \t") {
		return false
	}
	at := strings.Index(email, "@")
	if at <= 0 || at == len(email)-1 {
		return false
	}
	return strings.Contains(email[at+1:], ".")
}
