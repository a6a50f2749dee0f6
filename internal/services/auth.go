package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/kumamontessori/kuma/internal/db"
	"github.com/kumamontessori/kuma/internal/logging"
	"github.com/kumamontessori/kuma/internal/models"
)

const (
	bcryptCost        = 12
	minPasswordLength = 8
)

var ErrAuthUnavailable = errors.New("auth service unavailable")

type userStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	CountAdmins(ctx context.Context) (int, error)
}

type AuthService struct {
	users  userStore
	cost   int
	logger *slog.Logger

	// dummyHash keeps the response time of unknown emails close to that of wrong passwords.
	dummyHash []byte
}

func NewAuthService(users userStore, logger *slog.Logger) *AuthService {
	return newAuthService(users, bcryptCost, logger)
}

func newAuthService(users userStore, cost int, logger *slog.Logger) *AuthService {
	dummy, _ := bcrypt.GenerateFromPassword([]byte("kuma-dummy-password"), cost)
	return &AuthService{users: users, cost: cost, logger: logger, dummyHash: dummy}
}

func (s *AuthService) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, s.logger)
}

// Authenticate checks an admin's email and password.
func (s *AuthService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	span := startSpan(ctx, "service.auth.authenticate", "service.auth", "Authenticate")
	defer span.Finish()
	ctx = span.Context()

	if s == nil || s.users == nil {
		return nil, ErrAuthUnavailable
	}
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.loggerFromContext(ctx).Info("admin login rejected", "user_id", user.ID)
		return nil, ErrInvalidCredentials
	}
	if !user.IsAdmin() {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// GetByID resolves session cookies to users.
func (s *AuthService) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if s == nil || s.users == nil {
		return nil, ErrAuthUnavailable
	}
	return s.users.GetByID(ctx, id)
}

// SetupRequired reports whether no administrator exists yet.
func (s *AuthService) SetupRequired(ctx context.Context) (bool, error) {
	if s == nil || s.users == nil {
		return false, ErrAuthUnavailable
	}
	count, err := s.users.CountAdmins(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to count admins: %w", err)
	}
	return count == 0, nil
}

type SetupInput struct {
	Name                 string
	Email                string
	Password             string
	PasswordConfirmation string
}

// Setup creates the first administrator. It fails with ErrSetupClosed once one exists.
func (s *AuthService) Setup(ctx context.Context, input SetupInput) (*models.User, error) {
	span := startSpan(ctx, "service.auth.setup", "service.auth", "Setup")
	defer span.Finish()
	ctx = span.Context()

	required, err := s.SetupRequired(ctx)
	if err != nil {
		return nil, err
	}
	if !required {
		return nil, ErrSetupClosed
	}
	if input.Password != input.PasswordConfirmation {
		return nil, userError("Las contraseñas no coinciden")
	}
	return s.CreateAdmin(ctx, input.Name, input.Email, input.Password)
}

// CreateAdmin creates an administrator without the first-admin check.
func (s *AuthService) CreateAdmin(ctx context.Context, name, email, password string) (*models.User, error) {
	if s == nil || s.users == nil {
		return nil, ErrAuthUnavailable
	}
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	if name == "" || email == "" || password == "" {
		return nil, userError("Nombre, email y contraseña son requeridos")
	}
	if err := emailValidator.Var(email, "email"); err != nil {
		return nil, userError("El email no es válido")
	}
	if len(password) < minPasswordLength {
		return nil, userError(fmt.Sprintf("La contraseña debe tener al menos %d caracteres", minPasswordLength))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	user := &models.User{
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         models.RoleAdmin,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, db.ErrConflict) {
			return nil, userError("Ya existe un usuario con ese email")
		}
		return nil, fmt.Errorf("failed to create admin: %w", err)
	}
	s.loggerFromContext(ctx).Info("admin created", "user_id", user.ID, "email", user.Email)
	return user, nil
}
