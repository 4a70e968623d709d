// Package auth регистрирует пользователей, выдаёт и проверяет токены доступа.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/subscription-tracker/internal/lib/apperr"
	"github.com/magabrotheeeer/subscription-tracker/internal/lib/jwt"
	"github.com/magabrotheeeer/subscription-tracker/internal/lib/password"
	"github.com/magabrotheeeer/subscription-tracker/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-tracker/internal/models"
)

// MinPasswordLength минимальная длина пароля.
const MinPasswordLength = 6

// UserRepository описывает контракт для работы с пользователями в базе данных.
type UserRepository interface {
	CreateUser(ctx context.Context, user models.User) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUser(ctx context.Context, id string) (*models.User, error)
}

// TokenMaker выпускает и проверяет JWT.
type TokenMaker interface {
	GenerateToken(userID, role string) (string, error)
	ParseToken(token string) (*jwt.CustomClaims, error)
}

// Session токен доступа и пользователь, которому он выдан.
type Session struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// Service отвечает за регистрацию, вход и проверку токенов.
type Service struct {
	users    UserRepository
	tokens   TokenMaker
	validate *validator.Validate
	log      *slog.Logger
}

// New создает новый экземпляр Service.
func New(users UserRepository, tokens TokenMaker, log *slog.Logger) *Service {
	return &Service{
		users:    users,
		tokens:   tokens,
		validate: validator.New(),
		log:      log,
	}
}

// NormalizeEmail приводит адрес к виду, в котором он хранится.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SignUp создаёт пользователя с ролью user и сразу выдаёт токен.
func (s *Service) SignUp(ctx context.Context, name, email, rawPassword string) (*Session, error) {
	const op = "auth.SignUp"

	name = strings.TrimSpace(name)
	email = NormalizeEmail(email)
	if n := utf8.RuneCountInString(name); n < 2 || n > 50 {
		return nil, apperr.Validation(op, "name must be between 2 and 50 characters")
	}
	if err := s.validate.Var(email, "required,email"); err != nil {
		return nil, apperr.Validation(op, "please fill in a valid email address")
	}
	if len(rawPassword) < MinPasswordLength {
		return nil, apperr.Validation(op, fmt.Sprintf("password must be at least %d characters long", MinPasswordLength))
	}

	hashed, err := password.GetHash(rawPassword)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, op, "password is too long", err)
	}

	user, err := s.users.CreateUser(ctx, models.User{
		Name:         name,
		Email:        email,
		PasswordHash: hashed,
		Role:         models.RoleUser,
	})
	if err != nil {
		if apperr.Is(err, apperr.KindConflict) {
			return nil, apperr.Conflict(op, "user already exists")
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	token, err := s.tokens.GenerateToken(user.ID, user.Role)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	user.PasswordHash = ""
	s.log.Info("user signed up", slog.String("user_id", user.ID))
	return &Session{Token: token, User: user}, nil
}

// SignIn проверяет пароль и выдаёт токен. Любое несовпадение даёт одну и ту же ошибку.
func (s *Service) SignIn(ctx context.Context, email, rawPassword string) (*Session, error) {
	const op = "auth.SignIn"

	user, err := s.users.GetUserByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, apperr.Unauthenticated(op, "invalid credentials")
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := password.CompareHash(user.PasswordHash, rawPassword); err != nil {
		if !errors.Is(err, password.ErrMismatch) {
			s.log.Warn("stored password hash is unusable", slog.String("user_id", user.ID), sl.Err(err))
		}
		return nil, apperr.Unauthenticated(op, "invalid credentials")
	}

	token, err := s.tokens.GenerateToken(user.ID, user.Role)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	user.PasswordHash = ""
	return &Session{Token: token, User: user}, nil
}

// Authenticate проверяет токен и что его владелец всё ещё существует.
// Роль берётся из базы, а не из токена.
func (s *Service) Authenticate(ctx context.Context, token string) (models.Caller, error) {
	const op = "auth.Authenticate"

	claims, err := s.tokens.ParseToken(token)
	if err != nil {
		return models.Caller{}, apperr.Wrap(apperr.KindUnauthenticated, op, "unauthorized", err)
	}
	user, err := s.users.GetUser(ctx, claims.UserID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return models.Caller{}, apperr.Unauthenticated(op, "unauthorized")
		}
		return models.Caller{}, fmt.Errorf("%s: %w", op, err)
	}
	return models.Caller{ID: user.ID, Role: user.Role}, nil
}
