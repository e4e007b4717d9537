package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/julianstephens/habitual/internal/auth"
	apperrors "github.com/julianstephens/habitual/internal/errors"
	"github.com/julianstephens/habitual/internal/logger"
	"github.com/julianstephens/habitual/internal/models"
	"github.com/julianstephens/habitual/internal/storage"
	"github.com/julianstephens/habitual/internal/validation"
)

type RegisterInput struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	Timezone    string `json:"timezone,omitempty"`
}

// Token is an issued bearer token.
type Token struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      models.User `json:"user"`
}

var errInvalidCredentials = fmt.Errorf("invalid username or password: %w", apperrors.ErrUnauthorized)

type UserService struct {
	store     storage.Provider
	issuer    *auth.Issuer
	validator *validation.Validator
	now       func() time.Time
}

func NewUserService(store storage.Provider, issuer *auth.Issuer) *UserService {
	return &UserService{
		store:     store,
		issuer:    issuer,
		validator: validation.New(),
		now:       systemNow,
	}
}

// Register creates a user with a bcrypt password hash. Timezone defaults
// to UTC.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (models.User, error) {
	username := validation.SanitizeLine(in.Username)
	timezone := validation.SanitizeLine(in.Timezone)
	if timezone == "" {
		timezone = "UTC"
	}

	result := s.validator.ValidateUser(username, in.Password, timezone)
	if err := result.Err(); err != nil {
		return models.User{}, err
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return models.User{}, err
	}

	now := s.now()
	u := models.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        validation.SanitizeLine(in.Email),
		PasswordHash: hash,
		DisplayName:  validation.SanitizeLine(in.DisplayName),
		Timezone:     timezone,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.AddUser(ctx, u); err != nil {
		return models.User{}, err
	}
	logger.Info("User registered", "user_id", u.ID, "username", u.Username)
	return u, nil
}

// Authenticate checks a username and password. Unknown users and wrong
// passwords fail the same way.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (models.User, error) {
	u, err := s.store.GetUserByUsername(ctx, validation.SanitizeLine(username))
	if errors.Is(err, apperrors.ErrNotFound) {
		return models.User{}, errInvalidCredentials
	}
	if err != nil {
		return models.User{}, err
	}
	if err := auth.CheckPassword(u.PasswordHash, password); err != nil {
		return models.User{}, errInvalidCredentials
	}
	return u, nil
}

// Login authenticates and issues a bearer token.
func (s *UserService) Login(ctx context.Context, username, password string) (Token, error) {
	if s.issuer == nil {
		return Token{}, errors.New("token issuer is not configured")
	}
	u, err := s.Authenticate(ctx, username, password)
	if err != nil {
		return Token{}, err
	}
	token, expires, err := s.issuer.Issue(u.ID, u.Username)
	if err != nil {
		return Token{}, err
	}
	return Token{Token: token, ExpiresAt: expires, User: u}, nil
}

func (s *UserService) Get(ctx context.Context, id string) (models.User, error) {
	return s.store.GetUser(ctx, id)
}

func (s *UserService) GetByUsername(ctx context.Context, username string) (models.User, error) {
	return s.store.GetUserByUsername(ctx, username)
}
