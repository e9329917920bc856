// Package auth manages the volunteer session against the remote store.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/iudanet/outreach/internal/client/storage"
	"github.com/iudanet/outreach/internal/validation"
	"github.com/iudanet/outreach/pkg/api"
)

// ErrNotLoggedIn is returned when there is no valid session
var ErrNotLoggedIn = errors.New("not logged in")

// expiryLeeway токен считается истёкшим чуть раньше, чтобы не получить 401 в полёте
const expiryLeeway = 30 * time.Second

//go:generate moq -out client_mock.go . Client

// Client is the part of remote.Client used for authentication
type Client interface {
	Register(ctx context.Context, req api.RegisterRequest) (*api.RegisterResponse, error)
	Login(ctx context.Context, req api.LoginRequest) (*api.TokenResponse, error)
}

// Service предоставляет функции авторизации
type Service struct {
	client Client
	store  storage.AuthStorage
	logger *slog.Logger
	now    func() time.Time
}

// NewService создает новый сервис авторизации
func NewService(client Client, store storage.AuthStorage, logger *slog.Logger) *Service {
	return &Service{
		client: client,
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// Register регистрирует нового пользователя на сервере
func (s *Service) Register(ctx context.Context, username, password string) (*api.RegisterResponse, error) {
	if err := validation.ValidateCredentials(username, password); err != nil {
		return nil, err
	}

	resp, err := s.client.Register(ctx, api.RegisterRequest{Username: username, Password: password})
	if err != nil {
		return nil, fmt.Errorf("registration failed: %w", err)
	}

	s.logger.Info("User registered", "username", username, "user_id", resp.UserID)
	return resp, nil
}

// Login выполняет аутентификацию и сохраняет сессию локально
func (s *Service) Login(ctx context.Context, username, password string) (*storage.AuthData, error) {
	if err := validation.ValidateCredentials(username, password); err != nil {
		return nil, err
	}

	resp, err := s.client.Login(ctx, api.LoginRequest{Username: username, Password: password})
	if err != nil {
		return nil, fmt.Errorf("login failed: %w", err)
	}

	session := &storage.AuthData{
		Username:    username,
		UserID:      resp.UserID,
		AccessToken: resp.AccessToken,
		ExpiresAt:   s.now().Add(time.Duration(resp.ExpiresIn) * time.Second).Unix(),
	}
	if err := s.store.SaveAuth(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	s.logger.Info("User logged in", "username", username)
	return session, nil
}

// Logout удаляет локальную сессию. Очередь изменений сохраняется.
func (s *Service) Logout(ctx context.Context) error {
	if err := s.store.DeleteAuth(ctx); err != nil {
		if errors.Is(err, storage.ErrAuthNotFound) {
			return ErrNotLoggedIn
		}
		return fmt.Errorf("failed to delete local auth data: %w", err)
	}
	return nil
}

// Session returns the stored session if it has not expired
func (s *Service) Session(ctx context.Context) (*storage.AuthData, error) {
	session, err := s.store.GetAuth(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrAuthNotFound) {
			return nil, ErrNotLoggedIn
		}
		return nil, err
	}

	if s.now().Add(expiryLeeway).After(time.Unix(session.ExpiresAt, 0)) {
		return nil, fmt.Errorf("%w: session expired", ErrNotLoggedIn)
	}
	return session, nil
}

// Token implements remote.TokenSource
func (s *Service) Token(ctx context.Context) (string, error) {
	session, err := s.Session(ctx)
	if err != nil {
		return "", err
	}
	return session.AccessToken, nil
}
