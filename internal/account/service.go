package account

import (
	"context"
	"errors"
	"strings"

	"campuscredits/internal/access"
	"campuscredits/internal/apperr"
	"campuscredits/internal/auth"
	"campuscredits/internal/logger"
)

var (
	ErrEmailExists        = errors.New("email already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

type Authorizer interface {
	Authorize(ctx context.Context, accountID int64, op access.Operation) error
}

type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*Account, string, string, error)
	Login(ctx context.Context, req LoginRequest) (*Account, string, string, error)
	GetByID(ctx context.Context, accountID int64) (*Account, error)
	RefreshToken(ctx context.Context, refreshToken string) (string, *Account, error)
	SetRole(ctx context.Context, actorID, accountID int64, role access.Role) (*Account, error)
	Deactivate(ctx context.Context, actorID, accountID int64) error
}

type service struct {
	repo        Repository
	gate        Authorizer
	jwtSecret   string
	adminEmails map[string]struct{}
}

func NewService(repo Repository, gate Authorizer, jwtSecret string, adminEmails []string) Service {
	admins := make(map[string]struct{}, len(adminEmails))
	for _, e := range adminEmails {
		admins[normalizeEmail(e)] = struct{}{}
	}
	return &service{
		repo:        repo,
		gate:        gate,
		jwtSecret:   jwtSecret,
		adminEmails: admins,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *service) Register(ctx context.Context, req RegisterRequest) (*Account, string, string, error) {
	email := normalizeEmail(req.Email)

	exists, err := s.repo.EmailExists(ctx, email)
	if err != nil {
		return nil, "", "", err
	}
	if exists {
		return nil, "", "", ErrEmailExists
	}

	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, "", "", err
	}

	role := access.RoleStudent
	if _, ok := s.adminEmails[email]; ok {
		role = access.RoleAdmin
	}

	acc, err := s.repo.Create(ctx, strings.TrimSpace(req.DisplayName), email, passwordHash, role)
	if err != nil {
		return nil, "", "", err
	}

	accessToken, refreshToken, err := s.tokens(acc)
	if err != nil {
		return nil, "", "", err
	}

	logger.Info("account registered", "account_id", acc.ID, "role", acc.Role)
	return acc, accessToken, refreshToken, nil
}

func (s *service) Login(ctx context.Context, req LoginRequest) (*Account, string, string, error) {
	acc, err := s.repo.FindByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		return nil, "", "", ErrInvalidCredentials
	}

	if !acc.Active || !auth.CheckPassword(acc.PasswordHash, req.Password) {
		return nil, "", "", ErrInvalidCredentials
	}

	accessToken, refreshToken, err := s.tokens(acc)
	if err != nil {
		return nil, "", "", err
	}

	return acc, accessToken, refreshToken, nil
}

func (s *service) GetByID(ctx context.Context, accountID int64) (*Account, error) {
	return s.repo.FindByID(ctx, accountID)
}

// RefreshToken issues a new access token carrying the account's current role.
func (s *service) RefreshToken(ctx context.Context, refreshToken string) (string, *Account, error) {
	_, claims, err := auth.RefreshAccessToken(refreshToken, s.jwtSecret, s.jwtSecret)
	if err != nil {
		return "", nil, err
	}

	acc, err := s.repo.FindByID(ctx, claims.AccountID)
	if err != nil {
		return "", nil, err
	}
	if !acc.Active {
		return "", nil, ErrInvalidCredentials
	}

	newAccessToken, err := auth.GenerateAccessToken(acc.ID, acc.Email, string(acc.Role), s.jwtSecret)
	if err != nil {
		return "", nil, err
	}

	return newAccessToken, acc, nil
}

func (s *service) SetRole(ctx context.Context, actorID, accountID int64, role access.Role) (*Account, error) {
	if err := s.gate.Authorize(ctx, actorID, access.OpManageAccounts); err != nil {
		return nil, err
	}
	if _, ok := access.ParseRole(string(role)); !ok {
		return nil, apperr.New(apperr.InvalidPayload, "unknown role %q", role)
	}
	if actorID == accountID && role != access.RoleAdmin {
		return nil, apperr.New(apperr.InvalidTransition, "admins cannot demote themselves")
	}

	if err := s.repo.SetRole(ctx, accountID, role); err != nil {
		return nil, err
	}

	logger.Info("account role changed", "account_id", accountID, "role", role, "actor_id", actorID)
	return s.repo.FindByID(ctx, accountID)
}

func (s *service) Deactivate(ctx context.Context, actorID, accountID int64) error {
	if err := s.gate.Authorize(ctx, actorID, access.OpManageAccounts); err != nil {
		return err
	}
	if actorID == accountID {
		return apperr.New(apperr.InvalidTransition, "admins cannot deactivate themselves")
	}

	acc, err := s.repo.FindByID(ctx, accountID)
	if err != nil {
		return err
	}
	if !acc.Active {
		return apperr.New(apperr.InvalidTransition, "account %d is already deactivated", accountID)
	}

	if err := s.repo.Deactivate(ctx, accountID); err != nil {
		return err
	}

	logger.Info("account deactivated", "account_id", accountID, "actor_id", actorID)
	return nil
}

func (s *service) tokens(acc *Account) (string, string, error) {
	return auth.GenerateTokens(acc.ID, acc.Email, string(acc.Role), s.jwtSecret, s.jwtSecret)
}
