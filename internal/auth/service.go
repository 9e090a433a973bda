package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"kingchat-backend/internal/database"
	internaljwt "kingchat-backend/internal/jwt"
	"kingchat-backend/internal/model"
)

type Service struct {
	repo Repository
	now  func() time.Time
}

var createTokenWithRefresh = internaljwt.CreateTokenWithRefresh

// SetTokenIssuer swaps the token factory. Tests use it to avoid the
// Redis-backed refresh store.
func SetTokenIssuer(issuer func(internaljwt.Operator, internaljwt.Role, int64) (internaljwt.TokenResponse, error)) {
	if issuer == nil {
		createTokenWithRefresh = internaljwt.CreateTokenWithRefresh
		return
	}
	createTokenWithRefresh = issuer
}

func New(db *database.Database) *Service {
	return &Service{
		repo: NewDynamoRepository(db),
		now:  time.Now,
	}
}

func NewWithRepository(repo Repository, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo: repo,
		now:  now,
	}
}

// Register creates a console operator. Email is the identity; a second
// registration for the same email is a conflict, not an overwrite.
func (s *Service) Register(ctx context.Context, params RegisterParams) (AuthResult, error) {
	email := normalizeEmail(params.Email)
	name := strings.TrimSpace(params.Name)
	password := strings.TrimSpace(params.Password)

	if email == "" || name == "" || password == "" {
		return AuthResult{}, newError(ErrorCodeValidation, "email, name and password are required", nil)
	}

	role := strings.TrimSpace(params.Role)
	if role == "" {
		role = model.OperatorRoleOperator
	}
	if role != model.OperatorRoleOperator && role != model.OperatorRoleAdmin {
		return AuthResult{}, newError(ErrorCodeValidation, "invalid role", nil)
	}

	passwordHash, err := internaljwt.HashPassword(password)
	if err != nil {
		return AuthResult{}, newError(ErrorCodeInternal, "failed to prepare operator", err)
	}

	now := s.now().UTC().Format(time.RFC3339)
	operator := model.OperatorItem{
		PK:           model.OperatorPK(email),
		OperatorID:   uuid.NewString(),
		Email:        email,
		Name:         name,
		Role:         role,
		PasswordHash: passwordHash,
		CreatedAt:    now,
	}

	if err := s.repo.CreateOperator(ctx, operator); err != nil {
		if errors.Is(err, ErrConflict) {
			return AuthResult{}, newError(ErrorCodeConflict, "operator already exists", err)
		}
		return AuthResult{}, newError(ErrorCodeInternal, "failed to save operator", err)
	}

	tokens, err := createTokenWithRefresh(jwtOperator(operator), jwtRole(operator.Role), 0)
	if err != nil {
		return AuthResult{}, newError(ErrorCodeInternal, "failed to issue tokens", err)
	}

	return AuthResult{Operator: operator, Tokens: tokens}, nil
}

// Login verifies credentials and issues an access/refresh token pair.
// Unknown email and wrong password are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, params LoginParams) (AuthResult, error) {
	email := normalizeEmail(params.Email)
	password := strings.TrimSpace(params.Password)

	if email == "" || password == "" {
		return AuthResult{}, newError(ErrorCodeValidation, "email and password are required", nil)
	}

	operator, err := s.repo.GetOperatorByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return AuthResult{}, newError(ErrorCodeInvalidCredentials, "invalid email or password", err)
		}
		return AuthResult{}, newError(ErrorCodeInternal, "failed to load operator", err)
	}

	if !internaljwt.ValidatePassword(operator.PasswordHash, password) {
		return AuthResult{}, newError(ErrorCodeInvalidCredentials, "invalid email or password", nil)
	}

	tokens, err := createTokenWithRefresh(jwtOperator(operator), jwtRole(operator.Role), 0)
	if err != nil {
		return AuthResult{}, newError(ErrorCodeInternal, "failed to issue tokens", err)
	}

	return AuthResult{Operator: operator, Tokens: tokens}, nil
}

// Refresh exchanges a refresh token for a new access token.
func (s *Service) Refresh(refreshToken, role string) (internaljwt.TokenResponse, error) {
	accessToken, err := internaljwt.RefreshToken(refreshToken, jwtRole(role))
	if err != nil {
		return internaljwt.TokenResponse{}, newError(ErrorCodeInvalidCredentials, "invalid refresh token", err)
	}
	return internaljwt.TokenResponse{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

func (s *Service) GetOperator(ctx context.Context, email string) (model.OperatorItem, error) {
	operator, err := s.repo.GetOperatorByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return model.OperatorItem{}, newError(ErrorCodeNotFound, "operator not found", err)
		}
		return model.OperatorItem{}, newError(ErrorCodeInternal, "failed to load operator", err)
	}
	return operator, nil
}

func (s *Service) ListOperators(ctx context.Context) ([]model.OperatorItem, error) {
	operators, err := s.repo.ListOperators(ctx)
	if err != nil {
		return nil, newError(ErrorCodeInternal, "failed to list operators", err)
	}
	return operators, nil
}

func jwtOperator(operator model.OperatorItem) internaljwt.Operator {
	return internaljwt.Operator{
		Id:           operator.OperatorID,
		Email:        operator.Email,
		Name:         operator.Name,
		PasswordHash: operator.PasswordHash,
	}
}

func jwtRole(role string) internaljwt.Role {
	if role == model.OperatorRoleAdmin {
		return internaljwt.RoleAdmin
	}
	return internaljwt.RoleOperator
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
