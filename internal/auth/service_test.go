package auth

import (
	"context"
	"testing"
	"time"

	internaljwt "kingchat-backend/internal/jwt"
	"kingchat-backend/internal/model"
)

type memoryRepository struct {
	operators map[string]model.OperatorItem
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{operators: make(map[string]model.OperatorItem)}
}

func (r *memoryRepository) CreateOperator(ctx context.Context, operator model.OperatorItem) error {
	if _, ok := r.operators[operator.PK]; ok {
		return ErrConflict
	}
	r.operators[operator.PK] = operator
	return nil
}

func (r *memoryRepository) GetOperatorByEmail(ctx context.Context, email string) (model.OperatorItem, error) {
	operator, ok := r.operators[model.OperatorPK(email)]
	if !ok {
		return model.OperatorItem{}, ErrNotFound
	}
	return operator, nil
}

func (r *memoryRepository) ListOperators(ctx context.Context) ([]model.OperatorItem, error) {
	operators := make([]model.OperatorItem, 0, len(r.operators))
	for _, operator := range r.operators {
		operators = append(operators, operator)
	}
	return operators, nil
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	SetTokenIssuer(func(operator internaljwt.Operator, role internaljwt.Role, validUntil int64) (internaljwt.TokenResponse, error) {
		return internaljwt.TokenResponse{
			AccessToken:  "access-" + operator.Email,
			RefreshToken: "refresh-" + operator.Email,
		}, nil
	})
	t.Cleanup(func() { SetTokenIssuer(nil) })

	return NewWithRepository(newMemoryRepository(), func() time.Time {
		return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	})
}

func TestRegisterAndLogin(t *testing.T) {
	service := newTestService(t)

	result, err := service.Register(context.Background(), RegisterParams{
		Email:    "Alice@Example.com",
		Name:     "Alice",
		Password: "s3cret-pass",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.Operator.Email != "alice@example.com" {
		t.Fatalf("expected normalized email, got %q", result.Operator.Email)
	}
	if result.Operator.Role != model.OperatorRoleOperator {
		t.Fatalf("expected default role operator, got %q", result.Operator.Role)
	}
	if result.Operator.PasswordHash == "s3cret-pass" || result.Operator.PasswordHash == "" {
		t.Fatalf("expected password to be hashed")
	}
	if result.Tokens.AccessToken == "" {
		t.Fatalf("expected tokens to be issued")
	}

	login, err := service.Login(context.Background(), LoginParams{
		Email:    "alice@example.com",
		Password: "s3cret-pass",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if login.Operator.OperatorID != result.Operator.OperatorID {
		t.Fatalf("expected same operator")
	}
}

func TestRegisterDuplicateEmailConflicts(t *testing.T) {
	service := newTestService(t)

	params := RegisterParams{Email: "alice@example.com", Name: "Alice", Password: "s3cret-pass"}
	if _, err := service.Register(context.Background(), params); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	_, err := service.Register(context.Background(), params)
	if err == nil {
		t.Fatalf("expected a conflict error")
	}
	authErr, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected *Error, got %T", err)
	}
	if authErr.Code != ErrorCodeConflict {
		t.Fatalf("expected %s, got %s", ErrorCodeConflict, authErr.Code)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	service := newTestService(t)

	if _, err := service.Register(context.Background(), RegisterParams{
		Email:    "alice@example.com",
		Name:     "Alice",
		Password: "s3cret-pass",
	}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	_, err := service.Login(context.Background(), LoginParams{
		Email:    "alice@example.com",
		Password: "wrong",
	})
	if err == nil {
		t.Fatalf("expected an error for wrong password")
	}
	authErr, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected *Error, got %T", err)
	}
	if authErr.Code != ErrorCodeInvalidCredentials {
		t.Fatalf("expected %s, got %s", ErrorCodeInvalidCredentials, authErr.Code)
	}
}

func TestLoginUnknownEmailLooksLikeWrongPassword(t *testing.T) {
	service := newTestService(t)

	_, err := service.Login(context.Background(), LoginParams{
		Email:    "nobody@example.com",
		Password: "whatever",
	})
	if err == nil {
		t.Fatalf("expected an error for unknown email")
	}
	authErr, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected *Error, got %T", err)
	}
	if authErr.Code != ErrorCodeInvalidCredentials {
		t.Fatalf("expected %s, got %s", ErrorCodeInvalidCredentials, authErr.Code)
	}
}

func TestRegisterRejectsUnknownRole(t *testing.T) {
	service := newTestService(t)

	_, err := service.Register(context.Background(), RegisterParams{
		Email:    "alice@example.com",
		Name:     "Alice",
		Password: "s3cret-pass",
		Role:     "superuser",
	})
	if err == nil {
		t.Fatalf("expected an error for unknown role")
	}
	authErr, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected *Error, got %T", err)
	}
	if authErr.Code != ErrorCodeValidation {
		t.Fatalf("expected %s, got %s", ErrorCodeValidation, authErr.Code)
	}
}
