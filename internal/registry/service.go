package registry

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"kingchat-backend/internal/database"
	"kingchat-backend/internal/model"
)

var ErrConflict = errors.New("account repository: already exists")

type ErrorCode string

const (
	ErrorCodeValidation      ErrorCode = "validation_error"
	ErrorCodeUnknownAccount  ErrorCode = "unknown_account"
	ErrorCodeInactiveAccount ErrorCode = "inactive_account"
	ErrorCodeConflict        ErrorCode = "conflict"
	ErrorCodeInternal        ErrorCode = "internal_error"
)

type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code ErrorCode, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// resolveTTL bounds how long a resolved account may be served from the
// in-process cache. Local mutations invalidate immediately; mutations
// made by another process (the admin server deactivating an OA while the
// webhook server keeps receiving traffic for it) converge within this
// window.
const resolveTTL = 30 * time.Second

type cacheEntry struct {
	account model.AccountItem
	expires time.Time
}

// Service is the account registry: the set of configured LINE Official
// Accounts and their credentials. Steady-state traffic only reads it, so
// resolved accounts are cached in-process with a short TTL and the cache
// is dropped on any local administrative mutation.
type Service struct {
	repo Repository
	now  func() time.Time

	mu    sync.RWMutex
	cache map[string]cacheEntry
}

func New(db *database.Database) *Service {
	return NewWithRepository(NewDynamoRepository(db), time.Now)
}

func NewWithRepository(repo Repository, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo:  repo,
		now:   now,
		cache: make(map[string]cacheEntry),
	}
}

// Resolve returns the account or an unknown_account error. It never
// reports whether the failure was lookup or storage detail to webhook
// callers; they only see a rejected operation.
func (s *Service) Resolve(ctx context.Context, accountID string) (model.AccountItem, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return model.AccountItem{}, newError(ErrorCodeUnknownAccount, "unknown account", nil)
	}

	s.mu.RLock()
	cached, ok := s.cache[accountID]
	s.mu.RUnlock()
	if ok && s.now().Before(cached.expires) {
		return cached.account, nil
	}

	account, err := s.repo.GetAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return model.AccountItem{}, newError(ErrorCodeUnknownAccount, "unknown account", err)
		}
		return model.AccountItem{}, newError(ErrorCodeInternal, "failed to load account", err)
	}

	s.mu.Lock()
	s.cache[accountID] = cacheEntry{account: account, expires: s.now().Add(resolveTTL)}
	s.mu.Unlock()

	return account, nil
}

// ResolveActive resolves the account and additionally rejects disabled
// ones with inactive_account.
func (s *Service) ResolveActive(ctx context.Context, accountID string) (model.AccountItem, error) {
	account, err := s.Resolve(ctx, accountID)
	if err != nil {
		return model.AccountItem{}, err
	}
	if !account.IsActive {
		return model.AccountItem{}, newError(ErrorCodeInactiveAccount, "account is inactive", nil)
	}
	return account, nil
}

func (s *Service) IsActive(ctx context.Context, accountID string) bool {
	account, err := s.Resolve(ctx, accountID)
	return err == nil && account.IsActive
}

type CreateAccountParams struct {
	Name          string
	ChannelSecret string
	AccessToken   string
}

func (s *Service) CreateAccount(ctx context.Context, params CreateAccountParams) (model.AccountItem, error) {
	name := strings.TrimSpace(params.Name)
	channelSecret := strings.TrimSpace(params.ChannelSecret)
	accessToken := strings.TrimSpace(params.AccessToken)

	if name == "" || channelSecret == "" || accessToken == "" {
		return model.AccountItem{}, newError(ErrorCodeValidation, "name, channelSecret and accessToken are required", nil)
	}

	now := s.now().UTC().Format(time.RFC3339)
	account := model.AccountItem{
		AccountID:     uuid.NewString(),
		Name:          name,
		ChannelSecret: channelSecret,
		AccessToken:   accessToken,
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.repo.CreateAccount(ctx, account); err != nil {
		if errors.Is(err, ErrConflict) {
			return model.AccountItem{}, newError(ErrorCodeConflict, "account already exists", err)
		}
		return model.AccountItem{}, newError(ErrorCodeInternal, "failed to create account", err)
	}

	return account, nil
}

type UpdateAccountParams struct {
	Name        *string
	AccessToken *string
	IsActive    *bool
}

func (s *Service) UpdateAccount(ctx context.Context, accountID string, params UpdateAccountParams) (model.AccountItem, error) {
	account, err := s.Resolve(ctx, accountID)
	if err != nil {
		return model.AccountItem{}, err
	}

	if params.Name != nil {
		name := strings.TrimSpace(*params.Name)
		if name == "" {
			return model.AccountItem{}, newError(ErrorCodeValidation, "name cannot be empty", nil)
		}
		account.Name = name
	}
	if params.AccessToken != nil {
		token := strings.TrimSpace(*params.AccessToken)
		if token == "" {
			return model.AccountItem{}, newError(ErrorCodeValidation, "accessToken cannot be empty", nil)
		}
		account.AccessToken = token
	}
	if params.IsActive != nil {
		account.IsActive = *params.IsActive
	}
	account.UpdatedAt = s.now().UTC().Format(time.RFC3339)

	if err := s.repo.PutAccount(ctx, account); err != nil {
		return model.AccountItem{}, newError(ErrorCodeInternal, "failed to update account", err)
	}

	s.invalidate(accountID)
	return account, nil
}

func (s *Service) DeleteAccount(ctx context.Context, accountID string) error {
	if _, err := s.Resolve(ctx, accountID); err != nil {
		return err
	}
	if err := s.repo.DeleteAccount(ctx, accountID); err != nil {
		return newError(ErrorCodeInternal, "failed to delete account", err)
	}
	s.invalidate(accountID)
	return nil
}

func (s *Service) ListAccounts(ctx context.Context) ([]model.AccountItem, error) {
	accounts, err := s.repo.ListAccounts(ctx)
	if err != nil {
		return nil, newError(ErrorCodeInternal, "failed to list accounts", err)
	}
	return accounts, nil
}

func (s *Service) invalidate(accountID string) {
	s.mu.Lock()
	delete(s.cache, accountID)
	s.mu.Unlock()
}
