package endpoints

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"kingchat-backend/internal/registry"
)

type AccountEndpoints interface {
	Accounts(http.ResponseWriter, *http.Request) error
	Account(http.ResponseWriter, *http.Request) error
}

type accountEndpoints struct {
	service *registry.Service
	prefix  string
}

func NewAccountEndpoints(service *registry.Service, prefix string) AccountEndpoints {
	return &accountEndpoints{
		service: service,
		prefix:  strings.TrimRight(prefix, "/") + "/accounts/",
	}
}

func (h *accountEndpoints) Accounts(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodGet:  h.handleListAccounts,
		http.MethodPost: h.handleCreateAccount,
	})
}

func (h *accountEndpoints) Account(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodGet:    h.handleGetAccount,
		http.MethodPatch:  h.handleUpdateAccount,
		http.MethodDelete: h.handleDeleteAccount,
	})
}

func (h *accountEndpoints) handleListAccounts(w http.ResponseWriter, r *http.Request) error {
	accounts, err := h.service.ListAccounts(r.Context())
	if err != nil {
		return registryServiceError(err)
	}
	return WriteJSON(w, http.StatusOK, accounts)
}

type createAccountRequest struct {
	Name          string `json:"name"`
	ChannelSecret string `json:"channelSecret"`
	AccessToken   string `json:"accessToken"`
}

func (h *accountEndpoints) handleCreateAccount(w http.ResponseWriter, r *http.Request) error {
	var req createAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return &HTTPError{
			StatusCode: http.StatusBadRequest,
			Message:    "Invalid request payload",
			ErrorLog:   fmt.Errorf("decode create account request: %w", err),
		}
	}

	account, err := h.service.CreateAccount(r.Context(), registry.CreateAccountParams{
		Name:          req.Name,
		ChannelSecret: req.ChannelSecret,
		AccessToken:   req.AccessToken,
	})
	if err != nil {
		return registryServiceError(err)
	}

	return WriteJSON(w, http.StatusCreated, account)
}

func (h *accountEndpoints) handleGetAccount(w http.ResponseWriter, r *http.Request) error {
	accountID, err := h.accountIDFromPath(r)
	if err != nil {
		return err
	}

	account, err := h.service.Resolve(r.Context(), accountID)
	if err != nil {
		return registryServiceError(err)
	}
	return WriteJSON(w, http.StatusOK, account)
}

type updateAccountRequest struct {
	Name        *string `json:"name"`
	AccessToken *string `json:"accessToken"`
	IsActive    *bool   `json:"isActive"`
}

func (h *accountEndpoints) handleUpdateAccount(w http.ResponseWriter, r *http.Request) error {
	accountID, err := h.accountIDFromPath(r)
	if err != nil {
		return err
	}

	var req updateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return &HTTPError{
			StatusCode: http.StatusBadRequest,
			Message:    "Invalid request payload",
			ErrorLog:   fmt.Errorf("decode update account request: %w", err),
		}
	}

	account, err := h.service.UpdateAccount(r.Context(), accountID, registry.UpdateAccountParams{
		Name:        req.Name,
		AccessToken: req.AccessToken,
		IsActive:    req.IsActive,
	})
	if err != nil {
		return registryServiceError(err)
	}

	return WriteJSON(w, http.StatusOK, account)
}

func (h *accountEndpoints) handleDeleteAccount(w http.ResponseWriter, r *http.Request) error {
	accountID, err := h.accountIDFromPath(r)
	if err != nil {
		return err
	}

	if err := h.service.DeleteAccount(r.Context(), accountID); err != nil {
		return registryServiceError(err)
	}
	return WriteJSON(w, http.StatusOK, ApiMessageResponse{Message: "Account deleted"})
}

func (h *accountEndpoints) accountIDFromPath(r *http.Request) (string, error) {
	accountID := strings.Trim(strings.TrimPrefix(r.URL.Path, h.prefix), "/")
	if accountID == "" || strings.Contains(accountID, "/") {
		return "", &HTTPError{
			StatusCode: http.StatusNotFound,
			Message:    "Not found",
			ErrorLog:   fmt.Errorf("account id missing in path %s", r.URL.Path),
		}
	}
	return accountID, nil
}

func registryServiceError(err error) error {
	var regErr *registry.Error
	if !errors.As(err, &regErr) {
		return &HTTPError{
			StatusCode: http.StatusInternalServerError,
			Message:    "Internal server error",
			ErrorLog:   err,
		}
	}

	switch regErr.Code {
	case registry.ErrorCodeValidation:
		return &HTTPError{
			StatusCode: http.StatusBadRequest,
			Message:    regErr.Message,
			ErrorLog:   err,
		}
	case registry.ErrorCodeUnknownAccount:
		return &HTTPError{
			StatusCode: http.StatusNotFound,
			Message:    "Unknown account",
			ErrorLog:   err,
		}
	case registry.ErrorCodeInactiveAccount:
		return &HTTPError{
			StatusCode: http.StatusForbidden,
			Message:    "Account is inactive",
			ErrorLog:   err,
		}
	case registry.ErrorCodeConflict:
		return &HTTPError{
			StatusCode: http.StatusConflict,
			Message:    regErr.Message,
			ErrorLog:   err,
		}
	default:
		return &HTTPError{
			StatusCode: http.StatusInternalServerError,
			Message:    "Internal server error",
			ErrorLog:   err,
		}
	}
}
