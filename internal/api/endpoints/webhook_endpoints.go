package endpoints

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"kingchat-backend/internal/ingress"
)

const maxWebhookBody = 1 << 20

type WebhookEndpoints interface {
	LineWebhook(http.ResponseWriter, *http.Request) error
}

type webhookEndpoints struct {
	service *ingress.Service
	prefix  string
}

func NewWebhookEndpoints(service *ingress.Service, prefix string) WebhookEndpoints {
	return &webhookEndpoints{
		service: service,
		prefix:  strings.TrimRight(prefix, "/") + "/line/",
	}
}

func (h *webhookEndpoints) LineWebhook(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodPost: h.handleLineWebhook,
	})
}

func (h *webhookEndpoints) handleLineWebhook(w http.ResponseWriter, r *http.Request) error {
	accountID := strings.Trim(strings.TrimPrefix(r.URL.Path, h.prefix), "/")
	if accountID == "" || strings.Contains(accountID, "/") {
		return &HTTPError{
			StatusCode: http.StatusNotFound,
			Message:    "Not found",
			ErrorLog:   fmt.Errorf("webhook account id missing in path %s", r.URL.Path),
		}
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		return &HTTPError{
			StatusCode: http.StatusBadRequest,
			Message:    "Invalid request payload",
			ErrorLog:   fmt.Errorf("read webhook body: %w", err),
		}
	}

	result, err := h.service.Handle(r.Context(), accountID, body, r.Header.Get("X-Line-Signature"))
	if err != nil {
		return h.serviceError(err)
	}

	return WriteJSON(w, http.StatusOK, result)
}

func (h *webhookEndpoints) serviceError(err error) error {
	var ingressErr *ingress.Error
	if !errors.As(err, &ingressErr) {
		return &HTTPError{
			StatusCode: http.StatusInternalServerError,
			Message:    "Internal server error",
			ErrorLog:   err,
		}
	}

	switch ingressErr.Code {
	case ingress.ErrorCodeUnknownAccount:
		return &HTTPError{
			StatusCode: http.StatusNotFound,
			Message:    "Unknown account",
			ErrorLog:   err,
		}
	case ingress.ErrorCodeInactiveAccount:
		return &HTTPError{
			StatusCode: http.StatusForbidden,
			Message:    "Account is inactive",
			ErrorLog:   err,
		}
	case ingress.ErrorCodeAuthenticationFailed:
		return &HTTPError{
			StatusCode: http.StatusUnauthorized,
			Message:    "Unauthorized",
			ErrorLog:   err,
		}
	case ingress.ErrorCodeMalformedBody:
		return &HTTPError{
			StatusCode: http.StatusBadRequest,
			Message:    "Invalid request payload",
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
