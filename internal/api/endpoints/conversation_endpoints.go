package endpoints

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"kingchat-backend/internal/dispatch"
	"kingchat-backend/internal/hub"
	"kingchat-backend/internal/store"
)

type ConversationEndpoints interface {
	Conversations(http.ResponseWriter, *http.Request) error
	Conversation(http.ResponseWriter, *http.Request) error
	Send(http.ResponseWriter, *http.Request) error
	Websocket(http.ResponseWriter, *http.Request) error
}

type ConversationPaths struct {
	ConversationsPath  string
	ConversationPrefix string
	SendPath           string
	WebsocketPath      string
}

type conversationEndpoints struct {
	store    *store.Service
	dispatch *dispatch.Service
	hub      *hub.Hub
	paths    ConversationPaths
}

func NewConversationEndpoints(storeService *store.Service, dispatchService *dispatch.Service, liveHub *hub.Hub, prefix string) ConversationEndpoints {
	base := strings.TrimRight(prefix, "/")
	return &conversationEndpoints{
		store:    storeService,
		dispatch: dispatchService,
		hub:      liveHub,
		paths: ConversationPaths{
			ConversationsPath:  base + "/conversations",
			ConversationPrefix: base + "/conversations/",
			SendPath:           base + "/messages",
			WebsocketPath:      base + "/ws",
		},
	}
}

func (h *conversationEndpoints) Conversations(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodGet: h.handleListConversations,
	})
}

// Conversation serves the per-conversation subresources: the message
// replay, operator notes and the display name.
func (h *conversationEndpoints) Conversation(w http.ResponseWriter, r *http.Request) error {
	trimmed := strings.TrimRight(r.URL.Path, "/")
	switch {
	case strings.HasSuffix(trimmed, "/messages"):
		return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
			http.MethodGet: h.handleReplay,
		})
	case strings.HasSuffix(trimmed, "/notes"):
		return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
			http.MethodPut: h.handleSetNotes,
		})
	case strings.HasSuffix(trimmed, "/name"):
		return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
			http.MethodPut: h.handleRename,
		})
	default:
		return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
			http.MethodGet: h.handleGetConversation,
		})
	}
}

func (h *conversationEndpoints) Send(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodPost: h.handleSend,
	})
}

// Websocket upgrades the console connection. Focus and send commands
// arrive over the socket itself; the operator identity is taken from the
// already validated access token.
func (h *conversationEndpoints) Websocket(w http.ResponseWriter, r *http.Request) error {
	identity, err := OperatorFromRequest(r)
	if err != nil {
		return &HTTPError{
			StatusCode: http.StatusUnauthorized,
			Message:    "Unauthorized",
			ErrorLog:   err,
		}
	}

	h.hub.ServeSession(w, r, identity, h.dispatch)
	return nil
}

func (h *conversationEndpoints) handleListConversations(w http.ResponseWriter, r *http.Request) error {
	accountID := r.URL.Query().Get("accountId")
	limit := parseLimit(r, 0)

	conversations, err := h.store.ListConversations(r.Context(), accountID, limit)
	if err != nil {
		return storeServiceError(err)
	}
	return WriteJSON(w, http.StatusOK, conversations)
}

func (h *conversationEndpoints) handleGetConversation(w http.ResponseWriter, r *http.Request) error {
	conversationPK, err := h.conversationFromPath(r.URL.Path, "")
	if err != nil {
		return err
	}

	conversation, err := h.store.Get(r.Context(), conversationPK)
	if err != nil {
		return storeServiceError(err)
	}
	return WriteJSON(w, http.StatusOK, conversation)
}

func (h *conversationEndpoints) handleReplay(w http.ResponseWriter, r *http.Request) error {
	conversationPK, err := h.conversationFromPath(r.URL.Path, "/messages")
	if err != nil {
		return err
	}

	messages, err := h.store.Replay(r.Context(), conversationPK, parseLimit(r, 0))
	if err != nil {
		return storeServiceError(err)
	}
	return WriteJSON(w, http.StatusOK, messages)
}

type notesRequest struct {
	Notes string `json:"notes"`
}

func (h *conversationEndpoints) handleSetNotes(w http.ResponseWriter, r *http.Request) error {
	conversationPK, err := h.conversationFromPath(r.URL.Path, "/notes")
	if err != nil {
		return err
	}

	var req notesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return &HTTPError{
			StatusCode: http.StatusBadRequest,
			Message:    "Invalid request payload",
			ErrorLog:   fmt.Errorf("decode notes request: %w", err),
		}
	}

	conversation, err := h.store.SetNotes(r.Context(), conversationPK, req.Notes)
	if err != nil {
		return storeServiceError(err)
	}
	return WriteJSON(w, http.StatusOK, conversation)
}

type renameRequest struct {
	DisplayName string `json:"displayName"`
}

func (h *conversationEndpoints) handleRename(w http.ResponseWriter, r *http.Request) error {
	conversationPK, err := h.conversationFromPath(r.URL.Path, "/name")
	if err != nil {
		return err
	}

	var req renameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return &HTTPError{
			StatusCode: http.StatusBadRequest,
			Message:    "Invalid request payload",
			ErrorLog:   fmt.Errorf("decode rename request: %w", err),
		}
	}

	conversation, err := h.store.Rename(r.Context(), conversationPK, req.DisplayName)
	if err != nil {
		return storeServiceError(err)
	}
	return WriteJSON(w, http.StatusOK, conversation)
}

type sendRequest struct {
	AccountID  string `json:"accountId"`
	CustomerID string `json:"customerId"`
	Text       string `json:"text"`
}

func (h *conversationEndpoints) handleSend(w http.ResponseWriter, r *http.Request) error {
	identity, err := OperatorFromRequest(r)
	if err != nil {
		return &HTTPError{
			StatusCode: http.StatusUnauthorized,
			Message:    "Unauthorized",
			ErrorLog:   err,
		}
	}

	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return &HTTPError{
			StatusCode: http.StatusBadRequest,
			Message:    "Invalid request payload",
			ErrorLog:   fmt.Errorf("decode send request: %w", err),
		}
	}

	message, err := h.dispatch.Send(r.Context(), dispatch.SendParams{
		AccountID:  req.AccountID,
		CustomerID: req.CustomerID,
		Operator:   identity,
		Text:       req.Text,
	})
	if err != nil {
		return dispatchServiceError(err)
	}

	return WriteJSON(w, http.StatusCreated, message)
}

func (h *conversationEndpoints) conversationFromPath(urlPath, suffix string) (string, error) {
	conversationPK := strings.TrimPrefix(urlPath, h.paths.ConversationPrefix)
	if suffix != "" {
		conversationPK = strings.TrimSuffix(strings.TrimRight(conversationPK, "/"), suffix)
	}
	conversationPK = strings.Trim(conversationPK, "/")
	if conversationPK == "" {
		return "", &HTTPError{
			StatusCode: http.StatusNotFound,
			Message:    "Conversation not found",
			ErrorLog:   fmt.Errorf("conversation id missing in path %s", urlPath),
		}
	}
	return conversationPK, nil
}

func parseLimit(r *http.Request, fallback int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return fallback
	}
	return limit
}

func storeServiceError(err error) error {
	var storeErr *store.Error
	if !errors.As(err, &storeErr) {
		return &HTTPError{
			StatusCode: http.StatusInternalServerError,
			Message:    "Internal server error",
			ErrorLog:   err,
		}
	}

	switch storeErr.Code {
	case store.ErrorCodeValidation:
		return &HTTPError{
			StatusCode: http.StatusBadRequest,
			Message:    storeErr.Message,
			ErrorLog:   err,
		}
	case store.ErrorCodeNotFound:
		return &HTTPError{
			StatusCode: http.StatusNotFound,
			Message:    "Conversation not found",
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

func dispatchServiceError(err error) error {
	var dispatchErr *dispatch.Error
	if !errors.As(err, &dispatchErr) {
		return &HTTPError{
			StatusCode: http.StatusInternalServerError,
			Message:    "Internal server error",
			ErrorLog:   err,
		}
	}

	switch dispatchErr.Code {
	case dispatch.ErrorCodeValidation:
		return &HTTPError{
			StatusCode: http.StatusBadRequest,
			Message:    dispatchErr.Message,
			ErrorLog:   err,
		}
	case dispatch.ErrorCodeUnknownAccount:
		return &HTTPError{
			StatusCode: http.StatusNotFound,
			Message:    "Unknown account",
			ErrorLog:   err,
		}
	case dispatch.ErrorCodeInactiveAccount:
		return &HTTPError{
			StatusCode: http.StatusForbidden,
			Message:    "Account is inactive",
			ErrorLog:   err,
		}
	case dispatch.ErrorCodeDeliveryRejected:
		return &HTTPError{
			StatusCode: http.StatusBadGateway,
			Message:    "Platform rejected the message",
			ErrorLog:   err,
		}
	case dispatch.ErrorCodeDeliveryTimeout:
		return &HTTPError{
			StatusCode: http.StatusGatewayTimeout,
			Message:    "Delivery timed out",
			ErrorLog:   err,
		}
	case dispatch.ErrorCodeDeliveryFailed:
		return &HTTPError{
			StatusCode: http.StatusBadGateway,
			Message:    "Failed to deliver message",
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
