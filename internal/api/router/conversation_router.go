package router

import (
	"errors"
	"net/http"

	"kingchat-backend/internal/api"
	"kingchat-backend/internal/api/endpoints"
	"kingchat-backend/internal/api/middleware"
)

func ConversationRoutes(prefix string) api.RouteRegistrar {
	return func(mux *http.ServeMux, s *api.APIServer) {
		convEndpoints := endpoints.NewConversationEndpoints(s.Services().Store, s.Services().Dispatch, s.Hub(), prefix)

		mux.HandleFunc(prefix+"/conversations", s.MakeHTTPHandleFunc(convEndpoints.Conversations, middleware.ValidateOperatorJWT))
		mux.HandleFunc(prefix+"/conversations/", s.MakeHTTPHandleFunc(convEndpoints.Conversation, middleware.ValidateOperatorJWT))
		mux.HandleFunc(prefix+"/messages", s.MakeHTTPHandleFunc(convEndpoints.Send, middleware.ValidateOperatorJWT))
	}
}

// ConversationWebsocketRoutes registers the live console socket. It
// bypasses the request queue: sessions are long-lived and would pin a
// worker each.
func ConversationWebsocketRoutes(prefix string) api.RouteRegistrar {
	return func(mux *http.ServeMux, s *api.APIServer) {
		convEndpoints := endpoints.NewConversationEndpoints(s.Services().Store, s.Services().Dispatch, s.Hub(), prefix)

		wsHandler := func(w http.ResponseWriter, r *http.Request) {
			if err := convEndpoints.Websocket(w, r); err != nil {
				var httpErr *api.HTTPError
				if errors.As(err, &httpErr) {
					http.Error(w, httpErr.Message, httpErr.StatusCode)
					return
				}
				http.Error(w, "Internal server error", http.StatusInternalServerError)
			}
		}
		mux.HandleFunc(prefix+"/ws", middleware.Chain(wsHandler, middleware.Logging(), middleware.ValidateOperatorJWT))
	}
}
