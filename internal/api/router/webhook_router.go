package router

import (
	"net/http"

	"kingchat-backend/internal/api"
	"kingchat-backend/internal/api/endpoints"
)

// WebhookRoutes serves the public inbound surface. No auth middleware:
// deliveries authenticate with the per-account signature instead.
func WebhookRoutes(prefix string) api.RouteRegistrar {
	return func(mux *http.ServeMux, s *api.APIServer) {
		webhookEndpoints := endpoints.NewWebhookEndpoints(s.Services().Ingress, prefix)
		mux.HandleFunc(prefix+"/line/", s.MakeHTTPHandleFunc(webhookEndpoints.LineWebhook))
	}
}
