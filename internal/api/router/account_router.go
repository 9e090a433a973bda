package router

import (
	"net/http"

	"kingchat-backend/internal/api"
	"kingchat-backend/internal/api/endpoints"
	"kingchat-backend/internal/api/middleware"
)

// AccountRoutes manages the account registry. Credential changes are an
// admin concern; operators only read.
func AccountRoutes(prefix string) api.RouteRegistrar {
	return func(mux *http.ServeMux, s *api.APIServer) {
		accountEndpoints := endpoints.NewAccountEndpoints(s.Services().Registry, prefix)

		mux.HandleFunc(prefix+"/accounts", s.MakeHTTPHandleFunc(accountEndpoints.Accounts, middleware.ValidateAdminJWT))
		mux.HandleFunc(prefix+"/accounts/", s.MakeHTTPHandleFunc(accountEndpoints.Account, middleware.ValidateAdminJWT))
	}
}
