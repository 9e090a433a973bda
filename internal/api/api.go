package api

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"kingchat-backend/internal/auth"
	"kingchat-backend/internal/database"
	"kingchat-backend/internal/dispatch"
	"kingchat-backend/internal/hub"
	"kingchat-backend/internal/ingress"
	"kingchat-backend/internal/queue"
	"kingchat-backend/internal/registry"
	"kingchat-backend/internal/store"
)

type RouteRegistrar func(mux *http.ServeMux, s *APIServer)

// Services bundles the wired service graph. Assembled once in main so
// both servers share a single store/notifier wiring.
type Services struct {
	Registry *registry.Service
	Store    *store.Service
	Ingress  *ingress.Service
	Dispatch *dispatch.Service
	Auth     *auth.Service
}

type APIServer struct {
	listenAddr          string
	requestQueueManager *queue.RequestQueueManager
	db                  *database.Database
	services            Services
	hub                 *hub.Hub
	routeRegistrars     []RouteRegistrar
	metrics             *metrics
}

func NewAPIServer(listenAddr string, rqm *queue.RequestQueueManager, db *database.Database, services Services, liveHub *hub.Hub, registrars ...RouteRegistrar) *APIServer {
	return &APIServer{
		listenAddr:          listenAddr,
		requestQueueManager: rqm,
		db:                  db,
		services:            services,
		hub:                 liveHub,
		routeRegistrars:     registrars,
		metrics:             newMetrics(prometheus.DefaultRegisterer, listenAddr, rqm),
	}
}

func (s *APIServer) Run() {
	mux := http.NewServeMux()

	for _, reg := range s.routeRegistrars {
		reg(mux, s)
	}

	mux.Handle("/metrics", s.metrics.metricsHandler())

	fmt.Printf("Server listening on http://localhost%s\n", s.listenAddr)

	if err := http.ListenAndServe(s.listenAddr, s.metrics.instrument(mux)); err != nil {
		fmt.Printf("server stopped: %v\n", err)
	}
}

func (s *APIServer) Database() *database.Database {
	return s.db
}

func (s *APIServer) Services() Services {
	return s.services
}

func (s *APIServer) Hub() *hub.Hub {
	return s.hub
}
