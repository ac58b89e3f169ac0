package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// setupRoutes configures all HTTP routes for the API server
func (s *Server) setupRoutes() *mux.Router {
	router := mux.NewRouter()

	// Health check endpoint
	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	// API v1 endpoints
	v1 := router.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/chains", s.handleChains).Methods(http.MethodGet)
	v1.HandleFunc("/chains/{name}", s.handleChain).Methods(http.MethodGet)
	v1.HandleFunc("/chains/{name}/validators", s.handleValidators).Methods(http.MethodGet)
	v1.HandleFunc("/chains/{name}/prices", s.handlePrices).Methods(http.MethodGet)
	v1.HandleFunc("/jobs", s.handleJobs).Methods(http.MethodGet)
	v1.HandleFunc("/databases", s.handleDatabases).Methods(http.MethodGet)
	v1.HandleFunc("/refresh/{operation}", s.handleRefresh).Methods(http.MethodPost)

	if s.gatherer != nil {
		router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	return router
}
