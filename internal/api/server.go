package api

import (
	"net/http"

	"github.com/darmiel/insurelink/internal/api/middleware"
	"github.com/darmiel/insurelink/internal/audit"
	"github.com/darmiel/insurelink/internal/registry"
	"github.com/darmiel/insurelink/internal/tasks"
)

type Server struct {
	registry    *registry.Registry
	taskManager *tasks.Manager
	audits      audit.Reader
}

// NewServer exposes reg over HTTP. audits may be nil if the configured auditor cannot be
// queried.
func NewServer(reg *registry.Registry, taskManager *tasks.Manager, audits audit.Reader) *Server {
	return &Server{
		registry:    reg,
		taskManager: taskManager,
		audits:      audits,
	}
}

func (s *Server) Routes(adminSigningKey []byte) http.Handler {
	mux := http.NewServeMux()

	// public routes
	mux.HandleFunc("GET "+HealthCheckRoute, s.handleHealth)
	mux.HandleFunc("GET "+AboutRoute, s.handleAbout)

	// provider operations
	mux.HandleFunc("GET "+ProvidersRoute, s.handleListProviders)
	mux.HandleFunc("GET "+ProviderRoute, s.handleGetProvider)
	mux.HandleFunc("POST "+AuthRoute, s.handleAuthenticate)
	mux.HandleFunc("GET "+AuthRoute, s.handleTokenInfo)
	mux.HandleFunc("DELETE "+AuthRoute, s.handleRevoke)
	mux.HandleFunc("POST "+RefreshAuthRoute, s.handleRefresh)
	mux.HandleFunc("POST "+ClaimsRoute, s.handleSubmitClaim)
	mux.HandleFunc("GET "+ClaimRoute, s.handleClaimStatus)
	mux.HandleFunc("PUT "+ClaimRoute, s.handleUpdateClaim)
	mux.HandleFunc("POST "+SyncRoute, s.handleSynchronize)
	mux.HandleFunc("GET "+SyncRoute, s.handleSyncStatus)
	mux.HandleFunc("GET "+RetriesRoute, s.handleListRetries)
	mux.HandleFunc("POST "+RetriesRoute, s.handleRetry)
	mux.HandleFunc("GET "+MetricsRoute, s.handleMetrics)
	mux.HandleFunc("GET "+ErrorsRoute, s.handleErrorStats)
	mux.HandleFunc("GET "+ComplianceRoute, s.handleCompliance)

	// admin routes
	adminMux := http.NewServeMux()
	adminMux.HandleFunc("GET "+ListAuditsRoute, s.handleAdminAudit)
	adminMux.HandleFunc("POST "+AdminProvidersRoute, s.handleRegisterProvider)
	adminMux.HandleFunc("DELETE "+AdminProviderRoute, s.handleRemoveProvider)
	adminMux.HandleFunc("GET "+ListTasksRoute, s.handleListTasks)
	adminMux.HandleFunc("POST "+TriggerTaskRoute, s.handleTriggerTask)
	adminMux.HandleFunc("GET "+LogsForTaskRoute, s.handleLogsForTask)
	mux.Handle(AdminParent, middleware.AdminAuth(adminSigningKey)(adminMux))

	return middleware.RecoverMiddleware(
		middleware.CorrelationIDMiddleware(
			middleware.LoggingMiddleware(
				mux)))
}
