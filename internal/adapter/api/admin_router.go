package api

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/user/tenant-provisioner/internal/adapter/api/handler"
	"github.com/user/tenant-provisioner/internal/domain"
)

// NewAdminRouter creates the HTTP router for the operational surface: queue
// introspection and Prometheus metrics. It is meant to be bound to an
// internal-only listen address.
func NewAdminRouter(queueAdmin domain.JobQueueAdmin, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()
	adminHandler := handler.NewQueueAdminHandler(queueAdmin, logger)

	mux.HandleFunc("GET /health", adminHandler.HealthCheck)

	// Queue introspection
	mux.HandleFunc("GET /admin/queue/groups", adminHandler.GetGroupInfo)
	mux.HandleFunc("GET /admin/queue/groups/{groupName}/consumers", adminHandler.GetConsumerInfo)
	mux.HandleFunc("GET /admin/queue/groups/{groupName}/pending", adminHandler.GetPendingSummary)

	mux.Handle("GET /metrics", promhttp.Handler())

	return mux
}
