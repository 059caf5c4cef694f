package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/user/tenant-provisioner/internal/domain"
)

// QueueAdminHandler exposes read-only introspection of the provisioning job
// queue for operators.
type QueueAdminHandler struct {
	admin  domain.JobQueueAdmin
	logger *slog.Logger
}

// NewQueueAdminHandler creates a new QueueAdminHandler.
func NewQueueAdminHandler(admin domain.JobQueueAdmin, logger *slog.Logger) *QueueAdminHandler {
	return &QueueAdminHandler{admin: admin, logger: logger}
}

// HealthCheck is a simple health check endpoint.
func (h *QueueAdminHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// GetGroupInfo lists the consumer groups on the job stream.
// GET /admin/queue/groups
func (h *QueueAdminHandler) GetGroupInfo(w http.ResponseWriter, r *http.Request) {
	groups, err := h.admin.GetGroupInfo(r.Context())
	if err != nil {
		h.logger.Error("failed to get group info", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	respondWithJSON(w, h.logger, http.StatusOK, groups)
}

// GetConsumerInfo lists the workers of one consumer group.
// GET /admin/queue/groups/{groupName}/consumers
func (h *QueueAdminHandler) GetConsumerInfo(w http.ResponseWriter, r *http.Request) {
	groupName := r.PathValue("groupName")

	consumers, err := h.admin.GetConsumerInfo(r.Context(), groupName)
	if err != nil {
		h.logger.Error("failed to get consumer info", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	respondWithJSON(w, h.logger, http.StatusOK, consumers)
}

// GetPendingSummary summarizes delivered-but-unacknowledged jobs of a group.
// GET /admin/queue/groups/{groupName}/pending
func (h *QueueAdminHandler) GetPendingSummary(w http.ResponseWriter, r *http.Request) {
	groupName := r.PathValue("groupName")

	summary, err := h.admin.GetPendingSummary(r.Context(), groupName)
	if err != nil {
		h.logger.Error("failed to get pending summary", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	respondWithJSON(w, h.logger, http.StatusOK, summary)
}
