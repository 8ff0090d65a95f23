package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/projectaudit/engine/internal/api/types"
	"github.com/projectaudit/engine/internal/queue/tasks"
)

// RebuildEnqueuer queues a pairwise rebuild and returns the task id.
type RebuildEnqueuer interface {
	EnqueueRebuild(ctx context.Context, facultyEmail string) (string, error)
}

type SimilarityHandler struct {
	status    types.SimilarityStatus
	enqueuer  RebuildEnqueuer
	rebuilder tasks.Rebuilder
}

// NewSimilarityHandler serves the scorer status and rebuild requests. With a
// nil enqueuer rebuilds run inline on the request.
func NewSimilarityHandler(status types.SimilarityStatus, enqueuer RebuildEnqueuer, rebuilder tasks.Rebuilder) *SimilarityHandler {
	return &SimilarityHandler{status: status, enqueuer: enqueuer, rebuilder: rebuilder}
}

func (h *SimilarityHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, types.APIResponse{Success: true, Data: h.status})
}

func (h *SimilarityHandler) Rebuild(w http.ResponseWriter, r *http.Request) {
	email, ok := ownEmailParam(w, r)
	if !ok {
		return
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		writeErrorStr(w, http.StatusBadRequest, "faculty email is required")
		return
	}

	if h.enqueuer != nil {
		id, err := h.enqueuer.EnqueueRebuild(r.Context(), email)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusAccepted, types.APIResponse{Success: true, Data: map[string]string{"task_id": id}})
		return
	}

	n, err := h.rebuilder.RebuildPairwise(r.Context(), email)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types.APIResponse{Success: true, Data: map[string]int{"pairs": n}})
}
