package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jialuechen/genmarket/internal/domain"
	"github.com/jialuechen/genmarket/internal/service"
)

// maxDocumentBytes bounds the accepted configuration document size.
const maxDocumentBytes = 1 << 20

// SimulationHandler handles HTTP requests for simulation endpoints.
type SimulationHandler struct {
	svc *service.SimulationService
}

// NewSimulationHandler creates a new SimulationHandler.
func NewSimulationHandler(svc *service.SimulationService) *SimulationHandler {
	return &SimulationHandler{svc: svc}
}

// Create handles POST /simulations. The body is one configuration
// document (YAML or JSON); the batch runs synchronously and the per-run
// results come back ordered by run index.
func (h *SimulationHandler) Create(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxDocumentBytes))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", "failed to read request body")
		return
	}

	outcome, err := h.svc.RunDocument(r.Context(), body)
	if err != nil {
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			WriteError(w, http.StatusBadRequest, "validation_error", ve.Error())
			return
		}
		WriteError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}

	WriteJSON(w, http.StatusCreated, outcome)
}

// Get handles GET /simulations/{batch_id}, reading an archived batch.
func (h *SimulationHandler) Get(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "batch_id")

	results, err := h.svc.GetBatch(r.Context(), batchID)
	if err != nil {
		if errors.Is(err, domain.ErrBatchNotFound) {
			WriteError(w, http.StatusNotFound, "batch_not_found", "no archived batch with that id")
			return
		}
		WriteError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, service.BatchOutcome{BatchID: batchID, Results: results})
}
