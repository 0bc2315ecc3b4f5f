package handlers

import (
	"errors"
	"net/http"

	"github.com/selfmodel/mirror/internal/ledger"
	"github.com/selfmodel/mirror/internal/service"
)

type ModelHandler struct {
	model *service.ModelService
}

func NewModelHandler(model *service.ModelService) *ModelHandler {
	return &ModelHandler{model: model}
}

func (h *ModelHandler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.model.Snapshot())
}

func (h *ModelHandler) Rebuild(w http.ResponseWriter, r *http.Request) {
	if err := h.model.Rebuild(r.Context()); err != nil {
		var integrity *ledger.IntegrityError
		if errors.As(err, &integrity) {
			// A corrupted chain halts the rebuild rather than producing a
			// plausible but wrong snapshot.
			writeError(w, http.StatusConflict, integrity.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to rebuild self-model")
		return
	}

	writeJSON(w, http.StatusOK, h.model.Snapshot())
}

type checkpointResponse struct {
	Emitted bool `json:"emitted"`
}

func (h *ModelHandler) Checkpoint(w http.ResponseWriter, r *http.Request) {
	emitted, err := h.model.Checkpoint(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to emit checkpoint")
		return
	}
	writeJSON(w, http.StatusOK, checkpointResponse{Emitted: emitted})
}
