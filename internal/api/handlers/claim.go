package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/selfmodel/mirror/internal/domain"
	"github.com/selfmodel/mirror/internal/service"
)

type ClaimHandler struct {
	model *service.ModelService
}

func NewClaimHandler(model *service.ModelService) *ClaimHandler {
	return &ClaimHandler{model: model}
}

type listClaimsResponse struct {
	Claims []domain.Claim `json:"claims"`
	Count  int            `json:"count"`
}

func (h *ClaimHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := h.model.Claims()
	if claims == nil {
		claims = []domain.Claim{}
	}
	writeJSON(w, http.StatusOK, listClaimsResponse{Claims: claims, Count: len(claims)})
}

func (h *ClaimHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "claim id is required")
		return
	}

	claim, ok := h.model.ClaimByID(id)
	if !ok {
		writeError(w, http.StatusNotFound, "claim not found")
		return
	}

	writeJSON(w, http.StatusOK, claim)
}
