package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/selfmodel/mirror/internal/domain"
	"github.com/selfmodel/mirror/internal/ledger"
	"github.com/selfmodel/mirror/internal/service"
)

type StatementHandler struct {
	svc *service.StatementService
}

func NewStatementHandler(svc *service.StatementService) *StatementHandler {
	return &StatementHandler{svc: svc}
}

type recordStatementRequest struct {
	Kind    string            `json:"kind,omitempty"`
	Content string            `json:"content"`
	Meta    map[string]string `json:"meta,omitempty"`
}

type recordStatementResponse struct {
	Event  *domain.Event  `json:"event"`
	Claims []domain.Claim `json:"claims"`
	Count  int            `json:"count"`
}

func (h *StatementHandler) Record(w http.ResponseWriter, r *http.Request) {
	var req recordStatementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ev, claims, err := h.svc.Record(r.Context(), req.Kind, req.Content, req.Meta)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrStatementContentEmpty),
			errors.Is(err, service.ErrInvalidStatementKind),
			errors.Is(err, ledger.ErrInvalidKind):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to record statement")
		}
		return
	}

	if claims == nil {
		claims = []domain.Claim{}
	}

	writeJSON(w, http.StatusCreated, recordStatementResponse{
		Event:  ev,
		Claims: claims,
		Count:  len(claims),
	})
}
