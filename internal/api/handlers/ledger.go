package handlers

import (
	"errors"
	"net/http"

	"github.com/selfmodel/mirror/internal/ledger"
)

type LedgerHandler struct {
	ledger *ledger.Ledger
}

func NewLedgerHandler(l *ledger.Ledger) *LedgerHandler {
	return &LedgerHandler{ledger: l}
}

func (h *LedgerHandler) Events(w http.ResponseWriter, r *http.Request) {
	events, err := h.ledger.ReadAll(r.Context())
	if err != nil {
		var integrity *ledger.IntegrityError
		if errors.As(err, &integrity) {
			writeError(w, http.StatusConflict, integrity.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to read ledger")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"count":  len(events),
	})
}

func (h *LedgerHandler) Verify(w http.ResponseWriter, r *http.Request) {
	if err := h.ledger.Verify(r.Context()); err != nil {
		var integrity *ledger.IntegrityError
		if errors.As(err, &integrity) {
			writeJSON(w, http.StatusOK, map[string]any{
				"ok":       false,
				"error":    integrity.Error(),
				"sequence": integrity.Sequence,
			})
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to verify ledger")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
