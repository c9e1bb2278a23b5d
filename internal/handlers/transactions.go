package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"podcred/internal/db"
)

const defaultTransactionLimit = 50

// GetTransaction returns the ledger row for a submitted transaction.
// GET /api/v1/transactions/{hash}
func (a *API) GetTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := a.ledger.Get(r.Context(), chi.URLParam(r, "hash"))
	if errors.Is(err, db.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Not_Found", "transaction not found")
		return
	} else if err != nil {
		a.logger.Error("Ledger lookup failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Server_Error", "database error")
		return
	}
	writeJSONResp(w, http.StatusOK, tx)
}

// ListTransactions returns the newest ledger rows, optionally for one
// signer.
// GET /api/v1/transactions?signer=&limit= (protected)
func (a *API) ListTransactions(w http.ResponseWriter, r *http.Request) {
	limit := defaultTransactionLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > 500 {
			badRequest(w, "limit must be between 1 and 500")
			return
		}
		limit = n
	}

	txs, err := a.ledger.List(r.Context(), r.URL.Query().Get("signer"), limit)
	if err != nil {
		a.logger.Error("Ledger list failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Server_Error", "database error")
		return
	}
	writeJSONResp(w, http.StatusOK, map[string]any{"count": len(txs), "transactions": txs})
}
