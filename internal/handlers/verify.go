package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"podcred/internal/chain"
	"podcred/internal/verify"
)

// writeVerification answers a verification attempt. Lookups that complete
// without a valid diploma are 200 with status Not_Verified; read failures
// are 502, or 503 when the contracts are not configured.
func (a *API) writeVerification(w http.ResponseWriter, res verify.Result, err error, extra map[string]any) {
	var failure *verify.Failure
	switch {
	case errors.Is(err, verify.ErrInvalidID), errors.Is(err, verify.ErrInvalidToken):
		badRequest(w, err.Error())
		return
	case errors.Is(err, chain.ErrNotConfigured):
		writeError(w, http.StatusServiceUnavailable, "Unavailable", err.Error())
		return
	case errors.As(err, &failure) && failure.Message == verify.MsgLookupFailed:
		writeError(w, http.StatusBadGateway, "Chain_Error", failure.Message)
		return
	case errors.As(err, &failure):
		writeJSONResp(w, http.StatusOK, map[string]any{
			"status":  "Not_Verified",
			"valid":   false,
			"message": failure.Message,
		})
		return
	case err != nil:
		a.logger.Warn("Verification failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "Chain_Error", verify.MsgLookupFailed)
		return
	}

	out := map[string]any{
		"status": "Verified",
		"valid":  true,
		"result": res,
	}
	for k, v := range extra {
		out[k] = v
	}
	writeJSONResp(w, http.StatusOK, out)
}

// VerifyDiploma checks a diploma id on chain.
// GET /api/v1/verify/{id}
func (a *API) VerifyDiploma(w http.ResponseWriter, r *http.Request) {
	res, err := a.verifier.Verify(r.Context(), chi.URLParam(r, "id"))
	a.writeVerification(w, res, err, nil)
}

// VerifyToken checks the diploma behind an NFT token id.
// GET /api/v1/verify/token/{tokenId}
func (a *API) VerifyToken(w http.ResponseWriter, r *http.Request) {
	res, err := a.verifier.VerifyToken(r.Context(), chi.URLParam(r, "tokenId"))
	a.writeVerification(w, res, err, nil)
}
