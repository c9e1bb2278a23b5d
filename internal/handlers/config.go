package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"podcred/internal/issuance"
)

// GetConfig returns the public chain settings a client needs to talk to the
// same contracts.
// GET /api/v1/config
func (a *API) GetConfig(w http.ResponseWriter, r *http.Request) {
	out := map[string]any{
		"chain_id":                 a.cfg.Chain.ChainID,
		"contracts":                a.cfg.Contracts,
		"walletconnect_project_id": a.cfg.WalletConnectProjectID,
		"explorer_tx_url":          a.cfg.ExplorerTxURL,
		"frontend_base_url":        a.cfg.FrontendBaseURL,
		"max_batch_size":           issuance.MaxBatchSize,
	}
	if signer, ok := a.Signer(); ok {
		out["signer"] = signer
	}

	if info, err := a.queries.TokenInfo(r.Context()); err != nil {
		a.logger.Debug("Token info unavailable", zap.Error(err))
	} else {
		out["token"] = info
	}

	writeJSONResp(w, http.StatusOK, out)
}
