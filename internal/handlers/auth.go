package handlers

import (
	"errors"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"podcred/internal/auth"
	"podcred/internal/status"
)

type nonceReq struct {
	Address string `json:"address" validate:"required,eth_addr"`
}

type loginReq struct {
	Address   string `json:"address" validate:"required,eth_addr"`
	Signature string `json:"signature" validate:"required"`
}

// GetNonce issues a one-time login challenge.
// POST /api/v1/auth/nonce
func (a *API) GetNonce(w http.ResponseWriter, r *http.Request) {
	var body nonceReq
	if !a.decodeBody(w, r, &body, false) {
		return
	}

	ch, err := a.auth.Challenge(r.Context(), common.HexToAddress(body.Address))
	if err != nil {
		a.logger.Error("Failed to create nonce", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Server_Error", "failed to create nonce")
		return
	}
	writeJSONResp(w, http.StatusOK, ch)
}

// Login exchanges a signed challenge for a session token.
// POST /api/v1/auth/login
func (a *API) Login(w http.ResponseWriter, r *http.Request) {
	var body loginReq
	if !a.decodeBody(w, r, &body, false) {
		return
	}

	addr := common.HexToAddress(body.Address)
	token, err := a.auth.Login(r.Context(), addr, body.Signature)
	switch {
	case errors.Is(err, auth.ErrNonceNotFound),
		errors.Is(err, auth.ErrInvalidSignature),
		errors.Is(err, auth.ErrAddressMismatch):
		writeError(w, http.StatusUnauthorized, "Unauthorized", err.Error())
		return
	case err != nil:
		a.logger.Error("Login failed", zap.String("address", addr.Hex()), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Server_Error", "failed to create token")
		return
	}

	writeJSONResp(w, http.StatusOK, map[string]any{
		"token":   token,
		"address": addr.Hex(),
	})
}

// AuthMe returns the session wallet's roles and derived account type.
// GET /api/v1/auth/me (protected)
func (a *API) AuthMe(w http.ResponseWriter, r *http.Request) {
	addr, ok := sessionAddress(w, r)
	if !ok {
		return
	}

	var (
		isAdmin bool
		st      status.Status
	)
	group, gctx := errgroup.WithContext(r.Context())
	group.Go(func() (err error) {
		isAdmin, err = a.queries.HasAdminRole(gctx, addr)
		return
	})
	group.Go(func() (err error) {
		st, err = a.checker.Check(gctx, addr)
		return
	})
	if err := group.Wait(); err != nil {
		a.writeFailure(w, r, err)
		return
	}

	accountType := "student"
	if isAdmin {
		accountType = "admin"
	} else if st.State != status.Unregistered {
		accountType = "university"
	}

	operator, _ := a.Signer()
	writeJSONResp(w, http.StatusOK, map[string]any{
		"address":      addr.Hex(),
		"account_type": accountType,
		"is_admin":     isAdmin,
		"is_operator":  operator != "" && equalCaseInsensitive(operator, addr.Hex()),
		"university":   st,
	})
}
