package handlers

import (
	"net/http"

	"go.uber.org/zap"
)

// RequireAdmin admits sessions whose wallet holds ADMIN_ROLE.
func (a *API) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		addr, ok := sessionAddress(w, r)
		if !ok {
			return
		}
		isAdmin, err := a.queries.HasAdminRole(r.Context(), addr)
		if err != nil {
			a.writeFailure(w, r, err)
			return
		}
		if !isAdmin {
			writeError(w, http.StatusForbidden, "Forbidden", "admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type approveReq struct {
	GrantRole bool `json:"grant_role"`
}

// ApproveUniversity approves a university in the registry and waits for the
// transaction. The role is granted only when grant_role is set and the
// university still lacks it.
// POST /api/v1/admin/universities/{address}/approve (admin)
func (a *API) ApproveUniversity(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(w, r, "address")
	if !ok {
		return
	}
	var body approveReq
	if !a.decodeBody(w, r, &body, true) {
		return
	}

	res, err := a.approver.Approve(r.Context(), addr, body.GrantRole)
	if err != nil {
		a.logger.Warn("Approve failed", zap.String("university", addr.Hex()), zap.Error(err))
		a.writeFailure(w, r, err)
		return
	}
	writeJSONResp(w, http.StatusOK, res)
}

// GrantUniversityRole grants UNIVERSITY_ROLE and waits for the transaction.
// POST /api/v1/admin/universities/{address}/grant-role (admin)
func (a *API) GrantUniversityRole(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(w, r, "address")
	if !ok {
		return
	}

	res, err := a.approver.GrantRole(r.Context(), addr)
	if err != nil {
		a.writeFailure(w, r, err)
		return
	}
	writeJSONResp(w, http.StatusOK, res)
}
