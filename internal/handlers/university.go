package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"podcred/internal/status"
)

const (
	listConcurrency = 8
	statusWaitLimit = 2 * time.Minute
)

type registerUniversityReq struct {
	Name    string `json:"name" validate:"required"`
	Country string `json:"country" validate:"required"`
}

// RegisterUniversity submits registerUniversity for the operator wallet.
// POST /api/v1/universities (operator)
func (a *API) RegisterUniversity(w http.ResponseWriter, r *http.Request) {
	var body registerUniversityReq
	if !a.decodeBody(w, r, &body, false) {
		return
	}

	sub, err := a.issuer.RegisterUniversity(r.Context(), body.Name, body.Country)
	if err != nil {
		a.writeFailure(w, r, err)
		return
	}
	a.accept(w, sub, nil)
}

// GetUniversity returns the registry record for an address.
// GET /api/v1/universities/{address}
func (a *API) GetUniversity(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(w, r, "address")
	if !ok {
		return
	}

	info, err := a.queries.University(r.Context(), addr)
	if err != nil {
		a.writeFailure(w, r, err)
		return
	}
	if !info.IsRegistered {
		writeError(w, http.StatusNotFound, "Not_Found", "university not registered")
		return
	}
	info.Address = addr
	writeJSONResp(w, http.StatusOK, info)
}

// UniversityStatus reconciles registry approval with the role grant. With
// ?wait=true it keeps polling while the status is pending.
// GET /api/v1/universities/{address}/status
func (a *API) UniversityStatus(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(w, r, "address")
	if !ok {
		return
	}

	if r.URL.Query().Get("wait") != "true" {
		st, err := a.checker.Check(r.Context(), addr)
		if err != nil {
			a.writeFailure(w, r, err)
			return
		}
		writeJSONResp(w, http.StatusOK, st)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), statusWaitLimit)
	defer cancel()

	st, err := a.checker.Watch(ctx, addr, a.cfg.Issuance.StatusInterval)
	if err != nil && (!errors.Is(err, context.DeadlineExceeded) || st.State == "") {
		a.writeFailure(w, r, err)
		return
	}
	writeJSONResp(w, http.StatusOK, st)
}

// ListUniversities returns every registered university with its reconciled
// status. ?pending=true keeps only pending ones; ?search= ranks by fuzzy
// name match.
// GET /api/v1/universities
func (a *API) ListUniversities(w http.ResponseWriter, r *http.Request) {
	addrs, err := a.queries.AllUniversities(r.Context())
	if err != nil {
		a.writeFailure(w, r, err)
		return
	}

	statuses, err := a.checker.CheckAll(r.Context(), addrs, listConcurrency)
	if err != nil {
		a.writeFailure(w, r, err)
		return
	}

	if r.URL.Query().Get("pending") == "true" {
		statuses = status.FilterPending(statuses)
	}
	if q := strings.TrimSpace(r.URL.Query().Get("search")); q != "" {
		statuses = status.SearchByName(statuses, q)
	}

	writeJSONResp(w, http.StatusOK, map[string]any{
		"count":        len(statuses),
		"universities": statuses,
	})
}
