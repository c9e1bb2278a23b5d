package handlers

import (
	"context"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"podcred/internal/verify"
)

type studentDiploma struct {
	ID      common.Hash    `json:"diploma_id"`
	Details *verify.Result `json:"details,omitempty"`
	Error   string         `json:"error,omitempty"`
	Minted  bool           `json:"minted"`
	TokenID string         `json:"token_id,omitempty"`
}

// StudentDiplomas lists a student's diplomas with details and mint state.
// GET /api/v1/students/{address}/diplomas
func (a *API) StudentDiplomas(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(w, r, "address")
	if !ok {
		return
	}
	a.writeStudentDiplomas(w, r, addr)
}

// MyDiplomas is StudentDiplomas for the session wallet.
// GET /api/v1/me/diplomas (protected)
func (a *API) MyDiplomas(w http.ResponseWriter, r *http.Request) {
	addr, ok := sessionAddress(w, r)
	if !ok {
		return
	}
	a.writeStudentDiplomas(w, r, addr)
}

func (a *API) writeStudentDiplomas(w http.ResponseWriter, r *http.Request, student common.Address) {
	ids, err := a.queries.StudentDiplomas(r.Context(), student)
	if err != nil {
		a.writeFailure(w, r, err)
		return
	}

	out, err := a.diplomaDetails(r.Context(), ids)
	if err != nil {
		a.writeFailure(w, r, err)
		return
	}

	writeJSONResp(w, http.StatusOK, map[string]any{
		"student":  student.Hex(),
		"count":    len(out),
		"diplomas": out,
	})
}

// diplomaDetails loads each diploma concurrently. A diploma that fails
// verification is listed with its error; a failed mint-state read fails the
// whole request.
func (a *API) diplomaDetails(ctx context.Context, ids []common.Hash) ([]studentDiploma, error) {
	out := make([]studentDiploma, len(ids))

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(listConcurrency)
	for i, id := range ids {
		group.Go(func() error {
			d := studentDiploma{ID: id}

			if res, err := a.verifier.Verify(gctx, id.Hex()); err != nil {
				d.Error = err.Error()
			} else {
				d.Details = &res
			}

			minted, err := a.queries.IsDiplomaMinted(gctx, id)
			if err != nil {
				return err
			}
			d.Minted = minted
			if minted {
				token, err := a.queries.TokenForDiploma(gctx, id)
				if err != nil {
					return err
				}
				d.TokenID = token.String()
			}

			out[i] = d
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
