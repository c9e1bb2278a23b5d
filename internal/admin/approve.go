// Package admin implements the admin workflow of approving a university in
// the registry and, separately, granting it the university role.
package admin

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"podcred/internal/chain"
	"podcred/internal/issuance"
	"podcred/internal/status"
)

// Confirmer records a submission and blocks until it is mined and the
// dependent reads have been invalidated. *confirm.Tracker implements it.
type Confirmer interface {
	Record(ctx context.Context, sub issuance.Submission) error
	Await(ctx context.Context, sub issuance.Submission) (*chain.Receipt, error)
}

type Approver struct {
	logger    *zap.Logger
	issuer    *issuance.Issuer
	confirmer Confirmer
	checker   *status.Checker
}

func NewApprover(logger *zap.Logger, issuer *issuance.Issuer, confirmer Confirmer, checker *status.Checker) *Approver {
	return &Approver{logger: logger, issuer: issuer, confirmer: confirmer, checker: checker}
}

type Result struct {
	Approval  *issuance.Submission `json:"approval,omitempty"`
	RoleGrant *issuance.Submission `json:"role_grant,omitempty"`
	Status    *status.Status       `json:"status,omitempty"`
}

// Approve submits approveUniversity and waits for it. The role is then read
// again; approval alone never implies it. When grantRole is set and the role
// is still missing, grantUniversityRole is submitted and awaited too.
func (a *Approver) Approve(ctx context.Context, university common.Address, grantRole bool) (Result, error) {
	approval, err := a.submit(ctx, func() (issuance.Submission, error) {
		return a.issuer.ApproveUniversity(ctx, university)
	})
	res := Result{Approval: &approval}
	if err != nil || approval.Cancelled {
		return res, err
	}

	st, err := a.checker.Check(ctx, university)
	if err != nil {
		return res, err
	}

	if grantRole && !st.HasRole {
		a.logger.Info("Registry approval confirmed without role, granting", zap.String("university", university.Hex()))

		grant, err := a.submit(ctx, func() (issuance.Submission, error) {
			return a.issuer.GrantUniversityRole(ctx, university)
		})
		if err != nil {
			return res, err
		}
		res.RoleGrant = &grant
		if grant.Cancelled {
			res.Status = &st
			return res, nil
		}

		if st, err = a.checker.Check(ctx, university); err != nil {
			return res, err
		}
	}

	res.Status = &st
	return res, nil
}

// GrantRole submits grantUniversityRole and waits for it.
func (a *Approver) GrantRole(ctx context.Context, university common.Address) (Result, error) {
	grant, err := a.submit(ctx, func() (issuance.Submission, error) {
		return a.issuer.GrantUniversityRole(ctx, university)
	})
	if err != nil || grant.Cancelled {
		return Result{RoleGrant: &grant}, err
	}

	st, err := a.checker.Check(ctx, university)
	if err != nil {
		return Result{RoleGrant: &grant}, err
	}
	return Result{RoleGrant: &grant, Status: &st}, nil
}

func (a *Approver) submit(ctx context.Context, send func() (issuance.Submission, error)) (issuance.Submission, error) {
	sub, err := send()
	if err != nil || sub.Cancelled {
		return sub, err
	}

	if err := a.confirmer.Record(ctx, sub); err != nil {
		a.logger.Warn("Failed to record transaction", zap.String("tx_hash", sub.TxHash.Hex()), zap.Error(err))
	}
	if _, err := a.confirmer.Await(ctx, sub); err != nil {
		return sub, err
	}
	return sub, nil
}
