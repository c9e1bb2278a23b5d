// Package status reconciles a university's registry record with its
// access-control role. The two live in different contracts and are updated
// by different transactions, so neither is assumed to imply the other.
package status

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"podcred/internal/chain"
)

type State string

const (
	Unregistered State = "unregistered"
	Pending      State = "pending"
	Approved     State = "approved"
)

type Reason string

const (
	AwaitingApproval Reason = "awaiting_approval"
	AwaitingRole     Reason = "awaiting_role"
	AwaitingBoth     Reason = "awaiting_both"
)

const DefaultInterval = 4 * time.Second

type Status struct {
	State   State            `json:"state"`
	Reason  Reason           `json:"reason,omitempty"`
	Message string           `json:"message"`
	Info    chain.University `json:"university"`
	HasRole bool             `json:"has_role"`
}

// CanIssue is true only when both sources agree.
func (s Status) CanIssue() bool {
	return s.State == Approved
}

// Reconcile combines the registry record with the role flag.
func Reconcile(info chain.University, hasRole bool) Status {
	s := Status{Info: info, HasRole: hasRole}

	switch {
	case !info.IsRegistered:
		s.State = Unregistered
		s.Message = "This wallet has not registered a university."
	case info.IsApproved && hasRole:
		s.State = Approved
		s.Message = "University approved. You can issue diplomas."
	case info.IsApproved:
		s.State, s.Reason = Pending, AwaitingRole
		s.Message = "Approved in the registry, pending role assignment."
	case hasRole:
		s.State, s.Reason = Pending, AwaitingApproval
		s.Message = "Role granted, awaiting registry approval."
	default:
		s.State, s.Reason = Pending, AwaitingBoth
		s.Message = "Registration pending admin approval."
	}

	return s
}

// Source supplies the two inputs of a reconciliation.
type Source interface {
	University(ctx context.Context, addr common.Address) (chain.University, error)
	HasUniversityRole(ctx context.Context, addr common.Address) (bool, error)
}

type Checker struct {
	logger *zap.Logger
	source Source
}

func NewChecker(logger *zap.Logger, source Source) *Checker {
	return &Checker{logger: logger, source: source}
}

// Check reads the registry record and the role flag concurrently.
func (c *Checker) Check(ctx context.Context, addr common.Address) (Status, error) {
	var (
		info    chain.University
		hasRole bool
	)

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() (err error) {
		info, err = c.source.University(gctx, addr)
		return
	})
	group.Go(func() (err error) {
		hasRole, err = c.source.HasUniversityRole(gctx, addr)
		return
	})
	if err := group.Wait(); err != nil {
		return Status{}, err
	}

	info.Address = addr
	return Reconcile(info, hasRole), nil
}

// CheckAll checks every address with at most limit checks in flight. The
// result is in input order.
func (c *Checker) CheckAll(ctx context.Context, addrs []common.Address, limit int) ([]Status, error) {
	out := make([]Status, len(addrs))

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(limit)
	for i, addr := range addrs {
		group.Go(func() (err error) {
			out[i], err = c.Check(gctx, addr)
			return
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Watch polls while the status is pending. It returns the first non-pending
// status, or the last observed one together with the context error.
func (c *Checker) Watch(ctx context.Context, addr common.Address, interval time.Duration) (Status, error) {
	if interval <= 0 {
		interval = DefaultInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last Status
	for {
		s, err := c.Check(ctx, addr)
		if err == nil {
			last = s
			if s.State != Pending {
				return s, nil
			}
		} else if ctx.Err() == nil {
			c.logger.Warn("Status poll failed", zap.String("address", addr.Hex()), zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-ticker.C:
		}
	}
}
