package admin

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"podcred/internal/cache"
	"podcred/internal/chain"
	"podcred/internal/chain/chaintest"
	"podcred/internal/config"
	"podcred/internal/confirm"
	"podcred/internal/db"
	"podcred/internal/issuance"
	"podcred/internal/queries"
	"podcred/internal/status"
)

var uni = common.HexToAddress("0x00000000000000000000000000000000000000c1")

func newApprover(fake *chaintest.Fake) *Approver {
	logger := zap.NewNop()
	q := queries.New(logger, fake, cache.NewMemoryStore())
	tracker := confirm.NewTracker(config.Issuance{
		SettleDelay:    time.Millisecond,
		PollInterval:   time.Millisecond,
		ReceiptTimeout: time.Second,
	}, logger, fake, db.NewMemoryLedger(), q)
	return NewApprover(logger, issuance.NewIssuer(logger, fake), tracker, status.NewChecker(logger, q))
}

func simulatedContracts() *chaintest.Fake {
	fake := chaintest.New()
	fake.Universities[uni] = chain.University{Name: "Delft", Country: "NL", IsRegistered: true}
	fake.OnSend = func(f *chaintest.Fake, call chain.Call) {
		addr := call.Args[0].(common.Address)
		switch call.Method {
		case "approveUniversity":
			u := f.Universities[addr]
			u.IsApproved = true
			f.Universities[addr] = u
		case "grantUniversityRole":
			f.Roles[chaintest.UniversityRole][addr] = true
		}
	}
	return fake
}

func methods(fake *chaintest.Fake) []string {
	var out []string
	for _, s := range fake.SentCalls() {
		out = append(out, s.Call.Method)
	}
	return out
}

func TestApproveWithoutGrantLeavesRolePending(t *testing.T) {
	fake := simulatedContracts()

	res, err := newApprover(fake).Approve(context.Background(), uni, false)
	require.NoError(t, err)
	require.Nil(t, res.RoleGrant)
	require.NotNil(t, res.Status)
	require.Equal(t, status.Pending, res.Status.State)
	require.Equal(t, status.AwaitingRole, res.Status.Reason)
	require.Equal(t, []string{"approveUniversity"}, methods(fake))
}

func TestApproveGrantsMissingRole(t *testing.T) {
	fake := simulatedContracts()

	res, err := newApprover(fake).Approve(context.Background(), uni, true)
	require.NoError(t, err)
	require.NotNil(t, res.RoleGrant)
	require.Equal(t, status.Approved, res.Status.State)
	require.Equal(t, []string{"approveUniversity", "grantUniversityRole"}, methods(fake))
}

func TestApproveSkipsGrantWhenRoleHeld(t *testing.T) {
	fake := simulatedContracts()
	fake.Roles[chaintest.UniversityRole][uni] = true

	res, err := newApprover(fake).Approve(context.Background(), uni, true)
	require.NoError(t, err)
	require.Nil(t, res.RoleGrant)
	require.Equal(t, status.Approved, res.Status.State)
	require.Equal(t, []string{"approveUniversity"}, methods(fake))
}

func TestApproveSurfacesSubmitError(t *testing.T) {
	fake := simulatedContracts()
	fake.SendErrs = []error{errors.New("execution reverted: AccessControl: missing role")}

	_, err := newApprover(fake).Approve(context.Background(), uni, true)

	var submitErr *issuance.SubmitError
	require.ErrorAs(t, err, &submitErr)
	require.Equal(t, issuance.CategoryUnauthorized, submitErr.Category)
	require.Len(t, fake.SentCalls(), 1)
}

func TestGrantRole(t *testing.T) {
	fake := simulatedContracts()

	res, err := newApprover(fake).GrantRole(context.Background(), uni)
	require.NoError(t, err)
	require.NotNil(t, res.RoleGrant)
	require.Equal(t, status.Pending, res.Status.State)
	require.Equal(t, status.AwaitingApproval, res.Status.Reason)
}
