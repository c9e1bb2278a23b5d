// Package verify looks up a diploma on chain and enriches it with the issuing
// university. Results are never cached.
package verify

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"podcred/internal/chain"
)

const (
	MsgInvalidID    = "Invalid diploma ID. It must be a 0x-prefixed 32-byte hex string."
	MsgInvalidToken = "Invalid token ID."
	MsgLookupFailed = "Failed to verify diploma"
	MsgNotVerified  = "This diploma could not be verified. It may not exist or may have been tampered with."
	MsgTokenUnknown = "No diploma is linked to this token."
)

var (
	ErrInvalidID    = errors.New(MsgInvalidID)
	ErrInvalidToken = errors.New(MsgInvalidToken)
)

// Failure is a verification that completed without a valid diploma.
type Failure struct {
	Message string
	Err     error
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %v", f.Message, f.Err)
	}
	return f.Message
}

func (f *Failure) Unwrap() error {
	return f.Err
}

var idPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)

// ValidID reports whether s is a 66-character 0x-prefixed bytes32 hex string.
func ValidID(s string) bool {
	return idPattern.MatchString(s)
}

type Result struct {
	Valid      bool                `json:"valid"`
	Diploma    chain.DiplomaRecord `json:"diploma"`
	University *chain.University   `json:"university,omitempty"`
	Token      *Token              `json:"token,omitempty"`
}

type Token struct {
	ID    string         `json:"token_id"`
	Owner common.Address `json:"owner"`
	URI   string         `json:"token_uri"`
}

type Verifier struct {
	logger *zap.Logger
	reader chain.Reader
}

func New(logger *zap.Logger, reader chain.Reader) *Verifier {
	return &Verifier{logger: logger, reader: reader}
}

// Verify checks diploma id. Malformed ids are rejected without a read.
func (v *Verifier) Verify(ctx context.Context, id string) (Result, error) {
	if !ValidID(id) {
		return Result{}, ErrInvalidID
	}
	return v.verify(ctx, common.HexToHash(id))
}

func (v *Verifier) verify(ctx context.Context, id common.Hash) (Result, error) {
	valid, record, err := v.reader.VerifyDiploma(ctx, id)
	if err != nil {
		v.logger.Warn("verifyDiploma failed", zap.String("diploma_id", id.Hex()), zap.Error(err))
		return Result{}, &Failure{Message: MsgLookupFailed, Err: err}
	}
	if !valid {
		return Result{}, &Failure{Message: MsgNotVerified}
	}
	record.ID = id

	result := Result{Valid: true, Diploma: record}

	info, err := v.reader.University(ctx, record.University)
	if err != nil {
		v.logger.Warn("University enrichment failed",
			zap.String("diploma_id", id.Hex()),
			zap.String("university", record.University.Hex()),
			zap.Error(err),
		)
	} else {
		info.Address = record.University
		result.University = &info
	}

	return result, nil
}

// reverted reports whether err is the contract rejecting the call, as opposed
// to the node or transport failing.
func reverted(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "execution reverted")
}

// VerifyToken resolves an NFT token id to its diploma and verifies it, adding
// the current owner and token URI.
func (v *Verifier) VerifyToken(ctx context.Context, tokenID string) (Result, error) {
	id, ok := new(big.Int).SetString(tokenID, 10)
	if !ok || id.Sign() < 0 {
		return Result{}, ErrInvalidToken
	}

	diplomaID, err := v.reader.DiplomaForToken(ctx, id)
	if err != nil {
		if reverted(err) {
			return Result{}, &Failure{Message: MsgTokenUnknown, Err: err}
		}
		v.logger.Warn("getDiplomaIdForToken failed", zap.String("token_id", id.String()), zap.Error(err))
		return Result{}, &Failure{Message: MsgLookupFailed, Err: err}
	}
	if diplomaID == (common.Hash{}) {
		return Result{}, &Failure{Message: MsgTokenUnknown}
	}

	var (
		result Result
		token  = Token{ID: id.String()}
	)
	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() (err error) {
		result, err = v.verify(gctx, diplomaID)
		return
	})
	group.Go(func() (err error) {
		token.Owner, err = v.reader.OwnerOf(gctx, id)
		return
	})
	group.Go(func() (err error) {
		token.URI, err = v.reader.TokenURI(gctx, id)
		return
	})
	if err := group.Wait(); err != nil {
		var failure *Failure
		if errors.As(err, &failure) {
			return Result{}, failure
		}
		return Result{}, &Failure{Message: MsgLookupFailed, Err: err}
	}

	result.Token = &token
	return result, nil
}
