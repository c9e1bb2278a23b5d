// Package issuance validates diploma and university writes and submits them
// through an explicit, bounded retry policy.
package issuance

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"podcred/internal/chain"
)

var ErrEmptyMetadataURI = errors.New("metadata URI is required")

// Kind names the write a Submission came from.
type Kind string

const (
	KindIssue     Kind = "issue_diploma"
	KindBatch     Kind = "batch_issue"
	KindRegister  Kind = "register_university"
	KindApprove   Kind = "approve_university"
	KindGrantRole Kind = "grant_university_role"
	KindMint      Kind = "mint_diploma"
)

// Submission is a write that reached the chain (or was cancelled), together
// with what it touches so dependent reads can be invalidated once it lands.
type Submission struct {
	Outcome
	Kind       Kind             `json:"kind"`
	Signer     common.Address   `json:"signer"`
	University common.Address   `json:"university,omitempty"`
	Students   []common.Address `json:"students,omitempty"`
	DiplomaID  common.Hash      `json:"diploma_id,omitempty"`
}

type Issuer struct {
	logger *zap.Logger
	writer chain.Writer
}

func NewIssuer(logger *zap.Logger, writer chain.Writer) *Issuer {
	return &Issuer{logger: logger, writer: writer}
}

func (i *Issuer) submit(ctx context.Context, kind Kind, policy Policy, call chain.Call, msgs Messages) (Submission, error) {
	signer, ok := i.writer.Signer()
	if !ok {
		return Submission{}, chain.ErrNoSigner
	}

	outcome, err := policy.Run(ctx, i.logger, i.writer, call, msgs)
	if err != nil {
		return Submission{}, err
	}

	if !outcome.Cancelled {
		i.logger.Info("Transaction submitted",
			zap.String("kind", string(kind)),
			zap.String("tx_hash", outcome.TxHash.Hex()),
			zap.Int("attempts", outcome.Attempts),
			zap.String("gas", outcome.Gas.Label),
		)
	}
	return Submission{Outcome: outcome, Kind: kind, Signer: signer}, nil
}

// Issue submits generateDiploma for one student. The signer must be an
// approved university holding the university role; the contract enforces it.
func (i *Issuer) Issue(ctx context.Context, student, diplomaHash string) (Submission, error) {
	addr, hash, err := ValidateSingle(student, diplomaHash)
	if err != nil {
		return Submission{}, err
	}

	sub, err := i.submit(ctx, KindIssue, Retry(PrimaryGas(), FallbackGas()), chain.GenerateDiploma(addr, hash), DiplomaMessages)
	if err != nil {
		return Submission{}, err
	}
	sub.University = sub.Signer
	sub.Students = []common.Address{addr}
	return sub, nil
}

// IssueBatch submits batchGenerateDiplomas after validating the whole batch.
func (i *Issuer) IssueBatch(ctx context.Context, students, hashes []string) (Submission, error) {
	addrs, trimmed, err := ValidateBatch(students, hashes)
	if err != nil {
		return Submission{}, err
	}

	primary, fallback := BatchGas(len(addrs))
	sub, err := i.submit(ctx, KindBatch, Retry(primary, fallback), chain.BatchGenerateDiplomas(addrs, trimmed), BatchMessages)
	if err != nil {
		return Submission{}, err
	}
	sub.University = sub.Signer
	sub.Students = addrs
	return sub, nil
}

func (i *Issuer) RegisterUniversity(ctx context.Context, name, country string) (Submission, error) {
	name, country, err := ValidateRegistration(name, country)
	if err != nil {
		return Submission{}, err
	}

	sub, err := i.submit(ctx, KindRegister, Once(PrimaryGas()), chain.RegisterUniversity(name, country), RegisterMessages)
	if err != nil {
		return Submission{}, err
	}
	sub.University = sub.Signer
	return sub, nil
}

func (i *Issuer) ApproveUniversity(ctx context.Context, university common.Address) (Submission, error) {
	sub, err := i.submit(ctx, KindApprove, Once(PrimaryGas()), chain.ApproveUniversity(university), ApproveMessages)
	if err != nil {
		return Submission{}, err
	}
	sub.University = university
	return sub, nil
}

func (i *Issuer) GrantUniversityRole(ctx context.Context, university common.Address) (Submission, error) {
	sub, err := i.submit(ctx, KindGrantRole, Once(PrimaryGas()), chain.GrantUniversityRole(university), GrantRoleMessages)
	if err != nil {
		return Submission{}, err
	}
	sub.University = university
	return sub, nil
}

// MintDiploma converts a diploma into the student's NFT. The contract only
// accepts it from the diploma's student.
func (i *Issuer) MintDiploma(ctx context.Context, diplomaID common.Hash, metadataURI string) (Submission, error) {
	if metadataURI == "" {
		return Submission{}, ErrEmptyMetadataURI
	}

	sub, err := i.submit(ctx, KindMint, Once(PrimaryGas()), chain.MintDiploma(diplomaID, metadataURI), MintMessages)
	if err != nil {
		return Submission{}, err
	}
	sub.DiplomaID = diplomaID
	sub.Students = []common.Address{sub.Signer}
	return sub, nil
}
