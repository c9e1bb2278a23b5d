// Package auth implements wallet login: a one-time nonce is handed out, the
// wallet signs it with personal_sign, and the recovered address gets a
// session token.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"podcred/internal/cache"
	"podcred/pkg"
)

var (
	ErrNonceNotFound    = errors.New("nonce expired or not requested")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrAddressMismatch  = errors.New("signature does not match address")
)

// Challenge is what the wallet is asked to sign.
type Challenge struct {
	Address   string    `json:"address"`
	Nonce     string    `json:"nonce"`
	Message   string    `json:"message"`
	ExpiresAt time.Time `json:"expires_at"`
}

type Service struct {
	logger     *zap.Logger
	store      cache.Store
	secret     []byte
	nonceTTL   time.Duration
	sessionTTL time.Duration
}

func NewService(logger *zap.Logger, store cache.Store, secret []byte, nonceTTL, sessionTTL time.Duration) *Service {
	return &Service{
		logger:     logger,
		store:      store,
		secret:     secret,
		nonceTTL:   nonceTTL,
		sessionTTL: sessionTTL,
	}
}

func nonceKey(addr common.Address) string {
	return "nonce:" + strings.ToLower(addr.Hex())
}

// LoginMessage is the exact text signed for nonce.
func LoginMessage(addr common.Address, nonce string) string {
	return fmt.Sprintf("Sign in to Proof of Degree\n\nWallet: %s\nNonce: %s", addr.Hex(), nonce)
}

// Challenge creates and stores a fresh nonce for addr, replacing any
// earlier one.
func (s *Service) Challenge(ctx context.Context, addr common.Address) (Challenge, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return Challenge{}, err
	}
	nonce := hex.EncodeToString(buf)

	if err := s.store.Set(ctx, nonceKey(addr), nonce, s.nonceTTL); err != nil {
		return Challenge{}, fmt.Errorf("store nonce: %w", err)
	}

	return Challenge{
		Address:   addr.Hex(),
		Nonce:     nonce,
		Message:   LoginMessage(addr, nonce),
		ExpiresAt: time.Now().Add(s.nonceTTL),
	}, nil
}

// Login consumes the nonce for addr, checks that signature was produced by
// addr over the login message and returns a session token.
func (s *Service) Login(ctx context.Context, addr common.Address, signature string) (string, error) {
	var nonce string
	if err := s.store.Take(ctx, nonceKey(addr), &nonce); errors.Is(err, cache.ErrMiss) {
		return "", ErrNonceNotFound
	} else if err != nil {
		return "", err
	}

	signer, err := RecoverSigner(LoginMessage(addr, nonce), signature)
	if err != nil {
		return "", err
	}
	if signer != addr {
		s.logger.Debug("Login signature mismatch", zap.String("address", addr.Hex()), zap.String("recovered", signer.Hex()))
		return "", ErrAddressMismatch
	}

	return pkg.CreateToken(s.secret, addr.Hex(), s.sessionTTL)
}

// RecoverSigner returns the address whose key produced a personal_sign
// signature over message. Both 0/1 and 27/28 recovery ids are accepted.
func RecoverSigner(message, signature string) (common.Address, error) {
	sig, err := hexutil.Decode(strings.TrimSpace(signature))
	if err != nil || len(sig) != crypto.SignatureLength {
		return common.Address{}, ErrInvalidSignature
	}
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return common.Address{}, ErrInvalidSignature
	}
	return crypto.PubkeyToAddress(*pub), nil
}
