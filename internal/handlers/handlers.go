// Package handlers exposes the POD operations over HTTP. Responses are JSON;
// errors are {"status": "...", "message": "..."}.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"podcred/internal/admin"
	"podcred/internal/auth"
	"podcred/internal/chain"
	"podcred/internal/config"
	"podcred/internal/db"
	"podcred/internal/issuance"
	"podcred/internal/middleware"
	"podcred/internal/queries"
	"podcred/internal/status"
	"podcred/internal/verify"
)

// Tracker follows a submission to confirmation in the background.
type Tracker interface {
	Track(sub issuance.Submission)
}

type Deps struct {
	Logger   *zap.Logger
	Config   config.Config
	Writer   chain.Writer
	Queries  *queries.Queries
	Issuer   *issuance.Issuer
	Tracker  Tracker
	Approver *admin.Approver
	Checker  *status.Checker
	Verifier *verify.Verifier
	Ledger   db.Ledger
	Auth     *auth.Service
}

type API struct {
	logger   *zap.Logger
	cfg      config.Config
	writer   chain.Writer
	queries  *queries.Queries
	issuer   *issuance.Issuer
	tracker  Tracker
	approver *admin.Approver
	checker  *status.Checker
	verifier *verify.Verifier
	ledger   db.Ledger
	auth     *auth.Service
	validate *validator.Validate
}

func New(d Deps) *API {
	return &API{
		logger:   d.Logger.With(zap.String("module", "http")),
		cfg:      d.Config,
		writer:   d.Writer,
		queries:  d.Queries,
		issuer:   d.Issuer,
		tracker:  d.Tracker,
		approver: d.Approver,
		checker:  d.Checker,
		verifier: d.Verifier,
		ledger:   d.Ledger,
		auth:     d.Auth,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Signer reports the operator wallet that signs writes.
func (a *API) Signer() (string, bool) {
	addr, ok := a.writer.Signer()
	if !ok {
		return "", false
	}
	return addr.Hex(), true
}

func writeJSONResp(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSONResp(w, status, map[string]any{"status": code, "message": message})
}

func badRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, "Bad_Request", message)
}

// decodeBody decodes a JSON body into dst and runs its validate tags. An
// empty body is accepted when allowEmpty is set.
func (a *API) decodeBody(w http.ResponseWriter, r *http.Request, dst any, allowEmpty bool) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !(allowEmpty && errors.Is(err, io.EOF)) {
		badRequest(w, "invalid JSON body")
		return false
	}
	if err := a.validate.Struct(dst); err != nil {
		badRequest(w, validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "eth_addr":
		return issuance.ErrInvalidAddress.Error()
	case "min", "max", "gte", "lte":
		return field + " must be " + fe.Tag() + " " + fe.Param()
	default:
		return field + " is invalid"
	}
}

func pathAddress(w http.ResponseWriter, r *http.Request, param string) (common.Address, bool) {
	addr, err := issuance.ParseAddress(chi.URLParam(r, param))
	if err != nil {
		badRequest(w, issuance.ErrInvalidAddress.Error())
		return common.Address{}, false
	}
	return addr, true
}

func sessionAddress(w http.ResponseWriter, r *http.Request) (common.Address, bool) {
	addr, ok := middleware.WalletAddress(r.Context())
	if !ok || !issuance.ValidateAddress(addr) {
		writeError(w, http.StatusUnauthorized, "Unauthorized", "wallet address is missing or invalid")
		return common.Address{}, false
	}
	return common.HexToAddress(addr), true
}

var validationErrors = []error{
	issuance.ErrInvalidAddress,
	issuance.ErrEmptyHash,
	issuance.ErrEmptyBatch,
	issuance.ErrBatchTooLarge,
	issuance.ErrLengthMismatch,
	issuance.ErrDuplicateAddress,
	issuance.ErrDuplicateHash,
	issuance.ErrNoCSVEntries,
	issuance.ErrEmptyField,
	issuance.ErrEmptyMetadataURI,
	verify.ErrInvalidID,
	verify.ErrInvalidToken,
}

// writeFailure maps an orchestration or chain error to a response.
func (a *API) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	var submitErr *issuance.SubmitError
	if errors.As(err, &submitErr) {
		code, httpStatus := "Chain_Error", http.StatusBadGateway
		switch submitErr.Category {
		case issuance.CategoryUnauthorized:
			code, httpStatus = "Forbidden", http.StatusForbidden
		case issuance.CategoryDuplicate:
			code, httpStatus = "Conflict", http.StatusConflict
		case issuance.CategoryInvalid:
			code, httpStatus = "Bad_Request", http.StatusBadRequest
		}
		writeJSONResp(w, httpStatus, map[string]any{
			"status":   code,
			"message":  submitErr.Message,
			"category": submitErr.Category,
			"reason":   submitErr.Reason,
			"attempts": submitErr.Attempts,
		})
		return
	}

	for _, target := range validationErrors {
		if errors.Is(err, target) {
			badRequest(w, err.Error())
			return
		}
	}

	switch {
	case errors.Is(err, chain.ErrNotConfigured), errors.Is(err, chain.ErrNoSigner):
		writeError(w, http.StatusServiceUnavailable, "Unavailable", err.Error())
	case errors.Is(err, chain.ErrTransactionFailed):
		writeError(w, http.StatusBadGateway, "Chain_Error", "transaction reverted on chain")
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "Timeout", "timed out waiting for the chain")
	default:
		a.logger.Warn("Request failed", zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, http.StatusBadGateway, "Chain_Error", "failed to read from chain")
	}
}

type submissionResp struct {
	Status      string              `json:"status"`
	Submission  issuance.Submission `json:"submission"`
	ExplorerURL string              `json:"explorer_url,omitempty"`
}

// accept hands a fresh submission to the tracker and answers 202.
func (a *API) accept(w http.ResponseWriter, sub issuance.Submission, extra map[string]any) {
	resp := submissionResp{Status: "submitted", Submission: sub}
	if sub.Cancelled {
		resp.Status = "cancelled"
		writeJSONResp(w, http.StatusOK, resp)
		return
	}

	a.tracker.Track(sub)
	resp.ExplorerURL = a.explorerURL(sub.TxHash)

	if len(extra) == 0 {
		writeJSONResp(w, http.StatusAccepted, resp)
		return
	}
	out := map[string]any{
		"status":       resp.Status,
		"submission":   resp.Submission,
		"explorer_url": resp.ExplorerURL,
	}
	for k, v := range extra {
		out[k] = v
	}
	writeJSONResp(w, http.StatusAccepted, out)
}

func (a *API) explorerURL(hash common.Hash) string {
	if a.cfg.ExplorerTxURL == "" {
		return ""
	}
	return trimRightSlash(a.cfg.ExplorerTxURL) + "/" + hash.Hex()
}

func (a *API) verificationURL(id string) string {
	return trimRightSlash(a.cfg.FrontendBaseURL) + "/verify/" + id
}

func equalCaseInsensitive(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

func trimRightSlash(s string) string {
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}
