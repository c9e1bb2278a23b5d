package handlers

import (
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"podcred/internal/issuance"
	"podcred/internal/verify"
)

const maxCSVBytes = 1 << 20

// RequireIssuer admits requests only while the operator wallet is an
// approved university holding the role.
func (a *API) RequireIssuer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		signer, ok := a.writer.Signer()
		if !ok {
			writeError(w, http.StatusServiceUnavailable, "Unavailable", "no signer configured, writes are disabled")
			return
		}
		st, err := a.checker.Check(r.Context(), signer)
		if err != nil {
			a.writeFailure(w, r, err)
			return
		}
		if !st.CanIssue() {
			writeJSONResp(w, http.StatusForbidden, map[string]any{
				"status":     "Forbidden",
				"message":    st.Message,
				"university": st,
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

type issueReq struct {
	Student     string `json:"student" validate:"required"`
	DiplomaHash string `json:"diploma_hash" validate:"required"`
}

type batchReq struct {
	Students      []string `json:"students" validate:"required"`
	DiplomaHashes []string `json:"diploma_hashes" validate:"required"`
}

// IssueDiploma issues one diploma.
// POST /api/v1/diplomas (issuer)
func (a *API) IssueDiploma(w http.ResponseWriter, r *http.Request) {
	var body issueReq
	if !a.decodeBody(w, r, &body, false) {
		return
	}

	sub, err := a.issuer.Issue(r.Context(), body.Student, body.DiplomaHash)
	if err != nil {
		a.writeFailure(w, r, err)
		return
	}
	a.accept(w, sub, nil)
}

// IssueBatch issues up to MaxBatchSize diplomas in one transaction.
// POST /api/v1/diplomas/batch (issuer)
func (a *API) IssueBatch(w http.ResponseWriter, r *http.Request) {
	var body batchReq
	if !a.decodeBody(w, r, &body, false) {
		return
	}

	sub, err := a.issuer.IssueBatch(r.Context(), body.Students, body.DiplomaHashes)
	if err != nil {
		a.writeFailure(w, r, err)
		return
	}
	a.accept(w, sub, nil)
}

// IssueBatchCSV accepts "address[,hash]" lines either as a multipart file
// (field "recordsCsv") or as a text/csv body. Missing hashes are generated
// and echoed back.
// POST /api/v1/diplomas/batch/csv (issuer)
func (a *API) IssueBatchCSV(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxCSVBytes)

	src, filename, err := csvSource(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	defer src.Close()

	entries, err := issuance.ParseBatchCSV(src, time.Now)
	if err != nil {
		a.writeFailure(w, r, err)
		return
	}
	a.logger.Debug("Parsed batch CSV", zap.String("file", filename), zap.Int("entries", len(entries)))

	students, hashes := issuance.Split(entries)
	sub, err := a.issuer.IssueBatch(r.Context(), students, hashes)
	if err != nil {
		a.writeFailure(w, r, err)
		return
	}
	a.accept(w, sub, map[string]any{"entries": entries})
}

type csvError string

func (e csvError) Error() string { return string(e) }

// csvSource finds the CSV payload. Multipart uploads prefer "recordsCsv",
// then a few common names, then the first file field.
func csvSource(r *http.Request) (io.ReadCloser, string, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return r.Body, "", nil
	}

	if err := r.ParseMultipartForm(maxCSVBytes); err != nil {
		return nil, "", csvError("failed to parse form or file too large")
	}

	var file multipart.File
	var header *multipart.FileHeader
	var err error
	for _, name := range []string{"recordsCsv", "records", "csv", "file"} {
		if file, header, err = r.FormFile(name); err == nil {
			return file, header.Filename, nil
		}
	}
	if r.MultipartForm != nil {
		for name := range r.MultipartForm.File {
			if file, header, err = r.FormFile(name); err == nil {
				return file, header.Filename, nil
			}
		}
	}
	if text := strings.TrimSpace(r.FormValue("recordsCsv")); text != "" {
		return io.NopCloser(strings.NewReader(text)), "", nil
	}
	return nil, "", csvError("recordsCsv file is required")
}

type mintReq struct {
	MetadataURI string `json:"metadata_uri"`
}

// MintDiploma mints the NFT for a diploma. Without metadata_uri the public
// verification URL is used.
// POST /api/v1/diplomas/{id}/mint (operator)
func (a *API) MintDiploma(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !verify.ValidID(id) {
		badRequest(w, verify.MsgInvalidID)
		return
	}
	var body mintReq
	if !a.decodeBody(w, r, &body, true) {
		return
	}
	uri := strings.TrimSpace(body.MetadataURI)
	if uri == "" {
		uri = a.verificationURL(id)
	}

	diplomaID := common.HexToHash(id)
	minted, err := a.queries.IsDiplomaMinted(r.Context(), diplomaID)
	if err != nil {
		a.writeFailure(w, r, err)
		return
	}
	if minted {
		writeError(w, http.StatusConflict, "Conflict", issuance.MintMessages.Duplicate)
		return
	}

	sub, err := a.issuer.MintDiploma(r.Context(), diplomaID, uri)
	if err != nil {
		a.writeFailure(w, r, err)
		return
	}
	a.accept(w, sub, map[string]any{"metadata_uri": uri})
}
