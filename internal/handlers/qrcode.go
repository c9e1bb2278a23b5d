package handlers

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/skip2/go-qrcode"

	"podcred/internal/verify"
)

const (
	defaultQRSize = 256
	maxQRSize     = 1024
)

// DiplomaQRCode renders the diploma's verification URL as a PNG. A share
// token passed as ?token= is carried into the URL.
// GET /api/v1/diplomas/{id}/qrcode
func (a *API) DiplomaQRCode(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !verify.ValidID(id) {
		badRequest(w, verify.MsgInvalidID)
		return
	}

	size := defaultQRSize
	if s := r.URL.Query().Get("size"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 64 || n > maxQRSize {
			badRequest(w, "size must be between 64 and 1024")
			return
		}
		size = n
	}

	data := a.verificationURL(id)
	if tok := r.URL.Query().Get("token"); tok != "" {
		data += "?token=" + url.QueryEscape(tok)
	}

	png, err := qrcode.Encode(data, qrcode.Medium, size)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Server_Error", "Failed to generate QR code")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}
