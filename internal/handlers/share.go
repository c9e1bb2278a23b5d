package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"

	"podcred/internal/verify"
)

const msgInvalidShareLink = "This verification link is invalid or has expired."

type shareClaims struct {
	DiplomaID string `json:"diploma_id"`
	jwt.RegisteredClaims
}

type generateShareLinkResp struct {
	ShareableURL string    `json:"shareable_url"`
	Token        string    `json:"token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// parseHours accepts a number or a numeric string.
func parseHours(x any) (int, bool) {
	switch t := x.(type) {
	case float64:
		return int(t), true
	case json.Number:
		if i, err := strconv.Atoi(t.String()); err == nil {
			return i, true
		}
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(t)); err == nil {
			return i, true
		}
	}
	return 0, false
}

// GenerateShareLink creates a time-limited verification link for one of the
// session wallet's diplomas.
// POST /api/v1/diplomas/{id}/share (protected)
func (a *API) GenerateShareLink(w http.ResponseWriter, r *http.Request) {
	addr, ok := sessionAddress(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	if !verify.ValidID(id) {
		badRequest(w, verify.MsgInvalidID)
		return
	}

	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		badRequest(w, "invalid json")
		return
	}

	// expires_in_hours may come as number or string, snake_case or camelCase
	expires := 0
	for _, key := range []string{"expires_in_hours", "expiresInHours", "duration"} {
		if v, ok := payload[key]; ok {
			if i, ok := parseHours(v); ok {
				expires = i
			}
			break
		}
	}
	maxHours := a.cfg.Auth.MaxShareHours
	if expires < 1 || expires > maxHours {
		badRequest(w, fmt.Sprintf("expires_in_hours must be between 1 and %d", maxHours))
		return
	}

	res, err := a.verifier.Verify(r.Context(), id)
	if err != nil {
		a.writeVerification(w, res, err, nil)
		return
	}
	if !equalCaseInsensitive(res.Diploma.Student.Hex(), addr.Hex()) {
		writeError(w, http.StatusForbidden, "Forbidden", "not the owner of this diploma")
		return
	}

	now := time.Now()
	exp := now.Add(time.Duration(expires) * time.Hour)
	claims := shareClaims{
		DiplomaID: strings.ToLower(id),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   addr.Hex(),
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.cfg.Auth.ShareSigningKey())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Server_Error", "failed to sign share token")
		return
	}

	writeJSONResp(w, http.StatusOK, generateShareLinkResp{
		ShareableURL: fmt.Sprintf("%s?token=%s", a.verificationURL(id), signed),
		Token:        signed,
		ExpiresAt:    exp,
	})
}

func (a *API) parseShareToken(tokenStr string) (*shareClaims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &shareClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.cfg.Auth.ShareSigningKey(), nil
	}, jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid {
		return nil, errors.New(msgInvalidShareLink)
	}
	claims, ok := parsed.Claims.(*shareClaims)
	if !ok || claims.DiplomaID == "" {
		return nil, errors.New(msgInvalidShareLink)
	}
	return claims, nil
}

// SharedDiploma verifies a diploma reached through a share link.
// GET /api/v1/shared/{id}?token=...
func (a *API) SharedDiploma(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		writeError(w, http.StatusUnauthorized, "Unauthorized", msgInvalidShareLink)
		return
	}

	claims, err := a.parseShareToken(tokenStr)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized", err.Error())
		return
	}
	if !equalCaseInsensitive(claims.DiplomaID, id) {
		writeError(w, http.StatusForbidden, "Forbidden", "forbidden: id mismatch")
		return
	}

	res, err := a.verifier.Verify(r.Context(), id)
	a.writeVerification(w, res, err, map[string]any{"valid_until": claims.ExpiresAt.Time})
}
