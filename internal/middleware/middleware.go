package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"podcred/pkg"
)

type contextKey string

const (
	// WalletAddressKey holds the lowercased 0x address of the session wallet.
	WalletAddressKey contextKey = "walletAddress"
	RequestIDKey     contextKey = "requestID"
)

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"status": code, "message": message})
}

// WalletAddress returns the authenticated wallet, if any.
func WalletAddress(ctx context.Context) (string, bool) {
	addr, ok := ctx.Value(WalletAddressKey).(string)
	return addr, ok && addr != ""
}

// AuthMiddleware requires a valid "Authorization: Bearer <jwt>" session
// token and stores its wallet address in the request context.
func AuthMiddleware(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			tokenStr, found := strings.CutPrefix(header, "Bearer ")
			if !found || strings.TrimSpace(tokenStr) == "" {
				writeError(w, http.StatusUnauthorized, "Unauthorized", "missing bearer token")
				return
			}

			claims, err := pkg.ParseToken(secret, strings.TrimSpace(tokenStr))
			if err != nil {
				writeError(w, http.StatusUnauthorized, "Unauthorized", err.Error())
				return
			}

			ctx := context.WithValue(r.Context(), WalletAddressKey, claims.Address)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireSigner admits only the session of the configured operator wallet,
// whose key signs every write.
func RequireSigner(signer func() (string, bool)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			addr, ok := WalletAddress(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "Unauthorized", "missing session")
				return
			}
			operator, configured := signer()
			if !configured {
				writeError(w, http.StatusServiceUnavailable, "Unavailable", "no signer configured, writes are disabled")
				return
			}
			if !strings.EqualFold(addr, operator) {
				writeError(w, http.StatusForbidden, "Forbidden", "session wallet is not the operator wallet")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CORSMiddleware answers preflight requests and sets CORS headers for the
// allowed origins. "*" allows any origin.
func CORSMiddleware(allowed []string) func(http.Handler) http.Handler {
	wildcard := false
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "*" {
			wildcard = true
		}
		set[o] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" {
				if _, ok := set[origin]; ok {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Set("Access-Control-Allow-Credentials", "true")
					w.Header().Add("Vary", "Origin")
				} else if wildcard {
					// Credentials are never allowed for a wildcard origin.
					w.Header().Set("Access-Control-Allow-Origin", "*")
				}
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-ID")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// LoggingMiddleware tags each request with an id and logs it when done.
func LoggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			id := r.Header.Get("X-Request-ID")
			if id == "" {
				id = uuid.NewString()
			}
			w.Header().Set("X-Request-ID", id)

			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(context.WithValue(r.Context(), RequestIDKey, id)))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			fields := []zap.Field{
				zap.String("request_id", id),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", status),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
			}
			if status >= http.StatusInternalServerError {
				logger.Warn("Request failed", fields...)
			} else {
				logger.Debug("Request served", fields...)
			}
		})
	}
}
