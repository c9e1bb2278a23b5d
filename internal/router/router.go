package router

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"podcred/internal/config"
	"podcred/internal/handlers"
	"podcred/internal/middleware"
)

func RegisterRouter(api *handlers.API, cfg config.Config, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.Recoverer)
	r.Use(middleware.CORSMiddleware(cfg.Server.AllowedOrigins))
	r.Use(middleware.LoggingMiddleware(logger))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "ok")
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/config", api.GetConfig)

		r.Post("/auth/nonce", api.GetNonce)
		r.Post("/auth/login", api.Login)

		r.Get("/universities", api.ListUniversities)
		r.Get("/universities/{address}", api.GetUniversity)
		r.Get("/universities/{address}/status", api.UniversityStatus)
		r.Get("/students/{address}/diplomas", api.StudentDiplomas)

		r.Get("/verify/{id}", api.VerifyDiploma)
		r.Get("/verify/token/{tokenId}", api.VerifyToken)
		r.Get("/shared/{id}", api.SharedDiploma)
		r.Get("/diplomas/{id}/qrcode", api.DiplomaQRCode)
		r.Get("/transactions/{hash}", api.GetTransaction)

		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware([]byte(cfg.Auth.JWTSecret)))
			r.Get("/auth/me", api.AuthMe)
			r.Get("/me/diplomas", api.MyDiplomas)
			r.Get("/transactions", api.ListTransactions)
			r.Post("/diplomas/{id}/share", api.GenerateShareLink)

			// Writes are signed by the operator wallet.
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireSigner(api.Signer))
				r.Post("/universities", api.RegisterUniversity)
				r.Post("/diplomas/{id}/mint", api.MintDiploma)

				r.Group(func(r chi.Router) {
					r.Use(api.RequireIssuer)
					r.Post("/diplomas", api.IssueDiploma)
					r.Post("/diplomas/batch", api.IssueBatch)
					r.Post("/diplomas/batch/csv", api.IssueBatchCSV)
				})

				r.Group(func(r chi.Router) {
					r.Use(api.RequireAdmin)
					r.Post("/admin/universities/{address}/approve", api.ApproveUniversity)
					r.Post("/admin/universities/{address}/grant-role", api.GrantUniversityRole)
				})
			})
		})
	})

	return r
}
