package handlers

import (
	"os"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/jwtauth"
	log "github.com/sirupsen/logrus"
)

func (h *Handler) SetRoutes(r *chi.Mux) {
	r.Route("/v1", func(r chi.Router) {

		// public routes: health and provably-fair verification
		r.Get("/health", h.HealthHandler)
		r.Get("/verify", h.VerifyHandler)
		r.Get("/rounds", h.RoundHistoryHandler)
		r.Get("/rounds/{sequence}", h.RoundHandler)

		// Secure routes
		r.Group(func(r chi.Router) {
			r.Use(jwtauth.Verifier(h.tokenAuth))
			r.Use(jwtauth.Authenticator)

			r.Get("/bets", h.BetHistoryHandler)
			r.Get("/seeds", h.SeedHandler)
			r.Post("/seeds/rotate", h.RotateSeedHandler)

			r.Put("/admin/tenants/{tenantID}/game-config", h.UpdateGameConfigHandler)
			r.Put("/admin/tenants/{tenantID}/risk-limits", h.UpdateRiskLimitHandler)
		})
	})
}

func (h *Handler) InitAuth() {
	var jwtKey = os.Getenv("JWT_SECRET_KEY")
	h.tokenAuth = jwtauth.New("HS256", []byte(jwtKey), nil)

	expirationTime := time.Now().Add(7 * 24 * time.Hour).Unix()

	_, tokenString, _ := h.tokenAuth.Encode(map[string]interface{}{
		"user_id":   1,
		"tenant_id": 1,
		"exp":       expirationTime,
	})

	// For debugging only, comment it out in production
	log.Infof("DEBUG: JWT for testing expires soon : %s", tokenString)
}
