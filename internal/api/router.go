package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/baharkarakas/tokenledger/internal/api/handlers"
	"github.com/baharkarakas/tokenledger/internal/auth"
	"github.com/baharkarakas/tokenledger/internal/config"
	"github.com/baharkarakas/tokenledger/internal/metrics"
	"github.com/baharkarakas/tokenledger/internal/middleware"
	"github.com/baharkarakas/tokenledger/internal/services"
)

type RouterDeps struct {
	Cfg        config.Config
	Log        *zap.Logger
	TM         *auth.TokenManager
	UserSvc    *services.UserService
	LedgerSvc  *services.LedgerService
	MintSvc    *services.MintService
	SessionSvc *services.SessionService
	PaymentSvc *services.PaymentService
}

func NewRouter(d RouterDeps) http.Handler {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recover(log), middleware.Logger(log), middleware.HTTPMetrics, middleware.RateLimit(d.Cfg.RateRPS))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{"X-Request-Id"},
	}))

	// health & metrics
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("ok")) })
	r.Handle("/metrics", metrics.Handler())

	authH := handlers.NewAuthHandler(d.UserSvc)
	userH := handlers.NewUserHandler(d.UserSvc)
	mintH := handlers.NewMintHandler(d.MintSvc)
	sessH := handlers.NewSessionHandler(d.SessionSvc)
	ledgerH := handlers.NewLedgerHandler(d.LedgerSvc)
	payH := handlers.NewPaymentHandler(d.PaymentSvc)
	am := middleware.NewAuthMiddleware(d.TM, d.Cfg.Env)

	r.Route("/api/v1", func(r chi.Router) {
		// ---------- auth ----------
		r.Post("/auth/register", authH.Register)
		r.Post("/auth/login", authH.Login)
		r.Post("/auth/refresh", authH.Refresh)

		// imza ile korunuyor, bearer yok
		r.Post("/webhooks/payments", payH.Webhook)

		r.Group(func(r chi.Router) {
			r.Use(am.Auth)

			r.Get("/me", userH.Me)
			r.Put("/me/wallet", userH.LinkWallet)

			r.Post("/mint/credit", mintH.Credit)

			r.Post("/sessions", sessH.Start)
			r.Get("/sessions", sessH.List)
			r.Post("/sessions/end", sessH.End)
			r.Get("/sessions/{id}", sessH.Get)

			r.Get("/balance", ledgerH.Balance)
			r.Get("/ledger/entries", ledgerH.Entries)

			r.With(middleware.RequireRole("admin")).Get("/admin/users", userH.List)
		})
	})

	return r
}
