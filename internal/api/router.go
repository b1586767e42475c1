package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hackgods/wellness-reschedule/internal/logging"
)

type RouterConfig struct {
	Reschedule RescheduleService
	Wallets    WalletReader
	Inbox      Inbox
	Checks     []Check
	Logger     *zap.Logger
	Gatherer   prometheus.Gatherer

	RateLimitPerMinute int
	CORSAllowedOrigins []string
	AdminToken         string
	Env                string
	Version            string
}

func NewRouter(cfg RouterConfig) http.Handler {
	logger := logging.OrNop(cfg.Logger)

	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))
	r.Use(middleware.Recoverer)

	health := NewHealthHandler(cfg.Checks, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		if cfg.RateLimitPerMinute > 0 {
			r.Use(httprate.LimitByIP(cfg.RateLimitPerMinute, time.Minute))
		}

		r.Route("/reschedule", func(r chi.Router) {
			r.Post("/", proposeRescheduleHandler(cfg.Reschedule))
			r.Put("/", respondRescheduleHandler(cfg.Reschedule))
			r.Get("/", listReschedulesHandler(cfg.Reschedule))
			r.Get("/{id}", getRescheduleHandler(cfg.Reschedule))
		})

		if cfg.Wallets != nil {
			r.Get("/wallets/{userId}", getWalletHandler(cfg.Wallets))
			r.Get("/wallets/{userId}/transactions", listWalletTransactionsHandler(cfg.Wallets))
			r.Get("/wallets/{userId}/audit", auditWalletHandler(cfg.Wallets))
		}

		if cfg.Inbox != nil {
			r.Get("/notifications", listNotificationsHandler(cfg.Inbox))
			r.Put("/notifications/{audience}/{id}/read", markNotificationReadHandler(cfg.Inbox))
		}
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(AdminTokenMiddleware(cfg.AdminToken))
		r.Get("/refunds/pending", listPendingRefundsHandler(cfg.Reschedule))
		r.Post("/refunds/{appointmentId}/settle", settleRefundHandler(cfg.Reschedule))
	})

	return r
}
