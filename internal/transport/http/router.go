package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/notify-gateway/internal/application/dispatch"
	"github.com/notify-gateway/internal/application/otp"
	"github.com/notify-gateway/internal/channel"
	"github.com/notify-gateway/internal/config"
	"github.com/notify-gateway/internal/transport/http/handler"
	appmiddleware "github.com/notify-gateway/internal/transport/http/middleware"
	"golang.org/x/time/rate"
)

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", appmiddleware.InternalKeyHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	var authMw func(http.Handler) http.Handler
	if deps.JWTProvider != nil {
		authMw = appmiddleware.Auth(deps.JWTProvider)
	} else {
		authMw = func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, `{"error":"authentication unavailable"}`, http.StatusServiceUnavailable)
			})
		}
	}
	internalMw := appmiddleware.InternalKey(cfg.InternalKeyHash)

	// 5 requests/second, burst of 10, applied to the public OTP endpoints.
	otpRL := appmiddleware.NewRateLimiter(rate.Limit(5), 10)

	senders := []channel.Sender{
		channel.NewEmailSender(deps.Mailer),
		channel.NewWhatsAppSender(cfg),
	}
	if deps.Publisher != nil {
		senders = append(senders,
			channel.NewSMSSender(deps.Publisher),
			channel.NewPushSender(deps.Publisher, cfg.PushTargetARN),
		)
	}

	dispatchSvc := dispatch.NewService(dispatch.ServiceDeps{
		Store:    deps.NotificationRepo,
		Archive:  deps.Archive,
		Renderer: deps.Templates,
		Senders:  senders,
	})
	otpSvc := otp.NewService(otp.ServiceDeps{
		OTPRepo:    deps.OTPRepo,
		LedgerRepo: deps.VerifiedEmailRepo,
		Dispatcher: dispatchSvc,
		Policy:     cfg.OTP,
		DevMode:    cfg.AppEnv == "development",
	})

	healthH := handler.NewHealthHandler()
	otpH := handler.NewOTPHandler(otpSvc)
	notifH := handler.NewNotificationHandler(dispatchSvc)
	internalH := handler.NewInternalHandler(dispatchSvc, otpSvc)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/health-check", healthH.Check)

		r.Group(func(r chi.Router) {
			r.Use(otpRL.Limit)

			r.Post("/otp/send", otpH.Send)
			r.Post("/otp/verify", otpH.Verify)
			r.Post("/otp/resend", otpH.Resend)
			r.Get("/otp/status", otpH.Status)
		})

		r.Group(func(r chi.Router) {
			r.Use(authMw)

			r.Get("/notifications", notifH.History)
			r.Get("/notifications/{id}", notifH.Get)
		})
	})

	r.Route("/internal", func(r chi.Router) {
		r.Use(internalMw)

		r.Post("/notifications", internalH.Send)
		r.Post("/notifications/multi", internalH.SendMulti)
		r.Post("/otp/invalidate", internalH.InvalidateVerified)
		r.Get("/verified", internalH.CheckVerified)
		r.Post("/maintenance/{action}", internalH.Maintenance)
		r.Get("/stats", internalH.Stats)
	})

	return r
}
