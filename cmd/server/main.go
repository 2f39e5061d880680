package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/chamapay/backend/docs"
	"github.com/chamapay/backend/internal/app"
	"github.com/chamapay/backend/internal/handlers"
	mW "github.com/chamapay/backend/internal/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/viper"
	httpSwagger "github.com/swaggo/http-swagger"
)

// @title Chama Payments API
// @version 1.0
// @description Contributions, savings, loans and penalties for a savings group, settled through a mobile-money gateway.
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := app.New(ctx)
	defer a.Close()
	log := a.Log

	port := viper.GetString("server.port")
	docs.SwaggerInfo.Host = "localhost:" + port

	if n, err := a.Scheduler.Recover(ctx, a.Store); err != nil {
		log.Error().Err(err).Msg("failed to recover pending transactions")
	} else {
		log.Info().Int("requeued", n).Msg("reconciliation queue recovered")
	}
	go a.Scheduler.Run(ctx)
	go a.Sweeps.Run(ctx)

	contributionHandler := handlers.NewContributionHandler(a.Contributions)
	savingsHandler := handlers.NewSavingsHandler(a.Savings)
	loanHandler := handlers.NewLoanHandler(a.Loans)
	transactionHandler := handlers.NewTransactionHandler(a.Scheduler)
	adminHandler := handlers.NewAdminHandler(a.Totals)
	callbackHandler := handlers.NewCallbackHandler(a.Callbacks, log.With().Str("component", "callback").Logger())

	r := chi.NewRouter()

	r.Use(mW.SecurityHeaders)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		status := "healthy"
		if err := a.DB.PingContext(r.Context()); err != nil {
			status = "degraded"
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": status})
	})

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	r.Route("/api/v1", func(r chi.Router) {
		// The gateway cannot authenticate; it only ever gets an ack.
		r.Post("/gateway/callback", callbackHandler.GatewayCallback)

		r.Group(func(r chi.Router) {
			r.Use(mW.AuthMiddleware)

			r.Post("/contributions", contributionHandler.InitiateContribution)
			r.Get("/contributions", contributionHandler.ListContributions)
			r.Get("/penalties", contributionHandler.ListPenalties)
			r.Post("/penalties/{id}/pay", contributionHandler.PayPenalty)

			r.Post("/savings", savingsHandler.InitiateSaving)
			r.Get("/savings", savingsHandler.ListSavings)
			r.Delete("/savings/{id}", savingsHandler.DeleteSaving)

			r.Post("/loans", loanHandler.ApplyForLoan)
			r.Get("/loans", loanHandler.ListLoans)
			r.Get("/loans/{id}", loanHandler.GetLoan)
			r.Post("/loans/{id}/repayments", loanHandler.RepayLoan)

			r.Post("/transactions/verify", transactionHandler.VerifyTransaction)

			r.Route("/admin", func(r chi.Router) {
				r.Use(mW.AdminOnly)

				r.Get("/loans", loanHandler.ListAllLoans)
				r.Post("/loans/{id}/approve", loanHandler.ApproveLoan)
				r.Post("/loans/{id}/reject", loanHandler.RejectLoan)
				r.Get("/stats", adminHandler.GroupStats)
				r.Get("/totals/drift", adminHandler.TotalsDrift)
			})
		})
	})

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("Server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	<-ctx.Done()

	log.Info().Msg("Server shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
