// Package app wires the ledger services together for the server and the
// operator CLI.
package app

import (
	"context"
	"database/sql"

	"github.com/bsm/redislock"
	"github.com/chamapay/backend/internal/audit"
	"github.com/chamapay/backend/internal/config"
	"github.com/chamapay/backend/internal/database"
	"github.com/chamapay/backend/internal/gateway"
	"github.com/chamapay/backend/internal/logger"
	"github.com/chamapay/backend/internal/services"
	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
)

type App struct {
	DB     *sql.DB
	Redis  *redis.Client
	Locker *redislock.Client
	Log    zerolog.Logger

	Reconcile *config.ReconcileConfig
	Loan      *config.LoanConfig
	Cadence   *config.CadenceConfig

	Store         *services.LedgerStore
	Settlement    *services.SettlementService
	Scheduler     *services.ReconciliationScheduler
	Callbacks     *services.CallbackIngestor
	Contributions *services.ContributionService
	Loans         *services.LoanService
	Savings       *services.SavingsService
	Totals        *services.TotalsService
	Sweeps        *services.SweepRunner
}

// New loads configuration, connects to Postgres and (optionally) Redis, and
// builds every service. Without Redis the reconciliation queue lives in
// process memory and sweeps run unlocked.
func New(ctx context.Context) *App {
	config.Load()

	logCfg := config.LoadLogConfig()
	log := logger.NewWithConfig(logger.Config{Level: logCfg.Level, Pretty: logCfg.Pretty})

	a := &App{
		Log:       log,
		Reconcile: config.LoadReconcileConfig(),
		Loan:      config.LoadLoanConfig(),
		Cadence:   config.LoadCadenceConfig(),
	}

	a.DB = database.InitDatabase(ctx)
	a.Redis = database.InitRedis(ctx)
	a.Locker = database.NewLocker(a.Redis)

	var queue services.JobQueue
	if a.Redis != nil {
		queue = services.NewRedisJobQueue(a.Redis)
	} else {
		log.Warn().Msg("reconciliation queue is in-memory; pending jobs are rebuilt from the database on restart")
		queue = services.NewMemoryJobQueue()
	}

	gw := gateway.NewClient(config.LoadGatewayConfig(), logger.Component(log, "gateway"))

	a.Store = services.NewLedgerStore(a.DB)
	a.Settlement = services.NewSettlementService(a.DB, audit.NewAuditLogger(log), logger.Component(log, "settlement"), a.Cadence.Interval)
	a.Scheduler = services.NewReconciliationScheduler(queue, a.Store, gw, a.Settlement, a.Reconcile, logger.Component(log, "reconcile"))
	a.Callbacks = services.NewCallbackIngestor(a.Store, a.Settlement, queue, logger.Component(log, "callback"))

	deps := services.PaymentDeps{
		Store:     a.Store,
		Gateway:   gw,
		Settler:   a.Settlement,
		Scheduler: a.Scheduler,
		Log:       logger.Component(log, "payments"),
	}
	a.Contributions = services.NewContributionService(deps, a.Cadence, a.Reconcile.MaxWait)
	a.Loans = services.NewLoanService(deps, a.Loan)
	a.Savings = services.NewSavingsService(deps)
	a.Totals = services.NewTotalsService(a.Store)
	a.Sweeps = services.NewSweepRunner(a.Loans, a.Contributions, a.Locker, a.Loan.SweepInterval, log)

	return a
}

func (a *App) Close() {
	if a.Redis != nil {
		a.Redis.Close()
	}
	a.DB.Close()
}
