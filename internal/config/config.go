package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// envBindings maps dotted config keys to the environment variables that
// override them.
var envBindings = map[string]string{
	"database.host":     "DATABASE_HOST",
	"database.port":     "DATABASE_PORT",
	"database.user":     "DATABASE_USER",
	"database.password": "DATABASE_PASSWORD",
	"database.name":     "DATABASE_NAME",
	"database.ssl_mode": "DATABASE_SSL_MODE",

	"redis.host":     "REDIS_HOST",
	"redis.port":     "REDIS_PORT",
	"redis.password": "REDIS_PASSWORD",
	"redis.db":       "REDIS_DB",

	"jwt.secret_key": "JWT_SECRET_KEY",

	"gateway.base_url":      "GATEWAY_BASE_URL",
	"gateway.initiate_path": "GATEWAY_INITIATE_PATH",
	"gateway.verify_path":   "GATEWAY_VERIFY_PATH",
	"gateway.api_key":       "GATEWAY_API_KEY",
	"gateway.timeout":       "GATEWAY_TIMEOUT",
	"gateway.country_code":  "GATEWAY_COUNTRY_CODE",

	"reconcile.initial_delay":  "RECONCILE_INITIAL_DELAY",
	"reconcile.retry_interval": "RECONCILE_RETRY_INTERVAL",
	"reconcile.max_wait":       "RECONCILE_MAX_WAIT",
	"reconcile.poll_tick":      "RECONCILE_POLL_TICK",
	"reconcile.workers":        "RECONCILE_WORKERS",
	"reconcile.batch_size":     "RECONCILE_BATCH_SIZE",

	"loan.interest_rate":     "LOAN_INTEREST_RATE",
	"loan.penalty_rate":      "LOAN_PENALTY_RATE",
	"loan.min_amount":        "LOAN_MIN_AMOUNT",
	"loan.max_amount":        "LOAN_MAX_AMOUNT",
	"loan.repayment_window":  "LOAN_REPAYMENT_WINDOW",
	"loan.sweep_interval":    "LOAN_SWEEP_INTERVAL",
	"cadence.default_amount": "CONTRIBUTION_DEFAULT_AMOUNT",
	"cadence.interval":       "CONTRIBUTION_INTERVAL",
	"cadence.timezone":       "CONTRIBUTION_TIMEZONE",
	"cadence.cutoff_hour":    "CONTRIBUTION_CUTOFF_HOUR",
	"cadence.penalty_tiers":  "CONTRIBUTION_PENALTY_TIERS",

	"log.level":  "LOG_LEVEL",
	"log.pretty": "LOG_PRETTY",

	"server.port": "PORT",
}

// Load reads .env (if present) into the process environment and binds every
// known key to its variable.
func Load() {
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file loaded, using process environment")
	}

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	for key, env := range envBindings {
		_ = viper.BindEnv(key, env)
	}

	viper.SetDefault("server.port", "8080")
}

// GatewayConfig configures the push-payment provider client.
type GatewayConfig struct {
	BaseURL      string
	InitiatePath string
	VerifyPath   string
	APIKey       string
	Timeout      time.Duration
	CountryCode  string
}

func LoadGatewayConfig() *GatewayConfig {
	viper.SetDefault("gateway.base_url", "http://localhost:9090")
	viper.SetDefault("gateway.initiate_path", "/api/payVirusiMbayaV2.php")
	viper.SetDefault("gateway.verify_path", "/api/verify-transaction.php")
	viper.SetDefault("gateway.timeout", 30*time.Second)
	viper.SetDefault("gateway.country_code", "KE")

	return &GatewayConfig{
		BaseURL:      strings.TrimRight(viper.GetString("gateway.base_url"), "/"),
		InitiatePath: viper.GetString("gateway.initiate_path"),
		VerifyPath:   viper.GetString("gateway.verify_path"),
		APIKey:       viper.GetString("gateway.api_key"),
		Timeout:      viper.GetDuration("gateway.timeout"),
		CountryCode:  viper.GetString("gateway.country_code"),
	}
}

// ReconcileConfig bounds the polling side of reconciliation.
type ReconcileConfig struct {
	InitialDelay  time.Duration
	RetryInterval time.Duration
	MaxWait       time.Duration
	PollTick      time.Duration
	Workers       int
	BatchSize     int
}

func LoadReconcileConfig() *ReconcileConfig {
	viper.SetDefault("reconcile.initial_delay", 10*time.Second)
	viper.SetDefault("reconcile.retry_interval", 5*time.Second)
	viper.SetDefault("reconcile.max_wait", 10*time.Minute)
	viper.SetDefault("reconcile.poll_tick", time.Second)
	viper.SetDefault("reconcile.workers", 4)
	viper.SetDefault("reconcile.batch_size", 50)

	return &ReconcileConfig{
		InitialDelay:  viper.GetDuration("reconcile.initial_delay"),
		RetryInterval: viper.GetDuration("reconcile.retry_interval"),
		MaxWait:       viper.GetDuration("reconcile.max_wait"),
		PollTick:      viper.GetDuration("reconcile.poll_tick"),
		Workers:       viper.GetInt("reconcile.workers"),
		BatchSize:     viper.GetInt("reconcile.batch_size"),
	}
}

// LoanConfig holds loan pricing and limits. Rates are fractions (0.10 = 10%).
type LoanConfig struct {
	InterestRate    float64
	PenaltyRate     float64
	MinAmount       float64
	MaxAmount       float64
	RepaymentWindow time.Duration
	SweepInterval   time.Duration
}

func LoadLoanConfig() *LoanConfig {
	viper.SetDefault("loan.interest_rate", 0.10)
	viper.SetDefault("loan.penalty_rate", 0.05)
	viper.SetDefault("loan.min_amount", 100)
	viper.SetDefault("loan.max_amount", 100000)
	viper.SetDefault("loan.repayment_window", 30*24*time.Hour)
	viper.SetDefault("loan.sweep_interval", time.Hour)

	return &LoanConfig{
		InterestRate:    viper.GetFloat64("loan.interest_rate"),
		PenaltyRate:     viper.GetFloat64("loan.penalty_rate"),
		MinAmount:       viper.GetFloat64("loan.min_amount"),
		MaxAmount:       viper.GetFloat64("loan.max_amount"),
		RepaymentWindow: viper.GetDuration("loan.repayment_window"),
		SweepInterval:   viper.GetDuration("loan.sweep_interval"),
	}
}

// CadenceConfig governs the daily contribution rhythm and missed-day penalties.
type CadenceConfig struct {
	DefaultAmount float64
	Interval      time.Duration
	Timezone      string
	CutoffHour    int
	PenaltyTiers  []float64
}

func LoadCadenceConfig() *CadenceConfig {
	viper.SetDefault("cadence.default_amount", 20)
	viper.SetDefault("cadence.interval", 24*time.Hour)
	viper.SetDefault("cadence.timezone", "Africa/Nairobi")
	viper.SetDefault("cadence.cutoff_hour", 0)
	viper.SetDefault("cadence.penalty_tiers", "50,100,150")

	return &CadenceConfig{
		DefaultAmount: viper.GetFloat64("cadence.default_amount"),
		Interval:      viper.GetDuration("cadence.interval"),
		Timezone:      viper.GetString("cadence.timezone"),
		CutoffHour:    viper.GetInt("cadence.cutoff_hour"),
		PenaltyTiers:  parseTiers(viper.GetStringSlice("cadence.penalty_tiers")),
	}
}

// Location resolves the cadence timezone, falling back to a fixed UTC+3 zone
// when tzdata is unavailable.
func (c *CadenceConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.FixedZone("EAT", 3*60*60)
	}
	return loc
}

type LogConfig struct {
	Level  string
	Pretty bool
}

func LoadLogConfig() *LogConfig {
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.pretty", false)

	return &LogConfig{
		Level:  viper.GetString("log.level"),
		Pretty: viper.GetBool("log.pretty"),
	}
}
