package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Prover     ProverConfig     `yaml:"prover" mapstructure:"prover"`
	QuickBooks QuickBooksConfig `yaml:"quickbooks" mapstructure:"quickbooks"`
	Lender     LenderConfig     `yaml:"lender" mapstructure:"lender"`
	Retry      RetryConfig      `yaml:"retry" mapstructure:"retry"`
	Circuit    CircuitConfig    `yaml:"circuit" mapstructure:"circuit"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port               int      `yaml:"port" mapstructure:"port"`
	CORSOrigins        []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	RequestTimeoutSecs int      `yaml:"request_timeout_secs" mapstructure:"request_timeout_secs"`
	CookieSecure       bool     `yaml:"cookie_secure" mapstructure:"cookie_secure"`
	FrontendURL        string   `yaml:"frontend_url" mapstructure:"frontend_url"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ProverConfig configures the proof backend.
type ProverConfig struct {
	// Backend is "nargo" (external circuit executor) or "local" (in-process evaluator).
	Backend        string `yaml:"backend" mapstructure:"backend"`
	NargoPath      string `yaml:"nargo_path" mapstructure:"nargo_path"`
	CircuitDir     string `yaml:"circuit_dir" mapstructure:"circuit_dir"`
	TimeoutSecs    int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	Isolate        bool   `yaml:"isolate" mapstructure:"isolate"`
	MaxConcurrent  int    `yaml:"max_concurrent" mapstructure:"max_concurrent"`
	LenientOutputs bool   `yaml:"lenient_outputs" mapstructure:"lenient_outputs"`
}

// QuickBooksConfig holds QuickBooks Online OAuth and API settings.
type QuickBooksConfig struct {
	ClientID      string `yaml:"client_id" mapstructure:"client_id"`
	ClientSecret  string `yaml:"client_secret" mapstructure:"client_secret"`
	RedirectURL   string `yaml:"redirect_url" mapstructure:"redirect_url"`
	Environment   string `yaml:"environment" mapstructure:"environment"`
	BaseURL       string `yaml:"base_url" mapstructure:"base_url"`
	MinorVersion  int    `yaml:"minor_version" mapstructure:"minor_version"`
	RatePerMinute int    `yaml:"rate_per_minute" mapstructure:"rate_per_minute"`
	PageSize      int    `yaml:"page_size" mapstructure:"page_size"`
}

// LenderConfig holds the default pass bounds applied when a request leaves
// a threshold unset.
type LenderConfig struct {
	ThresholdPercent         uint64 `yaml:"threshold_percent" mapstructure:"threshold_percent"`
	DTIThresholdBP           uint64 `yaml:"dti_threshold_bp" mapstructure:"dti_threshold_bp"`
	DSOThreshold             uint64 `yaml:"dso_threshold" mapstructure:"dso_threshold"`
	ARPctThresholdBP         uint64 `yaml:"ar_pct_threshold_bp" mapstructure:"ar_pct_threshold_bp"`
	RevenueThreshold         uint64 `yaml:"revenue_threshold" mapstructure:"revenue_threshold"`
	ConcentrationThresholdBP uint64 `yaml:"concentration_threshold_bp" mapstructure:"concentration_threshold_bp"`
}

// RetryConfig controls retries against the accounting API.
type RetryConfig struct {
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Multiplier       float64 `yaml:"multiplier" mapstructure:"multiplier"`
	JitterFraction   float64 `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`
}

// CircuitConfig controls the accounting API circuit breaker.
type CircuitConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ZKCREDIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "zkcredit.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 3001)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.request_timeout_secs", 120)
	v.SetDefault("prover.backend", "nargo")
	v.SetDefault("prover.nargo_path", "nargo")
	v.SetDefault("prover.circuit_dir", "circuits/lending_criteria")
	v.SetDefault("prover.timeout_secs", 60)
	v.SetDefault("prover.max_concurrent", 4)
	v.SetDefault("quickbooks.environment", "sandbox")
	v.SetDefault("quickbooks.minor_version", 75)
	v.SetDefault("quickbooks.rate_per_minute", 450)
	v.SetDefault("quickbooks.page_size", 1000)
	v.SetDefault("lender.threshold_percent", 90)
	v.SetDefault("lender.dti_threshold_bp", 4000)
	v.SetDefault("lender.dso_threshold", 45)
	v.SetDefault("lender.ar_pct_threshold_bp", 1000)
	v.SetDefault("lender.revenue_threshold", 120000)
	v.SetDefault("lender.concentration_threshold_bp", 5000)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 500)
	v.SetDefault("retry.max_backoff_ms", 10000)
	v.SetDefault("retry.multiplier", 2.0)
	v.SetDefault("retry.jitter_fraction", 0.25)
	v.SetDefault("circuit.failure_threshold", 5)
	v.SetDefault("circuit.reset_timeout_secs", 30)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command needs. Scope names the command:
// "serve", "prove", "connected" or "store".
func (c *Config) Validate(scope string) error {
	var errs []string

	switch scope {
	case "serve", "prove", "connected":
		switch c.Prover.Backend {
		case "nargo":
			if c.Prover.CircuitDir == "" {
				errs = append(errs, "prover.circuit_dir is required for the nargo backend")
			}
		case "local":
		default:
			errs = append(errs, "prover.backend must be nargo or local")
		}
		if c.Prover.TimeoutSecs <= 0 {
			errs = append(errs, "prover.timeout_secs must be > 0")
		}
	}

	if scope == "serve" && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		errs = append(errs, "server.port must be between 1 and 65535")
	}

	switch scope {
	case "serve", "connected":
		if c.QuickBooks.ClientID == "" {
			errs = append(errs, "quickbooks.client_id is required")
		}
		if c.QuickBooks.ClientSecret == "" {
			errs = append(errs, "quickbooks.client_secret is required")
		}
		if c.QuickBooks.RedirectURL == "" && scope == "serve" {
			errs = append(errs, "quickbooks.redirect_url is required")
		}
	}

	switch scope {
	case "serve", "connected", "store":
		switch c.Store.Driver {
		case "sqlite", "postgres":
		default:
			errs = append(errs, "store.driver must be sqlite or postgres")
		}
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required")
		}
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
