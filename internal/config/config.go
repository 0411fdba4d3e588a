// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes server timeouts,
// logging, storage, benchmark sources, negotiation engine thresholds,
// scheduling, rate limiting and observability.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// BenchmarkConfig configures the salary benchmark provider.
type BenchmarkConfig struct {
	StatsURL  string        // BENCHMARK_STATS_URL; empty disables the statistics source
	Timeout   time.Duration // upstream call bound
	CacheTTL  time.Duration // cache horizon (30 days)
	SeedTable bool          // seed benchmark_records on start when empty

	LocationMultipliers    map[string]float64
	CompanySizeMultipliers map[string]float64
}

// EngineConfig holds negotiation engine thresholds.
type EngineConfig struct {
	MarketBand       float64 // fraction, 0.05 = ±5%
	TrendThreshold   float64 // percentage points
	MinIncrement     float64 // currency
	FinalOfferPolicy string  // counter|decline
	HighGapThreshold float64 // percent below market that is High priority
}

// SchedulerConfig holds cron specs for background jobs. An empty spec
// disables the job.
type SchedulerConfig struct {
	ExpirySweepSpec      string
	BenchmarkRefreshSpec string
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// Storage
	DBDriver    string // sqlite|postgres
	DBPath      string // SQLite path
	DatabaseURL string // Postgres DSN
	RedisURL    string // optional; enables Redis cache and events

	// Practice coach
	PlaybookPath string // optional override of the embedded playbook

	// Sessions
	SessionMutationRetries int

	Benchmark BenchmarkConfig
	Engine    EngineConfig
	Scheduler SchedulerConfig

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Idempotency
	IdempotencyTTL time.Duration // how long a given Idempotency-Key is valid

	// Observability
	OTEL OTELConfig
}

const (
	defaultLocationMultipliers    = "san francisco=1.35,new york=1.30,seattle=1.25,boston=1.20,los angeles=1.20,austin=1.10,chicago=1.05,remote=1.00"
	defaultCompanySizeMultipliers = "startup=0.90,small=0.95,medium=1.00,large=1.10,enterprise=1.15"
)

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// Storage
		DBDriver:    strings.ToLower(getenv("DB_DRIVER", "sqlite")),
		DBPath:      getenv("DB_PATH", "negotiation.db"),
		DatabaseURL: getenv("DATABASE_URL", ""),
		RedisURL:    getenv("REDIS_URL", ""),

		PlaybookPath:           getenv("PLAYBOOK_PATH", ""),
		SessionMutationRetries: getint("SESSION_MUTATION_RETRIES", 3),

		Benchmark: BenchmarkConfig{
			StatsURL:  getenv("BENCHMARK_STATS_URL", ""),
			Timeout:   getdur("BENCHMARK_TIMEOUT", 3*time.Second),
			CacheTTL:  getdur("BENCHMARK_CACHE_TTL", 720*time.Hour),
			SeedTable: getbool("BENCHMARK_SEED", true),
		},
		Engine: EngineConfig{
			MarketBand:       getfloat("MARKET_BAND", 0.05),
			TrendThreshold:   getfloat("TREND_THRESHOLD", 2.0),
			MinIncrement:     getfloat("MIN_NEGOTIATION_INCREMENT", 2000),
			FinalOfferPolicy: strings.ToLower(getenv("FINAL_OFFER_POLICY", "counter")),
			HighGapThreshold: getfloat("HIGH_GAP_THRESHOLD", 10),
		},
		Scheduler: SchedulerConfig{
			ExpirySweepSpec:      getenv("EXPIRY_SWEEP_SPEC", "@every 15m"),
			BenchmarkRefreshSpec: getenv("BENCHMARK_REFRESH_SPEC", "@daily"),
		},

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Idempotency
		IdempotencyTTL: getdur("IDEMPOTENCY_TTL", 24*time.Hour),

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-negotiation-backend"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	var err error
	if cfg.Benchmark.LocationMultipliers, err = parseMultipliers(getenv("BENCHMARK_LOCATION_MULTIPLIERS", defaultLocationMultipliers)); err != nil {
		return cfg, fmt.Errorf("BENCHMARK_LOCATION_MULTIPLIERS: %w", err)
	}
	if cfg.Benchmark.CompanySizeMultipliers, err = parseMultipliers(getenv("BENCHMARK_COMPANY_SIZE_MULTIPLIERS", defaultCompanySizeMultipliers)); err != nil {
		return cfg, fmt.Errorf("BENCHMARK_COMPANY_SIZE_MULTIPLIERS: %w", err)
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}
	if cfg.DBDriver == "postgresql" {
		cfg.DBDriver = "postgres"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	switch cfg.DBDriver {
	case "sqlite":
		if strings.TrimSpace(cfg.DBPath) == "" {
			return cfg, errors.New("DB_PATH must not be empty")
		}
	case "postgres":
		if strings.TrimSpace(cfg.DatabaseURL) == "" {
			return cfg, errors.New("DATABASE_URL is required when DB_DRIVER=postgres")
		}
	default:
		return cfg, errors.New("DB_DRIVER must be one of: sqlite, postgres")
	}
	if cfg.SessionMutationRetries < 0 {
		return cfg, errors.New("SESSION_MUTATION_RETRIES must be >= 0")
	}
	if cfg.Benchmark.Timeout <= 0 {
		return cfg, errors.New("BENCHMARK_TIMEOUT must be > 0")
	}
	if cfg.Benchmark.CacheTTL <= 0 {
		return cfg, errors.New("BENCHMARK_CACHE_TTL must be > 0")
	}
	if cfg.Engine.MarketBand <= 0 || cfg.Engine.MarketBand >= 1 {
		return cfg, errors.New("MARKET_BAND must be in (0,1)")
	}
	if cfg.Engine.TrendThreshold <= 0 {
		return cfg, errors.New("TREND_THRESHOLD must be > 0")
	}
	if cfg.Engine.MinIncrement < 0 {
		return cfg, errors.New("MIN_NEGOTIATION_INCREMENT must be >= 0")
	}
	switch cfg.Engine.FinalOfferPolicy {
	case "counter", "decline":
	default:
		return cfg, errors.New("FINAL_OFFER_POLICY must be one of: counter, decline")
	}
	if cfg.Engine.HighGapThreshold <= 0 {
		return cfg, errors.New("HIGH_GAP_THRESHOLD must be > 0")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.IdempotencyTTL <= 0 {
		return cfg, errors.New("IDEMPOTENCY_TTL must be > 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// parseMultipliers reads "key=factor" pairs separated by commas. Keys are
// lowercased; factors must be positive.
func parseMultipliers(s string) (map[string]float64, error) {
	out := make(map[string]float64)
	for _, pair := range splitCSV(s) {
		k, v, ok := strings.Cut(pair, "=")
		k = strings.ToLower(strings.TrimSpace(k))
		if !ok || k == "" {
			return nil, fmt.Errorf("malformed pair %q", pair)
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil || f <= 0 {
			return nil, fmt.Errorf("factor for %q must be a positive number", k)
		}
		out[k] = f
	}
	return out, nil
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
