// Package config loads the process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/velmie/unlocknotify"
	"github.com/velmie/unlocknotify/roster"
	"github.com/velmie/unlocknotify/schedule"
)

// EnvProduction is the APP_ENV value that enforces CRON_SECRET.
const EnvProduction = "production"

// EMAIL_PROVIDER values.
const (
	// ProviderSES delivers through Amazon SES.
	ProviderSES = "ses"
	// ProviderLog writes messages to the log instead of sending them.
	ProviderLog = "log"
)

// METRICS_EXPORTER values.
const (
	// ExporterNone records metrics without exporting them.
	ExporterNone = "none"
	// ExporterStdout writes metrics to stderr in JSON.
	ExporterStdout = "stdout"
	// ExporterOTLP pushes metrics to an OTLP gRPC collector.
	ExporterOTLP = "otlp"
)

const overrideOff = "off"

var (
	// ErrSecretRequired is returned when production runs without CRON_SECRET.
	ErrSecretRequired = errors.New("config: CRON_SECRET is required in production")
	// ErrDSNRequired is returned by RequireDSN when MYSQL_DSN is empty.
	ErrDSNRequired = errors.New("config: MYSQL_DSN is required")
	// ErrFromRequired is returned when the ses provider has no sender address.
	ErrFromRequired = errors.New("config: EMAIL_FROM is required for the ses provider")
	// ErrUnknownProvider is returned for an EMAIL_PROVIDER other than ses or log.
	ErrUnknownProvider = errors.New("config: unknown EMAIL_PROVIDER")
	// ErrUnknownExporter is returned for a METRICS_EXPORTER other than none, stdout or otlp.
	ErrUnknownExporter = errors.New("config: unknown METRICS_EXPORTER")
	// ErrInvalidOverride is returned when the global unlock window is incomplete, malformed or empty.
	ErrInvalidOverride = errors.New("config: invalid global unlock window")
	// ErrInvalidVariable wraps every variable that fails to parse or is out of range.
	ErrInvalidVariable = errors.New("config: invalid variable")
)

// Config is the validated process configuration.
type Config struct {
	AppEnv     string
	HTTPAddr   string
	CronSecret string

	MySQLDSN          string
	OutboxTable       string
	SubscriptionTable string

	MaxAttempts int
	BatchSize   int

	EmailProvider string
	EmailFrom     string
	SiteURL       string
	SendTimeout   time.Duration
	SendRate      float64
	SendBurst     int

	RedisAddr string
	LeaseTTL  time.Duration

	MetricsExporter string
	MetricsInterval time.Duration
	OTLPEndpoint    string
	OTLPInsecure    bool

	// GlobalUnlock is the override window. Zero when disabled.
	GlobalUnlock schedule.Window
}

// Production reports whether APP_ENV is production.
func (c Config) Production() bool {
	return c.AppEnv == EnvProduction
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	return Parse(os.LookupEnv)
}

// Parse builds a Config from lookup and validates it. MYSQL_DSN is not checked here since the memory
// store runs without it; see RequireDSN.
func Parse(lookup func(string) (string, bool)) (Config, error) {
	p := parser{lookup: lookup}

	cfg := Config{
		AppEnv:            p.str("APP_ENV", "development"),
		HTTPAddr:          p.str("HTTP_ADDR", ":8080"),
		CronSecret:        p.str("CRON_SECRET", ""),
		MySQLDSN:          p.str("MYSQL_DSN", ""),
		OutboxTable:       p.str("OUTBOX_TABLE", "notification_outbox"),
		SubscriptionTable: p.str("SUBSCRIPTION_TABLE", "notification_subscriptions"),
		MaxAttempts:       p.integer("MAX_ATTEMPTS", unlocknotify.DefaultMaxAttempts),
		BatchSize:         p.integer("DRAIN_BATCH_SIZE", unlocknotify.DefaultBatchSize),
		EmailProvider:     strings.ToLower(p.str("EMAIL_PROVIDER", ProviderLog)),
		EmailFrom:         p.str("EMAIL_FROM", ""),
		SiteURL:           p.str("SITE_URL", unlocknotify.DefaultSiteURL),
		SendTimeout:       p.duration("SEND_TIMEOUT", 10*time.Second),
		SendRate:          p.float("SEND_RATE_PER_SEC", 2),
		SendBurst:         p.integer("SEND_BURST", 1),
		RedisAddr:         p.str("REDIS_ADDR", ""),
		LeaseTTL:          p.duration("RUN_LEASE_TTL", 5*time.Minute),
		MetricsExporter:   strings.ToLower(p.str("METRICS_EXPORTER", ExporterStdout)),
		MetricsInterval:   p.duration("METRICS_INTERVAL", time.Minute),
		OTLPEndpoint:      p.str("OTLP_ENDPOINT", "localhost:4317"),
		OTLPInsecure:      p.boolean("OTLP_INSECURE", false),
		GlobalUnlock:      p.window("GLOBAL_UNLOCK_START", "GLOBAL_UNLOCK_END", roster.GlobalUnlock),
	}
	if p.err != nil {
		return Config{}, p.err
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// RequireDSN fails when the MySQL store is selected without a DSN.
func (c Config) RequireDSN() error {
	if c.MySQLDSN == "" {
		return ErrDSNRequired
	}

	return nil
}

func (c Config) validate() error {
	var errs []error
	if c.Production() && c.CronSecret == "" {
		errs = append(errs, ErrSecretRequired)
	}
	switch c.EmailProvider {
	case ProviderSES:
		if c.EmailFrom == "" {
			errs = append(errs, ErrFromRequired)
		}
	case ProviderLog:
	default:
		errs = append(errs, fmt.Errorf("%w: %q", ErrUnknownProvider, c.EmailProvider))
	}
	if c.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("%w: MAX_ATTEMPTS must be positive", ErrInvalidVariable))
	}
	if c.BatchSize < 1 {
		errs = append(errs, fmt.Errorf("%w: DRAIN_BATCH_SIZE must be positive", ErrInvalidVariable))
	}
	if c.LeaseTTL <= 0 {
		errs = append(errs, fmt.Errorf("%w: RUN_LEASE_TTL must be positive", ErrInvalidVariable))
	}
	switch c.MetricsExporter {
	case ExporterNone, ExporterStdout, ExporterOTLP:
	default:
		errs = append(errs, fmt.Errorf("%w: %q", ErrUnknownExporter, c.MetricsExporter))
	}
	if c.MetricsInterval <= 0 {
		errs = append(errs, fmt.Errorf("%w: METRICS_INTERVAL must be positive", ErrInvalidVariable))
	}

	return errors.Join(errs...)
}

// parser keeps the first error so Parse can read every variable in one expression.
type parser struct {
	lookup func(string) (string, bool)
	err    error
}

func (p *parser) str(key, fallback string) string {
	v, ok := p.lookup(key)
	v = strings.TrimSpace(v)
	if !ok || v == "" {
		return fallback
	}

	return v
}

func (p *parser) fail(key, value string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("%w: %s=%q: %v", ErrInvalidVariable, key, value, err)
	}
}

func (p *parser) integer(key string, fallback int) int {
	raw := p.str(key, "")
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		p.fail(key, raw, err)
		return fallback
	}

	return n
}

func (p *parser) float(key string, fallback float64) float64 {
	raw := p.str(key, "")
	if raw == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		p.fail(key, raw, err)
		return fallback
	}

	return f
}

func (p *parser) boolean(key string, fallback bool) bool {
	raw := p.str(key, "")
	if raw == "" {
		return fallback
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		p.fail(key, raw, err)
		return fallback
	}

	return b
}

func (p *parser) duration(key string, fallback time.Duration) time.Duration {
	raw := p.str(key, "")
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		p.fail(key, raw, err)
		return fallback
	}

	return d
}

// window reads an RFC3339 override window. Both bounds or neither; "off" in either disables it.
func (p *parser) window(startKey, endKey string, fallback schedule.Window) schedule.Window {
	start, end := p.str(startKey, ""), p.str(endKey, "")
	if strings.EqualFold(start, overrideOff) || strings.EqualFold(end, overrideOff) {
		return schedule.Window{}
	}
	if start == "" && end == "" {
		return fallback
	}
	if start == "" || end == "" {
		if p.err == nil {
			p.err = fmt.Errorf("%w: %s and %s must be set together", ErrInvalidOverride, startKey, endKey)
		}
		return fallback
	}

	s, err := time.Parse(time.RFC3339, start)
	if err != nil {
		p.fail(startKey, start, err)
		return fallback
	}
	e, err := time.Parse(time.RFC3339, end)
	if err != nil {
		p.fail(endKey, end, err)
		return fallback
	}
	if !s.Before(e) {
		if p.err == nil {
			p.err = fmt.Errorf("%w: start %s is not before end %s", ErrInvalidOverride, start, end)
		}
		return fallback
	}

	return schedule.Window{Start: s.UTC(), End: e.UTC()}
}
