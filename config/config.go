package config

import (
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/shopspring/decimal"
)

type Config struct {
	HTTPAddr    string `long:"http-addr" env:"HTTP_ADDR" default:":8080" description:"HTTP listen address"`
	PostgresURL string `long:"postgres-url" env:"POSTGRES_URL" required:"true" description:"Postgres connection string"`
	RedisAddr   string `long:"redis-addr" env:"REDIS_ADDR" default:"localhost:6379" description:"Redis address"`
	LogLevel    string `long:"log-level" env:"LOG_LEVEL" default:"info"`

	GatewayAddr    string `long:"gateway-addr" env:"GATEWAY_ADDR" description:"Base URL used when a service URL is not set"`
	JaegerEndpoint string `long:"jaeger-endpoint" env:"JAEGER_ENDPOINT"`

	MatcherURL       string        `long:"matcher-url" env:"STATEMENT_MATCHER_URL"`
	MatcherTimeout   time.Duration `long:"matcher-timeout" env:"STATEMENT_MATCHER_TIMEOUT" default:"10s"`
	NotificationsURL string        `long:"notifications-url" env:"NOTIFICATIONS_URL"`
	SheetsURL        string        `long:"sheets-url" env:"SHEETS_URL"`
	EntitlementsURL  string        `long:"entitlements-url" env:"ENTITLEMENTS_URL"`

	EntitlementCacheTTL time.Duration `long:"entitlement-cache-ttl" env:"ENTITLEMENT_CACHE_TTL" default:"5m"`

	JWTSecret string `long:"jwt-secret" env:"JWT_SECRET" required:"true"`

	AmountTolerance string        `long:"amount-tolerance" env:"AMOUNT_TOLERANCE" default:"1"`
	ProofStaleAfter time.Duration `long:"proof-stale-after" env:"PROOF_STALE_AFTER" default:"720h"`
	BulkBatchSize   int           `long:"bulk-batch-size" env:"BULK_BATCH_SIZE" default:"5"`

	UploadDir    string `long:"upload-dir" env:"UPLOAD_DIR" default:"./uploads"`
	MaxProofSize int64  `long:"max-proof-size" env:"MAX_PROOF_SIZE" default:"10485760"`
}

func Load(args []string) (Config, error) {
	var cfg Config

	parser := flags.NewParser(&cfg, flags.Default)
	if _, err := parser.ParseArgs(args); err != nil {
		return Config{}, fmt.Errorf("could not parse config: %w", err)
	}

	cfg.MatcherURL = orGateway(cfg.MatcherURL, cfg.GatewayAddr, "/statement-matcher/match")
	cfg.NotificationsURL = orGateway(cfg.NotificationsURL, cfg.GatewayAddr, "/notifications-api")
	cfg.SheetsURL = orGateway(cfg.SheetsURL, cfg.GatewayAddr, "/spreadsheets-api")
	cfg.EntitlementsURL = orGateway(cfg.EntitlementsURL, cfg.GatewayAddr, "/entitlements-api")

	if _, err := cfg.Tolerance(); err != nil {
		return Config{}, err
	}
	if cfg.BulkBatchSize <= 0 {
		return Config{}, fmt.Errorf("bulk batch size must be positive, got %d", cfg.BulkBatchSize)
	}

	return cfg, nil
}

// Tolerance is the accepted absolute difference between a claimed and an expected amount.
func (c Config) Tolerance() (decimal.Decimal, error) {
	tolerance, err := decimal.NewFromString(c.AmountTolerance)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid amount tolerance %q: %w", c.AmountTolerance, err)
	}
	if tolerance.IsNegative() {
		return decimal.Decimal{}, fmt.Errorf("amount tolerance must not be negative, got %s", tolerance)
	}

	return tolerance, nil
}

func orGateway(url, gateway, path string) string {
	if url != "" || gateway == "" {
		return url
	}

	return gateway + path
}
