package config

import (
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	LogLevel        string `env:"LOG_LEVEL" envDefault:"info"`
	APIServerAddr   string `env:"API_SERVER_ADDR" envDefault:":8080"`
	AdminServerAddr string `env:"ADMIN_SERVER_ADDR" envDefault:":9091"`

	PostgresURL    string        `env:"POSTGRES_URL,required"`
	RedisAddr      string        `env:"REDIS_ADDR,required"`
	APIKeyCacheTTL time.Duration `env:"API_KEY_CACHE_TTL" envDefault:"5m"`

	// Mail platform settings drive DNS planning and mailbox provisioning.
	MailPlatformHost string `env:"MAIL_PLATFORM_HOST,required"`
	MailTempDomain   string `env:"MAIL_TEMP_DOMAIN,required"`
	DKIMSelector     string `env:"DKIM_SELECTOR" envDefault:"mail"`
	DKIMPublicKey    string `env:"DKIM_PUBLIC_KEY,required"`
	MailAPIBaseURL   string `env:"MAIL_API_BASE_URL,required"`
	MailAPIKey       string `env:"MAIL_API_KEY,required"`
	WebmailLoginURL  string `env:"WEBMAIL_LOGIN_URL,required"`
	DefaultQuotaMB   int64  `env:"DEFAULT_QUOTA_MB" envDefault:"5120"`

	BillingAPIBaseURL string  `env:"BILLING_API_BASE_URL,required"`
	BillingAPIKey     string  `env:"BILLING_API_KEY,required"`
	BillingRPS        float64 `env:"BILLING_RPS" envDefault:"5"`

	MessagingAPIBaseURL string `env:"MESSAGING_API_BASE_URL,required"`
	MessagingAPIKey     string `env:"MESSAGING_API_KEY,required"`
	InviteTemplateID    string `env:"INVITE_TEMPLATE_ID" envDefault:"mailbox-ready"`
	WelcomeTemplateID   string `env:"WELCOME_TEMPLATE_ID" envDefault:"tenant-welcome"`

	VaultSecret          string `env:"VAULT_SECRET,required"`
	HandoffSigningSecret string `env:"HANDOFF_SIGNING_SECRET,required"`

	WorkerBatchSize    int           `env:"WORKER_BATCH_SIZE" envDefault:"32"`
	JobMaxAttempts     int           `env:"JOB_MAX_ATTEMPTS" envDefault:"5"`
	JobDedupTTL        time.Duration `env:"JOB_DEDUP_TTL" envDefault:"1h"`
	ReconcileInterval  time.Duration `env:"RECONCILE_INTERVAL" envDefault:"1h"`
	DNSTimeout         time.Duration `env:"DNS_TIMEOUT" envDefault:"5s"`
	ExternalAPITimeout time.Duration `env:"EXTERNAL_API_TIMEOUT" envDefault:"15s"`
	SecretFields       string        `env:"SECRET_FIELDS" envDefault:"password,pw,secret"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	// Attempt to load .env file for local development.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
