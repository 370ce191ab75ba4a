package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix namespaces every environment variable consumed by the client.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App          AppConfig
	Cache        CacheConfig
	Remote       RemoteConfig
	GCP          GCPConfig
	GCS          GCSConfig
	Sync         SyncConfig
	Connectivity ConnectivityConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"PFMOBILE_APP_ENV" default:"dev"`
	LogLevel     string `envconfig:"PFMOBILE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"PFMOBILE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type CacheConfig struct {
	Path        string        `envconfig:"PFMOBILE_CACHE_PATH" default:"packfinderz.db"`
	BusyTimeout time.Duration `envconfig:"PFMOBILE_CACHE_BUSY_TIMEOUT" default:"5s"`
	AutoMigrate bool          `envconfig:"PFMOBILE_CACHE_AUTO_MIGRATE" default:"true"`
}

// DSN builds the sqlite connection string for the cache file.
func (c CacheConfig) DSN() string {
	path := strings.TrimSpace(c.Path)
	if path == "" {
		path = "packfinderz.db"
	}
	busyMS := c.BusyTimeout.Milliseconds()
	if busyMS <= 0 {
		busyMS = 5000
	}
	return fmt.Sprintf("file:%s?_busy_timeout=%d&_journal_mode=WAL", path, busyMS)
}

type RemoteConfig struct {
	BaseURL   string        `envconfig:"PFMOBILE_REMOTE_BASE_URL" required:"true"`
	AuthToken string        `envconfig:"PFMOBILE_REMOTE_AUTH_TOKEN"`
	Timeout   time.Duration `envconfig:"PFMOBILE_REMOTE_TIMEOUT" default:"10s"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"PFMOBILE_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"PFMOBILE_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"PFMOBILE_GOOGLE_APPLICATION_CREDENTIALS"`
}

type GCSConfig struct {
	BucketName   string `envconfig:"PFMOBILE_GCS_BUCKET_NAME" required:"true"`
	ObjectPrefix string `envconfig:"PFMOBILE_GCS_OBJECT_PREFIX" default:"store-media"`
}

type SyncConfig struct {
	Workers      int           `envconfig:"PFMOBILE_SYNC_WORKERS" default:"4"`
	QueueSize    int           `envconfig:"PFMOBILE_SYNC_QUEUE_SIZE" default:"64"`
	PassInterval time.Duration `envconfig:"PFMOBILE_SYNC_PASS_INTERVAL" default:"30s"`
	BackoffBase  time.Duration `envconfig:"PFMOBILE_SYNC_BACKOFF_BASE" default:"2s"`
	BackoffCap   time.Duration `envconfig:"PFMOBILE_SYNC_BACKOFF_CAP" default:"5m"`
	MaxRetries   uint64        `envconfig:"PFMOBILE_SYNC_MAX_RETRIES" default:"5"`
}

type ConnectivityConfig struct {
	ProbeURL      string        `envconfig:"PFMOBILE_CONNECTIVITY_PROBE_URL"`
	ProbeInterval time.Duration `envconfig:"PFMOBILE_CONNECTIVITY_PROBE_INTERVAL" default:"15s"`
	ProbeTimeout  time.Duration `envconfig:"PFMOBILE_CONNECTIVITY_PROBE_TIMEOUT" default:"3s"`
}

// ProbeTarget falls back to the remote base URL when no probe URL is set.
func (c ConnectivityConfig) ProbeTarget(remote RemoteConfig) string {
	if strings.TrimSpace(c.ProbeURL) != "" {
		return c.ProbeURL
	}
	return remote.BaseURL
}
