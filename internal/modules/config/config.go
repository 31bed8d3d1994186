package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	configFilePathENV = "CONFIG_FILE"
	configDirENV      = "CONFIG_DIR"
	tokenTelegramENV  = "TELEGRAM_TOKEN"
	chatTelegramENV   = "TELEGRAM_CHAT_ID"
	databaseDSN       = "DATABASE_DSN"
	envTypeENV        = "ENV_TYPE"

	minWindowSize = 200
)

// Config ...
type Config struct {
	Service struct {
		Name string `mapstructure:"name"`
		Addr string `mapstructure:"addr"`
	} `mapstructure:"service"`

	Fleet struct {
		CycleInterval  time.Duration `mapstructure:"cycle_interval"`
		SyncInterval   time.Duration `mapstructure:"sync_interval"`
		FetchTimeout   time.Duration `mapstructure:"fetch_timeout"`
		PublishTimeout time.Duration `mapstructure:"publish_timeout"`
		RestartBackoff time.Duration `mapstructure:"restart_backoff"`
		MaxBackoff     time.Duration `mapstructure:"max_backoff"`
		StopTimeout    time.Duration `mapstructure:"stop_timeout"`
	} `mapstructure:"fleet"`

	Storage struct {
		Driver   string `mapstructure:"driver"` // sqlite | postgres
		Path     string `mapstructure:"path"`
		DSN      string `mapstructure:"dsn"`
		MaxConns int32  `mapstructure:"max_conns"`
		SeedFile string `mapstructure:"seed_file"`
	} `mapstructure:"storage"`

	Redis struct {
		Enabled  bool          `mapstructure:"enabled"`
		Addr     string        `mapstructure:"addr"`
		Password string        `mapstructure:"password"`
		DB       int           `mapstructure:"db"`
		TTL      time.Duration `mapstructure:"ttl"`
	} `mapstructure:"redis"`

	Market struct {
		RESTURL       string        `mapstructure:"rest_url"`
		WSURL         string        `mapstructure:"ws_url"`
		Timeframe     string        `mapstructure:"timeframe"`
		WindowSize    int           `mapstructure:"window_size"`
		RPS           float64       `mapstructure:"rps"`
		HTTPTimeout   time.Duration `mapstructure:"http_timeout"`
		Stream        bool          `mapstructure:"stream"`
		WarmupWorkers int           `mapstructure:"warmup_workers"`
	} `mapstructure:"market"`

	Execution struct {
		Mode string `mapstructure:"mode"` // PAPER_TRADING | PRODUCTION
	} `mapstructure:"execution"`

	Telegram struct {
		Token  string `mapstructure:"token"`
		ChatID int64  `mapstructure:"chat_id"`
	} `mapstructure:"telegram"`

	Tracing struct {
		Enabled bool   `mapstructure:"enabled"`
		Host    string `mapstructure:"host"`
		Port    int    `mapstructure:"port"`
	} `mapstructure:"tracing"`

	Log struct {
		Level       string `mapstructure:"level"`
		Development bool   `mapstructure:"development"`
	} `mapstructure:"log"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service.name", "algo_fleet")
	v.SetDefault("service.addr", ":8080")

	v.SetDefault("fleet.cycle_interval", "60s")
	v.SetDefault("fleet.sync_interval", "15s")
	v.SetDefault("fleet.fetch_timeout", "10s")
	v.SetDefault("fleet.publish_timeout", "2s")
	v.SetDefault("fleet.restart_backoff", "5s")
	v.SetDefault("fleet.max_backoff", "2m")
	v.SetDefault("fleet.stop_timeout", "15s")

	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.path", "data/db/trading.db")
	v.SetDefault("storage.dsn", "")
	v.SetDefault("storage.max_conns", 4)
	v.SetDefault("storage.seed_file", "")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", "60s")

	v.SetDefault("market.rest_url", "https://www.okx.com")
	v.SetDefault("market.ws_url", "wss://ws.okx.com:8443/ws/v5/business")
	v.SetDefault("market.timeframe", "1m")
	v.SetDefault("market.window_size", 300)
	v.SetDefault("market.rps", 10)
	v.SetDefault("market.http_timeout", "10s")
	v.SetDefault("market.stream", true)
	v.SetDefault("market.warmup_workers", 8)

	v.SetDefault("execution.mode", "PAPER_TRADING")

	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.chat_id", 0)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.host", "localhost")
	v.SetDefault("tracing.port", 6831)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

// NewConfig читает configs/$CONFIG_FILE (по умолчанию values_local.yaml),
// .env и переменные окружения.
func NewConfig() (*Config, error) {
	_ = godotenv.Load()

	name := getenvDefault(configFilePathENV, "values_local.yaml")
	dir := getenvDefault(configDirENV, "configs")
	return Load(filepath.Join(dir, name))
}

// Load reads the YAML file at path (missing file means defaults only) and
// applies environment overrides, e.g. FLEET_CYCLE_INTERVAL=30s.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if !os.IsNotExist(err) && !errors.As(err, new(viper.ConfigFileNotFoundError)) {
				return nil, errors.Wrapf(err, "read config %s", path)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}

	// короткие переменные из прошлой версии сервиса
	if token := os.Getenv(tokenTelegramENV); token != "" {
		cfg.Telegram.Token = token
	}
	if raw := os.Getenv(chatTelegramENV); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "%s", chatTelegramENV)
		}
		cfg.Telegram.ChatID = id
	}
	if dsn := os.Getenv(databaseDSN); dsn != "" {
		cfg.Storage.DSN = dsn
		cfg.Storage.Driver = "postgres"
	}
	if mode := os.Getenv(envTypeENV); mode != "" {
		cfg.Execution.Mode = mode
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	c.Execution.Mode = strings.ToUpper(strings.TrimSpace(c.Execution.Mode))

	switch c.Storage.Driver {
	case "sqlite":
		if c.Storage.Path == "" {
			return errors.New("storage.path is required for sqlite")
		}
	case "postgres":
		if c.Storage.DSN == "" {
			return errors.New("storage.dsn is required for postgres")
		}
	default:
		return errors.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Fleet.CycleInterval <= 0 {
		return errors.New("fleet.cycle_interval must be positive")
	}
	if c.Market.WindowSize < minWindowSize {
		return errors.Errorf("market.window_size must be >= %d, got %d", minWindowSize, c.Market.WindowSize)
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return errors.New("redis.addr is required when redis is enabled")
	}
	return nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
