package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds station-watch configuration loaded from YAML and env.
type Config struct {
	CatalogPath        string
	CatalogMaxStations int

	WeatherAPIURLTemplate string
	WeatherAPITimeout     time.Duration
	WeatherAPIUserAgent   string

	RefreshInterval time.Duration

	RetryAttempts  int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	RateLimitRPS   float64
	RateLimitBurst int

	BreakerFailureThreshold int
	BreakerSuccessThreshold int
	BreakerTimeout          time.Duration

	CacheBackend          string // "in_memory" or "memcached"
	CacheTTL              time.Duration
	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int

	// ServerPort empty disables the status HTTP surface.
	ServerPort string

	DegradedWindow     time.Duration
	DegradedErrorPct   int
	DegradedMinSamples int

	ShutdownTimeout time.Duration
}

type fileConfig struct {
	Catalog struct {
		Path        string `yaml:"path"`
		MaxStations int    `yaml:"max_stations"`
	} `yaml:"catalog"`

	WeatherAPI struct {
		URLTemplate string `yaml:"url_template"`
		Timeout     string `yaml:"timeout"`
		UserAgent   string `yaml:"user_agent"`
	} `yaml:"weather_api"`

	Refresh struct {
		Interval string `yaml:"interval"`
	} `yaml:"refresh"`

	Reliability struct {
		RetryMaxAttempts int     `yaml:"retry_max_attempts"`
		RetryBaseDelay   string  `yaml:"retry_base_delay"`
		RetryMaxDelay    string  `yaml:"retry_max_delay"`
		RateLimitRPS     float64 `yaml:"rate_limit_rps"`
		RateLimitBurst   int     `yaml:"rate_limit_burst"`
		CircuitBreaker   struct {
			FailureThreshold int    `yaml:"failure_threshold"`
			SuccessThreshold int    `yaml:"success_threshold"`
			Timeout          string `yaml:"timeout"`
		} `yaml:"circuit_breaker"`
	} `yaml:"reliability"`

	Cache struct {
		Backend   string `yaml:"backend"`
		TTL       string `yaml:"ttl"`
		Memcached struct {
			Addrs        string `yaml:"addrs"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"memcached"`
	} `yaml:"cache"`

	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	Health struct {
		DegradedWindow     string `yaml:"degraded_window"`
		DegradedErrorPct   int    `yaml:"degraded_error_pct"`
		DegradedMinSamples int    `yaml:"degraded_min_samples"`
	} `yaml:"health"`

	Shutdown struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"shutdown"`
}

// Load reads config/{ENV_NAME}.yaml (default dev) relative to the working
// directory. Call from project root.
func Load() (*Config, error) {
	return LoadEnv(os.Getenv("ENV_NAME"))
}

// LoadEnv reads config/{env}.yaml, applies env overrides and defaults, and
// validates the result. An empty env means dev.
func LoadEnv(env string) (*Config, error) {
	if env == "" {
		env = "dev"
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	configPath := filepath.Join(cwd, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg := &Config{}

	cfg.CatalogPath = envOr("STATION_CATALOG", fc.Catalog.Path)
	if cfg.CatalogPath == "" {
		cfg.CatalogPath = "station_data.txt"
	}
	cfg.CatalogMaxStations = fc.Catalog.MaxStations
	if cfg.CatalogMaxStations <= 0 {
		cfg.CatalogMaxStations = 100
	}

	cfg.WeatherAPIURLTemplate = strings.TrimSpace(fc.WeatherAPI.URLTemplate)
	if cfg.WeatherAPIURLTemplate == "" {
		cfg.WeatherAPIURLTemplate = "http://www.bom.gov.au/fwo/IDN60801/IDN60801.%s.json"
	}
	cfg.WeatherAPITimeout = parseDurationOrZero(fc.WeatherAPI.Timeout, 5*time.Second)
	cfg.WeatherAPIUserAgent = strings.TrimSpace(fc.WeatherAPI.UserAgent)

	cfg.RefreshInterval = parseDuration(envOr("REFRESH_INTERVAL", fc.Refresh.Interval), 5*time.Second)

	cfg.RetryAttempts = fc.Reliability.RetryMaxAttempts
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 3
	}
	cfg.RetryBaseDelay = parseDuration(fc.Reliability.RetryBaseDelay, 100*time.Millisecond)
	cfg.RetryMaxDelay = parseDuration(fc.Reliability.RetryMaxDelay, 2*time.Second)
	cfg.RateLimitRPS = fc.Reliability.RateLimitRPS
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 5
	}
	cfg.RateLimitBurst = fc.Reliability.RateLimitBurst
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 10
	}
	cfg.BreakerFailureThreshold = fc.Reliability.CircuitBreaker.FailureThreshold
	if cfg.BreakerFailureThreshold <= 0 {
		cfg.BreakerFailureThreshold = 5
	}
	cfg.BreakerSuccessThreshold = fc.Reliability.CircuitBreaker.SuccessThreshold
	if cfg.BreakerSuccessThreshold <= 0 {
		cfg.BreakerSuccessThreshold = 2
	}
	cfg.BreakerTimeout = parseDuration(fc.Reliability.CircuitBreaker.Timeout, 30*time.Second)

	cfg.CacheBackend = strings.ToLower(envOr("CACHE_BACKEND", fc.Cache.Backend))
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = "in_memory"
	}
	// ttl may be 0 to disable caching, so only a bad value falls back.
	cfg.CacheTTL = parseDurationOrZero(fc.Cache.TTL, 4*time.Second)
	if cfg.CacheTTL < 0 {
		cfg.CacheTTL = 0
	}
	cfg.MemcachedAddrs = envOr("MEMCACHED_ADDRS", fc.Cache.Memcached.Addrs)
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = "localhost:11211"
	}
	cfg.MemcachedTimeout = parseDuration(fc.Cache.Memcached.Timeout, 500*time.Millisecond)
	cfg.MemcachedMaxIdleConns = fc.Cache.Memcached.MaxIdleConns
	if cfg.MemcachedMaxIdleConns <= 0 {
		cfg.MemcachedMaxIdleConns = 2
	}

	cfg.ServerPort = envOr("SERVER_PORT", fc.Server.Port)

	cfg.DegradedWindow = parseDuration(fc.Health.DegradedWindow, 60*time.Second)
	cfg.DegradedErrorPct = fc.Health.DegradedErrorPct
	if cfg.DegradedErrorPct <= 0 {
		cfg.DegradedErrorPct = 50
	}
	cfg.DegradedMinSamples = fc.Health.DegradedMinSamples
	if cfg.DegradedMinSamples <= 0 {
		cfg.DegradedMinSamples = 3
	}

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 10*time.Second)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envOr returns the trimmed env var key, or fallback trimmed when unset or blank.
func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return strings.TrimSpace(fallback)
}

// parseDuration parses a duration string and returns defaultVal if parsing fails or result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero parses a duration string, returning defaultVal on empty string or parse error.
// Zero and negative durations are returned as-is.
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

// validate performs post-load validation of configuration values.
func validate(cfg *Config) error {
	if cfg.WeatherAPITimeout <= 0 {
		return fmt.Errorf("weather_api.timeout must be positive")
	}
	if strings.Count(cfg.WeatherAPIURLTemplate, "%s") != 1 {
		return fmt.Errorf("weather_api.url_template must contain exactly one %%s, got %q", cfg.WeatherAPIURLTemplate)
	}
	if cfg.RetryMaxDelay < cfg.RetryBaseDelay {
		return fmt.Errorf("reliability.retry_max_delay %v is below retry_base_delay %v", cfg.RetryMaxDelay, cfg.RetryBaseDelay)
	}
	if cfg.DegradedErrorPct > 100 {
		return fmt.Errorf("health.degraded_error_pct must be at most 100, got %d", cfg.DegradedErrorPct)
	}
	switch cfg.CacheBackend {
	case "in_memory", "memcached":
		// valid
	default:
		return fmt.Errorf("cache.backend must be in_memory or memcached, got %q", cfg.CacheBackend)
	}
	return nil
}
