package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	SQLite     SQLiteConfig
	Redis      RedisConfig
	Scraper    ScraperConfig
	Proxy      ProxyConfig
	Enrichment EnrichmentConfig
	Logging    LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  int
	WriteTimeout int
	BodyLimit    int
}

type SQLiteConfig struct {
	Path string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	ScoreTTL int
}

type ScraperConfig struct {
	Headless          bool
	StoragePath       string
	RateLimitDelaySec int
	FreshnessHours    int
	IdleWaitSec       int
	LoginWaitSec      int
	CompletionWaitSec int
	RandomDelayMinSec int
	RandomDelayMaxSec int
	KeepRawHTML       bool
}

type ProxyConfig struct {
	Enabled  bool
	Username string
	Password string
	Host     string
	Ports    string
	EchoURL  string
}

type EnrichmentConfig struct {
	Enabled     bool
	APIKey      string
	Model       string
	Temperature float32
	MaxTokens   int
	TimeoutSec  int
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/brandpulse")

	viper.SetEnvPrefix("BRANDPULSE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

// RateLimitDelay is the minimum gap between platform queries, measured from
// the end of the previous request.
func (c ScraperConfig) RateLimitDelay() time.Duration {
	return time.Duration(c.RateLimitDelaySec) * time.Second
}

// FreshnessWindow is the minimum age a prompt's latest response must reach
// before the prompt becomes eligible for re-scraping.
func (c ScraperConfig) FreshnessWindow() time.Duration {
	return time.Duration(c.FreshnessHours) * time.Hour
}

func (c ScraperConfig) IdleWait() time.Duration {
	return time.Duration(c.IdleWaitSec) * time.Second
}

func (c ScraperConfig) LoginWait() time.Duration {
	return time.Duration(c.LoginWaitSec) * time.Second
}

func (c ScraperConfig) CompletionWait() time.Duration {
	return time.Duration(c.CompletionWaitSec) * time.Second
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.readTimeout", 30)
	viper.SetDefault("server.writeTimeout", 30)
	viper.SetDefault("server.bodyLimit", 10485760)

	viper.SetDefault("sqlite.path", "./data/brandpulse.db")

	viper.SetDefault("redis.enabled", true)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.scoreTTL", 300)

	viper.SetDefault("scraper.headless", false)
	viper.SetDefault("scraper.storagePath", "./storage")
	viper.SetDefault("scraper.rateLimitDelaySec", 180)
	viper.SetDefault("scraper.freshnessHours", 2)
	viper.SetDefault("scraper.idleWaitSec", 120)
	viper.SetDefault("scraper.loginWaitSec", 90)
	viper.SetDefault("scraper.completionWaitSec", 120)
	viper.SetDefault("scraper.randomDelayMinSec", 1)
	viper.SetDefault("scraper.randomDelayMaxSec", 3)
	viper.SetDefault("scraper.keepRawHTML", false)

	viper.SetDefault("proxy.enabled", true)
	viper.SetDefault("proxy.host", "dc.oxylabs.io")
	viper.SetDefault("proxy.ports", "8001,8002,8003,8004,8005")
	viper.SetDefault("proxy.echoURL", "https://ip.oxylabs.io/location")

	viper.SetDefault("enrichment.enabled", false)
	viper.SetDefault("enrichment.model", "gpt-4o-mini")
	viper.SetDefault("enrichment.temperature", 0.1)
	viper.SetDefault("enrichment.maxTokens", 2048)
	viper.SetDefault("enrichment.timeoutSec", 60)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}
