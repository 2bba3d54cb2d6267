package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Reference ReferenceConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	Display   DisplayConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Host           string
	Port           int
	ReadTimeout    int
	WriteTimeout   int
	BodyLimit      int
	Development    bool
	AllowedOrigins []string
}

// ReferenceConfig points at the static inputs produced by the offline
// training process. When CitiesDB is set the city table is read from SQLite
// instead of CitiesPath.
type ReferenceConfig struct {
	CitiesPath   string
	CitiesDB     string
	ArtifactsDir string
	DefaultCity  string
}

type RedisConfig struct {
	Enabled    bool
	Host       string
	Port       int
	Password   string
	DB         int
	TTLSeconds int
}

type RateLimitConfig struct {
	RequestsPerMinute int
}

type DisplayConfig struct {
	Locale string
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/apartment-estimator")

	return load(v)
}

// LoadFile reads configuration from an explicit path, still honouring
// environment overrides and defaults.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix("ESTIMATOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Reference.ArtifactsDir == "" {
		return fmt.Errorf("reference.artifactsDir must be set")
	}
	if c.Reference.CitiesPath == "" && c.Reference.CitiesDB == "" {
		return fmt.Errorf("one of reference.citiesPath or reference.citiesDB must be set")
	}
	switch c.Display.Locale {
	case "en", "de":
	default:
		return fmt.Errorf("unsupported display locale %q", c.Display.Locale)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.readTimeout", 15)
	v.SetDefault("server.writeTimeout", 15)
	v.SetDefault("server.bodyLimit", 64*1024)
	v.SetDefault("server.development", false)
	v.SetDefault("server.allowedOrigins", []string{})

	v.SetDefault("reference.citiesPath", "./data/nrwCityCoordinates.csv")
	v.SetDefault("reference.citiesDB", "")
	v.SetDefault("reference.artifactsDir", "./data")
	v.SetDefault("reference.defaultCity", "Aachen")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttlSeconds", 3600)

	v.SetDefault("ratelimit.requestsPerMinute", 120)

	v.SetDefault("display.locale", "en")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.outputPath", "stdout")
}
