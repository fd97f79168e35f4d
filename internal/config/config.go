package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Supported record store backends.
const (
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds all configuration for the application.
// The values are read by Viper from a config file or environment variables.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
	S3       S3Config       `mapstructure:"s3"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
	Mode    string `mapstructure:"mode"` // gin mode: debug, release or test
}

// DatabaseConfig selects the record store. URI and Name apply to MongoDB.
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	URI    string `mapstructure:"uri"`
	Name   string `mapstructure:"name"`
	// PollInterval is used when the MongoDB deployment has no change streams.
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

type PostgresConfig struct {
	URL      string `mapstructure:"url"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// RedisConfig points at the offline snapshot cache. An empty Addr disables it.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Key      string        `mapstructure:"key"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// S3Config configures prescription sheet export. An empty BucketName disables it.
type S3Config struct {
	Endpoint        string        `mapstructure:"endpoint"`
	Region          string        `mapstructure:"region"`
	AccessKeyID     string        `mapstructure:"access_key_id"`
	SecretAccessKey string        `mapstructure:"secret_access_key"`
	BucketName      string        `mapstructure:"bucket_name"`
	UseSSL          bool          `mapstructure:"use_ssl"`
	URLExpiry       time.Duration `mapstructure:"url_expiry"`
}

type LogConfig struct {
	Dir   string `mapstructure:"dir"`   // empty logs to the console only
	Level string `mapstructure:"level"` // debug, info, warn, error
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// server.address -> SERVER_ADDRESS
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(`.`, `_`))

	setDefaults(v)

	var config Config
	err := v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	if err != nil && !errors.As(err, &notFound) {
		return config, fmt.Errorf("read config: %w", err)
	}

	// Viper parses duration strings ("5s", "24h") straight into time.Duration fields.
	if err := v.Unmarshal(&config); err != nil {
		return config, fmt.Errorf("decode config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return config, err
	}
	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("database.driver", DriverMongo)
	v.SetDefault("database.uri", "mongodb://localhost:27017")
	v.SetDefault("database.name", "physiotrack")
	v.SetDefault("database.poll_interval", "5s")
	v.SetDefault("postgres.url", "")
	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("postgres.min_conns", 1)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key", "physiotrack:patients:snapshot")
	v.SetDefault("redis.ttl", "168h")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.access_key_id", "")
	v.SetDefault("s3.secret_access_key", "")
	v.SetDefault("s3.bucket_name", "")
	v.SetDefault("s3.use_ssl", true)
	v.SetDefault("s3.url_expiry", "15m")
	v.SetDefault("log.dir", "")
	v.SetDefault("log.level", "info")
}

// Validate checks settings that would otherwise fail late at connect time.
func (c Config) Validate() error {
	switch c.Database.Driver {
	case DriverMongo:
		if c.Database.URI == "" || c.Database.Name == "" {
			return errors.New("config: database.uri and database.name are required for the mongo driver")
		}
	case DriverPostgres:
		if c.Postgres.URL == "" {
			return errors.New("config: postgres.url is required for the postgres driver")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("config: unknown database.driver %q", c.Database.Driver)
	}
	return nil
}

// SheetExportEnabled reports whether an S3 bucket is configured.
func (c Config) SheetExportEnabled() bool {
	return c.S3.BucketName != ""
}

// SnapshotCacheEnabled reports whether a Redis address is configured.
func (c Config) SnapshotCacheEnabled() bool {
	return c.Redis.Addr != ""
}
