package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Betting  BettingConfig  `mapstructure:"betting"`
	Payments PaymentsConfig `mapstructure:"payments"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expiry time.Duration `mapstructure:"expiry"`
	Issuer string        `mapstructure:"issuer"`
}

type BettingConfig struct {
	MinStake int64 `mapstructure:"min_stake"` // In cents
	MaxLegs  int   `mapstructure:"max_legs"`
}

type PaymentsConfig struct {
	PendingTTL    time.Duration `mapstructure:"pending_ttl"`    // Pending payments older than this fail
	SweepInterval time.Duration `mapstructure:"sweep_interval"` // How often the expiry sweep runs
	Mpesa         MpesaConfig   `mapstructure:"mpesa"`
	Paypal        PaypalConfig  `mapstructure:"paypal"`
}

type MpesaConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	ConsumerKey    string `mapstructure:"consumer_key"`
	ConsumerSecret string `mapstructure:"consumer_secret"`
	ShortCode      string `mapstructure:"short_code"`
	Passkey        string `mapstructure:"passkey"`
	CallbackURL    string `mapstructure:"callback_url"`
	WebhookSecret  string `mapstructure:"webhook_secret"`
}

type PaypalConfig struct {
	BaseURL       string `mapstructure:"base_url"`
	ClientID      string `mapstructure:"client_id"`
	Secret        string `mapstructure:"secret"`
	Currency      string `mapstructure:"currency"`
	WebhookSecret string `mapstructure:"webhook_secret"`
}

type KafkaConfig struct {
	Brokers         []string `mapstructure:"brokers"` // Empty = event publishing disabled
	BetPlacedTopic  string   `mapstructure:"bet_placed_topic"`
	BetSettledTopic string   `mapstructure:"bet_settled_topic"`
	PaymentsTopic   string   `mapstructure:"payments_topic"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: BL_ (BetLedger).
// Nested keys use underscore: BL_DATABASE_HOST, BL_JWT_SECRET, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "betledger")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiry", "24h")
	v.SetDefault("jwt.issuer", "betledger")
	v.SetDefault("betting.min_stake", 1000) // 10.00 in cents
	v.SetDefault("betting.max_legs", 20)
	v.SetDefault("payments.pending_ttl", "15m")
	v.SetDefault("payments.sweep_interval", "1m")
	v.SetDefault("payments.mpesa.base_url", "https://sandbox.safaricom.co.ke")
	v.SetDefault("payments.paypal.base_url", "https://api-m.sandbox.paypal.com")
	v.SetDefault("payments.paypal.currency", "USD")
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.bet_placed_topic", "bets.placed")
	v.SetDefault("kafka.bet_settled_topic", "bets.settled")
	v.SetDefault("kafka.payments_topic", "payments.confirmed")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	// File config
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables: BL_DATABASE_HOST -> database.host
	v.SetEnvPrefix("BL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (not required, env vars can suffice)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}
