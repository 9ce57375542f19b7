package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all service configuration.
type Config struct {
	App    AppConfig
	HTTP   HTTPConfig
	GRPC   GRPCConfig
	MySQL  MySQLConfig
	Redis  RedisConfig
	Remote RemoteConfig
	Sync   SyncConfig
	Log    LogConfig
}

type AppConfig struct {
	Name string
	Env  string
}

type HTTPConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type GRPCConfig struct {
	Addr string
}

type MySQLConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RemoteConfig selects the cart persistence backend: "mysql" for the
// production store, "http" for the development mock API.
type RemoteConfig struct {
	Mode    string
	BaseURL string
}

// SyncConfig tunes the flush retry policy and the connectivity prober.
type SyncConfig struct {
	MaxAttempts   int
	BaseDelay     time.Duration
	MaxDelay      time.Duration
	ProbeInterval time.Duration
}

type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
}

// Load reads configuration from an optional config file and CART_*
// environment variables, with sane local-development defaults.
func Load() (Config, error) {
	v := viper.New()

	v.SetDefault("app.name", "cart-engine")
	v.SetDefault("app.env", "development")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.read_timeout", 10*time.Second)
	v.SetDefault("http.write_timeout", 10*time.Second)
	v.SetDefault("http.shutdown_timeout", 5*time.Second)
	v.SetDefault("grpc.addr", ":50051")
	v.SetDefault("mysql.dsn", "root:root@tcp(localhost:3306)/cartengine?parseTime=true")
	v.SetDefault("mysql.max_open_conns", 50)
	v.SetDefault("mysql.max_idle_conns", 25)
	v.SetDefault("mysql.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("remote.mode", "mysql")
	v.SetDefault("remote.base_url", "http://localhost:3001")
	v.SetDefault("sync.max_attempts", 3)
	v.SetDefault("sync.base_delay", 500*time.Millisecond)
	v.SetDefault("sync.max_delay", 5*time.Second)
	v.SetDefault("sync.probe_interval", 15*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetEnvPrefix("CART")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
		},
		HTTP: HTTPConfig{
			Addr:            v.GetString("http.addr"),
			ReadTimeout:     v.GetDuration("http.read_timeout"),
			WriteTimeout:    v.GetDuration("http.write_timeout"),
			ShutdownTimeout: v.GetDuration("http.shutdown_timeout"),
		},
		GRPC: GRPCConfig{
			Addr: v.GetString("grpc.addr"),
		},
		MySQL: MySQLConfig{
			DSN:             v.GetString("mysql.dsn"),
			MaxOpenConns:    v.GetInt("mysql.max_open_conns"),
			MaxIdleConns:    v.GetInt("mysql.max_idle_conns"),
			ConnMaxLifetime: v.GetDuration("mysql.conn_max_lifetime"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Remote: RemoteConfig{
			Mode:    v.GetString("remote.mode"),
			BaseURL: v.GetString("remote.base_url"),
		},
		Sync: SyncConfig{
			MaxAttempts:   v.GetInt("sync.max_attempts"),
			BaseDelay:     v.GetDuration("sync.base_delay"),
			MaxDelay:      v.GetDuration("sync.max_delay"),
			ProbeInterval: v.GetDuration("sync.probe_interval"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
	}

	if cfg.Remote.Mode != "mysql" && cfg.Remote.Mode != "http" {
		return Config{}, fmt.Errorf("remote.mode must be mysql or http, got %q", cfg.Remote.Mode)
	}
	return cfg, nil
}
