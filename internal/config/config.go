package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	env "github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
)

type JournalConfig struct {
	Enabled            bool   `json:"enabled" env:"COORDINATOR_JOURNAL_ENABLED"`
	Host               string `json:"host" env:"COORDINATOR_JOURNAL_HOST"`
	Port               uint64 `json:"port" env:"COORDINATOR_JOURNAL_PORT"`
	Username           string `json:"username" env:"COORDINATOR_JOURNAL_USERNAME"`
	Password           string `json:"password" env:"COORDINATOR_JOURNAL_PASSWORD"`
	Database           string `json:"database" env:"COORDINATOR_JOURNAL_DATABASE"`
	UseTLS             bool   `json:"use_tls"`
	ConnectTimeout     string `json:"connect_timeout"`
	SocketTimeout      string `json:"socket_timeout"`
	ConnectIdleTimeout string `json:"connect_idle_timeout"`
	OperationTimeout   string `json:"operation_timeout"`
	Heartbeat          string `json:"heartbeat"`
	MinPoolSize        uint64 `json:"min_pool_size"`
	MaxPoolSize        uint64 `json:"max_pool_size"`
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled" env:"COORDINATOR_METRICS_ENABLED"`
	Port    int    `json:"port" env:"COORDINATOR_METRICS_PORT" validate:"gte=0,lte=65535"`
	Path    string `json:"path"`
}

type Config struct {
	AppName   string `json:"app_name"`
	AppPort   int    `json:"app_port" env:"COORDINATOR_PORT" validate:"gte=0,lte=65535"`
	DebugMode bool   `json:"debug_mode" env:"COORDINATOR_DEBUG"`

	// GraceWindow is the reconnection bound, as a duration string ("30s", "5m").
	GraceWindow    string `json:"grace_window" env:"COORDINATOR_GRACE_WINDOW" validate:"required"`
	MaxConnections int    `json:"max_connections" validate:"gte=1"`

	// PruneInterval controls how often pending queues are swept for expired
	// messages. Empty disables the sweeper.
	PruneInterval string `json:"prune_interval"`

	// ReadTimeout bounds how long a connection may sit idle between commands.
	// Empty disables the deadline.
	ReadTimeout string `json:"read_timeout"`

	// CommandRate caps commands per second per connection, 0 disables the cap.
	CommandRate  float64 `json:"command_rate" validate:"gte=0"`
	CommandBurst int     `json:"command_burst" validate:"gte=0"`

	Metrics MetricsConfig `json:"metrics"`
	Journal JournalConfig `json:"journal"`
}

var config Config
var initialized = false

func defaultConfig() Config {
	cfg := Config{
		AppName:        "rendezvous-coordinator",
		AppPort:        9000,
		GraceWindow:    "30s",
		MaxConnections: 10000,
		PruneInterval:  "10s",
	}
	cfg.Metrics.Port = 9090
	cfg.Metrics.Path = "/metrics"
	cfg.Journal.ConnectTimeout = "10s"
	cfg.Journal.SocketTimeout = "10s"
	cfg.Journal.ConnectIdleTimeout = "60s"
	cfg.Journal.OperationTimeout = "5s"
	cfg.Journal.Heartbeat = "10s"
	cfg.Journal.MinPoolSize = 1
	cfg.Journal.MaxPoolSize = 16
	return cfg
}

func ReadConfig() (Config, error) {
	config = defaultConfig()

	bytes, err := os.ReadFile("config.json")

	if err != nil {
		writer, _ := os.OpenFile("config.json", os.O_WRONLY|os.O_CREATE, 0644)
		data, _ := json.MarshalIndent(config, "", "\t")
		_, _ = writer.Write(data)
		_ = writer.Close()
		return config, errors.New("the configuration file does not exist and has been created. Please try again after editing the configuration file")
	}

	if err := json.Unmarshal(bytes, &config); err != nil {
		return config, errors.New("the configuration file does not contain valid JSON")
	}

	// Environment variables win over the file.
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return config, fmt.Errorf("error occured while reading environment overrides: %w", err)
	}

	if err := validator.New().Struct(config); err != nil {
		return config, fmt.Errorf("invalid configuration: %w", err)
	}

	initialized = true
	return config, nil
}

func GetConfig() (Config, error) {
	if initialized {
		return config, nil
	}
	return ReadConfig()
}
