package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// SettingsFile is the optional settings file looked up in the settings dir.
const SettingsFile = "bridgeit.json"

// Session store backends.
const (
	StoreFile   = "file"
	StoreSQLite = "sqlite"
)

// ServerSettings configures the HTTP listener.
type ServerSettings struct {
	Host string `json:"host" mapstructure:"host"`
	Port int    `json:"port" mapstructure:"port"`
}

// Addr returns host:port.
func (s ServerSettings) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// SessionSettings selects and configures the session store.
type SessionSettings struct {
	Store      string        `json:"store" mapstructure:"store"`
	Dir        string        `json:"dir" mapstructure:"dir"`
	SQLitePath string        `json:"sqlitePath" mapstructure:"sqlitePath"`
	Retention  time.Duration `json:"retention" mapstructure:"retention"`
}

// MetricsSettings toggles otel counters and how often they are exported.
type MetricsSettings struct {
	Enabled  bool          `json:"enabled" mapstructure:"enabled"`
	Interval time.Duration `json:"interval" mapstructure:"interval"`
}

// Settings is the process configuration.
type Settings struct {
	Server       ServerSettings  `json:"server" mapstructure:"server"`
	ScenariosDir string          `json:"scenariosDir" mapstructure:"scenariosDir"`
	LogLevel     string          `json:"logLevel" mapstructure:"logLevel"`
	Sessions     SessionSettings `json:"sessions" mapstructure:"sessions"`
	Metrics      MetricsSettings `json:"metrics" mapstructure:"metrics"`
}

// LoadSettings sets defaults, reads bridgeit.json from dir if present and
// applies BRIDGEIT_* environment overrides (BRIDGEIT_SERVER_PORT, ...).
func LoadSettings(dir string) (*Settings, error) {
	viper.SetDefault("server.host", "")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("scenariosDir", "configs")
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("sessions.store", StoreFile)
	viper.SetDefault("sessions.dir", "sessions")
	viper.SetDefault("sessions.sqlitePath", "sessions.db")
	viper.SetDefault("sessions.retention", "24h")
	viper.SetDefault("metrics.enabled", false)
	viper.SetDefault("metrics.interval", "1m")

	viper.SetEnvPrefix("BRIDGEIT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetConfigName(SettingsFile)
	viper.SetConfigType("json")
	if dir != "" {
		viper.AddConfigPath(dir)
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading settings file: %w", err)
		}
	}

	var s Settings
	if err := viper.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("error decoding settings: %w", err)
	}
	switch s.Sessions.Store {
	case StoreFile, StoreSQLite:
	default:
		return nil, fmt.Errorf("unknown sessions.store %q", s.Sessions.Store)
	}
	return &s, nil
}
