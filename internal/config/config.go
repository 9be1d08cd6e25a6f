package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Config contém toda a configuração do proxy, lida uma única vez na inicialização
type Config struct {
	// Agent Engine
	EngineResource string `mapstructure:"agent_engine_resource"`
	APIEndpoint    string `mapstructure:"agent_engine_api_endpoint"`
	AccessToken    string `mapstructure:"agent_access_token"`

	// Timeouts das chamadas ao Agent Engine
	SessionTimeout       time.Duration `mapstructure:"session_timeout"`
	StreamConnectTimeout time.Duration `mapstructure:"stream_connect_timeout"`

	// Superfície HTTP
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	AllowedOrigin string `mapstructure:"allowed_origin"`
	APIKey        string `mapstructure:"public_api_key"`
	DefaultUserID string `mapstructure:"default_user_id"`

	Log LogConfig `mapstructure:",squash"`
}

// LogConfig configura o zerolog
type LogConfig struct {
	Level  string `mapstructure:"log_level"`
	Format string `mapstructure:"log_format"`
	Debug  bool   `mapstructure:"debug"`
}

var defaults = map[string]any{
	"agent_engine_resource":     "",
	"agent_engine_api_endpoint": "",
	"agent_access_token":        "",
	"session_timeout":           "30s",
	"stream_connect_timeout":    "120s",
	"host":                      "",
	"port":                      8080,
	"allowed_origin":            "*",
	"public_api_key":            "",
	"default_user_id":           "luna",
	"log_level":                 "info",
	"log_format":                "json",
	"debug":                     false,
}

// LoadEnvFile carrega um arquivo .env sem sobrescrever variáveis já definidas.
// Um arquivo ausente não é erro.
func LoadEnvFile(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Load lê a configuração das variáveis de ambiente.
func Load() (*Config, error) {
	return load(viper.New())
}

func load(v *viper.Viper) (*Config, error) {
	for key, value := range defaults {
		v.SetDefault(key, value)
		if err := v.BindEnv(key, strings.ToUpper(key)); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	cfg.EngineResource = strings.TrimSpace(cfg.EngineResource)
	cfg.AllowedOrigin = strings.TrimSpace(cfg.AllowedOrigin)
	if cfg.AllowedOrigin == "" {
		cfg.AllowedOrigin = "*"
	}
	if strings.TrimSpace(cfg.DefaultUserID) == "" {
		cfg.DefaultUserID = "luna"
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port %d", cfg.Port)
	}

	return &cfg, nil
}

// ListenAddress retorna o endereço host:porta do servidor HTTP
func (c *Config) ListenAddress() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// GuardEnabled indica se o header x-api-key é exigido
func (c *Config) GuardEnabled() bool {
	return c.APIKey != ""
}

// ConfigureZerolog configura nível e formato do logger global
func (c *LogConfig) ConfigureZerolog() {
	level := zerolog.InfoLevel
	if c.Debug {
		level = zerolog.DebugLevel
	} else if parsed, err := zerolog.ParseLevel(strings.ToLower(c.Level)); err == nil && parsed != zerolog.NoLevel {
		level = parsed
	}
	zerolog.SetGlobalLevel(level)

	if strings.EqualFold(c.Format, "console") || strings.EqualFold(c.Format, "text") {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
}
