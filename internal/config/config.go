package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "COLLA"

var ErrInvalid = errors.New("invalid config")

type ICEServer struct {
	URLs       []string `mapstructure:"urls"`
	Username   string   `mapstructure:"username"`
	Credential string   `mapstructure:"credential"`
}

type Storage struct {
	Driver   string `mapstructure:"driver"`
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
}

type Auth struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

type LeaveRate struct {
	Limit    int           `mapstructure:"limit"`
	Interval time.Duration `mapstructure:"interval"`
}

type Config struct {
	Mode         string        `mapstructure:"mode"`
	Port         int           `mapstructure:"port"`
	StaticPath   string        `mapstructure:"static_path"`
	LogLevel     string        `mapstructure:"log_level"`
	ReadLimit    int64         `mapstructure:"read_limit"`
	PingPeriod   time.Duration `mapstructure:"ping_period"`
	PongWait     time.Duration `mapstructure:"pong_wait"`
	WriteWait    time.Duration `mapstructure:"write_wait"`
	SendBuffer   int           `mapstructure:"send_buffer"`
	Backpressure string        `mapstructure:"backpressure"`
	Secret       string        `mapstructure:"secret"`
	CORSOrigins  []string      `mapstructure:"cors_origins"`
	LeaveRate    LeaveRate     `mapstructure:"leave_rate"`
	Auth         Auth          `mapstructure:"auth"`
	Storage      Storage       `mapstructure:"storage"`
	ICEServers   []ICEServer   `mapstructure:"ice_servers"`
}

// BindFlags declares the command line overrides understood by Load.
func BindFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "config file (default config/config.$CONFIG_ENV.yaml)")
	fs.Int("port", 0, "listen port")
	fs.String("mode", "", "gin mode: debug, test or release")
	fs.String("log-level", "", "zerolog level")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("log_level", "info")
	v.SetDefault("read_limit", 1<<20)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("pong_wait", "60s")
	v.SetDefault("write_wait", "5s")
	v.SetDefault("send_buffer", 64)
	v.SetDefault("backpressure", "drop")
	v.SetDefault("secret", "")
	v.SetDefault("cors_origins", []string{"http://localhost:3000"})
	v.SetDefault("leave_rate.limit", 10)
	v.SetDefault("leave_rate.interval", "10s")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", "24h")
	v.SetDefault("storage.driver", "memory")
	v.SetDefault("storage.dsn", "")
	v.SetDefault("storage.max_conns", 10)
	v.SetDefault("ice_servers", []map[string]any{
		{"urls": []string{"stun:stun.l.google.com:19302"}},
	})
}

// Load reads config/config.<CONFIG_ENV>.yaml, then .env and COLLA_* variables,
// then flags from fs. Later sources win. A missing file means defaults.
func Load(fs *pflag.FlagSet) (*Config, error) {
	if err := godotenv.Load(); err == nil {
		log.Debug().Str("module", "config").Msg("loaded .env")
	}

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	fileName := ""
	if fs != nil {
		fileName, _ = fs.GetString("config")
	}
	if fileName == "" {
		env := os.Getenv("CONFIG_ENV")
		if env == "" {
			env = "dev"
		}
		fileName = fmt.Sprintf("config/config.%s.yaml", env)
	}
	v.SetConfigFile(fileName)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if fs != nil {
		for key, flag := range map[string]string{"port": "port", "mode": "mode", "log_level": "log-level"} {
			if f := fs.Lookup(flag); f != nil && f.Changed {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", flag, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).
		Str("storage", cfg.Storage.Driver).Msg("config ready")
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch {
	case c.Port <= 0 || c.Port > 65535:
		return fmt.Errorf("%w: port %d", ErrInvalid, c.Port)
	case c.SendBuffer <= 0:
		return fmt.Errorf("%w: send_buffer must be positive", ErrInvalid)
	case c.PongWait <= c.PingPeriod:
		return fmt.Errorf("%w: pong_wait must exceed ping_period", ErrInvalid)
	case c.Storage.Driver != "memory" && c.Storage.Driver != "postgres":
		return fmt.Errorf("%w: storage driver %q", ErrInvalid, c.Storage.Driver)
	case c.Storage.Driver == "postgres" && c.Storage.DSN == "":
		return fmt.Errorf("%w: postgres storage needs a dsn", ErrInvalid)
	case c.Mode == "release" && (c.Secret == "" || c.Auth.JWTSecret == ""):
		return fmt.Errorf("%w: secret and auth.jwt_secret are required in release mode", ErrInvalid)
	}
	return nil
}
