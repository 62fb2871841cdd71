package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. VAULTBOT_BOT_TOKEN.
const EnvPrefix = "VAULTBOT"

// global configuration structure
type Config struct {
	Bot          BotConfig          `mapstructure:"bot"`
	Delivery     DeliveryConfig     `mapstructure:"delivery"`
	Conversation ConversationConfig `mapstructure:"conversation"`
	Logger       LoggerConfig       `mapstructure:"logger"`
	Database     DatabaseConfig     `mapstructure:"database"`
}

// Telegram bot configuration
type BotConfig struct {
	Token            string          `mapstructure:"token" validate:"required"`
	AdminID          int64           `mapstructure:"admin_id" validate:"required"`
	ArchiveChatID    int64           `mapstructure:"archive_chat_id" validate:"required"`
	RequiredChannels []ChannelConfig `mapstructure:"required_channels" validate:"dive"`
	Mode             string          `mapstructure:"mode" validate:"oneof=polling webhook"`
	Webhook          WebhookConfig   `mapstructure:"webhook"`
}

// ChannelConfig is a channel users must join. Chat is either "@username" or a numeric chat ID.
type ChannelConfig struct {
	Chat string `mapstructure:"chat" validate:"required"`
	Link string `mapstructure:"link"`
}

// webhook server configuration
type WebhookConfig struct {
	Endpoint   string `mapstructure:"endpoint"`
	ListenPort string `mapstructure:"listen_port"`
	DebugPath  string `mapstructure:"debug_path"`
	CertFile   string `mapstructure:"cert_file"`
	KeyFile    string `mapstructure:"key_file"`
}

type DeliveryConfig struct {
	DeleteAfter     time.Duration `mapstructure:"delete_after" validate:"gt=0"`
	FlushOnShutdown bool          `mapstructure:"flush_on_shutdown"`
}

type ConversationConfig struct {
	Backend string        `mapstructure:"backend" validate:"oneof=memory redis"`
	TTL     time.Duration `mapstructure:"ttl" validate:"gt=0"`
	Redis   RedisConfig   `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// logging configuration
type LoggerConfig struct {
	Directory  string            `mapstructure:"directory"`
	Rotation   LogRotationConfig `mapstructure:"rotation"`
	TimeFormat string            `mapstructure:"time_format"`
	Level      string            `mapstructure:"level" validate:"oneof=DEBUG INFO WARNING ERROR FATAL"`
}

// log rotation settings
type LogRotationConfig struct {
	MaxSize    int  `mapstructure:"max_size"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAge     int  `mapstructure:"max_age"`
	Compress   bool `mapstructure:"compress"`
}

type DatabaseConfig struct {
	Driver   string `mapstructure:"driver" validate:"oneof=sqlite mysql postgres"`
	Path     string `mapstructure:"path"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	Charset  string `mapstructure:"charset"`
	SSLMode  string `mapstructure:"sslmode"`
}

// ConfigurationError reports settings that are missing or invalid at startup.
type ConfigurationError struct {
	Fields []string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if len(e.Fields) > 0 {
		return fmt.Sprintf("invalid configuration: %s", strings.Join(e.Fields, ", "))
	}
	return fmt.Sprintf("invalid configuration: %v", e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

var validate = validator.New()

// Load reads configuration from an optional .env file, the YAML file at
// configPath (may be empty) and VAULTBOT_* environment variables.
func Load(configPath string) (*Config, error) {
	loaded, err := read(configPath)
	if err != nil {
		return nil, err
	}

	if err := loaded.Validate(); err != nil {
		return nil, err
	}

	return loaded, nil
}

// LoadDatabase reads the same sources as Load but only validates the
// database and logger sections, for tools that never talk to Telegram.
func LoadDatabase(configPath string) (*Config, error) {
	loaded, err := read(configPath)
	if err != nil {
		return nil, err
	}

	for _, section := range []any{loaded.Database, loaded.Logger} {
		if err := validate.Struct(section); err != nil {
			return nil, toConfigurationError(err)
		}
	}
	return loaded, nil
}

func read(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Failed to load .env file: %v", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
			log.Printf("Config file %s not found, using defaults and environment", configPath)
		} else {
			log.Printf("Using config file: %s", v.ConfigFileUsed())
		}
	}

	loaded := &Config{}
	if err := v.Unmarshal(loaded); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	return loaded, nil
}

// Validate checks required settings and returns a *ConfigurationError listing the offending fields.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return toConfigurationError(err)
	}
	if c.Bot.Mode == "webhook" && c.Bot.Webhook.Endpoint == "" {
		return &ConfigurationError{Fields: []string{"Config.Bot.Webhook.Endpoint"}}
	}
	if c.Conversation.Backend == "redis" && c.Conversation.Redis.Addr == "" {
		return &ConfigurationError{Fields: []string{"Config.Conversation.Redis.Addr"}}
	}
	return nil
}

func toConfigurationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &ConfigurationError{Err: err}
	}

	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Namespace())
	}
	return &ConfigurationError{Fields: fields, Err: err}
}

func setDefaults(v *viper.Viper) {
	// Keys without defaults are invisible to AutomaticEnv during Unmarshal.
	v.SetDefault("bot.token", "")
	v.SetDefault("bot.admin_id", 0)
	v.SetDefault("bot.archive_chat_id", 0)
	v.SetDefault("bot.mode", "polling")
	v.SetDefault("bot.webhook.endpoint", "")
	v.SetDefault("bot.webhook.listen_port", "8443")
	v.SetDefault("bot.webhook.debug_path", "/debug")
	v.SetDefault("bot.webhook.cert_file", "")
	v.SetDefault("bot.webhook.key_file", "")

	v.SetDefault("delivery.delete_after", 30*time.Second)
	v.SetDefault("delivery.flush_on_shutdown", true)

	v.SetDefault("conversation.backend", "memory")
	v.SetDefault("conversation.ttl", 10*time.Minute)
	v.SetDefault("conversation.redis.addr", "")
	v.SetDefault("conversation.redis.password", "")
	v.SetDefault("conversation.redis.db", 0)

	v.SetDefault("logger.directory", "logs")
	v.SetDefault("logger.rotation.max_size", 10)
	v.SetDefault("logger.rotation.max_backups", 30)
	v.SetDefault("logger.rotation.max_age", 90)
	v.SetDefault("logger.rotation.compress", true)
	v.SetDefault("logger.time_format", "2006/01/02 15:04:05")
	v.SetDefault("logger.level", "INFO")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "videos.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.username", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "vaultbot")
	v.SetDefault("database.charset", "utf8mb4")
	v.SetDefault("database.sslmode", "disable")
}
