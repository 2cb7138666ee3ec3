package internal

import (
	"chat-hub/cache"
	"chat-hub/moderation"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/samber/lo"
)

const (
	DriverBadger = "badger"
	DriverSqlite = "sqlite"
)

type Config struct {
	LogLevel        string        `env:"LOG_LEVEL,default=INFO"`
	Host            string        `env:"HOST,default=localhost"`
	Port            int           `env:"PORT,default=8080" validate:"gt=0,lte=65535"`
	AllowedOrigins  string        `env:"ALLOWED_ORIGINS"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s" validate:"gt=0"`
	RestartInterval time.Duration `env:"RESTART_INTERVAL,default=1s" validate:"gt=0"`
	DebugPort       int           `env:"DEBUG_PORT,default=6060" validate:"gte=0,lte=65535"`
	HealthInterval  time.Duration `env:"HEALTH_INTERVAL,default=30s" validate:"gt=0"`

	StoreDriver    string `env:"STORE_DRIVER,default=badger" validate:"oneof=badger sqlite"`
	BadgerFilepath string `env:"BADGER_FILEPATH" validate:"required_if=StoreDriver badger"`
	SqlitePath     string `env:"SQLITE_PATH" validate:"required_if=StoreDriver sqlite"`

	SendTimeout       time.Duration `env:"SEND_TIMEOUT,default=2s" validate:"gt=0"`
	SendBuffer        int           `env:"SEND_BUFFER,default=256" validate:"gt=0"`
	MaxFrameSize      int64         `env:"MAX_FRAME_SIZE,default=65536" validate:"gt=0"`
	StatusBufferSize  int           `env:"STATUS_BUFFER_SIZE,default=1024" validate:"gt=0"`
	StatusTimeout     time.Duration `env:"STATUS_WRITE_TIMEOUT,default=3s" validate:"gt=0"`
	CacheShards       int           `env:"CACHE_SHARDS,default=32" validate:"gt=0"`
	CacheJanitorEvery time.Duration `env:"CACHE_JANITOR_INTERVAL,default=1m" validate:"gt=0"`
	CacheLoadTimeout  time.Duration `env:"CACHE_LOAD_TIMEOUT,default=5s" validate:"gt=0"`

	CensoredWords string `env:"CENSORED_WORDS"`
	CensorChar    string `env:"CENSOR_CHAR,default=*" validate:"required"`

	UserTTL         time.Duration `env:"CACHE_TTL_USER,default=10m"`
	ChatTTL         time.Duration `env:"CACHE_TTL_CHAT,default=5m"`
	AllChatsTTL     time.Duration `env:"CACHE_TTL_ALL_CHATS,default=1m"`
	UserChatsTTL    time.Duration `env:"CACHE_TTL_USER_CHATS,default=2m"`
	ChatMessagesTTL time.Duration `env:"CACHE_TTL_CHAT_MESSAGES,default=2m"`
	MessageTTL      time.Duration `env:"CACHE_TTL_MESSAGE,default=5m"`
	DirectChatTTL   time.Duration `env:"CACHE_TTL_DIRECT_CHAT,default=10m"`
}

// LoadConfig reads an optional .env file, then the environment.
func LoadConfig() (Config, error) {
	_ = godotenv.Load()

	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	if err := validator.New().Struct(config); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return config, nil
}

func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Origins splits ALLOWED_ORIGINS. An empty list allows same-host origins only.
func (c Config) Origins() []string {
	return lo.Compact(lo.Map(strings.Split(c.AllowedOrigins, ","), func(o string, _ int) string {
		return strings.TrimSpace(o)
	}))
}

// Filter builds the message filter from CENSORED_WORDS. No words gives a
// filter that keeps content as sent.
func (c Config) Filter() (*moderation.Filter, error) {
	words := lo.Compact(lo.Map(strings.Split(c.CensoredWords, ","), func(w string, _ int) string {
		return strings.TrimSpace(w)
	}))
	replacement, _ := utf8.DecodeRuneInString(c.CensorChar)
	filter, err := moderation.NewFilter(words, replacement)
	if err != nil {
		return nil, fmt.Errorf("censored words: %w", err)
	}
	return filter, nil
}

func (c Config) Tiers() cache.Tiers {
	return cache.Tiers{
		User:         c.UserTTL,
		Chat:         c.ChatTTL,
		AllChats:     c.AllChatsTTL,
		UserChats:    c.UserChatsTTL,
		ChatMessages: c.ChatMessagesTTL,
		Message:      c.MessageTTL,
		DirectChat:   c.DirectChatTTL,
	}
}
