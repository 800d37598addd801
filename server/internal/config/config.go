package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	HTTPAddr        string
	JWTSecret       string
	TokenTTL        time.Duration
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	MySQLDSN        string
	LogLevel        string
	SendQueueSize   int
	ReadLimitBytes  int64
	MaxMsgPerSecond int
}

func Load() (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("STRIKAS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":4000")
	v.SetDefault("JWT_SECRET", "dev-secret")
	v.SetDefault("TOKEN_TTL_HOURS", 24)
	v.SetDefault("REDIS_ADDR", "127.0.0.1:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("MYSQL_DSN", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("SEND_QUEUE_SIZE", 256)
	v.SetDefault("READ_LIMIT_BYTES", 65536)
	v.SetDefault("MAX_MSG_PER_SECOND", 120)

	cfg := Config{
		HTTPAddr:        v.GetString("HTTP_ADDR"),
		JWTSecret:       v.GetString("JWT_SECRET"),
		TokenTTL:        time.Duration(v.GetInt("TOKEN_TTL_HOURS")) * time.Hour,
		RedisAddr:       v.GetString("REDIS_ADDR"),
		RedisPassword:   v.GetString("REDIS_PASSWORD"),
		RedisDB:         v.GetInt("REDIS_DB"),
		MySQLDSN:        v.GetString("MYSQL_DSN"),
		LogLevel:        v.GetString("LOG_LEVEL"),
		SendQueueSize:   v.GetInt("SEND_QUEUE_SIZE"),
		ReadLimitBytes:  v.GetInt64("READ_LIMIT_BYTES"),
		MaxMsgPerSecond: v.GetInt("MAX_MSG_PER_SECOND"),
	}

	return cfg, nil
}
