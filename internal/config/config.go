package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	ServerPort    string `mapstructure:"SERVER_PORT"`
	PostgresURL   string `mapstructure:"POSTGRES_URL"`
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	JWTSecret     string `mapstructure:"JWT_SECRET"`

	StoreDriver string `mapstructure:"STORE_DRIVER"`
	SQLitePath  string `mapstructure:"SQLITE_PATH"`

	ApplicationKey            string        `mapstructure:"APPLICATION_KEY"`
	DriverID                  string        `mapstructure:"DRIVER_ID"`
	DriveDetectionMode        string        `mapstructure:"DRIVE_DETECTION_MODE"`
	Region                    string        `mapstructure:"REGION"`
	MultipleAccidentCallbacks bool          `mapstructure:"MULTIPLE_ACCIDENT_CALLBACKS"`
	AnalysisReorderTimeout    time.Duration `mapstructure:"ANALYSIS_REORDER_TIMEOUT"`
	AnalysisBufferSize        int           `mapstructure:"ANALYSIS_BUFFER_SIZE"`

	LogLevel string `mapstructure:"LOG_LEVEL"`
	LogDebug bool   `mapstructure:"LOG_DEBUG"`
}

func Load() Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("SERVER_PORT", ":8080")
	v.SetDefault("POSTGRES_URL", "")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("JWT_SECRET", "dev-secret-change-me")
	v.SetDefault("STORE_DRIVER", "sqlite")
	v.SetDefault("SQLITE_PATH", "telematics.db")
	v.SetDefault("APPLICATION_KEY", "")
	v.SetDefault("DRIVER_ID", "")
	v.SetDefault("DRIVE_DETECTION_MODE", "auto_on")
	v.SetDefault("REGION", "us")
	v.SetDefault("MULTIPLE_ACCIDENT_CALLBACKS", true)
	v.SetDefault("ANALYSIS_REORDER_TIMEOUT", 10*time.Minute)
	v.SetDefault("ANALYSIS_BUFFER_SIZE", 32)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_DEBUG", false)

	var cfg Config
	_ = v.Unmarshal(&cfg)
	return cfg
}
