package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	Secret     string        `mapstructure:"secret"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`

	// Admission. JoinEarly/JoinLate define the window around the scheduled
	// lesson during which a token admits its holder.
	DatabaseURL string        `mapstructure:"database_url"`
	JoinEarly   time.Duration `mapstructure:"join_early"`
	JoinLate    time.Duration `mapstructure:"join_late"`

	// Presence. LeaveDebounce tolerates reconnects (page reload) before a
	// disconnect counts as a departure. RoomGrace keeps an empty room alive.
	LeaveDebounce time.Duration `mapstructure:"leave_debounce"`
	RoomGrace     time.Duration `mapstructure:"room_grace"`

	// Client peer connection.
	RemountWindow      time.Duration `mapstructure:"remount_window"`
	NegotiationTimeout time.Duration `mapstructure:"negotiation_timeout"`
	SignalRetries      int           `mapstructure:"signal_retries"`
	SignalRetryDelay   time.Duration `mapstructure:"signal_retry_delay"`

	// Effects pipeline cadences.
	SegmentInterval time.Duration `mapstructure:"segment_interval"`
	RenderInterval  time.Duration `mapstructure:"render_interval"`

	MetricsNamespace string `mapstructure:"metrics_namespace"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("join_early", "15m")
	v.SetDefault("join_late", "60m")
	v.SetDefault("leave_debounce", "6s")
	v.SetDefault("room_grace", "2m")
	v.SetDefault("remount_window", "3s")
	v.SetDefault("negotiation_timeout", "15s")
	v.SetDefault("signal_retries", 5)
	v.SetDefault("signal_retry_delay", "1s")
	v.SetDefault("segment_interval", "200ms")
	v.SetDefault("render_interval", "33ms")
	v.SetDefault("metrics_namespace", "lessoncall")

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("⚠️ Config file not found (%s), using defaults\n", fileName)
	} else {
		fmt.Printf("✅ Loaded config: %s\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
