package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/PG-9-9/Musical-Video-Generator/internal/utils"
)

// Config holds all application configuration
type Config struct {
	Environment string `mapstructure:"environment" validate:"oneof=development production test"`
	ServerPort  int    `mapstructure:"server_port" validate:"min=1,max=65535"`
	DBPath      string `mapstructure:"db_path" validate:"required"`

	// Storage paths
	StoragePath string `mapstructure:"storage_path" validate:"required"`
	JobsPath    string `mapstructure:"-"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format" validate:"oneof=text json"`

	// Worker polling interval in seconds
	PollInterval int `mapstructure:"poll_interval" validate:"min=1"`

	Render   RenderConfig   `mapstructure:"render"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
}

// RenderConfig controls the frame compositor
type RenderConfig struct {
	FPS          int     `mapstructure:"fps" validate:"min=1,max=120"`
	Width        int     `mapstructure:"width" validate:"min=16,max=7680"`
	Height       int     `mapstructure:"height" validate:"min=16,max=7680"`
	CrossfadeSec float64 `mapstructure:"crossfade_sec" validate:"gte=0"`
	StylePreset  string  `mapstructure:"style_preset"`
	Workers      int     `mapstructure:"workers" validate:"gte=0"`
	Subtitles    bool    `mapstructure:"subtitles"`
	Metadata     bool    `mapstructure:"metadata"`
}

// AnalysisConfig controls the signal analyzer
type AnalysisConfig struct {
	HopLength      int  `mapstructure:"hop_length" validate:"gt=0"`
	FrameLength    int  `mapstructure:"frame_length" validate:"gt=0"`
	VerifyEmotions bool `mapstructure:"verify_emotions"`
}

var validate = validator.New()

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("server_port", 8080)
	v.SetDefault("storage_path", "storage")
	v.SetDefault("db_path", filepath.Join("data", "mvgen.db"))
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("poll_interval", 5)

	v.SetDefault("render.fps", 24)
	v.SetDefault("render.width", 1280)
	v.SetDefault("render.height", 720)
	v.SetDefault("render.crossfade_sec", 0.5)
	v.SetDefault("render.style_preset", "synthwave")
	v.SetDefault("render.workers", 0)
	v.SetDefault("render.subtitles", true)
	v.SetDefault("render.metadata", false)

	v.SetDefault("analysis.hop_length", 512)
	v.SetDefault("analysis.frame_length", 1024)
	v.SetDefault("analysis.verify_emotions", false)
}

// LoadConfig loads configuration from defaults, an optional config.yaml,
// a .env file and MVGEN_ environment variables, in increasing precedence.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigType("yaml")
	if path := os.Getenv("MVGEN_CONFIG"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix("MVGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.StoragePath = utils.ExpandHome(cfg.StoragePath)
	cfg.DBPath = utils.ExpandHome(cfg.DBPath)
	cfg.JobsPath = utils.JobsPath(cfg.StoragePath)

	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"environment": cfg.Environment,
		"config_file": v.ConfigFileUsed(),
	}).Info("Loaded configuration")
	return &cfg, nil
}
