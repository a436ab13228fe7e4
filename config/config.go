package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"studydeck/models"
	"studydeck/utils"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// LoadConfig loads .env, config.yaml and config/moderation.json from the
// working directory into the global viper instance. Environment variables
// override file values. Missing files are skipped; malformed ones return an
// error.
func LoadConfig() error {
	if err := godotenv.Load(); err != nil {
		utils.Info("Config", "LoadEnv", "no .env file found, skipping")
	}
	return Load(viper.GetViper(), ".")
}

// Load reads config.yaml from dir and merges dir/config/moderation.json
// into v.
func Load(v *viper.Viper, dir string) error {
	setDefaults(v)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("fatal error config file: %w", err)
		}
		utils.Info("Config", "ReadConfig", "config.yaml not found, using environment variables and defaults")
	}

	moderation := filepath.Join(dir, "config", "moderation.json")
	f, err := os.Open(moderation)
	if errors.Is(err, os.ErrNotExist) {
		utils.Info("Config", "MergeConfig", "config/moderation.json not found, skipping merge")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", moderation, err)
	}
	defer f.Close()

	v.SetConfigType("json")
	if err := v.MergeConfig(f); err != nil {
		return fmt.Errorf("fatal error merging %s: %w", moderation, err)
	}
	return nil
}

// setDefaults registers the values used when neither a file nor the
// environment provides a key.
func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("database.path", "data/forum.db")
	v.SetDefault("search.backend", "memory")
	v.SetDefault("search.min_score", 2)
	v.SetDefault("moderation.report_limit", 3)
	v.SetDefault("moderation.report_window", 5*time.Minute)
	v.SetDefault("moderation.staff_recipient", "moderators")
	v.SetDefault("scheduler.index_rebuild", "@every 30m")
	v.SetDefault("scheduler.orphan_purge", "@daily")
	v.SetDefault("grpc.health_addr", "")
	v.SetDefault("bot.token", "")
}

// Settings decodes the loaded configuration. The bot token is also read
// from the bare BOT_TOKEN variable for compatibility with older deployments.
func Settings(v *viper.Viper) (models.Config, error) {
	var cfg models.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to decode configuration: %w", err)
	}
	if cfg.Bot.Token == "" {
		cfg.Bot.Token = v.GetString("BOT_TOKEN")
	}
	switch cfg.Search.Backend {
	case "memory", "sqlite":
	default:
		return cfg, fmt.Errorf("unknown search backend %q", cfg.Search.Backend)
	}
	if cfg.Search.MinScore < 1 {
		return cfg, fmt.Errorf("search.min_score must be positive, got %d", cfg.Search.MinScore)
	}
	if cfg.Moderation.ReportLimit < 1 || cfg.Moderation.ReportWindow <= 0 {
		return cfg, fmt.Errorf("moderation limits must be positive")
	}
	return cfg, nil
}
