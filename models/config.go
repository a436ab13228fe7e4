package models

import "time"

// Config mirrors config.yaml. Every section can be overridden from the
// environment, e.g. DATABASE_PATH or MODERATION_REPORT_LIMIT.
type Config struct {
	Log        LogConfig        `mapstructure:"log"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Search     SearchConfig     `mapstructure:"search"`
	Moderation ModerationConfig `mapstructure:"moderation"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	GRPC       GRPCConfig       `mapstructure:"grpc"`
	Bot        BotConfig        `mapstructure:"bot"`
	Commands   CommandsConfig   `mapstructure:"commands"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// DatabaseConfig points at the SQLite file backing the forum.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// SearchConfig selects where shingle lookups are served from.
type SearchConfig struct {
	Backend  string `mapstructure:"backend"` // memory or sqlite
	MinScore int    `mapstructure:"min_score"`
}

// ModerationConfig controls report throttling and who hears about reports.
type ModerationConfig struct {
	ReportLimit    int           `mapstructure:"report_limit"`
	ReportWindow   time.Duration `mapstructure:"report_window"`
	StaffRecipient string        `mapstructure:"staff_recipient"`
}

// SchedulerConfig holds cron specs for maintenance jobs.
type SchedulerConfig struct {
	IndexRebuild string `mapstructure:"index_rebuild"`
	OrphanPurge  string `mapstructure:"orphan_purge"`
}

type GRPCConfig struct {
	HealthAddr string `mapstructure:"health_addr"`
}

// BotConfig configures the optional Discord session used for staff
// notifications and moderation commands.
type BotConfig struct {
	Token               string `mapstructure:"token"`
	AdminChannelID      string `mapstructure:"adminChannelId"`
	ModerationChannelID string `mapstructure:"moderationChannelId"`
}

// CommandsConfig represents the commands section used for authorization.
type CommandsConfig struct {
	Auth AuthConfig `mapstructure:"auth"`
}

// AuthConfig lists who counts as staff when using the moderation commands.
type AuthConfig struct {
	Developers  []string `mapstructure:"developers"`
	AdminsRoles []string `mapstructure:"admins_roles"`
	// StaffUsers maps Discord user IDs to forum user IDs.
	StaffUsers map[string]int64 `mapstructure:"staff_users"`
}
