package utils

import (
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"
)

const (
	ColorInfo  = 0x00ff00 // Green
	ColorWarn  = 0xffff00 // Yellow
	ColorError = 0xff0000 // Red
)

// EmbedSender is the part of a Discord session the logger needs.
type EmbedSender interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

var (
	mu        sync.RWMutex
	logger    = logrus.New()
	session   EmbedSender
	channelID string
)

// Logger exposes the underlying logrus instance so callers can attach it
// to other components or redirect output in tests.
func Logger() *logrus.Logger { return logger }

// SetLevel parses a logrus level name. Unknown names keep the current level.
func SetLevel(level string) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		logger.WithError(err).Warn("unknown log level, keeping current")
		return
	}
	logger.SetLevel(lvl)
}

// InitLogger mirrors log records to a Discord admin channel. An empty
// channel disables mirroring.
func InitLogger(s EmbedSender, adminChannelID string) {
	mu.Lock()
	defer mu.Unlock()
	session = s
	channelID = adminChannelID
	if channelID == "" {
		logger.Warn("bot.adminChannelId is not set. Logging to channel will be disabled.")
	}
}

// Log writes a structured record and mirrors it to the admin channel.
func Log(level, module, operation, details string) {
	entry := logger.WithFields(logrus.Fields{
		"module":    module,
		"operation": operation,
	})

	var color int
	switch level {
	case "WARN":
		entry.Warn(details)
		color = ColorWarn
	case "ERROR":
		entry.Error(details)
		color = ColorError
	default:
		entry.Info(details)
		color = ColorInfo
	}

	mu.RLock()
	s, ch := session, channelID
	mu.RUnlock()
	if s == nil || ch == "" {
		return
	}

	embed := &discordgo.MessageEmbed{
		Title:     fmt.Sprintf("Log Level: %s", level),
		Color:     color,
		Timestamp: time.Now().Format(time.RFC3339),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Module", Value: module, Inline: true},
			{Name: "Operation", Value: operation, Inline: true},
			{Name: "Details", Value: details},
		},
	}

	if _, err := s.ChannelMessageSendEmbed(ch, embed); err != nil {
		logger.WithError(err).Error("error sending log message to Discord")
	}
}

// Info logs an informational message.
func Info(module, operation, details string) {
	Log("INFO", module, operation, details)
}

// Warn logs a warning message.
func Warn(module, operation, details string) {
	Log("WARN", module, operation, details)
}

// Error logs an error message.
func Error(module, operation, details string) {
	Log("ERROR", module, operation, details)
}
