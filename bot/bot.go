package bot

import (
	"fmt"

	"studydeck/models"
	"studydeck/utils"

	"github.com/bwmarrin/discordgo"
	"github.com/hashicorp/go-multierror"
)

// Command defines the interface for a bot command.
type Command interface {
	Definition() *discordgo.ApplicationCommand
}

// Bot encapsulates the Discord side of the process.
type Bot struct {
	Session  *discordgo.Session
	Commands map[string]Command
	created  []*discordgo.ApplicationCommand
}

// NewBot creates a session for cfg.Token without connecting.
func NewBot(cfg models.BotConfig) (*Bot, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("no bot token provided")
	}

	dg, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("error creating Discord session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMembers

	return &Bot{
		Session:  dg,
		Commands: make(map[string]Command),
	}, nil
}

// RegisterCommands registers the provided commands.
func (b *Bot) RegisterCommands(commands []Command) {
	for _, cmd := range commands {
		b.Commands[cmd.Definition().Name] = cmd
	}
}

// Start opens the bot's session, registers handlers and creates the slash
// commands.
func (b *Bot) Start(registerHandlers func(*Bot)) error {
	registerHandlers(b)

	if err := b.Session.Open(); err != nil {
		return fmt.Errorf("error opening connection: %w", err)
	}

	for _, cmd := range b.Commands {
		created, err := b.Session.ApplicationCommandCreate(b.Session.State.User.ID, "", cmd.Definition())
		if err != nil {
			utils.Warn("bot", "register_command", fmt.Sprintf("Cannot create '%v' command: %v", cmd.Definition().Name, err))
			continue
		}
		b.created = append(b.created, created)
	}

	utils.Info("bot", "start", "Bot is now running.")
	return nil
}

// Stop removes the slash commands this process created and closes the
// session.
func (b *Bot) Stop() error {
	var result *multierror.Error
	if b.Session.State != nil && b.Session.State.User != nil {
		for _, cmd := range b.created {
			if err := b.Session.ApplicationCommandDelete(b.Session.State.User.ID, "", cmd.ID); err != nil {
				result = multierror.Append(result, fmt.Errorf("delete command %s: %w", cmd.Name, err))
			}
		}
	}
	if err := b.Session.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("close session: %w", err))
	}
	return result.ErrorOrNil()
}
