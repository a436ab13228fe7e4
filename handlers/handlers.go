package handlers

import (
	"fmt"

	"studydeck/bot"
	"studydeck/utils"

	"github.com/bwmarrin/discordgo"
)

// Register all handlers to the bot.
func Register(h *Handler) func(b *bot.Bot) {
	return func(b *bot.Bot) {
		b.Session.AddHandler(h.onInteraction)
		b.Session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
			utils.Info("handlers", "ready", fmt.Sprintf("Logged in as: %v#%v", s.State.User.Username, s.State.User.Discriminator))
		})
	}
}

// onInteraction routes slash commands and their autocomplete requests.
// Pings, components and modal submits are not used by the moderation
// commands and are dropped.
func (h *Handler) onInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Interaction == nil {
		return
	}
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		h.CommandDispatcher(s, i)
	case discordgo.InteractionApplicationCommandAutocomplete:
		h.HandleAutocomplete(s, i)
	default:
		utils.Info("handlers", "interaction", fmt.Sprintf("ignoring interaction type %v", i.Type))
	}
}
