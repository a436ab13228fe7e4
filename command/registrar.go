package command

import (
	"studydeck/bot"

	"github.com/bwmarrin/discordgo"
)

// AllCommands holds all the command instances.
var AllCommands = []bot.Command{
	&ReportsCommand{},
	&ResolveCommand{},
	&LockCommand{},
	&UnlockCommand{},
}

// GetCommandDefinitions returns a slice of all command definitions.
func GetCommandDefinitions() []*discordgo.ApplicationCommand {
	defs := make([]*discordgo.ApplicationCommand, len(AllCommands))
	for i, cmd := range AllCommands {
		defs[i] = cmd.Definition()
	}
	return defs
}
