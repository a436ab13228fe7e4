package command

import "github.com/bwmarrin/discordgo"

var staffOnly int64 = discordgo.PermissionManageMessages

// ReportsCommand defines the structure for the /reports command.
type ReportsCommand struct{}

// Definition returns the application command definition.
func (c *ReportsCommand) Definition() *discordgo.ApplicationCommand {
	minPage := 1.0
	return &discordgo.ApplicationCommand{
		Name:                     "reports",
		Description:              "Show the moderation queue, pending reports first",
		DefaultMemberPermissions: &staffOnly,
		Options: []*discordgo.ApplicationCommandOption{
			{
				Name:        "page",
				Description: "Page of the queue, 10 reports per page",
				Type:        discordgo.ApplicationCommandOptionInteger,
				MinValue:    &minPage,
				Required:    false,
			},
		},
	}
}

// ResolveCommand defines the structure for the /resolve command.
type ResolveCommand struct{}

// Definition returns the application command definition.
func (c *ResolveCommand) Definition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:                     "resolve",
		Description:              "Mark a pending report as resolved",
		DefaultMemberPermissions: &staffOnly,
		Options: []*discordgo.ApplicationCommandOption{
			{
				Name:         "report_id",
				Description:  "The report to resolve",
				Type:         discordgo.ApplicationCommandOptionString,
				Required:     true,
				Autocomplete: true,
			},
		},
	}
}

// LockCommand defines the structure for the /lock command.
type LockCommand struct{}

// Definition returns the application command definition.
func (c *LockCommand) Definition() *discordgo.ApplicationCommand {
	return threadCommand("lock", "Stop new replies on a forum thread")
}

// UnlockCommand defines the structure for the /unlock command.
type UnlockCommand struct{}

// Definition returns the application command definition.
func (c *UnlockCommand) Definition() *discordgo.ApplicationCommand {
	return threadCommand("unlock", "Allow replies on a locked forum thread again")
}

func threadCommand(name, description string) *discordgo.ApplicationCommand {
	minID := 1.0
	return &discordgo.ApplicationCommand{
		Name:                     name,
		Description:              description,
		DefaultMemberPermissions: &staffOnly,
		Options: []*discordgo.ApplicationCommandOption{
			{
				Name:        "thread_id",
				Description: "The forum thread ID",
				Type:        discordgo.ApplicationCommandOptionInteger,
				MinValue:    &minID,
				Required:    true,
			},
		},
	}
}
