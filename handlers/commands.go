package handlers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"studydeck/models"
	"studydeck/utils"

	"github.com/bwmarrin/discordgo"
)

const commandTimeout = 10 * time.Second

// Moderator is the part of the forum the staff commands drive.
type Moderator interface {
	Reports(ctx context.Context, actor models.Actor, limit, offset int) ([]models.Report, error)
	ResolveReport(ctx context.Context, actor models.Actor, reportID string) error
	Lock(ctx context.Context, actor models.Actor, threadID int64) error
	Unlock(ctx context.Context, actor models.Actor, threadID int64) error
}

// Handler routes staff slash commands to the forum.
type Handler struct {
	auth  *utils.Auth
	forum Moderator
}

func NewHandler(auth *utils.Auth, forum Moderator) *Handler {
	return &Handler{auth: auth, forum: forum}
}

// CommandDispatcher is the central handler for all application command
// interactions. It resolves the acting forum user, runs the command and
// replies ephemerally.
func (h *Handler) CommandDispatcher(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.ApplicationCommandData()
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	content := h.Run(ctx, i.Member, data.Name, optionMap(data.Options))
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		utils.Error("handlers", data.Name, fmt.Sprintf("failed to respond to interaction: %v", err))
	}
}

// Run executes one command for member and returns the reply text.
func (h *Handler) Run(ctx context.Context, member *discordgo.Member, name string, opts options) string {
	actor, err := h.auth.Actor(member)
	if err != nil {
		return "🚫 You do not have permission to run this command."
	}

	switch name {
	case "reports":
		return h.handleReports(ctx, actor, opts)
	case "resolve":
		return h.handleResolve(ctx, actor, opts)
	case "lock":
		return h.handleLock(ctx, actor, opts, true)
	case "unlock":
		return h.handleLock(ctx, actor, opts, false)
	default:
		return "🚫 Internal error: unknown command."
	}
}

type options map[string]*discordgo.ApplicationCommandInteractionDataOption

func optionMap(opts []*discordgo.ApplicationCommandInteractionDataOption) options {
	m := make(options, len(opts))
	for _, opt := range opts {
		m[opt.Name] = opt
	}
	return m
}

// describe turns an engine error into a message for the moderator.
func describe(command string, err error) string {
	switch {
	case errors.Is(err, models.ErrForbidden):
		return "🚫 You do not have permission to run this command."
	case errors.Is(err, models.ErrNotFound):
		return "❓ Nothing with that ID exists."
	case errors.Is(err, models.ErrInvalidTransition):
		return "⚠️ That report has already been resolved."
	case errors.Is(err, models.ErrInvalidFilter):
		return "⚠️ Invalid parameters."
	default:
		utils.Error("handlers", command, err.Error())
		return "❌ Something went wrong, the error has been logged."
	}
}
