package handlers

import (
	"context"
	"fmt"
	"strings"

	"studydeck/models"
	"studydeck/utils"

	"github.com/bwmarrin/discordgo"
)

const maxChoices = 25

// HandleAutocomplete handles all autocomplete interactions.
func (h *Handler) HandleAutocomplete(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.ApplicationCommandData()
	if data.Name != "resolve" {
		return
	}
	for _, opt := range data.Options {
		if opt.Name == "report_id" && opt.Focused {
			h.handleReportAutocomplete(s, i, opt.StringValue())
		}
	}
}

func (h *Handler) handleReportAutocomplete(s *discordgo.Session, i *discordgo.InteractionCreate, typed string) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	choices := h.pendingChoices(ctx, i.Member, typed)
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionApplicationCommandAutocompleteResult,
		Data: &discordgo.InteractionResponseData{
			Choices: choices,
		},
	})
	if err != nil {
		utils.Warn("handlers", "autocomplete", fmt.Sprintf("Error responding to autocomplete interaction: %v", err))
	}
}

// pendingChoices lists pending reports whose ID starts with typed.
func (h *Handler) pendingChoices(ctx context.Context, member *discordgo.Member, typed string) []*discordgo.ApplicationCommandOptionChoice {
	choices := make([]*discordgo.ApplicationCommandOptionChoice, 0, maxChoices)
	actor, err := h.auth.Actor(member)
	if err != nil {
		return choices
	}
	reports, err := h.forum.Reports(ctx, actor, 0, 0)
	if err != nil {
		utils.Warn("handlers", "autocomplete", fmt.Sprintf("Error loading reports for autocomplete: %v", err))
		return choices
	}

	for _, r := range reports {
		// The queue lists pending reports first.
		if r.Status != models.ReportPending || len(choices) == maxChoices {
			break
		}
		if !strings.HasPrefix(r.ID, typed) {
			continue
		}
		name := fmt.Sprintf("%s: %s", r.Target, r.Reason)
		if runes := []rune(name); len(runes) > 100 {
			name = string(runes[:97]) + "..."
		}
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{Name: name, Value: r.ID})
	}
	return choices
}
