// Package notify delivers moderation notices to users and staff.
package notify

import (
	"context"
	"fmt"
	"time"

	"studydeck/utils"

	"github.com/bwmarrin/discordgo"
	"github.com/hashicorp/go-multierror"
)

// Notifier sends a message to a recipient. Recipients are opaque strings:
// a user ID or a role name such as "moderators".
type Notifier interface {
	Notify(ctx context.Context, recipient, subject, body string) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, recipient, subject, body string) error

func (f NotifierFunc) Notify(ctx context.Context, recipient, subject, body string) error {
	return f(ctx, recipient, subject, body)
}

const colorNotice = 0x5865f2

// DiscordNotifier posts each notice as an embed in the moderation channel.
type DiscordNotifier struct {
	session   utils.EmbedSender
	channelID string
}

func NewDiscordNotifier(s utils.EmbedSender, channelID string) *DiscordNotifier {
	return &DiscordNotifier{session: s, channelID: channelID}
}

func (n *DiscordNotifier) Notify(ctx context.Context, recipient, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	embed := &discordgo.MessageEmbed{
		Title:       subject,
		Description: body,
		Color:       colorNotice,
		Timestamp:   time.Now().Format(time.RFC3339),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Recipient", Value: recipient, Inline: true},
		},
	}
	if _, err := n.session.ChannelMessageSendEmbed(n.channelID, embed, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to post notice for %s: %w", recipient, err)
	}
	return nil
}

// LogNotifier writes notices to the structured log.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, recipient, subject, body string) error {
	utils.Info("notify", subject, fmt.Sprintf("to %s: %s", recipient, body))
	return nil
}

// Multi delivers to every notifier and reports all failures together.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, recipient, subject, body string) error {
	var result *multierror.Error
	for _, n := range m {
		if err := n.Notify(ctx, recipient, subject, body); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
