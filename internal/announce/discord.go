package announce

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/zulandar/netlog/internal/models"
)

// discordGreen is the embed sidebar color for a net opening.
const discordGreen = 0x36a64f

// webhookExecutor abstracts the discordgo.Session method we use, enabling test mocks.
type webhookExecutor interface {
	WebhookExecute(webhookID, token string, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Discord posts announcements through a Discord channel webhook.
type Discord struct {
	client    webhookExecutor
	webhookID string
	token     string
	netName   string
}

// DiscordOpts holds parameters for creating a Discord announcer.
type DiscordOpts struct {
	WebhookURL string // https://discord.com/api/webhooks/<id>/<token>
	NetName    string
	// For testing: inject a mock client instead of the real Discord API.
	Client webhookExecutor
}

// NewDiscord creates a Discord announcer from a webhook URL.
func NewDiscord(opts DiscordOpts) (*Discord, error) {
	id, token, err := parseDiscordWebhook(opts.WebhookURL)
	if err != nil {
		return nil, err
	}
	client := opts.Client
	if client == nil {
		// Webhook execution needs no bot token.
		dg, err := discordgo.New("")
		if err != nil {
			return nil, fmt.Errorf("announce: discord: create session: %w", err)
		}
		client = dg
	}
	return &Discord{client: client, webhookID: id, token: token, netName: opts.NetName}, nil
}

// Announce posts the net-open notice as an embed.
func (d *Discord) Announce(ctx context.Context, s models.Session) error {
	n := NewNotice(d.netName, s)
	embed := &discordgo.MessageEmbed{
		Title:       n.Title,
		Description: n.Body,
		Color:       discordGreen,
		Timestamp:   s.SessionTime.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
	for _, f := range n.Fields {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value, Inline: true})
	}
	params := &discordgo.WebhookParams{Embeds: []*discordgo.MessageEmbed{embed}}
	if _, err := d.client.WebhookExecute(d.webhookID, d.token, false, params, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("announce: discord: %w", err)
	}
	return nil
}

// parseDiscordWebhook extracts the id and token from a webhook URL.
func parseDiscordWebhook(raw string) (id, token string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("announce: discord: parse webhook url: %w", err)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	// api/webhooks/<id>/<token>
	for i := 0; i+2 < len(parts); i++ {
		if parts[i] == "webhooks" && parts[i+1] != "" && parts[i+2] != "" {
			return parts[i+1], parts[i+2], nil
		}
	}
	return "", "", fmt.Errorf("announce: discord: webhook url %q has no /webhooks/<id>/<token> path", u.Redacted())
}
