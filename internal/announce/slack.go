package announce

import (
	"context"
	"fmt"

	slackapi "github.com/slack-go/slack"
	"github.com/zulandar/netlog/internal/models"
)

// slackGreen is the attachment sidebar color for a net opening.
const slackGreen = "#36a64f"

// Slack posts announcements to a Slack incoming webhook.
type Slack struct {
	webhookURL string
	netName    string
}

// SlackOpts holds parameters for creating a Slack announcer.
type SlackOpts struct {
	WebhookURL string
	NetName    string
}

// NewSlack creates a Slack announcer.
func NewSlack(opts SlackOpts) (*Slack, error) {
	if opts.WebhookURL == "" {
		return nil, fmt.Errorf("announce: slack: webhook url is required")
	}
	return &Slack{webhookURL: opts.WebhookURL, netName: opts.NetName}, nil
}

// Announce posts the net-open notice as a message attachment.
func (s *Slack) Announce(ctx context.Context, sess models.Session) error {
	n := NewNotice(s.netName, sess)
	att := slackapi.Attachment{
		Color: slackGreen,
		Title: n.Title,
		Text:  n.Body,
	}
	for _, f := range n.Fields {
		att.Fields = append(att.Fields, slackapi.AttachmentField{Title: f.Name, Value: f.Value, Short: true})
	}
	msg := &slackapi.WebhookMessage{
		Text:        n.Title,
		Attachments: []slackapi.Attachment{att},
	}
	if err := slackapi.PostWebhookContext(ctx, s.webhookURL, msg); err != nil {
		return fmt.Errorf("announce: slack: %w", err)
	}
	return nil
}
