// Package announce tells chat channels that a net has opened.
package announce

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/zulandar/netlog/internal/config"
	"github.com/zulandar/netlog/internal/models"
	"github.com/zulandar/netlog/internal/policy"
)

// Announcer posts a net-open notice somewhere people will see it.
type Announcer interface {
	Announce(ctx context.Context, s models.Session) error
}

// Notice is the platform-neutral content of a net-open announcement.
type Notice struct {
	Title  string
	Body   string
	Fields []Field
}

// Field is a labelled value shown beside the announcement.
type Field struct {
	Name  string
	Value string
}

// NewNotice builds the announcement for session s of the named net.
func NewNotice(netName string, s models.Session) Notice {
	st := s.SessionTime.UTC()
	n := Notice{
		Title: fmt.Sprintf("%s is open", netName),
		Body: fmt.Sprintf("Net control %s (%s). Check in any time before %s UTC.",
			s.ControllerName, s.ControllerID, policy.ExpiresAt(st).Format("Jan 2 15:04")),
		Fields: []Field{
			{Name: "Start", Value: st.Format(time.RFC1123)},
			{Name: "Session", Value: s.ID},
		},
	}
	if s.ControllerQTH != nil && *s.ControllerQTH != "" {
		n.Fields = append(n.Fields, Field{Name: "QTH", Value: *s.ControllerQTH})
	}
	if s.ControllerEquipment != nil && *s.ControllerEquipment != "" {
		n.Fields = append(n.Fields, Field{Name: "Rig", Value: *s.ControllerEquipment})
	}
	return n
}

// Multi fans an announcement out to several announcers.
type Multi []Announcer

// Announce calls every announcer and returns all of their failures.
func (m Multi) Announce(ctx context.Context, s models.Session) error {
	var result *multierror.Error
	for _, a := range m {
		if err := a.Announce(ctx, s); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// FromConfig builds the announcers named in cfg. It returns nil when none
// are configured.
func FromConfig(cfg config.AnnounceConfig, netName string) (Announcer, error) {
	var m Multi
	if cfg.DiscordWebhook != "" {
		d, err := NewDiscord(DiscordOpts{WebhookURL: cfg.DiscordWebhook, NetName: netName})
		if err != nil {
			return nil, err
		}
		m = append(m, d)
	}
	if cfg.SlackWebhook != "" {
		s, err := NewSlack(SlackOpts{WebhookURL: cfg.SlackWebhook, NetName: netName})
		if err != nil {
			return nil, err
		}
		m = append(m, s)
	}
	switch len(m) {
	case 0:
		return nil, nil
	case 1:
		return m[0], nil
	}
	return m, nil
}
