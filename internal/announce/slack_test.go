package announce

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	slackapi "github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSlack_RequiresURL(t *testing.T) {
	_, err := NewSlack(SlackOpts{})
	assert.Error(t, err)
}

func TestSlack_Announce(t *testing.T) {
	var got slackapi.WebhookMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s, err := NewSlack(SlackOpts{WebhookURL: srv.URL, NetName: "Tuesday Net"})
	require.NoError(t, err)
	require.NoError(t, s.Announce(context.Background(), testSession()))

	assert.Equal(t, "Tuesday Net is open", got.Text)
	require.Len(t, got.Attachments, 1)
	assert.Equal(t, slackGreen, got.Attachments[0].Color)
	assert.Len(t, got.Attachments[0].Fields, 4)
}

func TestSlack_AnnounceServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s, err := NewSlack(SlackOpts{WebhookURL: srv.URL})
	require.NoError(t, err)
	err = s.Announce(context.Background(), testSession())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "announce: slack")
}
