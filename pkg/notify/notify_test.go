package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LTeruyaQ/TechChallenge-SOAT1-sub005/pkg/domain"
)

func TestMessageText(t *testing.T) {
	msg := Message{Title: "Low stock", Lines: []string{"OIL-5W30: 1 left", "FLT-01: 0 left"}}
	assert.Equal(t, "Low stock\n• OIL-5W30: 1 left\n• FLT-01: 0 left", msg.Text())
}

func TestSlackNotifierBuildsWebhookMessage(t *testing.T) {
	var (
		gotURL string
		got    *slack.WebhookMessage
	)
	n := NewSlackNotifier("https://hooks.example/T1", "#oficina").WithPoster(
		func(_ context.Context, url string, msg *slack.WebhookMessage) error {
			gotURL, got = url, msg
			return nil
		})

	err := n.Notify(context.Background(), Message{
		Title:    "Quotes waiting",
		Severity: domain.SeverityWarning,
		Lines:    []string{"ABC1D23 since 2 days"},
	})
	require.NoError(t, err)
	assert.Equal(t, "https://hooks.example/T1", gotURL)
	assert.Equal(t, "#oficina", got.Channel)
	assert.Equal(t, "Quotes waiting", got.Text)
	require.Len(t, got.Attachments, 1)
	assert.Equal(t, "warning", got.Attachments[0].Color)
	assert.Equal(t, "ABC1D23 since 2 days", got.Attachments[0].Text)
}

func TestSlackNotifierWrapsErrors(t *testing.T) {
	boom := errors.New("status 500")
	n := NewSlackNotifier("u", "").WithPoster(func(context.Context, string, *slack.WebhookMessage) error { return boom })
	assert.ErrorIs(t, n.Notify(context.Background(), Message{Title: "x"}), boom)
}

type recorder struct {
	got []Message
	err error
}

func (r *recorder) Notify(_ context.Context, msg Message) error {
	r.got = append(r.got, msg)
	return r.err
}

func TestMultiDeliversToAll(t *testing.T) {
	boom := errors.New("down")
	a, b := &recorder{err: boom}, &recorder{}
	err := Multi{a, LogNotifier{}, b}.Notify(context.Background(), Message{Title: "hi", Severity: domain.SeverityCritical})
	assert.ErrorIs(t, err, boom)
	assert.Len(t, a.got, 1)
	assert.Len(t, b.got, 1)
}
