// Package notify delivers back-office alerts (low stock, stale quotes) to
// the people who act on them.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/slack-go/slack"

	"github.com/LTeruyaQ/TechChallenge-SOAT1-sub005/pkg/domain"
	"github.com/LTeruyaQ/TechChallenge-SOAT1-sub005/pkg/logger"
)

// Message is one alert. Lines become the body, one per row.
type Message struct {
	Title    string
	Severity domain.Severity
	Lines    []string
}

// Text renders the message as plain text.
func (m Message) Text() string {
	var sb strings.Builder
	sb.WriteString(m.Title)
	for _, l := range m.Lines {
		sb.WriteString("\n• ")
		sb.WriteString(l)
	}
	return sb.String()
}

// Notifier delivers a message.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// EmailSender delivers a message to a mailbox. No implementation ships
// with the back office yet.
type EmailSender interface {
	SendEmail(ctx context.Context, to string, msg Message) error
}

// ---------------------------------------------------------------------------
// Log notifier
// ---------------------------------------------------------------------------

// LogNotifier writes messages to the application log.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, msg Message) error {
	fields := map[string]interface{}{
		"title":    msg.Title,
		"severity": msg.Severity.String(),
		"lines":    len(msg.Lines),
	}
	if msg.Severity == domain.SeverityCritical {
		logger.WarnCF("notify", msg.Text(), fields)
		return nil
	}
	logger.InfoCF("notify", msg.Text(), fields)
	return nil
}

// ---------------------------------------------------------------------------
// Slack notifier
// ---------------------------------------------------------------------------

// PostFunc posts a webhook message. slack.PostWebhookContext satisfies it.
type PostFunc func(ctx context.Context, url string, msg *slack.WebhookMessage) error

// SlackNotifier posts messages to a Slack incoming webhook.
type SlackNotifier struct {
	webhookURL string
	channel    string
	post       PostFunc
}

// NewSlackNotifier creates a notifier for webhookURL. channel may be empty
// to use the webhook's default channel.
func NewSlackNotifier(webhookURL, channel string) *SlackNotifier {
	return &SlackNotifier{webhookURL: webhookURL, channel: channel, post: slack.PostWebhookContext}
}

// WithPoster replaces the webhook transport.
func (n *SlackNotifier) WithPoster(post PostFunc) *SlackNotifier {
	n.post = post
	return n
}

func (n *SlackNotifier) Notify(ctx context.Context, msg Message) error {
	wm := &slack.WebhookMessage{
		Channel: n.channel,
		Text:    msg.Title,
		Attachments: []slack.Attachment{{
			Color: severityColor(msg.Severity),
			Text:  strings.Join(msg.Lines, "\n"),
		}},
	}
	if err := n.post(ctx, n.webhookURL, wm); err != nil {
		return fmt.Errorf("slack webhook: %w", err)
	}
	logger.DebugCF("notify", "Slack message posted", map[string]interface{}{
		"title": msg.Title,
	})
	return nil
}

func severityColor(s domain.Severity) string {
	switch s {
	case domain.SeverityCritical:
		return "danger"
	case domain.SeverityWarning:
		return "warning"
	}
	return "good"
}

// ---------------------------------------------------------------------------
// Fan-out
// ---------------------------------------------------------------------------

// Multi delivers to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, msg Message) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
