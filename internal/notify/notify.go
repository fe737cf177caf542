// Package notify delivers alert notifications over the configured
// channels. Channel failures are isolated: one broken transport never
// blocks delivery on the others.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"text/template"
	"time"

	"polyalert/internal/clock"
	"polyalert/internal/config"
	"polyalert/internal/domain"
)

// DefaultMessageTemplate renders the standard alert notification body:
// the header fields, the context block, and the diagnosis lists when the
// context carries them.
const DefaultMessageTemplate = `🚨 ALERT: {{.Alert.RuleName}}
Language: {{.Alert.Language}}
Metric: {{.Alert.Metric}}
Current Value: {{printf "%.2f" .Alert.CurrentValue}}
Threshold: {{printf "%.2f" .Alert.Threshold}}
Severity: {{.Alert.Severity}}
Time: {{.Alert.Created.Format "2006-01-02T15:04:05Z07:00"}}

Context:
- Device: {{.Alert.Context.Device}}
- Error Rate: {{printf "%.2f" .Alert.Context.ErrorRate}}%
- Sessions: {{.Alert.Context.SessionCount}}
{{- if .Alert.Context.PossibleCauses}}

Possible Causes:
{{- range .Alert.Context.PossibleCauses}}
• {{.}}
{{- end}}
{{- end}}
{{- if .Alert.Context.SuggestedActions}}

Suggested Actions:
{{- range .Alert.Context.SuggestedActions}}
• {{.}}
{{- end}}
{{- end}}`

// Notification is the rendered outbound payload handed to senders.
type Notification struct {
	Alert   domain.Alert
	Subject string
	Message string
	Channel domain.ChannelType
}

// ChannelSender sends one rendered notification over one transport.
// Params: context and notification payload.
// Returns: transport error when delivery fails.
type ChannelSender interface {
	Channel() domain.ChannelType
	Send(ctx context.Context, notification Notification) error
}

// Dispatcher fans a notification out across the alert's channel list in
// priority order, collecting a delivery record per channel.
// Params: sender set, retry policy per channel, and shared timeout.
// Returns: delivery helper for the manager layer.
type Dispatcher struct {
	senders map[domain.ChannelType]ChannelSender
	retries map[domain.ChannelType]config.NotifyRetry
	timeout time.Duration
	body    *template.Template
	clk     clock.Clock
	logger  *slog.Logger
	tmplErr error
}

// NewDispatcher builds the dispatcher from enabled channel configs.
// Params: notify config, clock, and logger.
// Returns: configured dispatcher; channels with unusable config are
// skipped and logged.
func NewDispatcher(cfg config.NotifyConfig, clk clock.Clock, logger *slog.Logger) *Dispatcher {
	d := &Dispatcher{
		senders: make(map[domain.ChannelType]ChannelSender),
		retries: make(map[domain.ChannelType]config.NotifyRetry),
		timeout: time.Duration(cfg.TimeoutSec) * time.Second,
		clk:     clk,
		logger:  logger,
	}
	if d.timeout <= 0 {
		d.timeout = 10 * time.Second
	}

	bodySource := cfg.MessageTemplate
	if strings.TrimSpace(bodySource) == "" {
		bodySource = DefaultMessageTemplate
	}
	body, err := template.New("notify.message").Parse(bodySource)
	if err != nil {
		d.tmplErr = fmt.Errorf("parse notify message template: %w", err)
	}
	d.body = body

	if cfg.Email.Enabled {
		d.register(NewEmailSender(cfg.Email), cfg.Email.Retry)
	}
	if cfg.Chat.Enabled {
		d.register(NewChatSender(cfg.Chat), cfg.Chat.Retry)
	}
	if cfg.SMS.Enabled {
		d.register(NewSMSSender(cfg.SMS), cfg.SMS.Retry)
	}
	if cfg.Webhook.Enabled {
		d.register(NewWebhookSender(cfg.Webhook), cfg.Webhook.Retry)
	}
	if cfg.Push.Enabled {
		d.register(NewPushSender(cfg.Push), cfg.Push.Retry)
	}
	return d
}

// register wires one sender under its channel key.
func (d *Dispatcher) register(sender ChannelSender, retry config.NotifyRetry) {
	d.senders[sender.Channel()] = sender
	d.retries[sender.Channel()] = retry
}

// Register replaces or adds a sender. Used by tests and custom wiring.
// Params: sender and its retry policy.
func (d *Dispatcher) Register(sender ChannelSender, retry config.NotifyRetry) {
	d.register(sender, retry)
}

// Channels returns the configured channel keys in deterministic order.
func (d *Dispatcher) Channels() []domain.ChannelType {
	out := make([]domain.ChannelType, 0, len(d.senders))
	for channel := range d.senders {
		out = append(out, channel)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Dispatch renders the alert message once and sends it over every
// enabled channel ref in ascending priority order. Each channel gets a
// bounded attempt window; a failed channel is recorded and the rest
// still run.
// Params: context, alert snapshot, and the rule's channel list.
// Returns: one delivery record per attempted channel.
func (d *Dispatcher) Dispatch(ctx context.Context, alert domain.Alert, channels []domain.ChannelRef) []domain.NotificationRecord {
	refs := make([]domain.ChannelRef, 0, len(channels))
	for _, ref := range channels {
		if ref.Enabled {
			refs = append(refs, ref)
		}
	}
	sort.SliceStable(refs, func(i, j int) bool { return refs[i].Priority < refs[j].Priority })

	subject := fmt.Sprintf("[%s] %s (%s)", strings.ToUpper(string(alert.Severity)), alert.RuleName, alert.Language)
	message, renderErr := d.render(alert)

	records := make([]domain.NotificationRecord, 0, len(refs))
	for _, ref := range refs {
		record := domain.NotificationRecord{
			Channel:   ref.Type,
			Timestamp: d.clk.Now(),
		}

		sender, ok := d.senders[ref.Type]
		switch {
		case renderErr != nil:
			record.Status = domain.NotificationFailed
			record.Error = renderErr.Error()
		case !ok:
			record.Status = domain.NotificationFailed
			record.Error = fmt.Sprintf("channel %q is not configured", ref.Type)
		default:
			notification := Notification{Alert: alert, Subject: subject, Message: message, Channel: ref.Type}
			attempts, err := d.sendWithRetry(ctx, sender, notification, d.retries[ref.Type])
			record.RetryCount = attempts - 1
			if err != nil {
				record.Status = domain.NotificationFailed
				record.Error = err.Error()
			} else {
				record.Status = domain.NotificationSent
			}
		}

		if record.Status == domain.NotificationFailed && d.logger != nil {
			d.logger.Warn("notification delivery failed",
				"alert_id", alert.ID, "channel", string(ref.Type), "error", record.Error)
		}
		records = append(records, record)
	}
	return records
}

// render executes the message template against the alert.
// Params: alert snapshot.
// Returns: rendered body or template error.
func (d *Dispatcher) render(alert domain.Alert) (string, error) {
	if d.tmplErr != nil {
		return "", d.tmplErr
	}
	var out strings.Builder
	if err := d.body.Execute(&out, struct{ Alert domain.Alert }{Alert: alert}); err != nil {
		return "", fmt.Errorf("render notify message: %w", err)
	}
	return out.String(), nil
}

// sendWithRetry runs one channel delivery under the shared timeout with
// the channel's retry policy.
// Params: sender, rendered payload, and retry policy.
// Returns: attempt count and the final error.
func (d *Dispatcher) sendWithRetry(ctx context.Context, sender ChannelSender, notification Notification, retry config.NotifyRetry) (int, error) {
	maxAttempts := retry.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	backoff := time.Duration(retry.InitialMS) * time.Millisecond

	attempt := 0
	for {
		attempt++
		sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
		err := sender.Send(sendCtx, notification)
		cancel()
		if err == nil {
			return attempt, nil
		}
		if attempt >= maxAttempts {
			return attempt, fmt.Errorf("channel %s failed after %d attempts: %w", sender.Channel(), attempt, err)
		}
		if backoff > 0 {
			select {
			case <-ctx.Done():
				return attempt, ctx.Err()
			case <-time.After(backoff):
			}
		}
	}
}
