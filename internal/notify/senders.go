package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbot "github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
	"github.com/slack-go/slack"
	gomail "gopkg.in/gomail.v2"

	"polyalert/internal/config"
	"polyalert/internal/domain"
)

// EmailSender delivers notifications over SMTP.
// Params: SMTP host, port, credentials, and recipient list from config.
// Returns: email channel sender.
type EmailSender struct {
	cfg    config.EmailNotifier
	dialer *gomail.Dialer
}

// NewEmailSender creates the SMTP sender.
// Params: email notifier config.
// Returns: initialized sender.
func NewEmailSender(cfg config.EmailNotifier) *EmailSender {
	return &EmailSender{
		cfg:    cfg,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}
}

// Channel returns the sender channel key.
func (s *EmailSender) Channel() domain.ChannelType {
	return domain.ChannelEmail
}

// Send delivers one notification email to all configured recipients.
// Params: context and rendered notification.
// Returns: SMTP transport error.
func (s *EmailSender) Send(ctx context.Context, notification Notification) error {
	if len(s.cfg.To) == 0 {
		return errors.New("email recipients are not configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	message := gomail.NewMessage()
	message.SetHeader("From", s.cfg.From)
	message.SetHeader("To", s.cfg.To...)
	message.SetHeader("Subject", notification.Subject)
	message.SetBody("text/plain", notification.Message)

	if err := s.dialer.DialAndSend(message); err != nil {
		return fmt.Errorf("email send: %w", err)
	}
	return nil
}

// ChatSender posts notifications to a Slack channel.
// Params: bot token and channel id from config.
// Returns: chat channel sender.
type ChatSender struct {
	cfg    config.ChatNotifier
	client *slack.Client
}

// NewChatSender creates the Slack sender.
// Params: chat notifier config.
// Returns: initialized sender.
func NewChatSender(cfg config.ChatNotifier) *ChatSender {
	options := []slack.Option{}
	if strings.TrimSpace(cfg.APIBase) != "" {
		options = append(options, slack.OptionAPIURL(strings.TrimRight(cfg.APIBase, "/")+"/"))
	}
	return &ChatSender{
		cfg:    cfg,
		client: slack.New(cfg.Token, options...),
	}
}

// Channel returns the sender channel key.
func (s *ChatSender) Channel() domain.ChannelType {
	return domain.ChannelChat
}

// Send posts one notification message to the configured channel.
// Params: context and rendered notification.
// Returns: Slack API error.
func (s *ChatSender) Send(ctx context.Context, notification Notification) error {
	if strings.TrimSpace(s.cfg.Token) == "" {
		return errors.New("chat token is required")
	}
	if strings.TrimSpace(s.cfg.Channel) == "" {
		return errors.New("chat channel is required")
	}

	_, _, err := s.client.PostMessageContext(ctx, s.cfg.Channel,
		slack.MsgOptionText(notification.Message, false))
	if err != nil {
		return fmt.Errorf("chat send: %w", err)
	}
	return nil
}

// SMSSender posts notifications to an HTTP SMS gateway.
// Params: gateway URL, API key, and recipient numbers from config.
// Returns: sms channel sender.
type SMSSender struct {
	cfg    config.SMSNotifier
	client *http.Client
}

// NewSMSSender creates the SMS gateway sender.
// Params: sms notifier config.
// Returns: initialized sender.
func NewSMSSender(cfg config.SMSNotifier) *SMSSender {
	return &SMSSender{
		cfg:    cfg,
		client: &http.Client{Timeout: time.Duration(cfg.TimeoutSec) * time.Second},
	}
}

// Channel returns the sender channel key.
func (s *SMSSender) Channel() domain.ChannelType {
	return domain.ChannelSMS
}

// Send posts one gateway request per recipient. The subject line is
// used as the SMS body to stay inside length limits.
// Params: context and rendered notification.
// Returns: first gateway error.
func (s *SMSSender) Send(ctx context.Context, notification Notification) error {
	if len(s.cfg.To) == 0 {
		return errors.New("sms recipients are not configured")
	}
	for _, to := range s.cfg.To {
		payload, err := json.Marshal(map[string]string{
			"from": s.cfg.From,
			"to":   to,
			"text": notification.Subject,
		})
		if err != nil {
			return fmt.Errorf("encode sms payload: %w", err)
		}
		request, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.URL, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("build sms request: %w", err)
		}
		request.Header.Set("Content-Type", "application/json")
		if s.cfg.APIKey != "" {
			request.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
		}
		response, err := s.client.Do(request)
		if err != nil {
			return fmt.Errorf("sms send: %w", err)
		}
		io.Copy(io.Discard, response.Body)
		response.Body.Close()
		if response.StatusCode < 200 || response.StatusCode >= 300 {
			return fmt.Errorf("sms gateway returned status %d", response.StatusCode)
		}
	}
	return nil
}

// WebhookSender posts the full alert as JSON to a configured endpoint.
// Params: endpoint URL, method, and headers from config.
// Returns: webhook channel sender.
type WebhookSender struct {
	cfg    config.WebhookNotifier
	client *http.Client
}

// NewWebhookSender creates the generic webhook sender.
// Params: webhook notifier config.
// Returns: initialized sender.
func NewWebhookSender(cfg config.WebhookNotifier) *WebhookSender {
	return &WebhookSender{
		cfg:    cfg,
		client: &http.Client{Timeout: time.Duration(cfg.TimeoutSec) * time.Second},
	}
}

// Channel returns the sender channel key.
func (s *WebhookSender) Channel() domain.ChannelType {
	return domain.ChannelWebhook
}

// Send delivers the alert payload to the configured endpoint.
// Params: context and rendered notification.
// Returns: transport or HTTP status error.
func (s *WebhookSender) Send(ctx context.Context, notification Notification) error {
	body, err := json.Marshal(struct {
		Alert   domain.Alert `json:"alert"`
		Message string       `json:"message"`
	}{Alert: notification.Alert, Message: notification.Message})
	if err != nil {
		return fmt.Errorf("encode webhook payload: %w", err)
	}

	method := strings.ToUpper(strings.TrimSpace(s.cfg.Method))
	if method == "" {
		method = http.MethodPost
	}
	request, err := http.NewRequestWithContext(ctx, method, s.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")
	for key, value := range s.cfg.Headers {
		request.Header.Set(key, value)
	}

	response, err := s.client.Do(request)
	if err != nil {
		return fmt.Errorf("webhook send: %w", err)
	}
	defer response.Body.Close()
	io.Copy(io.Discard, response.Body)
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", response.StatusCode)
	}
	return nil
}

// PushSender delivers notifications to the on-call Telegram chat.
// Params: bot token, chat id, and API base from config.
// Returns: push channel sender.
type PushSender struct {
	chatID  any
	client  *tgbot.Bot
	initErr error
}

// NewPushSender creates the Telegram push sender.
// Params: push notifier config.
// Returns: initialized sender; config errors surface on Send.
func NewPushSender(cfg config.PushNotifier) *PushSender {
	sender := &PushSender{chatID: normalizeChatID(cfg.ChatID)}

	if strings.TrimSpace(cfg.BotToken) == "" {
		sender.initErr = errors.New("push bot token is required")
		return sender
	}
	if strings.TrimSpace(cfg.ChatID) == "" {
		sender.initErr = errors.New("push chat_id is required")
		return sender
	}

	options := []tgbot.Option{tgbot.WithSkipGetMe()}
	if strings.TrimSpace(cfg.APIBase) != "" {
		options = append(options, tgbot.WithServerURL(strings.TrimRight(cfg.APIBase, "/")))
	}
	botClient, err := tgbot.New(cfg.BotToken, options...)
	if err != nil {
		sender.initErr = fmt.Errorf("init push bot: %w", err)
		return sender
	}
	sender.client = botClient
	return sender
}

// Channel returns the sender channel key.
func (s *PushSender) Channel() domain.ChannelType {
	return domain.ChannelPush
}

// Send posts one notification message to the configured chat.
// Params: context and rendered notification.
// Returns: Telegram API error.
func (s *PushSender) Send(ctx context.Context, notification Notification) error {
	if s.initErr != nil {
		return s.initErr
	}

	sent, err := s.client.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID:    s.chatID,
		Text:      notification.Message,
		ParseMode: tgmodels.ParseModeHTML,
	})
	if err != nil {
		return fmt.Errorf("push send: %w", err)
	}
	if sent == nil || sent.ID <= 0 {
		return errors.New("push send returned empty message id")
	}
	return nil
}

// normalizeChatID converts numeric chat IDs to int64 and keeps
// non-numeric IDs as string.
// Params: configured chat ID value.
// Returns: Telegram API chat id union value.
func normalizeChatID(raw string) any {
	trimmed := strings.TrimSpace(raw)
	if numeric, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return numeric
	}
	return trimmed
}
