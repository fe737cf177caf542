package notify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"polyalert/internal/clock"
	"polyalert/internal/config"
	"polyalert/internal/domain"
)

// captureSender records every payload it receives.
type captureSender struct {
	mu      sync.Mutex
	channel domain.ChannelType
	sent    []Notification
}

func (s *captureSender) Channel() domain.ChannelType { return s.channel }

func (s *captureSender) Send(_ context.Context, notification Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, notification)
	return nil
}

// flakySender fails a fixed number of times before succeeding.
type flakySender struct {
	channel  domain.ChannelType
	failures int
	calls    int
}

func (s *flakySender) Channel() domain.ChannelType { return s.channel }

func (s *flakySender) Send(context.Context, Notification) error {
	s.calls++
	if s.calls <= s.failures {
		return errors.New("transport down")
	}
	return nil
}

func testAlert() domain.Alert {
	return domain.Alert{
		ID:           "alert_1",
		RuleID:       "r1",
		RuleName:     "High Error Rate",
		Language:     "fr",
		Metric:       "error_rate",
		CurrentValue: 12.5,
		Threshold:    5,
		Severity:     domain.SeverityHigh,
		Status:       domain.AlertStatusActive,
		Created:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Context: domain.AlertContext{
			Device:           "mobile",
			ErrorRate:        12.5,
			SessionCount:     40,
			PossibleCauses:   []string{"Database performance issues"},
			SuggestedActions: []string{"Check database performance metrics"},
		},
	}
}

func emptyDispatcher(clk clock.Clock) *Dispatcher {
	return NewDispatcher(config.NotifyConfig{TimeoutSec: 5}, clk, nil)
}

func TestDispatchPriorityOrderAndIsolation(t *testing.T) {
	t.Parallel()

	clk := &clock.Fake{Current: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	d := emptyDispatcher(clk)
	email := &captureSender{channel: domain.ChannelEmail}
	chat := &captureSender{channel: domain.ChannelChat}
	d.Register(email, config.NotifyRetry{})
	d.Register(chat, config.NotifyRetry{})

	records := d.Dispatch(context.Background(), testAlert(), []domain.ChannelRef{
		{Type: domain.ChannelEmail, Enabled: true, Priority: 2},
		{Type: domain.ChannelChat, Enabled: true, Priority: 1},
		{Type: domain.ChannelSMS, Enabled: true, Priority: 3},
		{Type: domain.ChannelWebhook, Enabled: false, Priority: 0},
	})

	if len(records) != 3 {
		t.Fatalf("record count = %d, want 3 (disabled channel skipped)", len(records))
	}
	if records[0].Channel != domain.ChannelChat || records[1].Channel != domain.ChannelEmail {
		t.Fatalf("dispatch order not by priority: %+v", records)
	}
	if records[0].Status != domain.NotificationSent || records[1].Status != domain.NotificationSent {
		t.Fatalf("configured channels must report sent")
	}
	// The sms channel has no sender; it fails without touching the rest.
	if records[2].Status != domain.NotificationFailed || records[2].Error == "" {
		t.Fatalf("missing sender must record failure: %+v", records[2])
	}
	if len(email.sent) != 1 || len(chat.sent) != 1 {
		t.Fatalf("each configured sender gets exactly one payload")
	}
}

func TestDispatchRendersDefaultMessage(t *testing.T) {
	t.Parallel()

	clk := &clock.Fake{Current: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	d := emptyDispatcher(clk)
	sender := &captureSender{channel: domain.ChannelChat}
	d.Register(sender, config.NotifyRetry{})

	d.Dispatch(context.Background(), testAlert(), []domain.ChannelRef{
		{Type: domain.ChannelChat, Enabled: true, Priority: 1},
	})

	got := sender.sent[0]
	wanted := []string{
		"High Error Rate", "Language: fr", "Current Value: 12.50", "Threshold: 5.00", "Severity: high",
		"Device: mobile", "Error Rate: 12.50%", "Sessions: 40",
		"Possible Causes:", "• Database performance issues",
		"Suggested Actions:", "• Check database performance metrics",
	}
	for _, want := range wanted {
		if !strings.Contains(got.Message, want) {
			t.Fatalf("message missing %q:\n%s", want, got.Message)
		}
	}
	if !strings.Contains(got.Subject, "HIGH") || !strings.Contains(got.Subject, "fr") {
		t.Fatalf("subject missing severity or language: %q", got.Subject)
	}
}

func TestDispatchOmitsEmptyDiagnosisBlocks(t *testing.T) {
	t.Parallel()

	clk := &clock.Fake{Current: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	d := emptyDispatcher(clk)
	sender := &captureSender{channel: domain.ChannelChat}
	d.Register(sender, config.NotifyRetry{})

	alert := testAlert()
	alert.Context.PossibleCauses = nil
	alert.Context.SuggestedActions = nil
	d.Dispatch(context.Background(), alert, []domain.ChannelRef{
		{Type: domain.ChannelChat, Enabled: true, Priority: 1},
	})

	got := sender.sent[0]
	if strings.Contains(got.Message, "Possible Causes:") || strings.Contains(got.Message, "Suggested Actions:") {
		t.Fatalf("empty diagnosis lists must not render headers:\n%s", got.Message)
	}
}

func TestDispatchRetriesUpToPolicy(t *testing.T) {
	t.Parallel()

	clk := &clock.Fake{Current: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	d := emptyDispatcher(clk)
	sender := &flakySender{channel: domain.ChannelWebhook, failures: 1}
	d.Register(sender, config.NotifyRetry{MaxAttempts: 2})

	records := d.Dispatch(context.Background(), testAlert(), []domain.ChannelRef{
		{Type: domain.ChannelWebhook, Enabled: true, Priority: 1},
	})

	if records[0].Status != domain.NotificationSent {
		t.Fatalf("second attempt must succeed: %+v", records[0])
	}
	if records[0].RetryCount != 1 {
		t.Fatalf("retry count = %d, want 1", records[0].RetryCount)
	}
	if sender.calls != 2 {
		t.Fatalf("sender calls = %d, want 2", sender.calls)
	}
}

func TestDispatchRecordsFinalFailure(t *testing.T) {
	t.Parallel()

	clk := &clock.Fake{Current: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	d := emptyDispatcher(clk)
	broken := &flakySender{channel: domain.ChannelEmail, failures: 10}
	healthy := &captureSender{channel: domain.ChannelChat}
	d.Register(broken, config.NotifyRetry{MaxAttempts: 2})
	d.Register(healthy, config.NotifyRetry{})

	records := d.Dispatch(context.Background(), testAlert(), []domain.ChannelRef{
		{Type: domain.ChannelEmail, Enabled: true, Priority: 1},
		{Type: domain.ChannelChat, Enabled: true, Priority: 2},
	})

	if records[0].Status != domain.NotificationFailed || !strings.Contains(records[0].Error, "transport down") {
		t.Fatalf("failure not recorded: %+v", records[0])
	}
	if records[1].Status != domain.NotificationSent {
		t.Fatalf("healthy channel must still deliver after a failed one")
	}
}
