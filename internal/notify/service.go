package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/havenmind/wellness-ai-platform/internal/observability/metrics"
	"github.com/havenmind/wellness-ai-platform/pkg/logging"
)

// SMSSender sends SMS messages to on-call clinicians.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// UserMessenger delivers in-app messages to users.
type UserMessenger interface {
	SendToUser(ctx context.Context, userID, body string) error
}

// RosterProvider resolves who should be paged for a crisis alert.
type RosterProvider interface {
	OnCall(ctx context.Context) (Roster, error)
}

// Roster lists alert recipients by channel.
type Roster struct {
	Emails []string
	Phones []string
}

// StaticRoster serves a fixed roster from configuration.
type StaticRoster struct {
	roster Roster
}

// NewStaticRoster creates a roster provider backed by static recipient lists.
func NewStaticRoster(emails, phones []string) *StaticRoster {
	return &StaticRoster{roster: Roster{Emails: emails, Phones: phones}}
}

func (s *StaticRoster) OnCall(ctx context.Context) (Roster, error) {
	return s.roster, nil
}

// CrisisAlert carries what on-call clinicians need to triage an event.
type CrisisAlert struct {
	CrisisEventID string
	UserID        string
	SessionID     string
	RiskLevel     string
	Confidence    float64
	Triggers      []string
	Summary       string
	DetectedAt    time.Time
}

// OverdueFollowUp describes a scheduled wellness check that nobody completed in time.
type OverdueFollowUp struct {
	FollowUpID    string
	CrisisEventID string
	UserID        string
	DueAt         time.Time
	OverdueBy     time.Duration
}

// AlertReceipt counts the alerts that reached the on-call roster per channel.
type AlertReceipt struct {
	EmailsSent int
	SMSSent    int
}

// Channels names the channels that delivered at least one alert.
func (r AlertReceipt) Channels() string {
	switch {
	case r.EmailsSent > 0 && r.SMSSent > 0:
		return "email+sms"
	case r.EmailsSent > 0:
		return "email"
	case r.SMSSent > 0:
		return "sms"
	default:
		return "none"
	}
}

// Recipients is the total number of alerts that went out.
func (r AlertReceipt) Recipients() int {
	return r.EmailsSent + r.SMSSent
}

// Service pages on-call clinicians about crisis events and delivers crisis
// resources to users.
type Service struct {
	email   EmailSender
	sms     SMSSender
	users   UserMessenger
	roster  RosterProvider
	metrics *metrics.CrisisMetrics
	logger  *logging.Logger
}

// NewService creates a crisis notification service.
func NewService(email EmailSender, sms SMSSender, users UserMessenger, roster RosterProvider, m *metrics.CrisisMetrics, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		email:   email,
		sms:     sms,
		users:   users,
		roster:  roster,
		metrics: m,
		logger:  logger,
	}
}

// ResourceDelivery names the user and the resources selected for them.
type ResourceDelivery struct {
	UserID    string
	SessionID string
	RiskLevel string
	Resources []Resource
}

// SendCrisisResources delivers the selected resources to the user in-app.
func (s *Service) SendCrisisResources(ctx context.Context, delivery ResourceDelivery) error {
	if s.users == nil {
		return fmt.Errorf("notify: user messenger not configured")
	}
	if len(delivery.Resources) == 0 {
		return fmt.Errorf("notify: no resources selected for user %s", delivery.UserID)
	}

	body := FormatResourceMessage(delivery.Resources)
	if err := s.users.SendToUser(ctx, delivery.UserID, body); err != nil {
		s.logger.Error("notify: failed to deliver crisis resources", "error", err, "user_id", delivery.UserID)
		s.metrics.ObserveNotification("in_app", "failed")
		return fmt.Errorf("notify: deliver crisis resources: %w", err)
	}

	s.metrics.ObserveNotification("in_app", "sent")
	s.logger.Info("crisis resources delivered", "user_id", delivery.UserID, "risk_level", delivery.RiskLevel, "resources", len(delivery.Resources))
	return nil
}

// AlertProfessionals notifies every on-call clinician about a detected crisis.
// Each channel is attempted independently so one dead transport never silences
// the rest. The receipt reports what actually went out, including on partial
// failure.
func (s *Service) AlertProfessionals(ctx context.Context, alert CrisisAlert) (AlertReceipt, error) {
	var receipt AlertReceipt

	if s.roster == nil {
		s.logger.Debug("notify: roster not configured, skipping crisis alert")
		return receipt, nil
	}

	roster, err := s.roster.OnCall(ctx)
	if err != nil {
		s.logger.Error("notify: failed to resolve on-call roster", "error", err, "crisis_event_id", alert.CrisisEventID)
		return receipt, fmt.Errorf("notify: resolve on-call roster: %w", err)
	}

	detectedAt := alert.DetectedAt.UTC().Format("January 2, 2006 at 3:04 PM UTC")
	confidencePct := fmt.Sprintf("%.0f%%", alert.Confidence*100)
	triggers := "none recorded"
	if len(alert.Triggers) > 0 {
		triggers = strings.Join(alert.Triggers, ", ")
	}

	var errs []error

	if s.email != nil && len(roster.Emails) > 0 {
		subject := fmt.Sprintf("🚨 Crisis Alert: %s risk for user %s", strings.ToUpper(alert.RiskLevel), alert.UserID)
		body := fmt.Sprintf(`A %s risk crisis was detected and needs clinical review.

User: %s
Session: %s
Risk Level: %s
Confidence: %s
Detected: %s
Signals: %s
Event ID: %s

%s

Open the crisis dashboard to acknowledge and resolve this event.

If you believe someone is in immediate danger, call 911 or the 988 Suicide & Crisis Lifeline.

— Havenmind Crisis Team`,
			alert.RiskLevel, alert.UserID, alert.SessionID, alert.RiskLevel, confidencePct,
			detectedAt, triggers, alert.CrisisEventID, alert.Summary)

		html := fmt.Sprintf(`<div style="font-family: sans-serif; max-width: 600px;">
<h2 style="color: #dc2626;">🚨 Crisis Alert</h2>
<p><strong>%s</strong> risk detected for user <strong>%s</strong>.</p>
<table style="border-collapse: collapse; margin: 20px 0;">
  <tr><td style="padding: 8px; border-bottom: 1px solid #e5e7eb;"><strong>Risk Level:</strong></td><td style="padding: 8px; border-bottom: 1px solid #e5e7eb;">%s</td></tr>
  <tr><td style="padding: 8px; border-bottom: 1px solid #e5e7eb;"><strong>Confidence:</strong></td><td style="padding: 8px; border-bottom: 1px solid #e5e7eb;">%s</td></tr>
  <tr><td style="padding: 8px; border-bottom: 1px solid #e5e7eb;"><strong>Detected:</strong></td><td style="padding: 8px; border-bottom: 1px solid #e5e7eb;">%s</td></tr>
  <tr><td style="padding: 8px; border-bottom: 1px solid #e5e7eb;"><strong>Signals:</strong></td><td style="padding: 8px; border-bottom: 1px solid #e5e7eb;">%s</td></tr>
  <tr><td style="padding: 8px; border-bottom: 1px solid #e5e7eb;"><strong>Event ID:</strong></td><td style="padding: 8px; border-bottom: 1px solid #e5e7eb;">%s</td></tr>
</table>
<p style="background: #fef2f2; padding: 12px; border-radius: 8px; border-left: 4px solid #dc2626;">
  ⚠️ <strong>Action needed</strong>: acknowledge this event in the crisis dashboard.
</p>
<p style="color: #6b7280; font-size: 12px; margin-top: 20px;">If you believe someone is in immediate danger, call 911 or the 988 Suicide &amp; Crisis Lifeline.</p>
<p style="color: #6b7280; font-size: 12px;">— Havenmind Crisis Team</p>
</div>`,
			alert.RiskLevel, alert.UserID, alert.RiskLevel, confidencePct, detectedAt, triggers, alert.CrisisEventID)

		for _, recipient := range roster.Emails {
			msg := EmailMessage{
				To:       recipient,
				Subject:  subject,
				Body:     body,
				HTML:     html,
				Category: "crisis-alert",
				Urgent:   true,
			}
			if err := s.email.Send(ctx, msg); err != nil {
				s.logger.Error("notify: failed to send crisis alert email", "error", err, "to", recipient, "crisis_event_id", alert.CrisisEventID)
				s.metrics.ObserveNotification("email", "failed")
				errs = append(errs, err)
			} else {
				s.logger.Info("notify: crisis alert email sent", "to", recipient, "crisis_event_id", alert.CrisisEventID, "risk_level", alert.RiskLevel)
				s.metrics.ObserveNotification("email", "sent")
				receipt.EmailsSent++
			}
		}
	}

	if s.sms != nil && len(roster.Phones) > 0 {
		smsBody := fmt.Sprintf("🚨 %s risk crisis for user %s (confidence %s). Event %s. Check the crisis dashboard.",
			strings.ToUpper(alert.RiskLevel), alert.UserID, confidencePct, alert.CrisisEventID)

		for _, recipient := range roster.Phones {
			if err := s.sms.SendSMS(ctx, recipient, smsBody); err != nil {
				s.logger.Error("notify: failed to send crisis alert SMS", "error", err, "to", recipient, "crisis_event_id", alert.CrisisEventID)
				s.metrics.ObserveNotification("sms", "failed")
				errs = append(errs, err)
			} else {
				s.logger.Info("notify: crisis alert SMS sent", "to", recipient, "crisis_event_id", alert.CrisisEventID)
				s.metrics.ObserveNotification("sms", "sent")
				receipt.SMSSent++
			}
		}
	}

	if len(errs) > 0 {
		return receipt, fmt.Errorf("notify: %d notification(s) failed", len(errs))
	}
	return receipt, nil
}

// NotifyFollowUpOverdue escalates a wellness check nobody completed.
func (s *Service) NotifyFollowUpOverdue(ctx context.Context, notice OverdueFollowUp) error {
	if s.roster == nil || s.email == nil {
		return nil
	}

	roster, err := s.roster.OnCall(ctx)
	if err != nil {
		return fmt.Errorf("notify: resolve on-call roster: %w", err)
	}
	if len(roster.Emails) == 0 {
		return nil
	}

	subject := fmt.Sprintf("⏰ Overdue follow-up for user %s", notice.UserID)
	body := fmt.Sprintf(`A scheduled wellness check is overdue.

User: %s
Crisis Event: %s
Was due: %s
Overdue by: %s

Please complete the follow-up or reassign it.

— Havenmind Crisis Team`,
		notice.UserID, notice.CrisisEventID,
		notice.DueAt.UTC().Format("January 2, 2006 at 3:04 PM UTC"),
		notice.OverdueBy.Round(time.Minute))

	var errs []error
	for _, recipient := range roster.Emails {
		msg := EmailMessage{
			To:       recipient,
			Subject:  subject,
			Body:     body,
			Category: "followup-overdue",
		}
		if err := s.email.Send(ctx, msg); err != nil {
			s.logger.Error("notify: failed to send overdue follow-up email", "error", err, "to", recipient, "follow_up_id", notice.FollowUpID)
			s.metrics.ObserveNotification("email", "failed")
			errs = append(errs, err)
		} else {
			s.metrics.ObserveNotification("email", "sent")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("notify: %d notification(s) failed", len(errs))
	}
	return nil
}

// SimpleSMSSender provides a simple SMS sending implementation.
type SimpleSMSSender struct {
	sendFunc func(ctx context.Context, to, from, body string) error
	from     string
	logger   *logging.Logger
}

// NewSimpleSMSSender creates an SMS sender with a custom send function.
func NewSimpleSMSSender(from string, sendFunc func(ctx context.Context, to, from, body string) error, logger *logging.Logger) *SimpleSMSSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &SimpleSMSSender{
		sendFunc: sendFunc,
		from:     from,
		logger:   logger,
	}
}

// SendSMS sends an SMS message.
func (s *SimpleSMSSender) SendSMS(ctx context.Context, to, body string) error {
	if s.sendFunc == nil {
		s.logger.Warn("notify: SMS sender not configured")
		return nil
	}
	return s.sendFunc(ctx, to, s.from, body)
}

// StubUserMessenger logs resource deliveries instead of sending them. Used
// until a deployment wires the in-app message channel.
type StubUserMessenger struct {
	logger *logging.Logger
}

// NewStubUserMessenger creates a stub in-app messenger.
func NewStubUserMessenger(logger *logging.Logger) *StubUserMessenger {
	if logger == nil {
		logger = logging.Default()
	}
	return &StubUserMessenger{logger: logger}
}

// SendToUser logs but doesn't deliver.
func (s *StubUserMessenger) SendToUser(ctx context.Context, userID, body string) error {
	s.logger.Info("stub user messenger: would deliver", "user_id", userID, "body_preview", truncate(body, 50))
	return nil
}

// StubSMSSender is a no-op sender for testing.
type StubSMSSender struct {
	logger *logging.Logger
}

// NewStubSMSSender creates a stub SMS sender.
func NewStubSMSSender(logger *logging.Logger) *StubSMSSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &StubSMSSender{logger: logger}
}

// SendSMS logs but doesn't send.
func (s *StubSMSSender) SendSMS(ctx context.Context, to, body string) error {
	s.logger.Info("stub SMS sender: would send", "to", to, "body_preview", truncate(body, 50))
	return nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// Ensure interface compliance
var _ SMSSender = (*SimpleSMSSender)(nil)
var _ SMSSender = (*StubSMSSender)(nil)
var _ UserMessenger = (*StubUserMessenger)(nil)
var _ RosterProvider = (*StaticRoster)(nil)
