package notify

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/example/pulse/internal/ports/secondary"
)

// MailConfig configures a MailNotifier.
type MailConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Sender   string
}

// mailDialer is the subset of *gomail.Dialer the notifier needs.
type mailDialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// MailNotifier emails notifications to the recipient's address from the
// membership directory. Recipients without an address are skipped.
type MailNotifier struct {
	dialer mailDialer
	emails emailLookup
	sender string
	logger *zap.Logger
}

type emailLookup interface {
	Email(ctx context.Context, userID string) (string, error)
}

// NewMailNotifier creates a notifier sending through the configured SMTP relay.
func NewMailNotifier(cfg MailConfig, emails secondary.MembershipProvider, logger *zap.Logger) (*MailNotifier, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("mail host is required")
	}
	port := cfg.Port
	if port == 0 {
		port = 587
	}
	sender := cfg.Sender
	if sender == "" {
		sender = "pulse@localhost"
	}

	logger.Info("mail notifier created",
		zap.String("host", cfg.Host),
		zap.Int("port", port),
		zap.String("user", cfg.User))

	d := gomail.NewDialer(cfg.Host, port, cfg.User, cfg.Password)
	return newMailNotifier(d, emails, sender, logger), nil
}

func newMailNotifier(d mailDialer, emails emailLookup, sender string, logger *zap.Logger) *MailNotifier {
	return &MailNotifier{dialer: d, emails: emails, sender: sender, logger: logger.Named("mail-notify")}
}

// Notify sends one email.
func (n *MailNotifier) Notify(ctx context.Context, msg secondary.Notification) error {
	address, err := n.emails.Email(ctx, msg.RecipientID)
	if err != nil {
		return fmt.Errorf("failed to look up recipient email: %w", err)
	}
	if address == "" {
		n.logger.Debug("recipient has no email address, skipping", zap.String("recipient", msg.RecipientID))
		return nil
	}

	m := gomail.NewMessage()
	m.SetHeader("From", n.sender)
	m.SetHeader("To", address)
	m.SetHeader("Subject", subjectFor(msg))
	m.SetBody("text/plain", msg.Message)

	if err := n.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send mail to %s: %w", msg.RecipientID, err)
	}
	return nil
}

func subjectFor(msg secondary.Notification) string {
	if step, ok := msg.Context["step"]; ok {
		return fmt.Sprintf("Escalation (step %s): action needed", step)
	}
	return "Escalation: action needed"
}

var _ secondary.Notifier = (*MailNotifier)(nil)
