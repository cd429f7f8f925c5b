package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/wneessen/go-mail"
)

// SMTPSettings holds transport parameters for EmailNotifier
type SMTPSettings struct {
	Host    string
	Port    int
	User    string
	Pass    string
	From    string
	Timeout time.Duration
}

// EmailNotifier sends notifications as HTML email over SMTP.
// Port 465 uses implicit TLS; any other port requires STARTTLS.
type EmailNotifier struct {
	settings SMTPSettings
	logger   *logrus.Logger
}

// NewEmailNotifier creates an SMTP notifier
func NewEmailNotifier(settings SMTPSettings, logger *logrus.Logger) *EmailNotifier {
	if settings.From == "" {
		settings.From = settings.User
	}
	return &EmailNotifier{settings: settings, logger: logger}
}

func (e *EmailNotifier) Send(ctx context.Context, n Notification) error {
	if len(n.Recipients) == 0 {
		return fmt.Errorf("no recipients configured")
	}

	msg, err := e.buildMessage(n)
	if err != nil {
		return err
	}

	client, err := mail.NewClient(e.settings.Host, e.clientOptions()...)
	if err != nil {
		return fmt.Errorf("create smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send email via %s:%d: %w", e.settings.Host, e.settings.Port, err)
	}

	e.logger.WithFields(logrus.Fields{
		"recipients": len(n.Recipients),
		"commits":    len(n.Commits),
		"subject":    n.Subject,
	}).Info("notification email sent")
	return nil
}

func (e *EmailNotifier) buildMessage(n Notification) (*mail.Msg, error) {
	body, err := RenderHTML(n)
	if err != nil {
		return nil, err
	}

	msg := mail.NewMsg()
	if err := msg.From(e.settings.From); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", e.settings.From, err)
	}
	if err := msg.To(n.Recipients...); err != nil {
		return nil, fmt.Errorf("invalid recipients: %w", err)
	}
	msg.Subject(n.Subject)
	msg.SetBodyString(mail.TypeTextHTML, body)
	return msg, nil
}

func (e *EmailNotifier) clientOptions() []mail.Option {
	opts := []mail.Option{
		mail.WithPort(e.settings.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(e.settings.User),
		mail.WithPassword(e.settings.Pass),
	}
	if e.settings.Timeout > 0 {
		opts = append(opts, mail.WithTimeout(e.settings.Timeout))
	}
	if e.settings.Port == 465 {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	}
	return opts
}
