// Package notify implements the alert notification channels. Each
// notifier delivers independently; the dispatch pool isolates failures.
package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"

	"github.com/tracewatch/tracewatch/internal/model"
)

// EmailConfig holds SMTP delivery settings.
type EmailConfig struct {
	Addr       string // host:port
	From       string
	Recipients []string
	Username   string
	Password   string
}

// EmailNotifier sends alert mail over SMTP.
type EmailNotifier struct {
	conf EmailConfig
	auth smtp.Auth
	// sendMail is swappable for tests.
	sendMail func(ctx context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewEmailNotifier creates an email notifier. Auth is used only when a
// username is configured.
func NewEmailNotifier(conf EmailConfig) *EmailNotifier {
	var auth smtp.Auth
	if conf.Username != "" {
		host := conf.Addr
		if i := strings.IndexByte(host, ':'); i >= 0 {
			host = host[:i]
		}
		auth = smtp.PlainAuth("", conf.Username, conf.Password, host)
	}
	return &EmailNotifier{
		conf:     conf,
		auth:     auth,
		sendMail: sendMailContext,
	}
}

func (n *EmailNotifier) Name() string { return "email" }

// Send delivers the alert to every configured recipient in one message.
func (n *EmailNotifier) Send(ctx context.Context, ev model.AlertEvent) error {
	if len(n.conf.Recipients) == 0 {
		return fmt.Errorf("notify: no email recipients configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	subject := fmt.Sprintf("[%s] %s", strings.ToUpper(string(ev.Severity)), ev.Name)
	var body strings.Builder
	fmt.Fprintf(&body, "From: %s\r\n", n.conf.From)
	fmt.Fprintf(&body, "To: %s\r\n", strings.Join(n.conf.Recipients, ", "))
	fmt.Fprintf(&body, "Subject: %s\r\n\r\n", subject)
	fmt.Fprintf(&body, "%s\r\n\r\n", ev.Message)
	fmt.Fprintf(&body, "Metric:         %s.%s\r\n", ev.Metric, ev.Field)
	fmt.Fprintf(&body, "Current value:  %.2f\r\n", ev.Value)
	fmt.Fprintf(&body, "Threshold:      %s %.2f\r\n", ev.Condition, ev.Threshold)
	fmt.Fprintf(&body, "First detected: %s\r\n", ev.FirstDetected.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&body, "Triggered at:   %s\r\n", ev.TriggeredAt.Format("2006-01-02 15:04:05 MST"))

	if err := n.sendMail(ctx, n.conf.Addr, n.auth, n.conf.From, n.conf.Recipients, []byte(body.String())); err != nil {
		return fmt.Errorf("notify: send mail: %w", err)
	}
	return nil
}

// sendMailContext is smtp.SendMail with the dial and the whole exchange
// bound to the context deadline, so a hung SMTP server cannot stall a
// dispatch worker past its send timeout.
func sendMailContext(ctx context.Context, addr string, auth smtp.Auth, from string, to []string, msg []byte) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	host := addr
	if h, _, splitErr := net.SplitHostPort(addr); splitErr == nil {
		host = h
	}

	c, err := smtp.NewClient(conn, host)
	if err != nil {
		conn.Close()
		return err
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: host}); err != nil {
			return err
		}
	}
	if auth != nil {
		if ok, _ := c.Extension("AUTH"); ok {
			if err := c.Auth(auth); err != nil {
				return err
			}
		}
	}

	if err := c.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return err
		}
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}
