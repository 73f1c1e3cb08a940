package reminder

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/klokku/eventcal/internal/config"
	log "github.com/sirupsen/logrus"
)

// Notifier delivers a reminder message. Delivery is best effort.
type Notifier interface {
	Notify(ctx context.Context, address, subject, body string) error
}

// NewNotifier returns an SMTPNotifier when an SMTP host is configured and a
// LogNotifier otherwise.
func NewNotifier(cfg config.SMTP) Notifier {
	if cfg.Host == "" {
		log.Info("SMTP host not configured, reminders will only be logged")
		return LogNotifier{}
	}
	return NewSMTPNotifier(cfg)
}

// LogNotifier only writes the reminder to the log.
type LogNotifier struct{}

func (LogNotifier) Notify(ctx context.Context, address, subject, body string) error {
	if address == "" {
		return nil
	}
	log.Infof("Reminder for %s: %s", address, subject)
	return nil
}

type sendMailFunc func(ctx context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPNotifier sends plain text emails. The connection is upgraded with
// STARTTLS when the server offers it.
type SMTPNotifier struct {
	addr     string
	from     string
	auth     smtp.Auth
	sendMail sendMailFunc
}

func NewSMTPNotifier(cfg config.SMTP) *SMTPNotifier {
	var auth smtp.Auth
	if cfg.User != "" {
		auth = smtp.PlainAuth("", cfg.User, cfg.Pass, cfg.Host)
	}
	from := cfg.From
	if from == "" {
		from = cfg.User
	}
	return &SMTPNotifier{
		addr:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		from:     from,
		auth:     auth,
		sendMail: sendMail,
	}
}

func (n *SMTPNotifier) Notify(ctx context.Context, address, subject, body string) error {
	if address == "" {
		return nil
	}
	if strings.ContainsAny(address, "\r\n") {
		return fmt.Errorf("invalid email address %q", address)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := n.sendMail(ctx, n.addr, n.auth, n.from, []string{address}, buildMessage(n.from, address, subject, body)); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", address, err)
	}
	return nil
}

// sendMail is smtp.SendMail bound to ctx: the dial honours ctx, the
// connection deadline follows the ctx deadline and cancelling ctx closes the
// connection.
func sendMail(ctx context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) (err error) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}
	conn, err := (&net.Dialer{}).DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return err
		}
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()
	defer func() {
		if err != nil && ctx.Err() != nil {
			err = fmt.Errorf("%w: %v", ctx.Err(), err)
		}
	}()

	c, err := smtp.NewClient(conn, host)
	if err != nil {
		return err
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: host}); err != nil {
			return err
		}
	}
	if a != nil {
		if ok, _ := c.Extension("AUTH"); !ok {
			return errors.New("smtp: server doesn't support AUTH")
		}
		if err := c.Auth(a); err != nil {
			return err
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

func buildMessage(from, to, subject, body string) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + sanitizeHeader(subject) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}

func sanitizeHeader(value string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(value)
}
