package reminder

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/klokku/eventcal/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sendMailCall struct {
	addr string
	auth smtp.Auth
	from string
	to   []string
	msg  string
}

func stubSendMail(calls *[]sendMailCall, err error) sendMailFunc {
	return func(ctx context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		*calls = append(*calls, sendMailCall{addr, a, from, to, string(msg)})
		return err
	}
}

func TestNewNotifier(t *testing.T) {
	assert.IsType(t, LogNotifier{}, NewNotifier(config.SMTP{}))
	assert.IsType(t, &SMTPNotifier{}, NewNotifier(config.SMTP{Host: "smtp.example.com", Port: 587}))
}

func TestSMTPNotifier_Notify(t *testing.T) {
	var calls []sendMailCall
	notifier := NewSMTPNotifier(config.SMTP{Host: "smtp.example.com", Port: 587, User: "bot@example.com", Pass: "secret"})
	notifier.sendMail = stubSendMail(&calls, nil)

	err := notifier.Notify(context.Background(), "someone@example.com", "Reminder: Team\r\nBcc: evil@example.com", "Your event 'Team' is starting at 2025-07-01T12:30:00.")

	require.NoError(t, err)
	require.Len(t, calls, 1)
	call := calls[0]
	assert.Equal(t, "smtp.example.com:587", call.addr)
	assert.NotNil(t, call.auth)
	assert.Equal(t, "bot@example.com", call.from, "sender defaults to the user")
	assert.Equal(t, []string{"someone@example.com"}, call.to)
	assert.Contains(t, call.msg, "To: someone@example.com\r\n")
	assert.Contains(t, call.msg, "Subject: Reminder: Team  Bcc: evil@example.com\r\n")
	assert.NotContains(t, call.msg, "\r\nBcc:")
	assert.Contains(t, call.msg, "\r\n\r\nYour event 'Team' is starting at 2025-07-01T12:30:00.")
}

func TestSMTPNotifier_WithoutCredentials(t *testing.T) {
	var calls []sendMailCall
	notifier := NewSMTPNotifier(config.SMTP{Host: "localhost", Port: 25, From: "calendar@example.com"})
	notifier.sendMail = stubSendMail(&calls, nil)

	require.NoError(t, notifier.Notify(context.Background(), "someone@example.com", "s", "b"))

	require.Len(t, calls, 1)
	assert.Nil(t, calls[0].auth)
	assert.Equal(t, "calendar@example.com", calls[0].from)
}

func TestSMTPNotifier_EmptyAddressIsNoop(t *testing.T) {
	var calls []sendMailCall
	notifier := NewSMTPNotifier(config.SMTP{Host: "localhost", Port: 25})
	notifier.sendMail = stubSendMail(&calls, errors.New("must not be called"))

	assert.NoError(t, notifier.Notify(context.Background(), "", "s", "b"))
	assert.Empty(t, calls)
}

func TestSMTPNotifier_Errors(t *testing.T) {
	var calls []sendMailCall
	notifier := NewSMTPNotifier(config.SMTP{Host: "localhost", Port: 25})
	notifier.sendMail = stubSendMail(&calls, errors.New("connection refused"))

	err := notifier.Notify(context.Background(), "someone@example.com", "s", "b")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = notifier.Notify(ctx, "someone@example.com", "s", "b")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, calls, 1, "a cancelled context does not send")
}

func TestLogNotifier(t *testing.T) {
	assert.NoError(t, LogNotifier{}.Notify(context.Background(), "someone@example.com", "s", "b"))
	assert.NoError(t, LogNotifier{}.Notify(context.Background(), "", "s", "b"))
}

func TestSMTPNotifier_RejectsHeaderInjectionInAddress(t *testing.T) {
	var calls []sendMailCall
	notifier := NewSMTPNotifier(config.SMTP{Host: "localhost", Port: 25})
	notifier.sendMail = stubSendMail(&calls, nil)

	err := notifier.Notify(context.Background(), "someone@example.com\r\nBcc: evil@example.com", "s", "b")

	assert.Error(t, err)
	assert.Empty(t, calls)
}

func smtpConfigFor(t *testing.T, ln net.Listener) config.SMTP {
	host, port, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	portNumber, err := strconv.Atoi(port)
	require.NoError(t, err)
	return config.SMTP{Host: host, Port: portNumber, From: "calendar@example.com"}
}

// startSMTPServer accepts a single session without STARTTLS or AUTH and
// reports the received message body.
func startSMTPServer(t *testing.T) (net.Listener, <-chan string) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	received := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		r := bufio.NewReader(conn)
		reply := func(line string) { _, _ = fmt.Fprintf(conn, "%s\r\n", line) }

		reply("220 localhost ESMTP")
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			cmd := strings.ToUpper(strings.TrimSpace(line))
			switch {
			case strings.HasPrefix(cmd, "EHLO"):
				reply("250-localhost")
				reply("250 8BITMIME")
			case cmd == "DATA":
				reply("354 go ahead")
				var data strings.Builder
				for {
					dataLine, err := r.ReadString('\n')
					if err != nil {
						return
					}
					if dataLine == ".\r\n" {
						break
					}
					data.WriteString(dataLine)
				}
				received <- data.String()
				reply("250 queued")
			case cmd == "QUIT":
				reply("221 bye")
				return
			default:
				reply("250 OK")
			}
		}
	}()
	return ln, received
}

func TestSMTPNotifier_DeliversOverSMTP(t *testing.T) {
	ln, received := startSMTPServer(t)
	notifier := NewSMTPNotifier(smtpConfigFor(t, ln))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := notifier.Notify(ctx, "someone@example.com", "Reminder: Team", "Your event 'Team' is starting at 2025-07-01T12:30:00.")

	require.NoError(t, err)
	select {
	case data := <-received:
		assert.Contains(t, data, "From: calendar@example.com\r\n")
		assert.Contains(t, data, "Subject: Reminder: Team\r\n")
		assert.Contains(t, data, "Your event 'Team' is starting at 2025-07-01T12:30:00.")
	case <-time.After(5 * time.Second):
		t.Fatal("message was not received")
	}
}

func TestSMTPNotifier_GivesUpOnSilentServer(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })
	go func() {
		// accept and never send the greeting
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				_, _ = io.Copy(io.Discard, c)
				_ = c.Close()
			}(conn)
		}
	}()

	testCases := []struct {
		name string
		ctx  func() (context.Context, context.CancelFunc)
	}{
		{"deadline", func() (context.Context, context.CancelFunc) {
			return context.WithTimeout(context.Background(), 200*time.Millisecond)
		}},
		{"cancellation without deadline", func() (context.Context, context.CancelFunc) {
			ctx, cancel := context.WithCancel(context.Background())
			time.AfterFunc(200*time.Millisecond, cancel)
			return ctx, cancel
		}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			notifier := NewSMTPNotifier(smtpConfigFor(t, ln))
			ctx, cancel := tc.ctx()
			defer cancel()

			done := make(chan error, 1)
			go func() { done <- notifier.Notify(ctx, "someone@example.com", "s", "b") }()

			select {
			case err := <-done:
				assert.Error(t, err)
			case <-time.After(3 * time.Second):
				t.Fatal("Notify did not return after the context ended")
			}
		})
	}
}
