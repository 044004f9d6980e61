package alert

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/tls"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"

	"github.com/nhle/shuttledesk/internal/logging"
	"github.com/nhle/shuttledesk/internal/model"
	"github.com/nhle/shuttledesk/internal/store"
)

// EmailChannel is the dispatch log channel name for email alerts.
const EmailChannel = "email"

// DefaultDedupeWindow is how long an identical email alert is suppressed.
const DefaultDedupeWindow = 24 * time.Hour

// SMTPConfig holds the connection details for the outgoing mail server.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
}

// Sender delivers a fully formed RFC 5322 message.
type Sender interface {
	Send(ctx context.Context, from string, to []string, msg []byte) error
}

// SMTPSender sends over implicit TLS on port 465 and STARTTLS otherwise.
type SMTPSender struct {
	Config SMTPConfig

	// DialTimeout bounds connection setup. Zero means 30s.
	DialTimeout time.Duration
}

// Send delivers msg to every recipient in to.
func (s *SMTPSender) Send(ctx context.Context, from string, to []string, msg []byte) error {
	addr := net.JoinHostPort(s.Config.Host, strconv.Itoa(s.Config.Port))
	timeout := s.DialTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	dialer := &net.Dialer{Timeout: timeout}

	var conn net.Conn
	var err error
	if s.Config.Port == 465 {
		td := &tls.Dialer{NetDialer: dialer, Config: &tls.Config{ServerName: s.Config.Host}}
		conn, err = td.DialContext(ctx, "tcp", addr)
		if err != nil {
			return fmt.Errorf("TLS dial to %s: %w", addr, err)
		}
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			return fmt.Errorf("dial to %s: %w", addr, err)
		}
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, s.Config.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("creating SMTP client: %w", err)
	}
	defer client.Close()

	if s.Config.Port != 465 {
		if err := client.StartTLS(&tls.Config{ServerName: s.Config.Host}); err != nil {
			return fmt.Errorf("SMTP STARTTLS: %w", err)
		}
	}

	if s.Config.Username != "" {
		auth := smtp.PlainAuth("", s.Config.Username, s.Config.Password, s.Config.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("SMTP auth: %w", err)
		}
	}

	return sendViaClient(client, from, to, msg)
}

func sendViaClient(client *smtp.Client, from string, to []string, msg []byte) error {
	if err := client.Mail(from); err != nil {
		return fmt.Errorf("SMTP MAIL FROM: %w", err)
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("SMTP RCPT TO %s: %w", rcpt, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("SMTP DATA: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("writing email body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("closing email body: %w", err)
	}

	return client.Quit()
}

// EmailDispatcher forwards alerts by email. When a dispatch log is set,
// an alert with the same content is sent at most once per window across
// every process sharing the database.
type EmailDispatcher struct {
	sender Sender
	from   string
	to     []string
	log    store.DispatchLog
	window time.Duration
	logger *slog.Logger
	now    func() time.Time
}

// EmailOption configures an EmailDispatcher.
type EmailOption func(*EmailDispatcher)

// WithDispatchLog enables cross-process deduplication.
func WithDispatchLog(l store.DispatchLog, window time.Duration) EmailOption {
	return func(d *EmailDispatcher) {
		d.log = l
		d.window = window
	}
}

// WithEmailLogger sets the logger.
func WithEmailLogger(l *slog.Logger) EmailOption {
	return func(d *EmailDispatcher) { d.logger = l }
}

// NewEmailDispatcher returns a dispatcher sending from cfg.From to the
// comma-separated addresses in cfg.To.
func NewEmailDispatcher(cfg model.EmailConfig, sender Sender, opts ...EmailOption) *EmailDispatcher {
	d := &EmailDispatcher{
		sender: sender,
		from:   cfg.From,
		to:     splitAddresses(cfg.To),
		window: DefaultDedupeWindow,
		now:    time.Now,
	}
	if d.from == "" {
		d.from = cfg.Username
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = logging.OrDiscard(d.logger)
	return d
}

// Dispatch sends a, unless an identical alert was already sent.
func (d *EmailDispatcher) Dispatch(ctx context.Context, a Alert) error {
	if len(d.to) == 0 {
		return nil
	}

	if d.log != nil {
		claimed, err := d.log.ClaimDispatch(ctx, EmailChannel, ContentHash(a), a.Event.ID, d.window)
		if err != nil {
			return fmt.Errorf("claiming email dispatch: %w", err)
		}
		if !claimed {
			d.logger.DebugContext(ctx, "email alert already sent", "event", a.Event.ID)
			return nil
		}
	}

	msg, err := BuildMessage(d.from, d.to, a, d.now())
	if err != nil {
		return err
	}
	if err := d.sender.Send(ctx, d.from, d.to, msg); err != nil {
		return fmt.Errorf("sending email alert %s: %w", a.Event.ID, err)
	}
	d.logger.InfoContext(ctx, "email alert sent", "event", a.Event.ID, "recipients", len(d.to))
	return nil
}

// ContentHash identifies what an alert says, independent of its event
// id, so two processes detecting the same change agree on it.
func ContentHash(a Alert) string {
	h := sha256.New()
	fmt.Fprintf(h, "%d|%s|%d", a.Recipient.ID, a.Event.Kind(), a.Event.AppointmentID())
	switch ch := a.Event.Change.(type) {
	case model.NewAppointment:
		fmt.Fprintf(h, "|%s", ch.Status)
	case model.StatusChange:
		fmt.Fprintf(h, "|%s|%s", ch.OldStatus, ch.NewStatus)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// BuildMessage renders a as a plain-text email.
func BuildMessage(from string, to []string, a Alert, now time.Time) ([]byte, error) {
	var h mail.Header
	h.SetDate(now)
	h.SetSubject("[shuttledesk] " + a.Title)
	h.SetAddressList("From", []*mail.Address{{Address: from}})
	rcpts := make([]*mail.Address, 0, len(to))
	for _, addr := range to {
		rcpts = append(rcpts, &mail.Address{Address: addr})
	}
	h.SetAddressList("To", rcpts)
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	if err := h.GenerateMessageID(); err != nil {
		return nil, fmt.Errorf("generating message id: %w", err)
	}

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("creating email writer: %w", err)
	}

	body := a.Text()
	if a.Route != "" {
		body += "\n" + a.NavigateLabel + ": " + a.Route + "\n"
	}
	if _, err := w.Write([]byte(body)); err != nil {
		return nil, fmt.Errorf("writing email body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("closing email writer: %w", err)
	}
	return buf.Bytes(), nil
}

func splitAddresses(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
