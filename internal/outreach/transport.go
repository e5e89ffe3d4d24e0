package outreach

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Transport delivers a composed email. Implementations must be safe for
// concurrent use.
type Transport interface {
	Send(ctx context.Context, e Email) error
}

// SMTPConfig configures the SMTP transport.
type SMTPConfig struct {
	Host        string        `mapstructure:"host"`
	Port        int           `mapstructure:"port"`
	Username    string        `mapstructure:"username"`
	Password    string        `mapstructure:"password"`
	From        string        `mapstructure:"from"`
	DialTimeout time.Duration `mapstructure:"dial-timeout"`
	// RatePerMinute throttles outbound mail across all workers. Zero
	// disables throttling.
	RatePerMinute int `mapstructure:"rate-per-minute"`
}

// SMTPTransport sends mail through a single SMTP relay.
type SMTPTransport struct {
	cfg     SMTPConfig
	limiter *rate.Limiter
	logger  *zap.Logger
}

func NewSMTPTransport(cfg SMTPConfig, logger *zap.Logger) *SMTPTransport {
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RatePerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.RatePerMinute)/60.0), 1)
	}
	return &SMTPTransport{cfg: cfg, limiter: limiter, logger: logger}
}

func (t *SMTPTransport) Send(ctx context.Context, e Email) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return err
	}

	addr := net.JoinHostPort(t.cfg.Host, fmt.Sprintf("%d", t.cfg.Port))
	conn, err := net.DialTimeout("tcp", addr, t.cfg.DialTimeout)
	if err != nil {
		return fmt.Errorf("dial smtp relay: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, t.cfg.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(nil); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	}
	if t.cfg.Username != "" {
		auth := smtp.PlainAuth("", t.cfg.Username, t.cfg.Password, t.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	if err := client.Mail(t.cfg.From); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	for _, rcpt := range e.To {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("rcpt %s: %w", rcpt, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(t.render(e)); err != nil {
		w.Close()
		return fmt.Errorf("write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finish message: %w", err)
	}

	t.logger.Debug("email delivered", zap.String("message_id", e.MessageID), zap.Strings("to", e.To))
	return client.Quit()
}

func (t *SMTPTransport) render(e Email) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", t.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(e.To, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", e.Subject)
	fmt.Fprintf(&b, "Message-ID: %s\r\n", e.MessageID)
	if e.InReplyTo != "" {
		fmt.Fprintf(&b, "In-Reply-To: %s\r\n", e.InReplyTo)
		fmt.Fprintf(&b, "References: %s\r\n", e.InReplyTo)
	}
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(e.Body, "\n", "\r\n"))
	return []byte(b.String())
}
