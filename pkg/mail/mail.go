package mail

import (
	"crypto/tls"
	"errors"
	"math"
	"time"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/equitraccion/site/pkg/config"
	"github.com/equitraccion/site/pkg/metrics"
)

// Message is a single email with an HTML body and an optional plain text alternative.
type Message struct {
	To      []string
	Subject string
	HTML    string
	Text    string
}

type Sender interface {
	Send(msg Message) error
	GetHost() string
	GetPort() int
}

type sender struct {
	dialer         *gomail.Dialer
	senderAddress  string
	senderName     string
	retryCount     int
	retryBackoffMs int
	log            *zap.SugaredLogger
}

func NewSender(cfg config.Mail, log *zap.SugaredLogger) Sender {
	log = log.Named("mail")
	log.Infow("Initializing mail sender", "host", cfg.Host, "port", cfg.Port, "user", cfg.User)

	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password)
	if cfg.InsecureSkipVerify {
		log.Warnw("InsecureSkipVerify is enabled for mail TLS connection")
		d.TLSConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in for local relays
	}

	senderAddr := cfg.SenderAddress
	if senderAddr == "" {
		senderAddr = "newsletter@equitraccion.com"
	}
	senderName := cfg.SenderName
	if senderName == "" {
		senderName = "Equitracción"
	}

	retryCount := cfg.RetryCount
	if retryCount < 0 {
		retryCount = 0
	}
	retryBackoffMs := cfg.RetryBackoffMs
	if retryBackoffMs <= 0 {
		retryBackoffMs = 100
	}

	return &sender{
		dialer:         d,
		senderAddress:  senderAddr,
		senderName:     senderName,
		retryCount:     retryCount,
		retryBackoffMs: retryBackoffMs,
		log:            log,
	}
}

func (s *sender) compose(msg Message) *gomail.Message {
	m := gomail.NewMessage()
	m.SetAddressHeader("From", s.senderAddress, s.senderName)
	if len(msg.To) == 1 {
		m.SetHeader("To", msg.To...)
	} else {
		// keep recipient lists private for group notifications
		m.SetHeader("Bcc", msg.To...)
	}
	m.SetHeader("Subject", msg.Subject)
	if msg.Text != "" {
		m.SetBody("text/plain", msg.Text)
		m.AddAlternative("text/html", msg.HTML)
	} else {
		m.SetBody("text/html", msg.HTML)
	}
	return m
}

// Send delivers msg, retrying transient failures with exponential backoff.
func (s *sender) Send(msg Message) error {
	if len(msg.To) == 0 {
		return errors.New("mail has no receivers")
	}
	m := s.compose(msg)

	var lastErr error
	backoffMs := s.retryBackoffMs
	for attempt := 0; attempt <= s.retryCount; attempt++ {
		err := s.dialer.DialAndSend(m)
		if err == nil {
			s.log.Debugw("Mail sent", "receivers", len(msg.To), "subject", msg.Subject, "attempt", attempt+1)
			metrics.MailSendSuccess.WithLabelValues(s.GetHost()).Inc()
			return nil
		}

		lastErr = err
		if attempt < s.retryCount {
			s.log.Warnw("Mail send attempt failed, retrying", "attempt", attempt+1, "error", err, "retryInMs", backoffMs)
			time.Sleep(time.Duration(backoffMs) * time.Millisecond)
			backoffMs = int(math.Min(float64(backoffMs)*2, 32000))
		}
	}

	s.log.Errorw("Failed to send mail", "attempts", s.retryCount+1, "subject", msg.Subject, "error", lastErr)
	metrics.MailSendFailure.WithLabelValues(s.GetHost()).Inc()
	return lastErr
}

func (s *sender) GetHost() string {
	return s.dialer.Host
}

func (s *sender) GetPort() int {
	return s.dialer.Port
}

// ErrMailDisabled is returned by the sender used when outgoing mail is switched off.
var ErrMailDisabled = errors.New("outgoing mail is disabled")

type disabledSender struct {
	log *zap.SugaredLogger
}

// NewDisabledSender returns a Sender that refuses every message.
func NewDisabledSender(log *zap.SugaredLogger) Sender {
	return &disabledSender{log: log.Named("mail")}
}

func (d *disabledSender) Send(msg Message) error {
	d.log.Debugw("Mail disabled, not sending", "receivers", len(msg.To), "subject", msg.Subject)
	return ErrMailDisabled
}

func (d *disabledSender) GetHost() string { return "disabled" }
func (d *disabledSender) GetPort() int    { return 0 }
