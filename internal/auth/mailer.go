package auth

import (
	"context"
	"fmt"
	"net/smtp"
	"time"

	ab "github.com/aarondl/authboss/v3"
	"github.com/aarondl/authboss/v3/defaults"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"goal-tracker/internal/infrastructure/config"
)

// NewMailer returns an SMTP mailer when SMTP is configured and a mailer
// that writes messages to the log otherwise.
func NewMailer(cfg config.MailConfig, log *zap.Logger) ab.Mailer {
	if !cfg.Enabled() {
		return defaults.NewLogMailer(zap.NewStdLog(log.Named("mail")).Writer())
	}
	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.SMTPHost)
	}
	return defaults.NewSMTPMailer(fmt.Sprintf("%s:%d", cfg.SMTPHost, cfg.SMTPPort), auth)
}

// BreakerMailer stops calling a failing mail server for a cool-down period
// after consecutive failures.
type BreakerMailer struct {
	next ab.Mailer
	cb   *gobreaker.CircuitBreaker[struct{}]
}

// BreakerSettings tunes NewBreakerMailer. Zero values take the defaults.
type BreakerSettings struct {
	MaxFailures   uint32
	Cooldown      time.Duration
	OnStateChange func(from, to gobreaker.State)
}

func NewBreakerMailer(next ab.Mailer, s BreakerSettings) *BreakerMailer {
	if s.MaxFailures == 0 {
		s.MaxFailures = 3
	}
	if s.Cooldown == 0 {
		s.Cooldown = 30 * time.Second
	}
	settings := gobreaker.Settings{
		Name:        "mailer",
		MaxRequests: 1,
		Timeout:     s.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.MaxFailures
		},
	}
	if s.OnStateChange != nil {
		settings.OnStateChange = func(_ string, from, to gobreaker.State) {
			s.OnStateChange(from, to)
		}
	}
	return &BreakerMailer{next: next, cb: gobreaker.NewCircuitBreaker[struct{}](settings)}
}

func (m *BreakerMailer) Send(ctx context.Context, email ab.Email) error {
	_, err := m.cb.Execute(func() (struct{}, error) {
		return struct{}{}, m.next.Send(ctx, email)
	})
	return err
}

// State reports the breaker state.
func (m *BreakerMailer) State() gobreaker.State { return m.cb.State() }

var _ ab.Mailer = (*BreakerMailer)(nil)
