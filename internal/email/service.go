package email

import (
	"context"
	"fmt"
	"html"

	"gopkg.in/gomail.v2"

	"github.com/psicare/manager-api/pkg/logger"
)

type Service interface {
	SendWelcome(ctx context.Context, email string, name string) error
	SendCustom(ctx context.Context, to string, subject string, content string) error
}

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Enabled reports whether enough SMTP settings are present to send mail.
func (c Config) Enabled() bool {
	return c.Host != "" && c.Port > 0 && c.From != ""
}

type sender interface {
	DialAndSend(m ...*gomail.Message) error
}

type smtpService struct {
	from   string
	dialer sender
	logger *logger.Logger
}

// NewService returns an SMTP backed service, or a no-op one when SMTP is not
// configured.
func NewService(cfg Config, log *logger.Logger) Service {
	if !cfg.Enabled() {
		log.Info("SMTP not configured, outgoing email disabled")
		return Noop{}
	}
	return &smtpService{
		from:   cfg.From,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		logger: log,
	}
}

func (s *smtpService) SendWelcome(ctx context.Context, to string, name string) error {
	body := fmt.Sprintf(welcomeTemplate, html.EscapeString(name))
	return s.send(to, "Bem-vindo(a) ao Psicare Manager", "Sua conta foi criada com sucesso.", body)
}

func (s *smtpService) SendCustom(ctx context.Context, to string, subject string, content string) error {
	return s.send(to, subject, content, "")
}

func (s *smtpService) send(to, subject, text, htmlBody string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", text)
	if htmlBody != "" {
		m.AddAlternative("text/html", htmlBody)
	}

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	s.logger.Debug("Email sent", "to", to, "subject", subject)
	return nil
}

// Noop drops every message.
type Noop struct{}

func (Noop) SendWelcome(context.Context, string, string) error        { return nil }
func (Noop) SendCustom(context.Context, string, string, string) error { return nil }

const welcomeTemplate = `<!DOCTYPE html>
<html>
<head>
	<title>Psicare Manager</title>
	<style>
		body { font-family: Arial, sans-serif; background-color: #f4f4f4; margin: 0; padding: 0; }
		.container { background-color: #ffffff; margin: 20px auto; padding: 20px; border-radius: 8px; max-width: 600px; }
		h1 { color: #0f766e; }
		p { color: #666666; }
	</style>
</head>
<body>
	<div class="container">
		<h1>Olá, %s</h1>
		<p>Sua conta no Psicare Manager foi criada com sucesso.</p>
		<p>Se você não reconhece este cadastro, ignore este e-mail.</p>
	</div>
</body>
</html>`
