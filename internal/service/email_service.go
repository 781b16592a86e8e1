package service

import (
	"bytes"
	"fmt"
	"html/template"
	"net/mail"
	"strings"

	"github.com/bannerhub/internal/config"

	"gopkg.in/gomail.v2"
)

// 通知邮件主题
const (
	SubjectBannerExpiring = "Aviso: tu banner está por expirar"
	SubjectBannerExpired  = "Aviso: tu banner ha expirado"
	SubjectBannerRenewal  = "Aviso: tu banner está por renovarse"
)

var (
	expiringNoticeTemplate = template.Must(template.New("banner-expiration").Parse(`<!DOCTYPE html>
<html>
<body>
  <p>Hola {{.Email}},</p>
  <p>Tu banner con destino <a href="{{.Link}}">{{.Link}}</a> expira en {{.DaysLeft}} día{{if ne .DaysLeft 1}}s{{end}}.</p>
  <p>Si deseas mantenerlo activo, actualiza su fecha de finalización antes de que expire.</p>
</body>
</html>`))

	expiredNoticeTemplate = template.Must(template.New("banner-expired").Parse(`<!DOCTYPE html>
<html>
<body>
  <p>Hola {{.Email}},</p>
  <p>Tu banner con destino <a href="{{.Link}}">{{.Link}}</a> ha expirado y fue retirado de su posición.</p>
  <p>Puedes crear uno nuevo cuando quieras.</p>
</body>
</html>`))

	renewalNoticeTemplate = template.Must(template.New("banner-automatic-renovation").Parse(`<!DOCTYPE html>
<html>
<body>
  <p>Hola {{.Email}},</p>
  <p>Tu banner con destino <a href="{{.Link}}">{{.Link}}</a> se renovó automáticamente por un nuevo periodo.</p>
</body>
</html>`))
)

type noticeData struct {
	Email    string
	Link     string
	DaysLeft int
}

type mailSender interface {
	DialAndSend(m ...*gomail.Message) error
}

// EmailService 邮件发送服务
type EmailService struct {
	cfg    *config.EmailConfig
	sender mailSender
}

// NewEmailService 创建邮件服务
func NewEmailService(cfg *config.EmailConfig) *EmailService {
	s := &EmailService{}
	s.SetConfig(cfg)
	return s
}

// SetConfig 更新运行时邮件配置
func (s *EmailService) SetConfig(cfg *config.EmailConfig) {
	if cfg == nil {
		return
	}
	s.cfg = cfg
	dialer := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	dialer.SSL = cfg.UseSSL
	s.sender = dialer
}

// SendExpiringNotice 发送即将到期提醒
func (s *EmailService) SendExpiringNotice(to, link string, daysLeft int) error {
	return s.sendNotice(to, SubjectBannerExpiring, expiringNoticeTemplate, noticeData{Email: to, Link: link, DaysLeft: daysLeft})
}

// SendExpiredNotice 发送已过期通知
func (s *EmailService) SendExpiredNotice(to, link string) error {
	return s.sendNotice(to, SubjectBannerExpired, expiredNoticeTemplate, noticeData{Email: to, Link: link})
}

// SendRenewalNotice 发送自动续期通知
func (s *EmailService) SendRenewalNotice(to, link string) error {
	return s.sendNotice(to, SubjectBannerRenewal, renewalNoticeTemplate, noticeData{Email: to, Link: link})
}

func (s *EmailService) sendNotice(to, subject string, tmpl *template.Template, data noticeData) error {
	if s.cfg == nil || !s.cfg.Enabled {
		return ErrEmailServiceDisabled
	}
	if s.cfg.Host == "" || s.cfg.Port == 0 || s.cfg.From == "" {
		return ErrEmailServiceNotConfigured
	}
	if _, err := mail.ParseAddress(to); err != nil {
		return ErrInvalidEmail
	}

	body, err := renderNotice(tmpl, data)
	if err != nil {
		return err
	}

	m := gomail.NewMessage()
	if name := strings.TrimSpace(s.cfg.FromName); name != "" {
		m.SetAddressHeader("From", s.cfg.From, name)
	} else {
		m.SetHeader("From", s.cfg.From)
	}
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	return normalizeEmailSendError(s.sender.DialAndSend(m))
}

func renderNotice(tmpl *template.Template, data noticeData) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s: %w", tmpl.Name(), err)
	}
	return buf.String(), nil
}

func normalizeEmailSendError(err error) error {
	if err == nil {
		return nil
	}
	if isEmailRecipientRejected(err) {
		return fmt.Errorf("%w: %v", ErrEmailRecipientRejected, err)
	}
	return err
}

func isEmailRecipientRejected(err error) bool {
	if err == nil {
		return false
	}
	message := strings.ToLower(strings.TrimSpace(err.Error()))
	if message == "" {
		return false
	}
	directKeywords := []string{
		"no such recipient",
		"no such user",
		"recipient not found",
		"recipient address rejected",
		"invalid recipient",
		"user unknown",
		"unknown user",
		"unknown mailbox",
		"mailbox unavailable",
	}
	for _, keyword := range directKeywords {
		if strings.Contains(message, keyword) {
			return true
		}
	}
	if strings.Contains(message, "550") {
		hints := []string{"recipient", "user", "mailbox", "address", "rcpt"}
		for _, hint := range hints {
			if strings.Contains(message, hint) {
				return true
			}
		}
	}
	return false
}
