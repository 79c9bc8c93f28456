package utils

import (
	"MediaVault/config"
	"crypto/tls"
	"errors"
	"fmt"
	"net/smtp"
	"os"
	"strings"
	"time"

	"github.com/jordan-wright/email"
)

var errSMTPConfigMissing = errors.New("smtp config missing")

// SendLedgerAlert mails operators about a ledger that no longer matches its assets.
func SendLedgerAlert(userID uint64, detail string) error {
	to := config.AppConfig.AlertEmailTo
	if len(to) == 0 {
		return errSMTPConfigMissing
	}
	e := email.NewEmail()
	e.To = to
	e.Subject = fmt.Sprintf("[media-vault] storage ledger alert for user %d", userID)
	e.Text = []byte(fmt.Sprintf(
		"Storage ledger check failed.\n\nuser_id: %d\ntime: %s\ndetail: %s\n",
		userID,
		time.Now().UTC().Format(time.RFC3339),
		detail,
	))
	return send(e)
}

func send(e *email.Email) error {
	host := config.AppConfig.SMTPHost
	port := config.AppConfig.SMTPPort
	user := config.AppConfig.SMTPUser
	pass := config.AppConfig.SMTPPassword
	from := os.Getenv("SMTP_FROM")
	if from == "" {
		from = user
	}
	if host == "" || port == "" || user == "" || pass == "" {
		return errSMTPConfigMissing
	}
	e.From = from

	addr := host + ":" + port
	auth := smtp.PlainAuth("", user, pass, host)
	tlsConfig := &tls.Config{ServerName: host}
	useTLS := strings.EqualFold(os.Getenv("SMTP_TLS"), "true") ||
		os.Getenv("SMTP_TLS") == "1" ||
		port == "465"
	useStartTLS := strings.EqualFold(os.Getenv("SMTP_STARTTLS"), "true") ||
		os.Getenv("SMTP_STARTTLS") == "1"

	if useTLS {
		return e.SendWithTLS(addr, auth, tlsConfig)
	}
	if useStartTLS {
		return e.SendWithStartTLS(addr, auth, tlsConfig)
	}
	return e.Send(addr, auth)
}
