package mail

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/google/uuid"
)

type SMTP struct {
	Host     string
	Port     string
	User     string
	Password string
	From     string
}

// Send delivers through net/smtp. SMTP has no provider message id, so the
// Message-ID header we generate is returned instead.
func (s *SMTP) Send(ctx context.Context, msg Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	user := s.User
	if user == "" {
		user = s.From
	}
	auth := smtp.PlainAuth("", user, s.Password, s.Host)

	id := fmt.Sprintf("<%s@%s>", uuid.NewString(), s.Host)
	message := []byte("Subject: " + msg.Subject + "\r\n" +
		"From: " + s.From + "\r\n" +
		"To: " + msg.To + "\r\n" +
		"Message-ID: " + id + "\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: text/html; charset=UTF-8\r\n" +
		"\r\n" +
		msg.HTML + "\r\n")

	if err := smtp.SendMail(s.Host+":"+s.Port, auth, s.From, []string{msg.To}, message); err != nil {
		return "", fmt.Errorf("%w: smtp: %v", ErrSend, err)
	}
	return id, nil
}
