package email

import (
	"context"
	"net"
	"net/smtp"

	"github.com/MagicGrants/donatehub"
	"github.com/MagicGrants/donatehub/baseapi/flags"
	"github.com/jordan-wright/email"
)

var _ donatehub.Mailer = &emailer{}

type emailer struct {
	host string
	auth smtp.Auth
	from string
}

func (e *emailer) SendEmail(ctx context.Context, msg *donatehub.MailerMessage) error {
	em := email.NewEmail()

	em.From = e.from
	em.To = []string{msg.To}
	if msg.ReplyTo != "" {
		em.ReplyTo = []string{msg.ReplyTo}
	}

	em.Subject = msg.Subject
	em.Text = []byte(msg.PlainContent)
	em.HTML = []byte(msg.HTMLContent)
	return em.Send(e.host, e.auth)
}

func NewMailer() (donatehub.Mailer, error) {
	host, _, err := net.SplitHostPort(flags.EmailHost.Value())
	if err != nil {
		return nil, err
	}
	return &emailer{
		host: flags.EmailHost.Value(),
		auth: smtp.PlainAuth("", flags.EmailUser.Value(), flags.EmailPwd.Value(), host),
		from: flags.EmailFrom.Value(),
	}, nil
}
