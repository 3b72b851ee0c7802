package mail

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	mailmsg "github.com/emersion/go-message/mail"
	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/google/uuid"

	"github.com/svdberg/atwood-monitor/app/database"
	"github.com/svdberg/atwood-monitor/app/notify"
)

const subjectPrefix = "Atwood Monitor: "

// Mailer is what the rest of the application needs from a relay.
type Mailer interface {
	Deliver(ctx context.Context, event notify.Event) (int, error)
	RequestConfirmation(ctx context.Context, email string) error
}

type sendFunc func(addr string, a sasl.Client, from string, to []string, r io.Reader) error

var _ Mailer = (*Relay)(nil)

// Relay sends one plain-text message per email subscriber over SMTP.
type Relay struct {
	addr     string
	username string
	password string
	from     string
	emails   database.EmailRepository
	send     sendFunc
}

func NewRelay(addr, username, password, from string, emails database.EmailRepository) *Relay {
	return &Relay{
		addr:     addr,
		username: username,
		password: password,
		from:     from,
		emails:   emails,
		send:     smtp.SendMail,
	}
}

// Deliver mails the event to every subscriber and returns how many messages
// were accepted. A failing recipient is logged and skipped.
func (r *Relay) Deliver(ctx context.Context, event notify.Event) (int, error) {
	recipients, err := r.emails.ListEmails(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load email subscribers: %w", err)
	}

	sent := 0
	for _, to := range recipients {
		if err := ctx.Err(); err != nil {
			return sent, err
		}

		body := fmt.Sprintf("%s\n\n%s\n", event.Body, event.URL)
		if err := r.sendMessage(to, subjectPrefix+event.Title, body); err != nil {
			slog.Error("Failed to send email", "to", to, "error", err)
			continue
		}
		sent++
	}

	slog.Info("Email relay completed", "recipients", len(recipients), "sent", sent)
	return sent, nil
}

func (r *Relay) RequestConfirmation(_ context.Context, email string) error {
	body := "You are now subscribed to new post notifications from the Atwood blog.\n\n" +
		"If you did not request this, reply to this message and you will be removed.\n"

	if err := r.sendMessage(email, subjectPrefix+"subscription confirmed", body); err != nil {
		return err
	}

	slog.Info("Subscription confirmation sent", "to", email)
	return nil
}

func (r *Relay) sendMessage(to, subject, body string) error {
	msg, err := composeMessage(r.from, to, subject, body, time.Now())
	if err != nil {
		return err
	}

	var auth sasl.Client
	if r.username != "" {
		auth = sasl.NewPlainClient("", r.username, r.password)
	}

	if err := r.send(r.addr, auth, r.from, []string{to}, bytes.NewReader(msg)); err != nil {
		return fmt.Errorf("failed to send mail to %s: %w", to, err)
	}
	return nil
}

func composeMessage(from, to, subject, body string, date time.Time) ([]byte, error) {
	var h mailmsg.Header
	h.SetDate(date)
	h.SetAddressList("From", []*mailmsg.Address{{Name: "Atwood Monitor", Address: from}})
	h.SetAddressList("To", []*mailmsg.Address{{Address: to}})
	h.SetSubject(subject)
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})

	h.Set("Message-Id", fmt.Sprintf("<%s@atwood-monitor>", uuid.NewString()))

	var buf bytes.Buffer
	w, err := mailmsg.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("failed to create message: %w", err)
	}
	if _, err := io.WriteString(w, body); err != nil {
		return nil, fmt.Errorf("failed to write message body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish message: %w", err)
	}

	return buf.Bytes(), nil
}

var _ Mailer = LogRelay{}

// LogRelay stands in when no SMTP server is configured.
type LogRelay struct{}

func (LogRelay) Deliver(_ context.Context, event notify.Event) (int, error) {
	slog.Info("Email relay disabled, dropping notification", "title", event.Title, "body", event.Body, "url", event.URL)
	return 0, nil
}

func (LogRelay) RequestConfirmation(_ context.Context, email string) error {
	slog.Info("Email relay disabled, skipping confirmation", "to", email)
	return nil
}
