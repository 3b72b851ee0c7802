package mail

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	mailmsg "github.com/emersion/go-message/mail"
	"github.com/emersion/go-sasl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/svdberg/atwood-monitor/app/notify"
)

type fakeEmails struct {
	emails []string
	err    error
}

func (f *fakeEmails) UpsertEmail(context.Context, string) error { return nil }
func (f *fakeEmails) DeleteEmail(context.Context, string) error { return nil }
func (f *fakeEmails) CountEmails(context.Context) (int, error)  { return len(f.emails), f.err }
func (f *fakeEmails) ListEmails(context.Context) ([]string, error) {
	return f.emails, f.err
}

type sentMail struct {
	addr string
	auth sasl.Client
	from string
	to   []string
	data []byte
}

type recorder struct {
	sent   []sentMail
	failTo string
}

func (r *recorder) send(addr string, a sasl.Client, from string, to []string, msg io.Reader) error {
	if len(to) > 0 && to[0] == r.failTo {
		return errors.New("550 mailbox unavailable")
	}
	data, err := io.ReadAll(msg)
	if err != nil {
		return err
	}
	r.sent = append(r.sent, sentMail{addr: addr, auth: a, from: from, to: to, data: data})
	return nil
}

func newTestRelay(emails *fakeEmails, rec *recorder, username string) *Relay {
	relay := NewRelay("smtp.test:587", username, "secret", "noreply@atwood.test", emails)
	relay.send = rec.send
	return relay
}

func TestRelayDeliver(t *testing.T) {
	rec := &recorder{failTo: "bounce@example.com"}
	relay := newTestRelay(&fakeEmails{emails: []string{"a@example.com", "bounce@example.com", "b@example.com"}}, rec, "")

	sent, err := relay.Deliver(context.Background(), notify.Event{Title: "New Blog Post!", Body: "Prybaby", URL: "https://example.com/p"})
	require.NoError(t, err)
	assert.Equal(t, 2, sent, "a failing recipient does not abort the batch")
	require.Len(t, rec.sent, 2)

	first := rec.sent[0]
	assert.Equal(t, "smtp.test:587", first.addr)
	assert.Nil(t, first.auth)
	assert.Equal(t, "noreply@atwood.test", first.from)
	assert.Equal(t, []string{"a@example.com"}, first.to)

	reader, err := mailmsg.CreateReader(bytes.NewReader(first.data))
	require.NoError(t, err)

	subject, err := reader.Header.Subject()
	require.NoError(t, err)
	assert.Equal(t, "Atwood Monitor: New Blog Post!", subject)

	to, err := reader.Header.AddressList("To")
	require.NoError(t, err)
	require.Len(t, to, 1)
	assert.Equal(t, "a@example.com", to[0].Address)
	assert.NotEmpty(t, reader.Header.Get("Message-Id"))

	part, err := reader.NextPart()
	require.NoError(t, err)
	body, err := io.ReadAll(part.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "Prybaby")
	assert.Contains(t, string(body), "https://example.com/p")
}

func TestRelayDeliverListError(t *testing.T) {
	relay := newTestRelay(&fakeEmails{err: errors.New("store down")}, &recorder{}, "")

	_, err := relay.Deliver(context.Background(), notify.Event{})
	assert.Error(t, err)
}

func TestRelayRequestConfirmationUsesAuth(t *testing.T) {
	rec := &recorder{}
	relay := newTestRelay(&fakeEmails{}, rec, "relay-user")

	require.NoError(t, relay.RequestConfirmation(context.Background(), "new@example.com"))
	require.Len(t, rec.sent, 1)
	assert.NotNil(t, rec.sent[0].auth)

	mech, ir, err := rec.sent[0].auth.Start()
	require.NoError(t, err)
	assert.Equal(t, sasl.Plain, mech)
	assert.Equal(t, "\x00relay-user\x00secret", string(ir))
}

func TestRelayRequestConfirmationFailure(t *testing.T) {
	relay := newTestRelay(&fakeEmails{}, &recorder{failTo: "new@example.com"}, "")

	assert.Error(t, relay.RequestConfirmation(context.Background(), "new@example.com"))
}

func TestComposeMessageHeaders(t *testing.T) {
	date := time.Date(2024, 5, 6, 14, 0, 0, 0, time.UTC)
	data, err := composeMessage("from@example.com", "to@example.com", "Hello", "Body\n", date)
	require.NoError(t, err)

	reader, err := mailmsg.CreateReader(bytes.NewReader(data))
	require.NoError(t, err)

	got, err := reader.Header.Date()
	require.NoError(t, err)
	assert.True(t, date.Equal(got))

	from, err := reader.Header.AddressList("From")
	require.NoError(t, err)
	assert.Equal(t, "Atwood Monitor", from[0].Name)
}

func TestLogRelay(t *testing.T) {
	sent, err := LogRelay{}.Deliver(context.Background(), notify.Event{Title: "x"})
	require.NoError(t, err)
	assert.Zero(t, sent)
	assert.NoError(t, LogRelay{}.RequestConfirmation(context.Background(), "a@example.com"))
}
