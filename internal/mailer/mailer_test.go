package mailer

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/mail.v2"
)

type recordingSender struct {
	sent []*mail.Message
	err  error
}

func (r *recordingSender) DialAndSend(m ...*mail.Message) error {
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, m...)
	return nil
}

func TestSMTPMailer_Send(t *testing.T) {
	t.Parallel()

	rec := &recordingSender{}
	m := NewSMTPMailer(SMTPConfig{Host: "localhost", Port: 587, Username: "relay", From: "garden@example.com"})
	m.dialer = rec

	err := m.Send(context.Background(), Message{To: "alice@example.com", Subject: "Hello", HTMLBody: "<p>hi</p>"})
	require.NoError(t, err)
	require.Len(t, rec.sent, 1)

	assert.Equal(t, []string{"garden@example.com"}, rec.sent[0].GetHeader("From"))
	assert.Equal(t, []string{"alice@example.com"}, rec.sent[0].GetHeader("To"))
	assert.Equal(t, []string{"Hello"}, rec.sent[0].GetHeader("Subject"))

	var raw bytes.Buffer
	_, err = rec.sent[0].WriteTo(&raw)
	require.NoError(t, err)
	assert.Contains(t, raw.String(), "text/html")
	assert.Contains(t, raw.String(), "<p>hi</p>")
}

func TestSMTPMailer_SendErrors(t *testing.T) {
	t.Parallel()

	rec := &recordingSender{err: errors.New("connection refused")}
	m := NewSMTPMailer(SMTPConfig{Host: "localhost", Port: 465, Username: "relay@example.com"})
	m.dialer = rec

	err := m.Send(context.Background(), Message{To: "alice@example.com", Subject: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")

	err = m.Send(context.Background(), Message{To: "  "})
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, m.Send(ctx, Message{To: "alice@example.com"}), context.Canceled)
}

func TestNewSMTPMailer_DialerSettings(t *testing.T) {
	t.Parallel()

	m := NewSMTPMailer(SMTPConfig{Host: "smtp.example.com", Port: 465, Username: "relay@example.com"})
	d, ok := m.dialer.(*mail.Dialer)
	require.True(t, ok)
	assert.True(t, d.SSL)
	assert.Equal(t, "relay@example.com", m.from)

	m = NewSMTPMailer(SMTPConfig{Host: "smtp.example.com", Port: 587, From: "a@example.com", InsecureSkipVerify: true})
	d = m.dialer.(*mail.Dialer)
	assert.False(t, d.SSL)
	require.NotNil(t, d.TLSConfig)
	assert.True(t, d.TLSConfig.InsecureSkipVerify)
}

func TestPasswordResetMessage(t *testing.T) {
	t.Parallel()

	msg, err := PasswordResetMessage("bob@example.com", "Bob <script>", "http://localhost:5173/", "tok-123", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", msg.To)
	assert.Contains(t, msg.HTMLBody, "http://localhost:5173/reset-password?token=tok-123")
	assert.Contains(t, msg.HTMLBody, "1h0m0s")
	assert.False(t, strings.Contains(msg.HTMLBody, "<script>"), "names are escaped")

	assert.NoError(t, LogMailer{}.Send(context.Background(), msg))
}
