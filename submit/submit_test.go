/*
 * MailSync - Copyright (C) 2022 Zane van Iperen.
 *    Contact: zane@zanevaniperen.com
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU General Public License version 2, and only
 * version 2 as published by the Free Software Foundation.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program; if not, write to the Free Software
 * Foundation, Inc., 59 Temple Place, Suite 330, Boston, MA  02111-1307  USA
 */

package submit

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-sasl"
	"github.com/stretchr/testify/assert"
	"github.com/vs49688/mailsync/imap"
	"github.com/vs49688/mailsync/mailbox"
)

type fakeConn struct {
	extensions map[string]bool
	calls      []string
	data       bytes.Buffer
	failRcpt   bool
}

type dataWriter struct {
	c *fakeConn
}

func (w dataWriter) Write(p []byte) (int, error) { return w.c.data.Write(p) }

func (w dataWriter) Close() error {
	w.c.calls = append(w.c.calls, "DATA END")
	return nil
}

func (c *fakeConn) Extension(ext string) (bool, string) {
	return c.extensions[ext], ""
}

func (c *fakeConn) StartTLS(config *tls.Config) error {
	c.calls = append(c.calls, "STARTTLS "+config.ServerName)
	return nil
}

func (c *fakeConn) Auth(a sasl.Client) error {
	mech, _, err := a.Start()
	if err != nil {
		return err
	}
	c.calls = append(c.calls, "AUTH "+mech)
	return nil
}

func (c *fakeConn) Mail(from string) error {
	c.calls = append(c.calls, "MAIL "+from)
	return nil
}

func (c *fakeConn) Rcpt(to string) error {
	if c.failRcpt {
		return errors.New("550 no such user")
	}
	c.calls = append(c.calls, "RCPT "+to)
	return nil
}

func (c *fakeConn) Data() (io.WriteCloser, error) {
	c.calls = append(c.calls, "DATA")
	return dataWriter{c: c}, nil
}

func (c *fakeConn) Quit() error {
	c.calls = append(c.calls, "QUIT")
	return nil
}

func (c *fakeConn) Close() error { return nil }

func buildTestSubmitter(conn *fakeConn, tlsEnabled bool) *Submitter {
	return NewWithDialer(&Config{
		HostPort: "smtp.example.com:587",
		TLS:      tlsEnabled,
		Auth:     imap.NewNormalAuthenticator("me@example.com", "hunter2").(imap.SASLSource),
		Name:     "Me",
		User:     "me@example.com",
	}, func(cfg *Config) (Conn, error) {
		return conn, nil
	})
}

func TestComposeRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	assert.NoError(t, os.WriteFile(path, []byte("from a file"), 0o600))

	msg := &Message{
		To:      []*mail.Address{{Address: "you@example.com"}},
		Subject: "Three attachments",
		Text:    "plain body",
		HTML:    "<b>html body</b>",
		Attachments: []Attachment{
			{Name: "inline.bin", MIMEType: "application/octet-stream", Source: InlineData{0, 1, 2, 3}},
			{Name: "notes.txt", MIMEType: "text/plain", Source: FilePath(path)},
			{Name: "stream.txt", MIMEType: "text/plain", Encoding: "quoted-printable", Source: StreamSource{Reader: strings.NewReader("from a stream")}},
		},
	}

	bb := new(bytes.Buffer)
	err := Compose(bb, &mail.Address{Name: "Me", Address: "me@example.com"}, msg)
	if !assert.NoError(t, err) {
		t.FailNow()
	}

	m, err := mailbox.Parse(bb)
	if !assert.NoError(t, err) {
		t.FailNow()
	}

	assert.Equal(t, "Three attachments", m.Subject)
	assert.Equal(t, "plain body", m.Text)
	assert.Equal(t, "<b>html body</b>", m.HTML)
	assert.True(t, strings.HasSuffix(m.MessageID, "@example.com"))

	if assert.Len(t, m.From, 1) {
		assert.Equal(t, "Me", m.From[0].Name)
	}

	if assert.Len(t, m.Attachments, 3) {
		assert.Equal(t, "inline.bin", m.Attachments[0].Filename)
		assert.Equal(t, []byte{0, 1, 2, 3}, m.Attachments[0].Data)
		assert.Equal(t, "notes.txt", m.Attachments[1].Filename)
		assert.Equal(t, "from a file", string(m.Attachments[1].Data))
		assert.Equal(t, "stream.txt", m.Attachments[2].Filename)
		assert.Equal(t, "from a stream", string(m.Attachments[2].Data))
	}
}

func TestComposeMissingFile(t *testing.T) {
	msg := &Message{
		To:          []*mail.Address{{Address: "you@example.com"}},
		Attachments: []Attachment{{Name: "gone", Source: FilePath(filepath.Join(t.TempDir(), "gone"))}},
	}

	err := Compose(io.Discard, &mail.Address{Address: "me@example.com"}, msg)
	assert.Error(t, err)

	msg.Attachments = []Attachment{{Name: "empty"}}
	err = Compose(io.Discard, &mail.Address{Address: "me@example.com"}, msg)
	assert.ErrorIs(t, err, errNoSource)
}

func TestSendStartTLS(t *testing.T) {
	conn := &fakeConn{extensions: map[string]bool{"STARTTLS": true, "AUTH": true}}
	s := buildTestSubmitter(conn, false)

	env, err := s.Send(context.Background(), &Message{
		To:      []*mail.Address{{Address: "a@example.com"}},
		Cc:      []*mail.Address{{Address: "b@example.com"}},
		Bcc:     []*mail.Address{{Address: "c@example.com"}},
		Subject: "Hi",
		Text:    "Hello",
	})
	if !assert.NoError(t, err) {
		t.FailNow()
	}

	assert.Equal(t, "me@example.com", env.From)
	assert.Equal(t, []string{"a@example.com", "b@example.com", "c@example.com"}, env.Recipients)
	assert.Equal(t, []string{
		"STARTTLS smtp.example.com",
		"AUTH PLAIN",
		"MAIL me@example.com",
		"RCPT a@example.com",
		"RCPT b@example.com",
		"RCPT c@example.com",
		"DATA",
		"DATA END",
		"QUIT",
	}, conn.calls)

	sent := conn.data.String()
	assert.Equal(t, string(env.Data), sent)
	assert.Contains(t, sent, "<me@example.com>")
	assert.NotContains(t, sent, "Bcc")
}

func TestSendImplicitTLSNoAuth(t *testing.T) {
	conn := &fakeConn{extensions: map[string]bool{"STARTTLS": true}}
	s := buildTestSubmitter(conn, true)

	_, err := s.Send(context.Background(), &Message{
		From: &mail.Address{Address: "other@example.com"},
		To:   []*mail.Address{{Address: "a@example.com"}},
	})
	assert.NoError(t, err)

	assert.Equal(t, []string{
		"MAIL other@example.com",
		"RCPT a@example.com",
		"DATA",
		"DATA END",
		"QUIT",
	}, conn.calls)
}

func TestSendErrors(t *testing.T) {
	conn := &fakeConn{failRcpt: true}
	s := buildTestSubmitter(conn, true)

	_, err := s.Send(context.Background(), &Message{})
	assert.ErrorIs(t, err, errNoRecipients)

	_, err = s.Send(context.Background(), &Message{To: []*mail.Address{{Address: "a@example.com"}}})
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Send(ctx, &Message{To: []*mail.Address{{Address: "a@example.com"}}})
	assert.ErrorIs(t, err, context.Canceled)

	dialErr := errors.New("connection refused")
	s = NewWithDialer(&Config{User: "me@example.com"}, func(cfg *Config) (Conn, error) { return nil, dialErr })
	_, err = s.Send(context.Background(), &Message{To: []*mail.Address{{Address: "a@example.com"}}})
	assert.ErrorIs(t, err, dialErr)

	s = NewWithDialer(&Config{}, DialSMTP)
	_, err = s.Send(context.Background(), &Message{To: []*mail.Address{{Address: "a@example.com"}}})
	assert.ErrorIs(t, err, errNoSender)
}

func TestDefaultFrom(t *testing.T) {
	s := New(&Config{Name: "Me", User: "me@example.com"})
	assert.Equal(t, &mail.Address{Name: "Me", Address: "me@example.com"}, s.DefaultFrom())
}
