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

package mailbox

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/emersion/go-message/mail"
	"github.com/stretchr/testify/assert"
)

func buildMultipart(t *testing.T) []byte {
	var h mail.Header
	h.SetAddressList("From", []*mail.Address{{Name: "Alice", Address: "alice@example.com"}})
	h.SetAddressList("To", []*mail.Address{{Address: "bob@example.com"}})
	h.SetAddressList("Cc", []*mail.Address{{Address: "carol@example.com"}})
	h.SetSubject("Quarterly report")
	h.SetMessageID("report@example.com")
	h.SetMsgIDList("In-Reply-To", []string{"question@example.com"})
	h.SetMsgIDList("References", []string{"root@example.com", "question@example.com"})

	bb := new(bytes.Buffer)
	mw, err := mail.CreateWriter(bb, h)
	if !assert.NoError(t, err) {
		t.FailNow()
	}

	tw, err := mw.CreateInline()
	if !assert.NoError(t, err) {
		t.FailNow()
	}

	var th mail.InlineHeader
	th.Set("Content-Type", "text/plain; charset=utf-8")
	w, err := tw.CreatePart(th)
	assert.NoError(t, err)
	_, _ = io.WriteString(w, "See attached.")
	_ = w.Close()

	var hh mail.InlineHeader
	hh.Set("Content-Type", "text/html; charset=utf-8")
	w, err = tw.CreatePart(hh)
	assert.NoError(t, err)
	_, _ = io.WriteString(w, "<p>See attached.</p>")
	_ = w.Close()
	_ = tw.Close()

	var ah mail.AttachmentHeader
	ah.Set("Content-Type", "text/csv")
	ah.SetFilename("report.csv")
	w, err = mw.CreateAttachment(ah)
	assert.NoError(t, err)
	_, _ = io.WriteString(w, "a,b\n1,2\n")
	_ = w.Close()

	assert.NoError(t, mw.Close())
	return bb.Bytes()
}

func TestParseMultipart(t *testing.T) {
	m, err := Parse(bytes.NewReader(buildMultipart(t)))
	if !assert.NoError(t, err) {
		t.FailNow()
	}

	assert.Equal(t, "Quarterly report", m.Subject)
	assert.Equal(t, "report@example.com", m.MessageID)
	assert.Equal(t, []string{"question@example.com"}, m.InReplyTo)
	assert.Equal(t, []string{"root@example.com", "question@example.com"}, m.References)

	if assert.Len(t, m.From, 1) {
		assert.Equal(t, "Alice", m.From[0].Name)
		assert.Equal(t, "alice@example.com", m.From[0].Address)
	}
	if assert.Len(t, m.To, 1) {
		assert.Equal(t, "bob@example.com", m.To[0].Address)
	}
	assert.Len(t, m.Cc, 1)
	assert.Empty(t, m.Bcc)

	assert.Equal(t, "See attached.", m.Text)
	assert.Equal(t, "<p>See attached.</p>", m.HTML)

	if assert.Len(t, m.Attachments, 1) {
		assert.Equal(t, "report.csv", m.Attachments[0].Filename)
		assert.Equal(t, "text/csv", m.Attachments[0].ContentType)
		assert.Equal(t, "a,b\n1,2\n", string(m.Attachments[0].Data))
	}
}

func TestParseUnknownCharset(t *testing.T) {
	raw := "Subject: odd\r\n" +
		"Content-Type: text/plain; charset=x-no-such-charset\r\n" +
		"\r\n" +
		"hello\r\n"

	m, err := Parse(strings.NewReader(raw))
	if !assert.NoError(t, err) {
		t.FailNow()
	}
	assert.Equal(t, "odd", m.Subject)
	assert.Contains(t, m.Text, "hello")
}

func TestParseGarbage(t *testing.T) {
	_, err := Parse(strings.NewReader("this is not a header\r\n"))
	assert.Error(t, err)
}
