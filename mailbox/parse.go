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
	"errors"
	"io"
	"strings"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
)

var errNoBody = errors.New("message has no body")

// Parse reads an RFC 5322 message. Parts in unknown charsets are kept
// undecoded.
func Parse(r io.Reader) (*Mail, error) {
	mr, err := mail.CreateReader(r)
	if err != nil && !message.IsUnknownCharset(err) {
		return nil, err
	}
	defer mr.Close()

	m := &Mail{Header: mr.Header}
	h := mr.Header

	m.Subject, _ = h.Subject()
	m.Date, _ = h.Date()
	m.From, _ = h.AddressList("From")
	m.To, _ = h.AddressList("To")
	m.Cc, _ = h.AddressList("Cc")
	m.Bcc, _ = h.AddressList("Bcc")
	m.ReplyTo, _ = h.AddressList("Reply-To")
	m.MessageID, _ = h.MessageID()
	m.InReplyTo, _ = h.MsgIDList("In-Reply-To")
	m.References, _ = h.MsgIDList("References")

	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		} else if err != nil && !(message.IsUnknownCharset(err) && p != nil) {
			return nil, err
		}

		body, err := io.ReadAll(p.Body)
		if err != nil {
			return nil, err
		}

		switch ph := p.Header.(type) {
		case *mail.InlineHeader:
			ct, _, _ := ph.ContentType()
			switch {
			case ct == "text/html":
				m.HTML += string(body)
			case ct == "" || strings.HasPrefix(ct, "text/"):
				m.Text += string(body)
			default:
				m.Attachments = append(m.Attachments, Attachment{ContentType: ct, Data: body})
			}
		case *mail.AttachmentHeader:
			name, _ := ph.Filename()
			ct, _, _ := ph.ContentType()
			m.Attachments = append(m.Attachments, Attachment{Filename: name, ContentType: ct, Data: body})
		}
	}

	return m, nil
}
