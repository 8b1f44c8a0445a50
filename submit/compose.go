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
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/google/uuid"
)

func newByteReader(b []byte) io.Reader {
	return bytes.NewReader(b)
}

func messageIDDomain(from *mail.Address) string {
	if i := strings.LastIndexByte(from.Address, '@'); i >= 0 && i < len(from.Address)-1 {
		return from.Address[i+1:]
	}
	return "localhost"
}

// Compose renders msg as multipart/mixed, with the text and HTML bodies in
// a multipart/alternative part. Attachment sources are consumed.
func Compose(w io.Writer, from *mail.Address, msg *Message) error {
	date := msg.Date
	if date.IsZero() {
		date = time.Now()
	}

	var h mail.Header
	h.SetDate(date)
	h.SetAddressList("From", []*mail.Address{from})
	h.SetAddressList("To", msg.To)
	if len(msg.Cc) > 0 {
		h.SetAddressList("Cc", msg.Cc)
	}
	h.SetSubject(msg.Subject)
	h.SetMessageID(fmt.Sprintf("%v@%v", uuid.NewString(), messageIDDomain(from)))

	mw, err := mail.CreateWriter(w, h)
	if err != nil {
		return err
	}

	if err := writeBodies(mw, msg); err != nil {
		return err
	}

	for i := range msg.Attachments {
		if err := writeAttachment(mw, &msg.Attachments[i]); err != nil {
			return err
		}
	}

	return mw.Close()
}

func writeBodies(mw *mail.Writer, msg *Message) error {
	tw, err := mw.CreateInline()
	if err != nil {
		return err
	}

	if err := writeInline(tw, "text/plain", msg.Text); err != nil {
		return err
	}

	if msg.HTML != "" {
		if err := writeInline(tw, "text/html", msg.HTML); err != nil {
			return err
		}
	}

	return tw.Close()
}

func writeInline(tw *mail.InlineWriter, contentType string, body string) error {
	var h mail.InlineHeader
	h.SetContentType(contentType, map[string]string{"charset": "utf-8"})

	w, err := tw.CreatePart(h)
	if err != nil {
		return err
	}

	if _, err := io.WriteString(w, body); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

func writeAttachment(mw *mail.Writer, a *Attachment) error {
	if a.Source == nil {
		return fmt.Errorf("attachment %q: %w", a.Name, errNoSource)
	}

	mimeType := a.MIMEType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	params := map[string]string{}
	if strings.HasPrefix(mimeType, "text/") {
		params["charset"] = a.Charset
		if params["charset"] == "" {
			params["charset"] = "utf-8"
		}
	}

	encoding := a.Encoding
	if encoding == "" {
		encoding = "base64"
	}

	var h mail.AttachmentHeader
	h.SetContentType(mimeType, params)
	h.SetFilename(a.Name)
	h.Set("Content-Transfer-Encoding", encoding)

	r, err := a.Source.open()
	if err != nil {
		return fmt.Errorf("attachment %q: %w", a.Name, err)
	}
	defer r.Close()

	w, err := mw.CreateAttachment(h)
	if err != nil {
		return err
	}

	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return fmt.Errorf("attachment %q: %w", a.Name, err)
	}
	return w.Close()
}
