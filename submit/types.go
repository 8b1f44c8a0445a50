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
	"crypto/tls"
	"io"
	"os"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-sasl"
	log "github.com/sirupsen/logrus"
	"github.com/vs49688/mailsync/imap"
)

// AttachmentSource is where attachment bytes come from. It is one of
// InlineData, FilePath or StreamSource.
type AttachmentSource interface {
	open() (io.ReadCloser, error)
}

type InlineData []byte

type FilePath string

// StreamSource is read once, when the message is rendered.
type StreamSource struct {
	Reader io.Reader
}

func (d InlineData) open() (io.ReadCloser, error) {
	return io.NopCloser(newByteReader(d)), nil
}

func (p FilePath) open() (io.ReadCloser, error) {
	return os.Open(string(p))
}

func (s StreamSource) open() (io.ReadCloser, error) {
	if rc, ok := s.Reader.(io.ReadCloser); ok {
		return rc, nil
	}
	return io.NopCloser(s.Reader), nil
}

type Attachment struct {
	Name     string
	MIMEType string

	// Charset applies to text/* types and defaults to utf-8.
	Charset string

	// Encoding is the Content-Transfer-Encoding. Defaults to base64.
	Encoding string

	Source AttachmentSource
}

type Message struct {
	// From defaults to the configured sender.
	From        *mail.Address
	To          []*mail.Address
	Cc          []*mail.Address
	Bcc         []*mail.Address
	Subject     string
	Date        time.Time
	Text        string
	HTML        string
	Attachments []Attachment
}

// Envelope is a rendered message ready for submission.
type Envelope struct {
	From       string
	Recipients []string
	Data       []byte
}

type Config struct {
	HostPort  string
	TLS       bool
	TLSConfig *tls.Config
	Auth      imap.SASLSource

	// Name and User form the default sender.
	Name string
	User string

	Logger *log.Entry
}

// Conn is the subset of *smtp.Client used for submission.
type Conn interface {
	Extension(ext string) (bool, string)
	StartTLS(config *tls.Config) error
	Auth(a sasl.Client) error
	Mail(from string) error
	Rcpt(to string) error
	Data() (io.WriteCloser, error)
	Quit() error
	Close() error
}

type Dialer func(cfg *Config) (Conn, error)

type Submitter struct {
	cfg  Config
	dial Dialer
}
