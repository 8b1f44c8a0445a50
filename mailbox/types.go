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
	"fmt"
	"sync"
	"time"

	"github.com/emersion/go-message/mail"
	log "github.com/sirupsen/logrus"
	"github.com/vs49688/mailsync/events"
	"github.com/vs49688/mailsync/imap"
	"github.com/vs49688/mailsync/registry"
	"github.com/vs49688/mailsync/session"
)

// ErrUnavailable is returned by every remote operation while the session
// is not connected.
var ErrUnavailable = fmt.Errorf("mail server unavailable: %w", session.ErrNotConnected)

type Config struct {
	Connection imap.ConnectionConfig
	Factory    imap.ClientFactory

	// User is used for logging only. Credentials live in Connection.Auth.
	User string

	ReconnectInterval time.Duration
	MailboxesToWatch  []string
	WatchInterval     time.Duration

	Logger *log.Entry
}

type Manager struct {
	cfg      Config
	session  *session.Session
	registry *registry.Registry
	bus      *events.Bus

	ready     chan struct{}
	readyOnce sync.Once
}

// IDSet names messages for batch operations, either by UID or by a
// previously fetched Mail.
type IDSet struct {
	UIDs  []uint32
	Mails []*Mail
}

type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Mail is a parsed message together with its location. SeqNum is only
// valid at the time of the fetch that produced it.
type Mail struct {
	UID     uint32
	SeqNum  uint32
	Mailbox string
	Flags   []string

	Header     mail.Header
	Subject    string
	Date       time.Time
	From       []*mail.Address
	To         []*mail.Address
	Cc         []*mail.Address
	Bcc        []*mail.Address
	ReplyTo    []*mail.Address
	MessageID  string
	InReplyTo  []string
	References []string

	Text        string
	HTML        string
	Attachments []Attachment
}

type MailEvent struct {
	Mail *Mail
}

func (MailEvent) Kind() events.Kind { return events.KindMail }

type DeleteEvent struct {
	Mailbox string
	UID     uint32
}

func (DeleteEvent) Kind() events.Kind { return events.KindDelete }

type CreateResult struct {
	Path   string
	Cursor uint32
}

type DeleteResult struct {
	Path string
}

type RenameResult struct {
	Path    string
	NewPath string
}

type CopyResult struct {
	Source      string
	Destination string
	UIDs        []uint32
}
