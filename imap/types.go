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

package imap

import (
	"crypto/tls"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-sasl"
	log "github.com/sirupsen/logrus"
)

// Client is the subset of the go-imap client used by the session and
// the mailbox manager. *client.Client satisfies it.
type Client interface {
	List(ref, name string, ch chan *imap.MailboxInfo) error

	Status(name string, items []imap.StatusItem) (*imap.MailboxStatus, error)

	Select(name string, readOnly bool) (*imap.MailboxStatus, error)

	Create(name string) error

	Delete(name string) error

	Rename(existingName, newName string) error

	UidFetch(seqset *imap.SeqSet, items []imap.FetchItem, ch chan *imap.Message) error

	UidSearch(criteria *imap.SearchCriteria) ([]uint32, error)

	UidCopy(seqset *imap.SeqSet, dest string) error

	UidMove(seqset *imap.SeqSet, dest string) error

	UidStore(seqset *imap.SeqSet, item imap.StoreItem, value interface{}, ch chan *imap.Message) error

	Expunge(ch chan uint32) error

	Append(mbox string, flags []string, date time.Time, msg imap.Literal) error

	Mailbox() *imap.MailboxStatus

	Logout() error

	LoggedOut() <-chan struct{}
}

//go:generate mockgen -destination mock_imap/mock_imap.go github.com/vs49688/mailsync/imap Authenticatable

// Authenticatable is anything that can log in. *client.Client satisfies it.
type Authenticatable interface {
	Login(username, password string) error

	Authenticate(auth sasl.Client) error
}

type Authenticator interface {
	Authenticate(c Authenticatable) error
}

// SASLSource is implemented by every Authenticator in this package so the
// same credentials can drive SMTP AUTH.
type SASLSource interface {
	SASLClient() (sasl.Client, error)
}

type ConnectionConfig struct {
	HostPort  string
	Auth      Authenticator
	TLS       bool
	TLSConfig *tls.Config
	Debug     bool
}

type ClientConfig struct {
	ConnectionConfig

	// Logger receives protocol-level errors. May be nil.
	Logger  *log.Entry
	Updates chan<- client.Update
}

type ClientFactory interface {
	NewClient(cfg *ClientConfig) (Client, error)
}

type Message = imap.Message
type SeqSet = imap.SeqSet
type StoreItem = imap.StoreItem
type MailboxStatus = imap.MailboxStatus
type MailboxInfo = imap.MailboxInfo
type FetchItem = imap.FetchItem
type Literal = imap.Literal
