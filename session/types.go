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

package session

import (
	"context"
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/vs49688/mailsync/imap"
	"golang.org/x/sync/semaphore"
)

var ErrNotConnected = errors.New("not connected")

type State int32

const (
	StateDisconnected State = 0
	StateConnecting   State = 1
	StateConnected    State = 2
	StateRestarting   State = 3
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateRestarting:
		return "restarting"
	default:
		return "unknown"
	}
}

type Config struct {
	Connection imap.ConnectionConfig
	Factory    imap.ClientFactory

	// ReconnectInterval is the fixed delay before every reconnect attempt.
	ReconnectInterval time.Duration

	// OnConnect runs after every successful connect, with the session
	// already usable. An error discards the connection and schedules a
	// restart.
	OnConnect func(ctx context.Context) error

	Logger *log.Entry
}

// Session owns the single live connection to the server. It reconnects
// forever until closed and hands out exclusive access to the connection
// through Lock and Exec.
type Session struct {
	cfg    Config
	logURL string
	token  *semaphore.Weighted

	mu     sync.Mutex
	ctx    context.Context
	state  State
	client imap.Client
	timer  *time.Timer
	closed bool
}

// Lock is exclusive access to the connection with a mailbox selected.
type Lock struct {
	s    *Session
	c    imap.Client
	path string
	once sync.Once
}
