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
	"fmt"
	"net/url"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/vs49688/mailsync/imap"
	"golang.org/x/sync/semaphore"
)

const DefaultReconnectInterval = 5 * time.Second

var (
	errConnectionLost = errors.New("connection lost")
	errNoFactory      = errors.New("no client factory")
)

func New(cfg *Config) *Session {
	ourCfg := *cfg
	if ourCfg.ReconnectInterval <= 0 {
		ourCfg.ReconnectInterval = DefaultReconnectInterval
	}

	if ourCfg.Logger == nil {
		ourCfg.Logger = log.NewEntry(log.StandardLogger())
	}

	u := url.URL{Host: ourCfg.Connection.HostPort}
	if ourCfg.Connection.TLS {
		u.Scheme = "imaps"
	} else {
		u.Scheme = "imap"
	}

	return &Session{
		cfg:    ourCfg,
		logURL: u.String(),
		token:  semaphore.NewWeighted(1),
		state:  StateDisconnected,
	}
}

func (s *Session) log() *log.Entry {
	return s.cfg.Logger.WithField("url", s.logURL)
}

// setState must be called with s.mu held.
func (s *Session) setState(state State) {
	if s.state == state {
		return
	}

	s.log().WithFields(log.Fields{
		"from": s.state.String(),
		"to":   state.String(),
	}).Info("session_state_change")
	s.state = state
}

// Start begins connecting in the background. ctx is passed to OnConnect.
func (s *Session) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	go s.connect()
}

func (s *Session) connect() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.setState(StateConnecting)
	ctx := s.ctx
	s.mu.Unlock()

	if s.cfg.Factory == nil {
		s.log().WithError(errNoFactory).Error("session_connect_failed")
		s.restart()
		return
	}

	c, err := s.cfg.Factory.NewClient(&imap.ClientConfig{
		ConnectionConfig: s.cfg.Connection,
		Logger:           s.log(),
	})
	if err != nil {
		s.log().WithError(err).Error("session_connect_failed")
		s.restart()
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = c.Logout()
		return
	}
	s.client = c
	s.setState(StateConnected)
	s.mu.Unlock()

	go s.watch(c)

	if s.cfg.OnConnect == nil {
		return
	}

	if err := s.cfg.OnConnect(ctx); err != nil {
		s.log().WithError(err).Error("session_on_connect_failed")
		s.fail(c, err)
	}
}

func (s *Session) watch(c imap.Client) {
	<-c.LoggedOut()
	s.fail(c, errConnectionLost)
}

// fail drops c and schedules a restart, but only if c is still the live
// connection.
func (s *Session) fail(c imap.Client, err error) {
	s.mu.Lock()
	if s.closed || s.client != c {
		s.mu.Unlock()
		return
	}
	s.client = nil
	s.mu.Unlock()

	s.log().WithError(err).Warn("session_connection_failed")
	go func() { _ = c.Logout() }()
	s.restart()
}

func (s *Session) restart() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	s.setState(StateRestarting)
	s.log().WithField("delay", s.cfg.ReconnectInterval).Info("session_restart_scheduled")
	s.timer = time.AfterFunc(s.cfg.ReconnectInterval, s.connect)
}

// Close logs out and stops any pending reconnect. The session cannot be
// restarted.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}

	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
	}

	c := s.client
	s.client = nil
	s.setState(StateDisconnected)
	s.mu.Unlock()

	if c == nil {
		return nil
	}
	return c.Logout()
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

func (s *Session) IsConnected() bool {
	return s.State() == StateConnected
}

func (s *Session) current() imap.Client {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateConnected {
		return nil
	}
	return s.client
}

func (s *Session) acquire(ctx context.Context) (imap.Client, error) {
	if !s.IsConnected() {
		return nil, ErrNotConnected
	}

	if err := s.token.Acquire(ctx, 1); err != nil {
		return nil, err
	}

	// The connection may have dropped while we were queued.
	c := s.current()
	if c == nil {
		s.token.Release(1)
		return nil, ErrNotConnected
	}
	return c, nil
}

// Lock waits for exclusive access to the connection and selects path.
// Waiters are served in arrival order. The caller must Release the lock.
func (s *Session) Lock(ctx context.Context, path string) (*Lock, error) {
	c, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}

	if _, err := c.Select(path, false); err != nil {
		s.token.Release(1)
		return nil, fmt.Errorf("select %v: %w", path, err)
	}

	s.log().WithField("mailbox", path).Trace("session_lock_acquired")
	return &Lock{s: s, c: c, path: path}, nil
}

// Exec runs fn with exclusive access to the connection, without selecting
// a mailbox.
func (s *Session) Exec(ctx context.Context, fn func(c imap.Client) error) error {
	c, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer s.token.Release(1)

	return fn(c)
}

func (l *Lock) Client() imap.Client {
	return l.c
}

func (l *Lock) Path() string {
	return l.path
}

// Release is safe to call more than once.
func (l *Lock) Release() {
	l.once.Do(func() {
		l.s.token.Release(1)
		l.s.log().WithField("mailbox", l.path).Trace("session_lock_released")
	})
}
