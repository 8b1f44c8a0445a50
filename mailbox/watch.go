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
	"context"
	"errors"
	"fmt"
	"time"

	goImap "github.com/emersion/go-imap"
	log "github.com/sirupsen/logrus"
	"github.com/vs49688/mailsync/imap"
	"github.com/vs49688/mailsync/session"
)

const (
	pollNotConnected = "not_connected"
	pollCanceled     = "canceled"
	pollRemote       = "remote"
	pollPanic        = "panic"
)

func classifyPollError(err error) string {
	switch {
	case errors.Is(err, session.ErrNotConnected):
		return pollNotConnected
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return pollCanceled
	default:
		return pollRemote
	}
}

func (m *Manager) watch(ctx context.Context, path string) {
	logger := m.log().WithFields(log.Fields{
		"mailbox":  path,
		"interval": m.cfg.WatchInterval,
	})

	logger.Info("watch_started")
	defer m.registry.SetWatching(path, false)

	ticker := time.NewTicker(m.cfg.WatchInterval)
	defer ticker.Stop()

	m.poll(ctx, path)
	for {
		select {
		case <-ctx.Done():
			logger.Info("watch_stopped")
			return
		case <-ticker.C:
			m.poll(ctx, path)
		}
	}
}

// poll runs a single tick. Failures are logged and never escape.
func (m *Manager) poll(ctx context.Context, path string) {
	logger := m.log().WithField("mailbox", path)

	defer func() {
		if r := recover(); r != nil {
			logger.WithFields(log.Fields{
				"class": pollPanic,
				"panic": fmt.Sprint(r),
			}).Error("watch_poll_failed")
		}
	}()

	// Mailboxes created after the watcher started only show up in the
	// registry after a later discovery.
	m.registry.SetWatching(path, true)

	n, err := m.checkMailbox(ctx, path)
	if err != nil {
		class := classifyPollError(err)
		entry := logger.WithError(err).WithField("class", class)
		if class == pollRemote {
			entry.Warn("watch_poll_failed")
		} else {
			entry.Debug("watch_poll_failed")
		}
		return
	}

	if n > 0 {
		logger.WithField("count", n).Info("watch_new_mail")
	}
}

// checkMailbox compares the local cursor with the server's UIDNEXT and
// publishes the messages in between. The cursor is advanced before the
// fetch, so a range is only ever claimed by one tick.
func (m *Manager) checkMailbox(ctx context.Context, path string) (int, error) {
	state, ok := m.registry.Get(path)
	if !ok {
		return 0, nil
	}

	var remote uint32
	err := m.session.Exec(ctx, func(c imap.Client) error {
		var err error
		remote, err = statusCursor(c, path)
		return err
	})
	if err != nil {
		return 0, err
	}

	if remote <= state.Cursor {
		return 0, nil
	}

	if !m.registry.Advance(path, state.Cursor, remote) {
		return 0, nil
	}

	seqset := new(goImap.SeqSet)
	seqset.AddRange(state.Cursor, remote-1)

	l, err := m.session.Lock(ctx, path)
	if err != nil {
		return 0, err
	}

	mails, err := func() ([]*Mail, error) {
		defer l.Release()
		return m.fetchMails(l.Client(), path, seqset)
	}()
	if err != nil {
		return 0, err
	}

	if !m.known(path) {
		return 0, nil
	}

	n := 0
	for _, mail := range mails {
		if mail.UID < state.Cursor || mail.UID >= remote {
			continue
		}
		m.bus.Publish(MailEvent{Mail: mail})
		n++
	}
	return n, nil
}
