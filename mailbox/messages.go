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
	"context"
	"time"

	goImap "github.com/emersion/go-imap"
	log "github.com/sirupsen/logrus"
	"github.com/vs49688/mailsync/imap"
)

func (m *Manager) fetchMails(c imap.Client, path string, seqset *goImap.SeqSet) ([]*Mail, error) {
	ch := make(chan *goImap.Message, 16)
	done := make(chan error, 1)
	go func() { done <- c.UidFetch(seqset, fetchItems, ch) }()

	uids, msgs := readMessages(ch)
	if err := <-done; err != nil {
		return nil, err
	}

	mails := make([]*Mail, 0, len(uids))
	for _, uid := range uids {
		mail, err := parseMessage(path, msgs[uid])
		if err != nil {
			m.log().WithError(err).WithFields(log.Fields{
				"mailbox": path,
				"uid":     uid,
			}).Warn("mail_parse_failed")
			continue
		}
		mails = append(mails, mail)
	}
	return mails, nil
}

func (m *Manager) known(path string) bool {
	_, ok := m.registry.Get(path)
	return ok
}

// GetMail fetches a single message. It returns nil, nil if the message or
// the mailbox does not exist.
func (m *Manager) GetMail(ctx context.Context, path string, uid uint32) (*Mail, error) {
	if err := m.available("get mail"); err != nil {
		return nil, err
	}

	if !m.known(path) {
		return nil, nil
	}

	var mails []*Mail
	err := m.withMailbox(ctx, path, "get mail", func(c imap.Client) error {
		var err error
		mails, err = m.fetchMails(c, path, seqSetFromUIDs([]uint32{uid}))
		return err
	})
	if err != nil {
		return nil, err
	}

	if !m.known(path) {
		return nil, nil
	}

	for _, mail := range mails {
		if mail.UID == uid {
			return mail, nil
		}
	}
	return nil, nil
}

// GetMails fetches the messages named by ids, or every message in the
// mailbox if ids is nil. The result is nil if the mailbox is unknown.
func (m *Manager) GetMails(ctx context.Context, path string, ids *IDSet) ([]*Mail, error) {
	if err := m.available("get mails"); err != nil {
		return nil, err
	}

	if !m.known(path) {
		return nil, nil
	}

	seqset := new(goImap.SeqSet)
	if ids == nil {
		seqset.AddRange(1, 0)
	} else {
		uids := Resolve(ids)
		if len(uids) == 0 {
			return []*Mail{}, nil
		}
		seqset.AddNum(uids...)
	}

	var mails []*Mail
	err := m.withMailbox(ctx, path, "get mails", func(c imap.Client) error {
		var err error
		mails, err = m.fetchMails(c, path, seqset)
		return err
	})
	if err != nil {
		return nil, err
	}

	if !m.known(path) {
		return nil, nil
	}
	return mails, nil
}

func (m *Manager) searchAndFetch(ctx context.Context, path string, op string, criteria *goImap.SearchCriteria) ([]*Mail, error) {
	if err := m.available(op); err != nil {
		return nil, err
	}

	if !m.known(path) {
		return nil, nil
	}

	var mails []*Mail
	err := m.withMailbox(ctx, path, op, func(c imap.Client) error {
		uids, err := c.UidSearch(criteria)
		if err != nil {
			return err
		}

		if len(uids) == 0 {
			mails = []*Mail{}
			return nil
		}

		mails, err = m.fetchMails(c, path, seqSetFromUIDs(uids))
		return err
	})
	if err != nil {
		return nil, err
	}

	if !m.known(path) {
		return nil, nil
	}
	return mails, nil
}

func (m *Manager) GetUnseenMails(ctx context.Context, path string) ([]*Mail, error) {
	criteria := goImap.NewSearchCriteria()
	criteria.WithoutFlags = []string{goImap.SeenFlag}
	return m.searchAndFetch(ctx, path, "get unseen mails", criteria)
}

func (m *Manager) GetSeenMails(ctx context.Context, path string) ([]*Mail, error) {
	criteria := goImap.NewSearchCriteria()
	criteria.WithFlags = []string{goImap.SeenFlag}
	return m.searchAndFetch(ctx, path, "get seen mails", criteria)
}

func (m *Manager) transfer(ctx context.Context, op string, path string, dest string, ids *IDSet, move bool) (*CopyResult, error) {
	uids := Resolve(ids)
	result := &CopyResult{Source: path, Destination: dest, UIDs: uids}
	if len(uids) == 0 {
		return result, nil
	}

	err := m.withMailbox(ctx, path, op, func(c imap.Client) error {
		if move {
			return c.UidMove(seqSetFromUIDs(uids), dest)
		}
		return c.UidCopy(seqSetFromUIDs(uids), dest)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (m *Manager) CopyMails(ctx context.Context, path string, dest string, ids *IDSet) (*CopyResult, error) {
	return m.transfer(ctx, "copy mails", path, dest, ids, false)
}

func (m *Manager) MoveMails(ctx context.Context, path string, dest string, ids *IDSet) (*CopyResult, error) {
	return m.transfer(ctx, "move mails", path, dest, ids, true)
}

// DeleteMails flags the messages \Deleted and expunges the mailbox, then
// publishes one delete event per UID in resolved order.
func (m *Manager) DeleteMails(ctx context.Context, path string, ids *IDSet) error {
	uids := Resolve(ids)
	if len(uids) == 0 {
		return nil
	}

	err := m.withMailbox(ctx, path, "delete mails", func(c imap.Client) error {
		item := goImap.FormatFlagsOp(goImap.AddFlags, true)
		if err := c.UidStore(seqSetFromUIDs(uids), item, []interface{}{goImap.DeletedFlag}, nil); err != nil {
			return err
		}
		return c.Expunge(nil)
	})
	if err != nil {
		return err
	}

	m.log().WithFields(log.Fields{"mailbox": path, "count": len(uids)}).Info("mails_deleted")
	for _, uid := range uids {
		m.bus.Publish(DeleteEvent{Mailbox: path, UID: uid})
	}
	return nil
}

func (m *Manager) storeFlags(ctx context.Context, op string, path string, mode goImap.FlagsOp, flags []string, ids *IDSet) error {
	uids := Resolve(ids)
	if len(uids) == 0 || len(flags) == 0 {
		return nil
	}

	return m.withMailbox(ctx, path, op, func(c imap.Client) error {
		item := goImap.FormatFlagsOp(mode, true)
		return c.UidStore(seqSetFromUIDs(uids), item, flagValues(flags), nil)
	})
}

func (m *Manager) AddFlags(ctx context.Context, path string, flags []string, ids *IDSet) error {
	return m.storeFlags(ctx, "add flags", path, goImap.AddFlags, flags, ids)
}

func (m *Manager) RemoveFlags(ctx context.Context, path string, flags []string, ids *IDSet) error {
	return m.storeFlags(ctx, "remove flags", path, goImap.RemoveFlags, flags, ids)
}

func (m *Manager) MarkSeen(ctx context.Context, path string, ids *IDSet) error {
	return m.AddFlags(ctx, path, []string{goImap.SeenFlag}, ids)
}

func (m *Manager) MarkUnseen(ctx context.Context, path string, ids *IDSet) error {
	return m.RemoveFlags(ctx, path, []string{goImap.SeenFlag}, ids)
}

// AppendMail uploads a raw RFC 5322 message. The watcher, if any, reports
// it like any other new message.
func (m *Manager) AppendMail(ctx context.Context, path string, flags []string, date time.Time, body []byte) error {
	if date.IsZero() {
		date = time.Now()
	}

	return m.exec(ctx, "append mail", func(c imap.Client) error {
		return c.Append(path, flags, date, bytes.NewBuffer(body))
	})
}
