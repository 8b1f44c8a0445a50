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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/vs49688/mailsync/imap"
	"github.com/vs49688/mailsync/imap/client"
	"github.com/vs49688/mailsync/internal"
)

func TestManagerAgainstServer(t *testing.T) {
	_, address, mailbox := internal.BuildTestIMAPServer(t)

	first := internal.AddTestMessage(t, mailbox, 0)

	m := New(&Config{
		Connection: imap.ConnectionConfig{
			HostPort: address,
			Auth:     imap.NewNormalAuthenticator("username", "password"),
		},
		Factory:           &client.Factory{},
		User:              "username",
		ReconnectInterval: 50 * time.Millisecond,
		MailboxesToWatch:  []string{"INBOX"},
		WatchInterval:     50 * time.Millisecond,
	})

	rec := &mailRecorder{}
	m.OnMail(rec.record)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = m.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	select {
	case <-m.Ready():
	case <-time.After(5 * time.Second):
		t.Fatal("manager never became ready")
	}

	mb, ok := m.GetMailbox("INBOX")
	assert.True(t, ok)
	assert.EqualValues(t, first+1, mb.Cursor)

	mails, err := m.GetMails(ctx, "INBOX", nil)
	assert.NoError(t, err)
	if assert.Len(t, mails, 1) {
		assert.Equal(t, "Test Email 0", mails[0].Subject)
		assert.Equal(t, "00@localhost", mails[0].MessageID)
	}

	second := internal.AddTestMessage(t, mailbox, 1)
	assert.Eventually(t, func() bool { return len(rec.get()) == 1 }, 5*time.Second, 50*time.Millisecond)
	assert.Equal(t, []uint32{second}, rec.get())

	assert.NoError(t, m.MarkSeen(ctx, "INBOX", &IDSet{UIDs: []uint32{second}}))

	unseen, err := m.GetUnseenMails(ctx, "INBOX")
	assert.NoError(t, err)
	if assert.Len(t, unseen, 1) {
		assert.Equal(t, first, unseen[0].UID)
	}
}
