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

	goImap "github.com/emersion/go-imap"
	"github.com/stretchr/testify/assert"
	"github.com/vs49688/mailsync/internal"
)

func TestSingleMailHelpers(t *testing.T) {
	env := buildTestManager(t, nil, func(srv *internal.FakeServer) {
		srv.AddMailbox("INBOX", 1)
		srv.AddMailbox("Archive", 1)
	})
	ctx := context.Background()

	var deleted []DeleteEvent
	env.m.OnDelete(func(ev DeleteEvent) { deleted = append(deleted, ev) })

	uids := deliver(t, env.srv, "INBOX", 3)

	first, err := env.m.GetMail(ctx, "INBOX", uids[0])
	if !assert.NoError(t, err) || !assert.NotNil(t, first) {
		t.FailNow()
	}

	assert.NoError(t, env.m.SeeMail(ctx, first))
	assert.Contains(t, env.srv.Flags("INBOX", uids[0]), goImap.SeenFlag)

	assert.NoError(t, env.m.UnseeMail(ctx, first))
	assert.NotContains(t, env.srv.Flags("INBOX", uids[0]), goImap.SeenFlag)

	assert.NoError(t, env.m.AddMailFlags(ctx, first, goImap.FlaggedFlag, goImap.AnsweredFlag))
	assert.Contains(t, env.srv.Flags("INBOX", uids[0]), goImap.FlaggedFlag)
	assert.Contains(t, env.srv.Flags("INBOX", uids[0]), goImap.AnsweredFlag)

	assert.NoError(t, env.m.RemoveMailFlags(ctx, first, goImap.FlaggedFlag))
	assert.NotContains(t, env.srv.Flags("INBOX", uids[0]), goImap.FlaggedFlag)

	copied, err := env.m.CopyMail(ctx, first, "Archive")
	assert.NoError(t, err)
	assert.Equal(t, &CopyResult{Source: "INBOX", Destination: "Archive", UIDs: []uint32{uids[0]}}, copied)
	assert.Len(t, env.srv.UIDs("Archive"), 1)

	second, err := env.m.GetMail(ctx, "INBOX", uids[1])
	if !assert.NoError(t, err) || !assert.NotNil(t, second) {
		t.FailNow()
	}

	_, err = env.m.MoveMail(ctx, second, "Archive")
	assert.NoError(t, err)
	assert.Len(t, env.srv.UIDs("Archive"), 2)
	assert.NotContains(t, env.srv.UIDs("INBOX"), uids[1])

	assert.NoError(t, env.m.DeleteMail(ctx, first))
	assert.Equal(t, []uint32{uids[2]}, env.srv.UIDs("INBOX"))
	assert.Equal(t, []DeleteEvent{{Mailbox: "INBOX", UID: uids[0]}}, deleted)
}

func TestSingleMailHelpersRejectNil(t *testing.T) {
	m := New(&Config{Factory: &internal.FakeFactory{Server: internal.NewFakeServer()}})
	ctx := context.Background()

	assert.ErrorIs(t, m.DeleteMail(ctx, nil), errNoMail)
	assert.ErrorIs(t, m.SeeMail(ctx, nil), errNoMail)

	_, err := m.MoveMail(ctx, nil, "Archive")
	assert.ErrorIs(t, err, errNoMail)
}
