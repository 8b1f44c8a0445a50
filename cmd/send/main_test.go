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

package send

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vs49688/mailsync/mailbox"
	"github.com/vs49688/mailsync/submit"
)

func TestBuildMessage(t *testing.T) {
	msg, err := BuildMessage(&Options{
		From:        "Sender <sender@example.com>",
		To:          []string{"a@example.com, B <b@example.com>"},
		Bcc:         []string{"hidden@example.com"},
		Subject:     "Report",
		TextFile:    "testdata/body.txt",
		HTML:        "<p>Hello</p>",
		Attachments: []string{"testdata/report.csv"},
	})
	if !assert.NoError(t, err) {
		t.FailNow()
	}

	assert.Equal(t, "sender@example.com", msg.From.Address)
	assert.Len(t, msg.To, 2)
	assert.Equal(t, "B", msg.To[1].Name)
	assert.Len(t, msg.Bcc, 1)
	assert.Empty(t, msg.Cc)
	assert.Equal(t, "Hello from a file.\n", msg.Text)
	assert.Equal(t, "<p>Hello</p>", msg.HTML)
	assert.False(t, msg.Date.IsZero())

	if assert.Len(t, msg.Attachments, 1) {
		assert.Equal(t, "report.csv", msg.Attachments[0].Name)
		assert.Equal(t, submit.FilePath("testdata/report.csv"), msg.Attachments[0].Source)
	}

	bb := new(bytes.Buffer)
	assert.NoError(t, submit.Compose(bb, msg.From, msg))

	parsed, err := mailbox.Parse(bb)
	if !assert.NoError(t, err) {
		t.FailNow()
	}

	assert.Equal(t, "Report", parsed.Subject)
	assert.Equal(t, "Hello from a file.", strings.TrimSpace(parsed.Text))
	if assert.Len(t, parsed.Attachments, 1) {
		assert.Equal(t, "report.csv", parsed.Attachments[0].Filename)
	}
}

func TestBuildMessageErrors(t *testing.T) {
	_, err := BuildMessage(&Options{From: "not an address"})
	assert.Error(t, err)

	_, err = BuildMessage(&Options{To: []string{"@@"}})
	assert.Error(t, err)

	_, err = BuildMessage(&Options{TextFile: "testdata/missing.txt"})
	assert.Error(t, err)
}
