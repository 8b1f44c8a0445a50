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
	"sort"

	"github.com/emersion/go-imap"
)

var fetchItems = []imap.FetchItem{
	imap.FetchUid,
	imap.FetchFlags,
	(&imap.BodySectionName{Peek: true}).FetchItem(),
}

func readMessages(ch chan *imap.Message) ([]uint32, map[uint32]*imap.Message) {
	// Sometimes we have dups
	unique := map[uint32]*imap.Message{}
	for msg := range ch {
		unique[msg.Uid] = msg
	}

	var uids []uint32
	for uid := range unique {
		uids = append(uids, uid)
	}

	sort.Slice(uids, func(i, j int) bool { return uids[i] < uids[j] })

	return uids, unique
}

func seqSetFromUIDs(uids []uint32) *imap.SeqSet {
	set := new(imap.SeqSet)
	set.AddNum(uids...)
	return set
}

func flagValues(flags []string) []interface{} {
	values := make([]interface{}, 0, len(flags))
	for _, f := range flags {
		values = append(values, f)
	}
	return values
}

func dedupe(paths []string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, p := range paths {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

func parseMessage(path string, msg *imap.Message) (*Mail, error) {
	body := msg.GetBody(&imap.BodySectionName{})
	if body == nil {
		return nil, errNoBody
	}

	m, err := Parse(body)
	if err != nil {
		return nil, err
	}

	m.UID = msg.Uid
	m.SeqNum = msg.SeqNum
	m.Mailbox = path
	m.Flags = msg.Flags
	return m, nil
}
