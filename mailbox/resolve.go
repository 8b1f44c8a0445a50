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

// Resolve flattens ids into a UID list: the explicit UIDs first, then the
// UID of each referenced mail, in input order. Duplicates are kept.
func Resolve(ids *IDSet) []uint32 {
	if ids == nil {
		return []uint32{}
	}

	uids := make([]uint32, 0, len(ids.UIDs)+len(ids.Mails))
	uids = append(uids, ids.UIDs...)
	for _, m := range ids.Mails {
		if m != nil {
			uids = append(uids, m.UID)
		}
	}
	return uids
}
