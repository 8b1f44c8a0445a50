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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolve(t *testing.T) {
	assert.Equal(t, []uint32{1, 2, 3}, Resolve(&IDSet{
		UIDs:  []uint32{1, 2},
		Mails: []*Mail{{UID: 3}},
	}))

	assert.Equal(t, []uint32{}, Resolve(&IDSet{}))
	assert.Equal(t, []uint32{}, Resolve(&IDSet{Mails: []*Mail{}}))
	assert.Equal(t, []uint32{}, Resolve(nil))
}

func TestResolveKeepsOrderAndDuplicates(t *testing.T) {
	assert.Equal(t, []uint32{9, 4, 4, 9}, Resolve(&IDSet{
		UIDs:  []uint32{9, 4},
		Mails: []*Mail{{UID: 4}, nil, {UID: 9}},
	}))
}
