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

package registry

import "sync"

// MailboxState is the registry's view of a single mailbox.
type MailboxState struct {
	Path string

	// Cursor is the next UID the server will assign in this mailbox.
	// Every message with a UID below it has been delivered.
	Cursor uint32

	// UIDValidity is zero until discovery has seen the mailbox.
	UIDValidity uint32

	Watching bool
}

// Registry maps mailbox paths to their state. It is safe for
// concurrent use. All accessors return copies.
type Registry struct {
	mu        sync.RWMutex
	mailboxes map[string]*MailboxState
}
