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

import "sort"

func New() *Registry {
	return &Registry{mailboxes: map[string]*MailboxState{}}
}

// List returns every known mailbox, sorted by path.
func (r *Registry) List() []MailboxState {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]MailboxState, 0, len(r.mailboxes))
	for _, mb := range r.mailboxes {
		out = append(out, *mb)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

func (r *Registry) Get(path string) (MailboxState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	mb, ok := r.mailboxes[path]
	if !ok {
		return MailboxState{}, false
	}
	return *mb, true
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.mailboxes)
}

// Insert adds or replaces the entry for path. A replaced entry keeps its
// watch flag and forgets its UIDVALIDITY.
func (r *Registry) Insert(path string, cursor uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if mb, ok := r.mailboxes[path]; ok {
		mb.Cursor = cursor
		mb.UIDValidity = 0
		return
	}
	r.mailboxes[path] = &MailboxState{Path: path, Cursor: cursor}
}

// Ensure inserts path only if it is not already known. It reports whether
// an entry was created.
func (r *Registry) Ensure(path string, cursor uint32) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.mailboxes[path]; ok {
		return false
	}
	r.mailboxes[path] = &MailboxState{Path: path, Cursor: cursor}
	return true
}

// Reconcile records a discovered mailbox. A new path is inserted. A known
// path whose UIDVALIDITY changed had its UIDs reassigned, so its cursor is
// reset to cursor; otherwise the cursor is kept. A stored validity of zero
// is adopted without a reset.
func (r *Registry) Reconcile(path string, cursor uint32, validity uint32) (created bool, reset bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	mb, ok := r.mailboxes[path]
	if !ok {
		r.mailboxes[path] = &MailboxState{Path: path, Cursor: cursor, UIDValidity: validity}
		return true, false
	}

	if mb.UIDValidity != 0 && validity != 0 && mb.UIDValidity != validity {
		mb.Cursor = cursor
		reset = true
	}

	if validity != 0 {
		mb.UIDValidity = validity
	}
	return false, reset
}

// Remove deletes path. Removing an unknown path is a no-op.
func (r *Registry) Remove(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.mailboxes, path)
}

// Rename moves the entry at oldPath to newPath, keeping its cursor and
// watch flag. An existing entry at newPath is replaced. Returns false if
// oldPath is unknown.
func (r *Registry) Rename(oldPath, newPath string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	mb, ok := r.mailboxes[oldPath]
	if !ok {
		return false
	}

	delete(r.mailboxes, oldPath)
	mb.Path = newPath
	r.mailboxes[newPath] = mb
	return true
}

func (r *Registry) SetWatching(path string, watching bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	mb, ok := r.mailboxes[path]
	if !ok {
		return false
	}
	mb.Watching = watching
	return true
}

// Advance moves the cursor of path from "from" to "to". It fails if the
// entry is gone, if another caller already moved the cursor, or if "to"
// would not move it forward.
func (r *Registry) Advance(path string, from, to uint32) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	mb, ok := r.mailboxes[path]
	if !ok || mb.Cursor != from || to <= from {
		return false
	}
	mb.Cursor = to
	return true
}

// Retain drops every entry whose path is not in paths and returns the
// removed paths.
func (r *Registry) Retain(paths []string) []string {
	keep := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		keep[p] = struct{}{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var removed []string
	for p := range r.mailboxes {
		if _, ok := keep[p]; !ok {
			delete(r.mailboxes, p)
			removed = append(removed, p)
		}
	}

	sort.Strings(removed)
	return removed
}
