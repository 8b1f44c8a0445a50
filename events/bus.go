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

package events

import (
	"fmt"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

func NewBus(logger *log.Entry) *Bus {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return &Bus{log: logger}
}

// Subscribe registers h for events of the given kind. The returned id
// can be passed to Unsubscribe.
func (b *Bus) Subscribe(kind Kind, h Handler) uuid.UUID {
	id := uuid.New()

	b.mu.Lock()
	defer b.mu.Unlock()

	b.subs = append(b.subs, subscription{id: id, kind: kind, handler: h})
	return id
}

func (b *Bus) Unsubscribe(id uuid.UUID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return true
		}
	}
	return false
}

func (b *Bus) snapshot(kind Kind) []subscription {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []subscription
	for _, s := range b.subs {
		if s.kind == kind {
			out = append(out, s)
		}
	}
	return out
}

// Publish delivers ev to every handler subscribed to its kind at the time
// of the call.
func (b *Bus) Publish(ev Event) {
	for _, s := range b.snapshot(ev.Kind()) {
		b.dispatch(s, ev)
	}
}

func (b *Bus) dispatch(s subscription, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.WithFields(log.Fields{
				"kind":         ev.Kind().String(),
				"subscription": s.id.String(),
				"panic":        fmt.Sprint(r),
			}).Error("event_handler_panic")
		}
	}()

	s.handler(ev)
}
