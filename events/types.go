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
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

type Kind int

const (
	KindMail Kind = iota
	KindDelete
)

func (k Kind) String() string {
	switch k {
	case KindMail:
		return "mail"
	case KindDelete:
		return "delete"
	default:
		return "unknown"
	}
}

type Event interface {
	Kind() Kind
}

type Handler func(Event)

type subscription struct {
	id      uuid.UUID
	kind    Kind
	handler Handler
}

// Bus is a synchronous publish/subscribe dispatcher. Handlers run on the
// publishing goroutine in registration order. A panicking handler is
// logged and does not prevent delivery to the rest.
type Bus struct {
	log *log.Entry

	mu   sync.RWMutex
	subs []subscription
}
