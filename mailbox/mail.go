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
	"errors"

	goImap "github.com/emersion/go-imap"
)

var errNoMail = errors.New("no mail given")

// The helpers below act on a single fetched message, addressed by its
// mailbox back-reference and UID.

func single(mail *Mail) (*IDSet, error) {
	if mail == nil {
		return nil, errNoMail
	}
	return &IDSet{Mails: []*Mail{mail}}, nil
}

func (m *Manager) DeleteMail(ctx context.Context, mail *Mail) error {
	ids, err := single(mail)
	if err != nil {
		return err
	}
	return m.DeleteMails(ctx, mail.Mailbox, ids)
}

func (m *Manager) CopyMail(ctx context.Context, mail *Mail, dest string) (*CopyResult, error) {
	ids, err := single(mail)
	if err != nil {
		return nil, err
	}
	return m.CopyMails(ctx, mail.Mailbox, dest, ids)
}

func (m *Manager) MoveMail(ctx context.Context, mail *Mail, dest string) (*CopyResult, error) {
	ids, err := single(mail)
	if err != nil {
		return nil, err
	}
	return m.MoveMails(ctx, mail.Mailbox, dest, ids)
}

func (m *Manager) AddMailFlags(ctx context.Context, mail *Mail, flags ...string) error {
	ids, err := single(mail)
	if err != nil {
		return err
	}
	return m.AddFlags(ctx, mail.Mailbox, flags, ids)
}

func (m *Manager) RemoveMailFlags(ctx context.Context, mail *Mail, flags ...string) error {
	ids, err := single(mail)
	if err != nil {
		return err
	}
	return m.RemoveFlags(ctx, mail.Mailbox, flags, ids)
}

func (m *Manager) SeeMail(ctx context.Context, mail *Mail) error {
	return m.AddMailFlags(ctx, mail, goImap.SeenFlag)
}

func (m *Manager) UnseeMail(ctx context.Context, mail *Mail) error {
	return m.RemoveMailFlags(ctx, mail, goImap.SeenFlag)
}
