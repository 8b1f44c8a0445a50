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
	"fmt"
	"time"

	goImap "github.com/emersion/go-imap"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/vs49688/mailsync/events"
	"github.com/vs49688/mailsync/imap"
	"github.com/vs49688/mailsync/registry"
	"github.com/vs49688/mailsync/session"
	"golang.org/x/sync/errgroup"
)

const DefaultWatchInterval = 5 * time.Second

func New(cfg *Config) *Manager {
	ourCfg := *cfg
	if ourCfg.WatchInterval <= 0 {
		ourCfg.WatchInterval = DefaultWatchInterval
	}

	if ourCfg.Logger == nil {
		ourCfg.Logger = log.NewEntry(log.StandardLogger())
	}
	ourCfg.Logger = ourCfg.Logger.WithField("user", ourCfg.User)
	ourCfg.MailboxesToWatch = dedupe(ourCfg.MailboxesToWatch)

	m := &Manager{
		cfg:      ourCfg,
		registry: registry.New(),
		bus:      events.NewBus(ourCfg.Logger),
		ready:    make(chan struct{}),
	}

	m.session = session.New(&session.Config{
		Connection:        ourCfg.Connection,
		Factory:           ourCfg.Factory,
		ReconnectInterval: ourCfg.ReconnectInterval,
		OnConnect:         m.discover,
		Logger:            ourCfg.Logger,
	})

	return m
}

func (m *Manager) log() *log.Entry {
	return m.cfg.Logger
}

// Run connects and watches the configured mailboxes until ctx is done.
// Watchers start once the first mailbox discovery has completed.
func (m *Manager) Run(ctx context.Context) error {
	m.session.Start(ctx)
	defer func() { _ = m.session.Close() }()

	select {
	case <-ctx.Done():
		return nil
	case <-m.ready:
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, path := range m.cfg.MailboxesToWatch {
		path := path
		g.Go(func() error {
			m.watch(gctx, path)
			return nil
		})
	}

	err := g.Wait()
	<-ctx.Done()
	return err
}

// Ready is closed after the first successful mailbox discovery.
func (m *Manager) Ready() <-chan struct{} {
	return m.ready
}

func (m *Manager) IsConnected() bool {
	return m.session.IsConnected()
}

func (m *Manager) Events() *events.Bus {
	return m.bus
}

func (m *Manager) OnMail(h func(mail *Mail)) uuid.UUID {
	return m.bus.Subscribe(events.KindMail, func(ev events.Event) {
		h(ev.(MailEvent).Mail)
	})
}

func (m *Manager) OnDelete(h func(ev DeleteEvent)) uuid.UUID {
	return m.bus.Subscribe(events.KindDelete, func(ev events.Event) {
		h(ev.(DeleteEvent))
	})
}

func (m *Manager) Unsubscribe(id uuid.UUID) bool {
	return m.bus.Unsubscribe(id)
}

func statusCursor(c imap.Client, path string) (uint32, error) {
	cursor, _, err := statusItems(c, path, goImap.StatusUidNext)
	return cursor, err
}

// statusItems returns UIDNEXT (1 if the server omits it) and UIDVALIDITY
// (0 if not requested or omitted).
func statusItems(c imap.Client, path string, items ...goImap.StatusItem) (uint32, uint32, error) {
	status, err := c.Status(path, items)
	if err != nil {
		return 0, 0, fmt.Errorf("status %v: %w", path, err)
	}

	cursor := status.UidNext
	if cursor == 0 {
		cursor = 1
	}
	return cursor, status.UidValidity, nil
}

func (m *Manager) discover(ctx context.Context) error {
	type discovered struct {
		path     string
		cursor   uint32
		validity uint32
	}

	var found []discovered
	err := m.session.Exec(ctx, func(c imap.Client) error {
		ch := make(chan *goImap.MailboxInfo, 16)
		done := make(chan error, 1)
		go func() { done <- c.List("", "*", ch) }()

		var infos []*goImap.MailboxInfo
		for info := range ch {
			infos = append(infos, info)
		}

		if err := <-done; err != nil {
			return fmt.Errorf("list: %w", err)
		}

	outer:
		for _, info := range infos {
			for _, attr := range info.Attributes {
				if attr == goImap.NoSelectAttr {
					continue outer
				}
			}

			cursor, validity, err := statusItems(c, info.Name, goImap.StatusUidNext, goImap.StatusUidValidity)
			if err != nil {
				return err
			}
			found = append(found, discovered{path: info.Name, cursor: cursor, validity: validity})
		}
		return nil
	})
	if err != nil {
		return err
	}

	paths := make([]string, 0, len(found))
	for _, d := range found {
		paths = append(paths, d.path)

		fields := log.Fields{
			"mailbox":      d.path,
			"cursor":       d.cursor,
			"uid_validity": d.validity,
		}

		switch created, reset := m.registry.Reconcile(d.path, d.cursor, d.validity); {
		case created:
			m.log().WithFields(fields).Debug("mailbox_discovered")
		case reset:
			m.log().WithFields(fields).Warn("mailbox_uid_validity_changed")
		}
	}

	for _, p := range m.registry.Retain(paths) {
		m.log().WithField("mailbox", p).Info("mailbox_vanished")
	}

	m.log().WithField("count", m.registry.Len()).Info("mailboxes_loaded")
	m.readyOnce.Do(func() { close(m.ready) })
	return nil
}

// wrap maps session errors onto the public error set.
func (m *Manager) wrap(op string, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, session.ErrNotConnected) {
		m.log().WithField("op", op).Error("manager_unavailable")
		return ErrUnavailable
	}
	return fmt.Errorf("%v: %w", op, err)
}

// available fails fast with ErrUnavailable while disconnected.
func (m *Manager) available(op string) error {
	if m.session.IsConnected() {
		return nil
	}
	return m.wrap(op, session.ErrNotConnected)
}

func (m *Manager) exec(ctx context.Context, op string, fn func(c imap.Client) error) error {
	return m.wrap(op, m.session.Exec(ctx, fn))
}

// withMailbox runs fn with path selected and exclusive access to the
// connection. Access is released however fn returns.
func (m *Manager) withMailbox(ctx context.Context, path string, op string, fn func(c imap.Client) error) error {
	l, err := m.session.Lock(ctx, path)
	if err != nil {
		return m.wrap(op, err)
	}
	defer l.Release()

	if err := fn(l.Client()); err != nil {
		return fmt.Errorf("%v %v: %w", op, path, err)
	}
	return nil
}

// ListMailboxes returns the locally known mailboxes. It fails with
// ErrUnavailable while disconnected.
func (m *Manager) ListMailboxes() ([]registry.MailboxState, error) {
	if err := m.available("list mailboxes"); err != nil {
		return nil, err
	}
	return m.registry.List(), nil
}

func (m *Manager) GetMailbox(path string) (registry.MailboxState, bool) {
	return m.registry.Get(path)
}

func (m *Manager) CreateMailbox(ctx context.Context, path string) (*CreateResult, error) {
	var cursor uint32 = 1
	err := m.exec(ctx, "create mailbox", func(c imap.Client) error {
		if err := c.Create(path); err != nil {
			return err
		}

		if next, err := statusCursor(c, path); err == nil {
			cursor = next
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.registry.Insert(path, cursor)
	m.log().WithFields(log.Fields{"mailbox": path, "cursor": cursor}).Info("mailbox_created")
	return &CreateResult{Path: path, Cursor: cursor}, nil
}

func (m *Manager) DeleteMailbox(ctx context.Context, path string) (*DeleteResult, error) {
	err := m.exec(ctx, "delete mailbox", func(c imap.Client) error {
		return c.Delete(path)
	})
	if err != nil {
		return nil, err
	}

	m.registry.Remove(path)
	m.log().WithField("mailbox", path).Info("mailbox_deleted")
	return &DeleteResult{Path: path}, nil
}

func (m *Manager) RenameMailbox(ctx context.Context, path string, newPath string) (*RenameResult, error) {
	var cursor uint32 = 1
	err := m.exec(ctx, "rename mailbox", func(c imap.Client) error {
		if err := c.Rename(path, newPath); err != nil {
			return err
		}

		if next, err := statusCursor(c, newPath); err == nil {
			cursor = next
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !m.registry.Rename(path, newPath) {
		m.registry.Ensure(newPath, cursor)
	}

	m.log().WithFields(log.Fields{"mailbox": path, "new_mailbox": newPath}).Info("mailbox_renamed")
	return &RenameResult{Path: path, NewPath: newPath}, nil
}
