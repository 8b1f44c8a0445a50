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

package internal

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-imap"
	imap2 "github.com/vs49688/mailsync/imap"
)

var (
	errFakeClosed     = errors.New("connection closed")
	errFakeNoMailbox  = errors.New("no such mailbox")
	errFakeExists     = errors.New("mailbox already exists")
	errFakeNoSelected = errors.New("no mailbox selected")
	errFakeDialFailed = errors.New("dial failed")
)

type FakeMessage struct {
	UID   uint32
	Flags []string
	Body  []byte
}

type FakeMailbox struct {
	Name        string
	UidNext     uint32
	UidValidity uint32
	NoSelect    bool
	Messages    []*FakeMessage
}

// FakeServer holds the mailbox state shared by every FakeClient handed out
// by a FakeFactory, so reconnects observe the same data. Every command is
// recorded in arrival order.
type FakeServer struct {
	mu        sync.Mutex
	mailboxes map[string]*FakeMailbox
	calls     []string
	failing   bool
	validity  uint32
}

func NewFakeServer() *FakeServer {
	return &FakeServer{mailboxes: map[string]*FakeMailbox{}}
}

func (s *FakeServer) AddMailbox(name string, uidNext uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.mailboxes[name] = s.newMailbox(name, uidNext)
}

func (s *FakeServer) AddNoSelect(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	mb := s.newMailbox(name, 1)
	mb.NoSelect = true
	s.mailboxes[name] = mb
}

// RemoveMailbox drops a mailbox behind the clients' backs.
func (s *FakeServer) RemoveMailbox(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.mailboxes, name)
}

// newMailbox hands out UIDVALIDITY values in creation order, starting at 1.
// Must be called with mu held.
func (s *FakeServer) newMailbox(name string, uidNext uint32) *FakeMailbox {
	if uidNext == 0 {
		uidNext = 1
	}

	s.validity++
	return &FakeMailbox{Name: name, UidNext: uidNext, UidValidity: s.validity}
}

// Deliver appends a message and returns its UID.
func (s *FakeServer) Deliver(mailbox string, body []byte, flags ...string) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()

	mb := s.mailboxes[mailbox]
	uid := mb.UidNext
	mb.UidNext++
	mb.Messages = append(mb.Messages, &FakeMessage{UID: uid, Flags: append([]string{}, flags...), Body: body})
	return uid
}

func (s *FakeServer) HasMailbox(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.mailboxes[name]
	return ok
}

func (s *FakeServer) UIDs(mailbox string) []uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var uids []uint32
	if mb, ok := s.mailboxes[mailbox]; ok {
		for _, m := range mb.Messages {
			uids = append(uids, m.UID)
		}
	}
	return uids
}

func (s *FakeServer) Flags(mailbox string, uid uint32) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if mb, ok := s.mailboxes[mailbox]; ok {
		for _, m := range mb.Messages {
			if m.UID == uid {
				return append([]string{}, m.Flags...)
			}
		}
	}
	return nil
}

func (s *FakeServer) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string{}, s.calls...)
}

func (s *FakeServer) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = nil
}

// SetFailing makes every command except Logout fail while set.
func (s *FakeServer) SetFailing(failing bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failing = failing
}

// Mark appends a test marker to the call log.
func (s *FakeServer) Mark(marker string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, marker)
}

func (s *FakeServer) record(format string, args ...interface{}) {
	s.calls = append(s.calls, fmt.Sprintf(format, args...))
}

func seqContains(set *imap.SeqSet, uid uint32) bool {
	for _, seq := range set.Set {
		start, stop := seq.Start, seq.Stop
		if start == 0 {
			start = ^uint32(0)
		}
		if stop == 0 {
			stop = ^uint32(0)
		}
		if start > stop {
			start, stop = stop, start
		}
		if uid >= start && uid <= stop {
			return true
		}
	}
	return false
}

func hasFlag(flags []string, flag string) bool {
	for _, f := range flags {
		if strings.EqualFold(f, flag) {
			return true
		}
	}
	return false
}

func toStrings(value interface{}) []string {
	var out []string
	switch v := value.(type) {
	case []interface{}:
		for _, f := range v {
			out = append(out, fmt.Sprint(f))
		}
	case []string:
		out = append(out, v...)
	}
	return out
}

// FakeClient implements imap.Client against a FakeServer.
type FakeClient struct {
	srv       *FakeServer
	selected  string
	loggedOut chan struct{}
	once      sync.Once
}

func (s *FakeServer) NewClient() *FakeClient {
	return &FakeClient{srv: s, loggedOut: make(chan struct{})}
}

// Kill simulates the transport dropping underneath the client.
func (c *FakeClient) Kill() {
	c.once.Do(func() { close(c.loggedOut) })
}

func (c *FakeClient) closed() bool {
	select {
	case <-c.loggedOut:
		return true
	default:
		return false
	}
}

// begin locks the server and validates the connection. The caller must
// unlock on success.
func (c *FakeClient) begin(format string, args ...interface{}) error {
	c.srv.mu.Lock()
	c.srv.record(format, args...)
	if c.closed() {
		c.srv.mu.Unlock()
		return errFakeClosed
	}
	if c.srv.failing {
		c.srv.mu.Unlock()
		return errFakeClosed
	}
	return nil
}

func (c *FakeClient) List(ref, name string, ch chan *imap.MailboxInfo) error {
	defer close(ch)
	if err := c.begin("List %v", name); err != nil {
		return err
	}

	var infos []*imap.MailboxInfo
	for _, mb := range c.srv.mailboxes {
		info := &imap.MailboxInfo{Name: mb.Name, Delimiter: "/"}
		if mb.NoSelect {
			info.Attributes = []string{imap.NoSelectAttr}
		}
		infos = append(infos, info)
	}
	c.srv.mu.Unlock()

	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	for _, info := range infos {
		ch <- info
	}
	return nil
}

func (c *FakeClient) Status(name string, items []imap.StatusItem) (*imap.MailboxStatus, error) {
	if err := c.begin("Status %v", name); err != nil {
		return nil, err
	}
	defer c.srv.mu.Unlock()

	mb, ok := c.srv.mailboxes[name]
	if !ok || mb.NoSelect {
		return nil, errFakeNoMailbox
	}

	status := imap.NewMailboxStatus(name, items)
	status.UidNext = mb.UidNext
	status.UidValidity = mb.UidValidity
	status.Messages = uint32(len(mb.Messages))
	return status, nil
}

func (c *FakeClient) Select(name string, readOnly bool) (*imap.MailboxStatus, error) {
	if err := c.begin("Select %v", name); err != nil {
		return nil, err
	}
	defer c.srv.mu.Unlock()

	mb, ok := c.srv.mailboxes[name]
	if !ok || mb.NoSelect {
		return nil, errFakeNoMailbox
	}

	c.selected = name
	return &imap.MailboxStatus{Name: name, UidNext: mb.UidNext, UidValidity: mb.UidValidity, Messages: uint32(len(mb.Messages))}, nil
}

func (c *FakeClient) Create(name string) error {
	if err := c.begin("Create %v", name); err != nil {
		return err
	}
	defer c.srv.mu.Unlock()

	if _, ok := c.srv.mailboxes[name]; ok {
		return errFakeExists
	}
	c.srv.mailboxes[name] = c.srv.newMailbox(name, 1)
	return nil
}

func (c *FakeClient) Delete(name string) error {
	if err := c.begin("Delete %v", name); err != nil {
		return err
	}
	defer c.srv.mu.Unlock()

	if _, ok := c.srv.mailboxes[name]; !ok {
		return errFakeNoMailbox
	}
	delete(c.srv.mailboxes, name)
	if c.selected == name {
		c.selected = ""
	}
	return nil
}

func (c *FakeClient) Rename(existingName, newName string) error {
	if err := c.begin("Rename %v %v", existingName, newName); err != nil {
		return err
	}
	defer c.srv.mu.Unlock()

	mb, ok := c.srv.mailboxes[existingName]
	if !ok {
		return errFakeNoMailbox
	}
	if _, ok := c.srv.mailboxes[newName]; ok {
		return errFakeExists
	}

	delete(c.srv.mailboxes, existingName)
	mb.Name = newName
	c.srv.mailboxes[newName] = mb
	if c.selected == existingName {
		c.selected = newName
	}
	return nil
}

func (c *FakeClient) selectedMailbox() (*FakeMailbox, error) {
	mb, ok := c.srv.mailboxes[c.selected]
	if !ok {
		return nil, errFakeNoSelected
	}
	return mb, nil
}

func (c *FakeClient) UidFetch(seqset *imap.SeqSet, items []imap.FetchItem, ch chan *imap.Message) error {
	defer close(ch)
	if err := c.begin("UidFetch %v %v", c.selected, seqset); err != nil {
		return err
	}

	mb, err := c.selectedMailbox()
	if err != nil {
		c.srv.mu.Unlock()
		return err
	}

	var msgs []*imap.Message
	for i, m := range mb.Messages {
		if !seqContains(seqset, m.UID) {
			continue
		}

		msgs = append(msgs, &imap.Message{
			SeqNum: uint32(i + 1),
			Uid:    m.UID,
			Flags:  append([]string{}, m.Flags...),
			Body: map[*imap.BodySectionName]imap.Literal{
				{}: bytes.NewBuffer(append([]byte{}, m.Body...)),
			},
		})
	}
	c.srv.mu.Unlock()

	for _, msg := range msgs {
		ch <- msg
	}
	return nil
}

func (c *FakeClient) UidSearch(criteria *imap.SearchCriteria) ([]uint32, error) {
	if err := c.begin("UidSearch %v", c.selected); err != nil {
		return nil, err
	}
	defer c.srv.mu.Unlock()

	mb, err := c.selectedMailbox()
	if err != nil {
		return nil, err
	}

	var uids []uint32
outer:
	for _, m := range mb.Messages {
		for _, f := range criteria.WithFlags {
			if !hasFlag(m.Flags, f) {
				continue outer
			}
		}
		for _, f := range criteria.WithoutFlags {
			if hasFlag(m.Flags, f) {
				continue outer
			}
		}
		uids = append(uids, m.UID)
	}
	return uids, nil
}

func (c *FakeClient) copyTo(seqset *imap.SeqSet, dest string, remove bool) error {
	mb, err := c.selectedMailbox()
	if err != nil {
		return err
	}

	target, ok := c.srv.mailboxes[dest]
	if !ok {
		return errFakeNoMailbox
	}

	var kept []*FakeMessage
	for _, m := range mb.Messages {
		if !seqContains(seqset, m.UID) {
			kept = append(kept, m)
			continue
		}

		target.Messages = append(target.Messages, &FakeMessage{
			UID:   target.UidNext,
			Flags: append([]string{}, m.Flags...),
			Body:  m.Body,
		})
		target.UidNext++

		if !remove {
			kept = append(kept, m)
		}
	}
	mb.Messages = kept
	return nil
}

func (c *FakeClient) UidCopy(seqset *imap.SeqSet, dest string) error {
	if err := c.begin("UidCopy %v %v %v", c.selected, seqset, dest); err != nil {
		return err
	}
	defer c.srv.mu.Unlock()

	return c.copyTo(seqset, dest, false)
}

func (c *FakeClient) UidMove(seqset *imap.SeqSet, dest string) error {
	if err := c.begin("UidMove %v %v %v", c.selected, seqset, dest); err != nil {
		return err
	}
	defer c.srv.mu.Unlock()

	return c.copyTo(seqset, dest, true)
}

func (c *FakeClient) UidStore(seqset *imap.SeqSet, item imap.StoreItem, value interface{}, ch chan *imap.Message) error {
	if ch != nil {
		defer close(ch)
	}
	if err := c.begin("UidStore %v %v %v %v", c.selected, seqset, item, value); err != nil {
		return err
	}

	mb, err := c.selectedMailbox()
	if err != nil {
		c.srv.mu.Unlock()
		return err
	}

	op := string(item)
	flags := toStrings(value)

	var updated []*imap.Message
	for i, m := range mb.Messages {
		if !seqContains(seqset, m.UID) {
			continue
		}

		switch {
		case strings.HasPrefix(op, "+"):
			for _, f := range flags {
				if !hasFlag(m.Flags, f) {
					m.Flags = append(m.Flags, f)
				}
			}
		case strings.HasPrefix(op, "-"):
			var kept []string
			for _, f := range m.Flags {
				if !hasFlag(flags, f) {
					kept = append(kept, f)
				}
			}
			m.Flags = kept
		default:
			m.Flags = append([]string{}, flags...)
		}

		if !strings.HasSuffix(op, ".SILENT") {
			updated = append(updated, &imap.Message{SeqNum: uint32(i + 1), Uid: m.UID, Flags: append([]string{}, m.Flags...)})
		}
	}
	c.srv.mu.Unlock()

	if ch != nil {
		for _, msg := range updated {
			ch <- msg
		}
	}
	return nil
}

func (c *FakeClient) Expunge(ch chan uint32) error {
	if ch != nil {
		defer close(ch)
	}
	if err := c.begin("Expunge %v", c.selected); err != nil {
		return err
	}

	mb, err := c.selectedMailbox()
	if err != nil {
		c.srv.mu.Unlock()
		return err
	}

	var kept []*FakeMessage
	var expunged []uint32
	for i, m := range mb.Messages {
		if hasFlag(m.Flags, imap.DeletedFlag) {
			expunged = append(expunged, uint32(i+1))
			continue
		}
		kept = append(kept, m)
	}
	mb.Messages = kept
	c.srv.mu.Unlock()

	if ch != nil {
		// Sequence numbers shift down as each message is removed.
		for i := len(expunged) - 1; i >= 0; i-- {
			ch <- expunged[i]
		}
	}
	return nil
}

func (c *FakeClient) Append(mbox string, flags []string, date time.Time, msg imap.Literal) error {
	body, err := io.ReadAll(msg)
	if err != nil {
		return err
	}

	if err := c.begin("Append %v", mbox); err != nil {
		return err
	}
	defer c.srv.mu.Unlock()

	mb, ok := c.srv.mailboxes[mbox]
	if !ok {
		return errFakeNoMailbox
	}

	mb.Messages = append(mb.Messages, &FakeMessage{UID: mb.UidNext, Flags: append([]string{}, flags...), Body: body})
	mb.UidNext++
	return nil
}

func (c *FakeClient) Mailbox() *imap.MailboxStatus {
	c.srv.mu.Lock()
	defer c.srv.mu.Unlock()

	if c.selected == "" {
		return nil
	}
	return &imap.MailboxStatus{Name: c.selected}
}

func (c *FakeClient) Logout() error {
	c.srv.mu.Lock()
	c.srv.record("Logout")
	c.srv.mu.Unlock()

	c.Kill()
	return nil
}

func (c *FakeClient) LoggedOut() <-chan struct{} {
	return c.loggedOut
}

// FakeFactory hands out FakeClients for a FakeServer. The first Failures
// dial attempts fail.
type FakeFactory struct {
	Server   *FakeServer
	Failures int

	mu       sync.Mutex
	attempts int
	clients  []*FakeClient
}

func (f *FakeFactory) NewClient(cfg *imap2.ClientConfig) (imap2.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.attempts++
	if f.attempts <= f.Failures {
		return nil, errFakeDialFailed
	}

	c := f.Server.NewClient()
	f.clients = append(f.clients, c)
	return c, nil
}

func (f *FakeFactory) Attempts() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.attempts
}

// Last returns the most recently created client, or nil.
func (f *FakeFactory) Last() *FakeClient {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.clients) == 0 {
		return nil
	}
	return f.clients[len(f.clients)-1]
}
