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

package session

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/vs49688/mailsync/imap"
	"github.com/vs49688/mailsync/internal"
)

const (
	testInterval = 10 * time.Millisecond
	testWait     = 2 * time.Second
)

func buildTestSession(t *testing.T, failures int, onConnect func(ctx context.Context) error) (*Session, *internal.FakeFactory) {
	srv := internal.NewFakeServer()
	srv.AddMailbox("INBOX", 1)
	srv.AddMailbox("Archive", 1)

	factory := &internal.FakeFactory{Server: srv, Failures: failures}

	s := New(&Config{
		Connection:        imap.ConnectionConfig{HostPort: "localhost:143"},
		Factory:           factory,
		ReconnectInterval: testInterval,
		OnConnect:         onConnect,
	})
	t.Cleanup(func() { _ = s.Close() })

	return s, factory
}

func TestSessionRestartConvergence(t *testing.T) {
	var discoveries int32
	s, factory := buildTestSession(t, 3, func(ctx context.Context) error {
		atomic.AddInt32(&discoveries, 1)
		return nil
	})

	assert.Equal(t, StateDisconnected, s.State())
	s.Start(context.Background())

	assert.Eventually(t, s.IsConnected, testWait, testInterval)
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&discoveries) == 1 }, testWait, testInterval)
	assert.Equal(t, 4, factory.Attempts())

	time.Sleep(5 * testInterval)
	assert.EqualValues(t, 1, atomic.LoadInt32(&discoveries))
	assert.Equal(t, 4, factory.Attempts())
}

func TestSessionReconnectsAfterConnectionLoss(t *testing.T) {
	var discoveries int32
	s, factory := buildTestSession(t, 0, func(ctx context.Context) error {
		atomic.AddInt32(&discoveries, 1)
		return nil
	})

	s.Start(context.Background())
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&discoveries) == 1 }, testWait, testInterval)

	first := factory.Last()
	first.Kill()

	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&discoveries) == 2 && s.IsConnected()
	}, testWait, testInterval)
	assert.Equal(t, 2, factory.Attempts())
	assert.NotSame(t, first, factory.Last())
}

func TestSessionOnConnectFailureRestarts(t *testing.T) {
	var calls int32
	s, factory := buildTestSession(t, 0, func(ctx context.Context) error {
		if atomic.AddInt32(&calls, 1) == 1 {
			return errors.New("discovery failed")
		}
		return nil
	})

	s.Start(context.Background())

	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&calls) == 2 && s.IsConnected()
	}, testWait, testInterval)
	assert.Equal(t, 2, factory.Attempts())
}

func TestSessionNotConnected(t *testing.T) {
	s, _ := buildTestSession(t, 0, nil)

	l, err := s.Lock(context.Background(), "INBOX")
	assert.Nil(t, l)
	assert.ErrorIs(t, err, ErrNotConnected)

	called := false
	err = s.Exec(context.Background(), func(c imap.Client) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.False(t, called)
}

func TestSessionExclusiveAccess(t *testing.T) {
	s, factory := buildTestSession(t, 0, nil)
	s.Start(context.Background())
	assert.Eventually(t, s.IsConnected, testWait, testInterval)

	srv := factory.Server
	srv.ResetCalls()

	first, err := s.Lock(context.Background(), "INBOX")
	assert.NoError(t, err)
	if err != nil {
		t.FailNow()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)

		second, err := s.Lock(context.Background(), "Archive")
		assert.NoError(t, err)
		if err != nil {
			return
		}
		srv.Mark("second acquired")
		second.Release()
	}()

	time.Sleep(5 * testInterval)
	srv.Mark("first released")
	first.Release()
	first.Release()

	<-done

	assert.Equal(t, []string{
		"Select INBOX",
		"first released",
		"Select Archive",
		"second acquired",
	}, srv.Calls())
}

func TestSessionLockCancelledWhileQueued(t *testing.T) {
	s, _ := buildTestSession(t, 0, nil)
	s.Start(context.Background())
	assert.Eventually(t, s.IsConnected, testWait, testInterval)

	held, err := s.Lock(context.Background(), "INBOX")
	assert.NoError(t, err)
	defer held.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 2*testInterval)
	defer cancel()

	_, err = s.Lock(ctx, "Archive")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSessionSelectFailureReleasesToken(t *testing.T) {
	s, _ := buildTestSession(t, 0, nil)
	s.Start(context.Background())
	assert.Eventually(t, s.IsConnected, testWait, testInterval)

	_, err := s.Lock(context.Background(), "Missing")
	assert.Error(t, err)

	l, err := s.Lock(context.Background(), "INBOX")
	assert.NoError(t, err)
	if l != nil {
		l.Release()
	}
}

func TestSessionCloseStopsReconnecting(t *testing.T) {
	s, factory := buildTestSession(t, 1000, nil)
	s.Start(context.Background())

	assert.Eventually(t, func() bool { return factory.Attempts() >= 2 }, testWait, testInterval)
	assert.NoError(t, s.Close())

	time.Sleep(2 * testInterval)
	attempts := factory.Attempts()
	time.Sleep(5 * testInterval)

	assert.Equal(t, attempts, factory.Attempts())
	assert.Equal(t, StateDisconnected, s.State())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "disconnected", StateDisconnected.String())
	assert.Equal(t, "connecting", StateConnecting.String())
	assert.Equal(t, "connected", StateConnected.String())
	assert.Equal(t, "restarting", StateRestarting.String())
}
