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

package mailboxes

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"github.com/vs49688/mailsync/cmd/config"
	"github.com/vs49688/mailsync/mailbox"
	"github.com/vs49688/mailsync/registry"
)

var errTimeout = errors.New("timed out waiting for mailbox discovery")

func RegisterCommand(app *cli.App) *cli.App {
	cfg := config.DefaultConfig()
	timeout := 30 * time.Second

	flags := append(cfg.Parameters(), &cli.DurationFlag{
		Name:        "timeout",
		Usage:       "how long to wait for the server",
		Value:       timeout,
		Destination: &timeout,
	})

	app.Commands = append(app.Commands, &cli.Command{
		Name:  "mailboxes",
		Usage: "List the mailboxes on the server with their UIDNEXT cursors",
		Flags: flags,
		Action: func(context *cli.Context) error {
			cfg.Load(context)
			return list(context.Context, &cfg, timeout, os.Stdout)
		},
	})
	return app
}

// Print writes one line per mailbox.
func Print(w io.Writer, states []registry.MailboxState) error {
	for _, st := range states {
		if _, err := fmt.Fprintf(w, "%v\t%v\n", st.Cursor, st.Path); err != nil {
			return err
		}
	}
	return nil
}

func list(ctx context.Context, cfg *config.CliConfig, timeout time.Duration, w io.Writer) error {
	logger := log.StandardLogger()
	if err := cfg.LogConfig.Apply(logger); err != nil {
		return err
	}

	mcfg, err := cfg.Account.BuildManagerConfig(log.NewEntry(logger))
	if err != nil {
		return err
	}
	mcfg.MailboxesToWatch = nil

	m := mailbox.New(&mcfg)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	select {
	case <-m.Ready():
	case <-ctx.Done():
		<-done
		return errTimeout
	}

	states, err := m.ListMailboxes()
	cancel()
	<-done

	if err != nil {
		return err
	}
	return Print(w, states)
}
