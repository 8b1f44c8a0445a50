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

package watch_multi

import (
	"context"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"github.com/vs49688/mailsync/cmd/config"
	"github.com/vs49688/mailsync/cmd/runner"
	"github.com/vs49688/mailsync/cmd/watch"
	"github.com/vs49688/mailsync/mailbox"
	"golang.org/x/sync/errgroup"
)

func RegisterCommand(app *cli.App) *cli.App {
	cfg := config.DefaultMultiConfig()
	app.Commands = append(app.Commands, &cli.Command{
		Name:                   "watch-multi",
		Usage:                  "Watch several accounts described by a configuration file",
		Flags:                  cfg.Parameters(),
		UseShortOptionHandling: true,
		Before: func(context *cli.Context) error {
			return cfg.Resolve()
		},
		Action: func(context *cli.Context) error {
			return run(context, &cfg)
		},
	})
	return app
}

func run(_ *cli.Context, cfg *config.MultiConfig) error {
	if err := cfg.LogConfig.Apply(cfg.Logger); err != nil {
		return err
	}

	managers := make([]*mailbox.Manager, 0, len(cfg.Resolved))
	for i := range cfg.Resolved {
		acct := &cfg.Resolved[i]

		cfg.Logger.WithFields(log.Fields{
			"account": acct.Name,
			"host":    acct.Manager.Connection.HostPort,
			"user":    acct.Manager.User,
			"watch":   acct.Manager.MailboxesToWatch,
		}).Info("starting_account")

		m := mailbox.New(&acct.Manager)
		watch.Subscribe(m, acct.Manager.Logger)
		managers = append(managers, m)
	}

	err := runner.Run(cfg.Logger, func(ctx context.Context) error {
		g, gctx := errgroup.WithContext(ctx)
		for _, m := range managers {
			m := m
			g.Go(func() error { return m.Run(gctx) })
		}
		return g.Wait()
	})

	cfg.Logger.Info("watch_terminated")
	return err
}
