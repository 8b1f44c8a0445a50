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

package watch

import (
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"github.com/vs49688/mailsync/cmd/config"
	"github.com/vs49688/mailsync/cmd/runner"
	"github.com/vs49688/mailsync/mailbox"
)

func RegisterCommand(app *cli.App) *cli.App {
	cfg := config.DefaultConfig()
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "watch",
		Usage: "Watch mailboxes and report new and deleted mail",
		Flags: cfg.Parameters(),
		Action: func(context *cli.Context) error {
			cfg.Load(context)
			return watch(context, &cfg)
		},
	})
	return app
}

// Subscribe logs every mail and delete event published by m.
func Subscribe(m *mailbox.Manager, logger *log.Entry) {
	m.OnMail(func(mail *mailbox.Mail) {
		fields := log.Fields{
			"mailbox":    mail.Mailbox,
			"uid":        mail.UID,
			"subject":    mail.Subject,
			"message_id": mail.MessageID,
			"date":       mail.Date,
		}

		if len(mail.From) > 0 {
			fields["from"] = mail.From[0].String()
		}

		if len(mail.Attachments) > 0 {
			fields["attachments"] = len(mail.Attachments)
		}

		logger.WithFields(fields).Info("mail_received")
	})

	m.OnDelete(func(ev mailbox.DeleteEvent) {
		logger.WithFields(log.Fields{"mailbox": ev.Mailbox, "uid": ev.UID}).Info("mail_deleted")
	})
}

func watch(_ *cli.Context, cfg *config.CliConfig) error {
	logger := log.StandardLogger()
	if err := cfg.LogConfig.Apply(logger); err != nil {
		return err
	}

	if len(cfg.Account.MailboxesToWatch) == 0 {
		cfg.Account.MailboxesToWatch = []string{"INBOX"}
	}

	log.WithFields(cfg.Account.LogFields()).Info("starting")

	mcfg, err := cfg.Account.BuildManagerConfig(log.NewEntry(logger))
	if err != nil {
		return err
	}

	m := mailbox.New(&mcfg)
	Subscribe(m, mcfg.Logger)

	err = runner.Run(logger, m.Run)
	log.Info("watch_terminated")
	return err
}
