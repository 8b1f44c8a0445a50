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

package config

import (
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"github.com/vs49688/mailsync/mailbox"
	"github.com/vs49688/mailsync/session"
	"github.com/vs49688/mailsync/submit"
)

func DefaultAccountConfig() AccountConfig {
	return AccountConfig{
		IMAP:              DefaultServerConfig(),
		SMTP:              DefaultServerConfig(),
		ReconnectInterval: session.DefaultReconnectInterval,
		WatchInterval:     mailbox.DefaultWatchInterval,
	}
}

func DefaultLogConfig() LogConfig {
	return LogConfig{
		LogLevel:  "info",
		LogFormat: "text",
		Logging:   true,
	}
}

func DefaultConfig() CliConfig {
	return CliConfig{
		Account:   DefaultAccountConfig(),
		LogConfig: DefaultLogConfig(),
	}
}

func (cfg *LogConfig) Parameters() []cli.Flag {
	def := DefaultLogConfig()

	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "logging level",
			EnvVars:     []string{"MAILSYNC_LOG_LEVEL"},
			Destination: &cfg.LogLevel,
			Value:       def.LogLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "logging format (text/json)",
			EnvVars:     []string{"MAILSYNC_LOG_FORMAT"},
			Destination: &cfg.LogFormat,
			Value:       def.LogFormat,
		},
		&cli.BoolFlag{
			Name:        "logging",
			Usage:       "enable logging",
			EnvVars:     []string{"MAILSYNC_LOGGING"},
			Destination: &cfg.Logging,
			Value:       def.Logging,
		},
	}
}

// Apply configures logger. An unknown level leaves the current one alone.
func (cfg *LogConfig) Apply(logger *log.Logger) error {
	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}

	switch cfg.LogFormat {
	case "", "text":
		logger.SetFormatter(&log.TextFormatter{})
	case "json":
		logger.SetFormatter(&log.JSONFormatter{})
	default:
		return fmt.Errorf("%w: %v", errUnsupportedLogFmt, cfg.LogFormat)
	}

	if !cfg.Logging {
		logger.SetOutput(io.Discard)
	}
	return nil
}

func (cfg *CliConfig) Parameters() []cli.Flag {
	def := DefaultConfig()

	var flags []cli.Flag
	flags = append(flags, cfg.Account.IMAP.makeParameters("imap")...)
	flags = append(flags, cfg.Account.SMTP.makeParameters("smtp")...)
	flags = append(flags, []cli.Flag{
		&cli.StringFlag{
			Name:        "name",
			Usage:       "display name used as the default sender",
			EnvVars:     []string{"MAILSYNC_NAME"},
			Destination: &cfg.Account.Name,
			Value:       def.Account.Name,
		},
		&cli.DurationFlag{
			Name:        "reconnect-interval",
			Usage:       "delay before reconnecting after a connection failure",
			EnvVars:     []string{"MAILSYNC_RECONNECT_INTERVAL"},
			Destination: &cfg.Account.ReconnectInterval,
			Value:       def.Account.ReconnectInterval,
		},
		&cli.StringSliceFlag{
			Name:    "watch",
			Usage:   "mailbox to watch for new mail. may be repeated",
			EnvVars: []string{"MAILSYNC_WATCH"},
		},
		&cli.DurationFlag{
			Name:        "watch-interval",
			Usage:       "mailbox poll interval",
			EnvVars:     []string{"MAILSYNC_WATCH_INTERVAL"},
			Destination: &cfg.Account.WatchInterval,
			Value:       def.Account.WatchInterval,
		},
	}...)
	flags = append(flags, cfg.LogConfig.Parameters()...)

	return flags
}

// Load copies the flags that have no Destination out of ctx.
func (cfg *CliConfig) Load(ctx *cli.Context) {
	cfg.Account.MailboxesToWatch = append(cfg.Account.MailboxesToWatch, ctx.StringSlice("watch")...)
}

// BuildManagerConfig resolves the IMAP side of the account. A mailbox in
// the url path is watched in addition to MailboxesToWatch.
func (cfg *AccountConfig) BuildManagerConfig(logger *log.Entry) (mailbox.Config, error) {
	def := DefaultAccountConfig()

	conn, factory, urlMailbox, err := cfg.IMAP.ResolveIMAP("imap")
	if err != nil {
		return mailbox.Config{}, err
	}

	watch := append([]string{}, cfg.MailboxesToWatch...)
	if urlMailbox != "" {
		watch = append(watch, urlMailbox)
	}

	mcfg := mailbox.Config{
		Connection:        conn,
		Factory:           factory,
		User:              cfg.IMAP.Username,
		ReconnectInterval: cfg.ReconnectInterval,
		MailboxesToWatch:  watch,
		WatchInterval:     cfg.WatchInterval,
		Logger:            logger,
	}

	if mcfg.ReconnectInterval <= 0 {
		mcfg.ReconnectInterval = def.ReconnectInterval
	}

	if mcfg.WatchInterval <= 0 {
		mcfg.WatchInterval = def.WatchInterval
	}

	return mcfg, nil
}

func (cfg *AccountConfig) BuildSubmitConfig(logger *log.Entry) (submit.Config, error) {
	return cfg.SMTP.ResolveSMTP("smtp", cfg.Name, logger)
}

// LogFields describes the account without secrets.
func (cfg *AccountConfig) LogFields() log.Fields {
	return log.Fields{
		"name":                 cfg.Name,
		"imap_url":             cfg.IMAP.URL,
		"imap_auth_method":     cfg.IMAP.AuthMethod,
		"imap_username":        cfg.IMAP.Username,
		"imap_password_file":   cfg.IMAP.PasswordFile,
		"imap_tls_skip_verify": cfg.IMAP.TLSSkipVerify,
		"imap_debug":           cfg.IMAP.Debug,
		"smtp_url":             cfg.SMTP.URL,
		"smtp_auth_method":     cfg.SMTP.AuthMethod,
		"smtp_username":        cfg.SMTP.Username,
		"reconnect_interval":   cfg.ReconnectInterval,
		"watch":                cfg.MailboxesToWatch,
		"watch_interval":       cfg.WatchInterval,
	}
}
