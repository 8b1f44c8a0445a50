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

package send

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"time"

	goImap "github.com/emersion/go-imap"
	"github.com/emersion/go-message/mail"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"github.com/vs49688/mailsync/cmd/config"
	"github.com/vs49688/mailsync/mailbox"
	"github.com/vs49688/mailsync/submit"
)

var errNotReady = errors.New("imap session did not become ready")

type Options struct {
	From        string
	To          []string
	Cc          []string
	Bcc         []string
	Subject     string
	Text        string
	TextFile    string
	HTML        string
	HTMLFile    string
	Attachments []string
	SaveTo      string
	Timeout     time.Duration
}

func (o *Options) Parameters() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "from", Usage: "sender address, defaults to \"name <smtp-username>\"", Destination: &o.From},
		&cli.StringSliceFlag{Name: "to", Usage: "recipient. may be repeated"},
		&cli.StringSliceFlag{Name: "cc", Usage: "carbon-copy recipient. may be repeated"},
		&cli.StringSliceFlag{Name: "bcc", Usage: "blind carbon-copy recipient. may be repeated"},
		&cli.StringFlag{Name: "subject", Usage: "message subject", Destination: &o.Subject},
		&cli.StringFlag{Name: "text", Usage: "plain text body", Destination: &o.Text},
		&cli.StringFlag{Name: "text-file", Usage: "read the plain text body from a file", Destination: &o.TextFile},
		&cli.StringFlag{Name: "html", Usage: "html body", Destination: &o.HTML},
		&cli.StringFlag{Name: "html-file", Usage: "read the html body from a file", Destination: &o.HTMLFile},
		&cli.StringSliceFlag{Name: "attach", Usage: "file to attach. may be repeated"},
		&cli.StringFlag{Name: "save-to", Usage: "append the sent message to this imap mailbox", Destination: &o.SaveTo},
		&cli.DurationFlag{Name: "timeout", Usage: "imap connection timeout for --save-to", Value: 30 * time.Second, Destination: &o.Timeout},
	}
}

func (o *Options) Load(ctx *cli.Context) {
	o.To = ctx.StringSlice("to")
	o.Cc = ctx.StringSlice("cc")
	o.Bcc = ctx.StringSlice("bcc")
	o.Attachments = ctx.StringSlice("attach")
}

func RegisterCommand(app *cli.App) *cli.App {
	cfg := config.DefaultConfig()
	opts := Options{}

	app.Commands = append(app.Commands, &cli.Command{
		Name:  "send",
		Usage: "Submit a message over SMTP",
		Flags: append(cfg.Parameters(), opts.Parameters()...),
		Action: func(context *cli.Context) error {
			cfg.Load(context)
			opts.Load(context)
			return send(context.Context, &cfg, &opts)
		},
	})
	return app
}

func parseAddresses(list []string) ([]*mail.Address, error) {
	var out []*mail.Address
	for _, s := range list {
		addrs, err := mail.ParseAddressList(s)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", s, err)
		}
		out = append(out, addrs...)
	}
	return out, nil
}

func readBody(inline string, path string) (string, error) {
	if path == "" {
		return inline, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// BuildMessage turns the command line options into a message. Attachments
// are read from disk when the message is rendered.
func BuildMessage(o *Options) (*submit.Message, error) {
	msg := &submit.Message{
		Subject: o.Subject,
		Date:    time.Now(),
	}

	var err error
	if o.From != "" {
		if msg.From, err = mail.ParseAddress(o.From); err != nil {
			return nil, fmt.Errorf("from: %w", err)
		}
	}

	if msg.To, err = parseAddresses(o.To); err != nil {
		return nil, fmt.Errorf("to: %w", err)
	}

	if msg.Cc, err = parseAddresses(o.Cc); err != nil {
		return nil, fmt.Errorf("cc: %w", err)
	}

	if msg.Bcc, err = parseAddresses(o.Bcc); err != nil {
		return nil, fmt.Errorf("bcc: %w", err)
	}

	if msg.Text, err = readBody(o.Text, o.TextFile); err != nil {
		return nil, err
	}

	if msg.HTML, err = readBody(o.HTML, o.HTMLFile); err != nil {
		return nil, err
	}

	for _, path := range o.Attachments {
		// Empty on failure; Compose falls back to application/octet-stream.
		mimeType, _, _ := mime.ParseMediaType(mime.TypeByExtension(filepath.Ext(path)))

		msg.Attachments = append(msg.Attachments, submit.Attachment{
			Name:     filepath.Base(path),
			MIMEType: mimeType,
			Source:   submit.FilePath(path),
		})
	}

	return msg, nil
}

func saveCopy(ctx context.Context, cfg *config.CliConfig, o *Options, env *submit.Envelope, date time.Time) error {
	mcfg, err := cfg.Account.BuildManagerConfig(log.NewEntry(log.StandardLogger()))
	if err != nil {
		return err
	}
	mcfg.MailboxesToWatch = nil

	m := mailbox.New(&mcfg)

	ctx, cancel := context.WithTimeout(ctx, o.Timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	select {
	case <-m.Ready():
	case <-ctx.Done():
		return errNotReady
	}

	return m.AppendMail(ctx, o.SaveTo, []string{goImap.SeenFlag}, date, env.Data)
}

func send(ctx context.Context, cfg *config.CliConfig, o *Options) error {
	if err := cfg.LogConfig.Apply(log.StandardLogger()); err != nil {
		return err
	}

	scfg, err := cfg.Account.BuildSubmitConfig(log.NewEntry(log.StandardLogger()))
	if err != nil {
		return err
	}

	msg, err := BuildMessage(o)
	if err != nil {
		return err
	}

	sub := submit.New(&scfg)

	env, err := sub.Prepare(msg)
	if err != nil {
		return err
	}

	if err := sub.SendEnvelope(ctx, env); err != nil {
		return err
	}

	if o.SaveTo == "" {
		return nil
	}

	if err := saveCopy(ctx, cfg, o, env, msg.Date); err != nil {
		return fmt.Errorf("saving to %v: %w", o.SaveTo, err)
	}

	log.WithFields(log.Fields{"mailbox": o.SaveTo}).Info("sent_message_saved")
	return nil
}
