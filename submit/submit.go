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

package submit

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"

	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-smtp"
	log "github.com/sirupsen/logrus"
)

var (
	errNoRecipients = errors.New("no recipients")
	errNoSource     = errors.New("no source")
	errNoSender     = errors.New("no sender")
)

type smtpConn struct {
	*smtp.Client
}

func (c smtpConn) Mail(from string) error {
	return c.Client.Mail(from, nil)
}

// DialSMTP connects with implicit TLS or in plaintext, depending on cfg.TLS.
func DialSMTP(cfg *Config) (Conn, error) {
	var c *smtp.Client
	var err error
	if cfg.TLS {
		c, err = smtp.DialTLS(cfg.HostPort, tlsConfig(cfg))
	} else {
		c, err = smtp.Dial(cfg.HostPort)
	}

	if err != nil {
		return nil, err
	}
	return smtpConn{Client: c}, nil
}

func tlsConfig(cfg *Config) *tls.Config {
	if cfg.TLSConfig != nil {
		return cfg.TLSConfig
	}

	host, _, err := net.SplitHostPort(cfg.HostPort)
	if err != nil {
		host = cfg.HostPort
	}
	return &tls.Config{ServerName: host}
}

func New(cfg *Config) *Submitter {
	return NewWithDialer(cfg, DialSMTP)
}

func NewWithDialer(cfg *Config, dial Dialer) *Submitter {
	ourCfg := *cfg
	if ourCfg.Logger == nil {
		ourCfg.Logger = log.NewEntry(log.StandardLogger())
	}

	return &Submitter{cfg: ourCfg, dial: dial}
}

func (s *Submitter) log() *log.Entry {
	return s.cfg.Logger.WithFields(log.Fields{
		"smtp": s.cfg.HostPort,
		"user": s.cfg.User,
	})
}

// DefaultFrom is "Name <User>".
func (s *Submitter) DefaultFrom() *mail.Address {
	return &mail.Address{Name: s.cfg.Name, Address: s.cfg.User}
}

// Prepare renders msg and collects its envelope.
func (s *Submitter) Prepare(msg *Message) (*Envelope, error) {
	from := msg.From
	if from == nil {
		from = s.DefaultFrom()
	}

	if from.Address == "" {
		return nil, errNoSender
	}

	var rcpts []string
	for _, list := range [][]*mail.Address{msg.To, msg.Cc, msg.Bcc} {
		for _, a := range list {
			rcpts = append(rcpts, a.Address)
		}
	}

	if len(rcpts) == 0 {
		return nil, errNoRecipients
	}

	bb := new(bytes.Buffer)
	if err := Compose(bb, from, msg); err != nil {
		return nil, fmt.Errorf("compose: %w", err)
	}

	return &Envelope{From: from.Address, Recipients: rcpts, Data: bb.Bytes()}, nil
}

func (s *Submitter) Send(ctx context.Context, msg *Message) (*Envelope, error) {
	env, err := s.Prepare(msg)
	if err != nil {
		return nil, err
	}

	if err := s.SendEnvelope(ctx, env); err != nil {
		return nil, err
	}
	return env, nil
}

func (s *Submitter) SendEnvelope(ctx context.Context, env *Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c, err := s.dial(&s.cfg)
	if err != nil {
		s.log().WithError(err).Error("smtp_connect_failed")
		return fmt.Errorf("dial: %w", err)
	}
	defer func() { _ = c.Close() }()

	if !s.cfg.TLS {
		if ok, _ := c.Extension("STARTTLS"); ok {
			if err := c.StartTLS(tlsConfig(&s.cfg)); err != nil {
				return fmt.Errorf("starttls: %w", err)
			}
		}
	}

	if s.cfg.Auth != nil {
		if ok, _ := c.Extension("AUTH"); ok {
			sc, err := s.cfg.Auth.SASLClient()
			if err != nil {
				return fmt.Errorf("auth: %w", err)
			}

			if err := c.Auth(sc); err != nil {
				return fmt.Errorf("auth: %w", err)
			}
		} else {
			s.log().Warn("smtp_auth_unsupported")
		}
	}

	if err := c.Mail(env.From); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}

	for _, rcpt := range env.Recipients {
		if err := c.Rcpt(rcpt); err != nil {
			return fmt.Errorf("rcpt to %v: %w", rcpt, err)
		}
	}

	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}

	if _, err := w.Write(env.Data); err != nil {
		_ = w.Close()
		return fmt.Errorf("data: %w", err)
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("data: %w", err)
	}

	s.log().WithFields(log.Fields{
		"from":       env.From,
		"recipients": len(env.Recipients),
		"size":       len(env.Data),
	}).Info("smtp_message_sent")

	return c.Quit()
}
