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
	"net/url"

	log "github.com/sirupsen/logrus"
	"github.com/vs49688/mailsync/imap"
	"github.com/vs49688/mailsync/submit"
)

var smtpSchemes = map[string]schemeInfo{
	"smtp":  {port: "587", tls: false},
	"smtps": {port: "465", tls: true},
}

// ResolveSMTP builds a submitter config. name and the username form the
// default sender.
func (cfg *ServerConfig) ResolveSMTP(prefix string, name string, logger *log.Entry) (submit.Config, error) {
	if cfg.URL == "" {
		return submit.Config{}, errNoURL
	}

	u, err := url.Parse(cfg.URL)
	if err != nil {
		return submit.Config{}, err
	}

	hostPort, _, wantTLS, err := extractURL(u, smtpSchemes)
	if err != nil {
		return submit.Config{}, err
	}

	auth, err := cfg.buildAuthenticator(prefix)
	if err != nil {
		return submit.Config{}, err
	}

	return submit.Config{
		HostPort:  hostPort,
		TLS:       wantTLS,
		TLSConfig: cfg.tlsConfig(),
		Auth:      auth.(imap.SASLSource),
		Name:      name,
		User:      cfg.Username,
		Logger:    logger,
	}, nil
}
