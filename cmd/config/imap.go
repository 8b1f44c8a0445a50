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

	"github.com/vs49688/mailsync/imap"
	"github.com/vs49688/mailsync/imap/client"
)

var imapSchemes = map[string]schemeInfo{
	"imap":  {port: "143", tls: false},
	"imaps": {port: "993", tls: true},
}

// ResolveIMAP returns the connection settings, a client factory, and the
// mailbox named in the url path, if any.
func (cfg *ServerConfig) ResolveIMAP(prefix string) (imap.ConnectionConfig, imap.ClientFactory, string, error) {
	if cfg.URL == "" {
		return imap.ConnectionConfig{}, nil, "", errNoURL
	}

	u, err := url.Parse(cfg.URL)
	if err != nil {
		return imap.ConnectionConfig{}, nil, "", err
	}

	hostPort, mailbox, wantTLS, err := extractURL(u, imapSchemes)
	if err != nil {
		return imap.ConnectionConfig{}, nil, "", err
	}

	auth, err := cfg.buildAuthenticator(prefix)
	if err != nil {
		return imap.ConnectionConfig{}, nil, "", err
	}

	return imap.ConnectionConfig{
		HostPort:  hostPort,
		Auth:      auth,
		TLS:       wantTLS,
		TLSConfig: cfg.tlsConfig(),
		Debug:     cfg.Debug,
	}, &client.Factory{}, mailbox, nil
}
