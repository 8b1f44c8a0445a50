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
	"errors"
	"time"

	"golang.org/x/oauth2"
)

var (
	errInvalidScheme     = errors.New("invalid uri scheme")
	errNoURL             = errors.New("no url configured")
	errInvalidCredential = errors.New("invalid systemd credential name")
	errNoCredentialsDir  = errors.New("CREDENTIALS_DIRECTORY is not set")
	errNoOAuth2Client    = errors.New("oauth2 client id is required")
	errUnknownOAuth2     = errors.New("unknown oauth2 provider")
	errNoAccounts        = errors.New("no accounts configured")
	errUnsupportedLogFmt = errors.New("unsupported log format")
)

type OAuth2Config struct {
	Provider     string   `json:"provider" yaml:"provider"`
	ClientID     string   `json:"client_id" yaml:"client_id"`
	ClientSecret string   `json:"client_secret" yaml:"client_secret"`
	AuthURL      string   `json:"auth_url" yaml:"auth_url"`
	TokenURL     string   `json:"token_url" yaml:"token_url"`
	RedirectURL  string   `json:"redirect_url" yaml:"redirect_url"`
	Scopes       []string `json:"scopes" yaml:"scopes"`

	Config oauth2.Config `json:"-" yaml:"-"`
}

// ServerConfig describes one IMAP or SMTP endpoint and how to log in to it.
type ServerConfig struct {
	URL               string       `json:"url" yaml:"url"`
	AuthMethod        string       `json:"auth_method" yaml:"auth_method"`
	Username          string       `json:"username" yaml:"username"`
	Password          string       `json:"password,omitempty" yaml:"password,omitempty"`
	PasswordFile      string       `json:"password_file" yaml:"password_file"`
	SystemdCredential string       `json:"systemd_credential" yaml:"systemd_credential"`
	KeyringKey        string       `json:"keyring_key" yaml:"keyring_key"`
	TLSSkipVerify     bool         `json:"tls_skip_verify" yaml:"tls_skip_verify"`
	Debug             bool         `json:"debug" yaml:"debug"`
	OAuth2            OAuth2Config `json:"oauth2" yaml:"oauth2"`
}

type AccountConfig struct {
	Name              string        `json:"name" yaml:"name"`
	IMAP              ServerConfig  `json:"imap" yaml:"imap"`
	SMTP              ServerConfig  `json:"smtp" yaml:"smtp"`
	ReconnectInterval time.Duration `json:"reconnect_interval" yaml:"reconnect_interval"`
	MailboxesToWatch  []string      `json:"watch" yaml:"watch"`
	WatchInterval     time.Duration `json:"watch_interval" yaml:"watch_interval"`
}

type LogConfig struct {
	LogLevel  string `json:"log_level" yaml:"log_level"`
	LogFormat string `json:"log_format" yaml:"log_format"`
	Logging   bool   `json:"logging" yaml:"logging"`
}

type CliConfig struct {
	Account AccountConfig
	LogConfig
}
