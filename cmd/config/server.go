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
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/99designs/keyring"
	"github.com/emersion/go-sasl"
	"github.com/urfave/cli/v2"
	"github.com/vs49688/mailsync/imap"
	"golang.org/x/oauth2"
)

const (
	AuthMethodLogin = "LOGIN"

	keyringService = "mailsync"
)

var openKeyring = func() (keyring.Keyring, error) {
	return keyring.Open(keyring.Config{
		ServiceName: keyringService,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/mailsync/credentials",
		FilePasswordFunc:         keyring.TerminalPrompt,
		KeychainTrustApplication: true,
	})
}

func flagName(prefix string, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "-" + name
}

func envPrefix(prefix string) string {
	if prefix == "" {
		return "MAILSYNC_"
	}
	return "MAILSYNC_" + strings.ToUpper(strings.ReplaceAll(prefix, "-", "_")) + "_"
}

func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		AuthMethod:    AuthMethodLogin,
		TLSSkipVerify: false,
		Debug:         false,
		OAuth2:        DefaultOAuth2Config(),
	}
}

func (cfg *ServerConfig) makeParameters(lowerPrefix string) []cli.Flag {
	def := DefaultServerConfig()
	upperPrefix := envPrefix(lowerPrefix)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        flagName(lowerPrefix, "url"),
			Usage:       fmt.Sprintf("%v url", lowerPrefix),
			EnvVars:     []string{upperPrefix + "URL"},
			Destination: &cfg.URL,
			Value:       def.URL,
		},
		&cli.StringFlag{
			Name:        flagName(lowerPrefix, "auth-method"),
			Usage:       fmt.Sprintf("%v auth method (login, plain, oauthbearer)", lowerPrefix),
			EnvVars:     []string{upperPrefix + "AUTH_METHOD"},
			Destination: &cfg.AuthMethod,
			Value:       def.AuthMethod,
		},
		&cli.StringFlag{
			Name:        flagName(lowerPrefix, "username"),
			Usage:       fmt.Sprintf("%v username", lowerPrefix),
			EnvVars:     []string{upperPrefix + "USERNAME"},
			Destination: &cfg.Username,
			Value:       def.Username,
		},
		&cli.StringFlag{
			Name:        flagName(lowerPrefix, "password"),
			Usage:       fmt.Sprintf("%v password, or oauth2 refresh token", lowerPrefix),
			EnvVars:     []string{upperPrefix + "PASSWORD"},
			Destination: &cfg.Password,
			Value:       def.Password,
		},
		&cli.StringFlag{
			Name:        flagName(lowerPrefix, "password-file"),
			Usage:       fmt.Sprintf("%v password file", lowerPrefix),
			EnvVars:     []string{upperPrefix + "PASSWORD_FILE"},
			Destination: &cfg.PasswordFile,
			Value:       def.PasswordFile,
		},
		&cli.StringFlag{
			Name:        flagName(lowerPrefix, "systemd-credential"),
			Usage:       fmt.Sprintf("name of the systemd credential holding the %v password", lowerPrefix),
			EnvVars:     []string{upperPrefix + "SYSTEMD_CREDENTIAL"},
			Destination: &cfg.SystemdCredential,
			Value:       def.SystemdCredential,
		},
		&cli.StringFlag{
			Name:        flagName(lowerPrefix, "keyring-key"),
			Usage:       fmt.Sprintf("os keyring entry holding the %v password", lowerPrefix),
			EnvVars:     []string{upperPrefix + "KEYRING_KEY"},
			Destination: &cfg.KeyringKey,
			Value:       def.KeyringKey,
		},
		&cli.BoolFlag{
			Name:        flagName(lowerPrefix, "tls-skip-verify"),
			Usage:       fmt.Sprintf("skip %v tls verification", lowerPrefix),
			EnvVars:     []string{upperPrefix + "TLS_SKIP_VERIFY"},
			Destination: &cfg.TLSSkipVerify,
			Value:       def.TLSSkipVerify,
		},
		&cli.BoolFlag{
			Name:        flagName(lowerPrefix, "debug"),
			Usage:       fmt.Sprintf("display %v debug info", lowerPrefix),
			EnvVars:     []string{upperPrefix + "DEBUG"},
			Destination: &cfg.Debug,
			Value:       def.Debug,
		},
	}

	return append(flags, cfg.OAuth2.Parameters(lowerPrefix)...)
}

// extractURL returns host:port, the path without its leading slash, and
// whether implicit TLS is wanted. schemes maps each accepted scheme to its
// default port and TLS mode.
func extractURL(u *url.URL, schemes map[string]schemeInfo) (string, string, bool, error) {
	info, ok := schemes[strings.ToLower(u.Scheme)]
	if !ok {
		return "", "", false, fmt.Errorf("%w: %v", errInvalidScheme, u.Scheme)
	}

	host := u.Hostname()
	port := u.Port()

	if port == "" {
		port = info.port
	}

	return net.JoinHostPort(host, port), strings.TrimPrefix(u.Path, "/"), info.tls, nil
}

type schemeInfo struct {
	port string
	tls  bool
}

func readSystemdCredential(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return "", fmt.Errorf("%w: %q", errInvalidCredential, name)
	}

	dir := os.Getenv("CREDENTIALS_DIRECTORY")
	if dir == "" {
		return "", errNoCredentialsDir
	}

	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func readKeyring(key string) (string, error) {
	ring, err := openKeyring()
	if err != nil {
		return "", fmt.Errorf("opening keyring: %w", err)
	}

	item, err := ring.Get(key)
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}
	return string(item.Data), nil
}

func (cfg *ServerConfig) validateUserPass(prefix string) (string, string, error) {
	if cfg.Username == "" {
		return "", "", fmt.Errorf("\"%v\" is required when using %v auth", flagName(prefix, "username"), cfg.AuthMethod)
	}

	var password string
	var err error
	switch {
	case cfg.Password != "":
		password = cfg.Password
	case cfg.PasswordFile != "":
		var pass []byte
		pass, err = os.ReadFile(cfg.PasswordFile)
		password = string(pass)
	case cfg.SystemdCredential != "":
		password, err = readSystemdCredential(cfg.SystemdCredential)
	case cfg.KeyringKey != "":
		password, err = readKeyring(cfg.KeyringKey)
	default:
		return "", "", fmt.Errorf("one of the \"%v\", \"%v\", \"%v\" or \"%v\" flags is required",
			flagName(prefix, "password"),
			flagName(prefix, "password-file"),
			flagName(prefix, "systemd-credential"),
			flagName(prefix, "keyring-key"),
		)
	}

	if err != nil {
		return "", "", err
	}

	return cfg.Username, strings.TrimSpace(password), nil
}

// buildAuthenticator maps the auth method onto an imap.Authenticator. Every
// authenticator returned also implements imap.SASLSource.
func (cfg *ServerConfig) buildAuthenticator(prefix string) (imap.Authenticator, error) {
	cfg.AuthMethod = strings.ToUpper(cfg.AuthMethod)

	user, pass, err := cfg.validateUserPass(prefix)
	if err != nil {
		return nil, err
	}

	switch cfg.AuthMethod {
	case "", AuthMethodLogin, "NORMAL":
		return imap.NewNormalAuthenticator(user, pass), nil
	case sasl.Plain:
		return imap.NewSASLAuthenticator(sasl.NewPlainClient("", user, pass)), nil
	case sasl.OAuthBearer:
		if err := cfg.OAuth2.Resolve(); err != nil {
			return nil, err
		}

		ts := cfg.OAuth2.Config.TokenSource(context.Background(), &oauth2.Token{RefreshToken: pass})
		return imap.NewOAuthBearerAuthenticator(user, ts), nil
	default:
		return nil, fmt.Errorf("unsupported auth method: %v", cfg.AuthMethod)
	}
}

func (cfg *ServerConfig) tlsConfig() *tls.Config {
	if !cfg.TLSSkipVerify {
		return nil
	}

	// #nosec G402
	return &tls.Config{InsecureSkipVerify: true}
}
