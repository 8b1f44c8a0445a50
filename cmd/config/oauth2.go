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
	"strings"

	"github.com/urfave/cli/v2"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

const (
	OAuth2ProviderGoogle = "google"
	OAuth2ProviderCustom = "custom"
)

var oauthProviderGoogle = oauth2.Config{
	Endpoint: endpoints.Google,
	Scopes:   []string{"https://mail.google.com/"},
}

func DefaultOAuth2Config() OAuth2Config {
	return OAuth2Config{
		Provider: OAuth2ProviderGoogle,
	}
}

func (cfg *OAuth2Config) Parameters(lowerPrefix string) []cli.Flag {
	def := DefaultOAuth2Config()
	upperPrefix := envPrefix(lowerPrefix)

	return []cli.Flag{
		&cli.StringFlag{
			Name:        flagName(lowerPrefix, "oauth2-provider"),
			Usage:       "oauth2 provider (google, custom)",
			EnvVars:     []string{upperPrefix + "OAUTH2_PROVIDER"},
			Destination: &cfg.Provider,
			Value:       def.Provider,
		},
		&cli.StringFlag{
			Name:        flagName(lowerPrefix, "oauth2-client-id"),
			Usage:       "oauth2 client id",
			EnvVars:     []string{upperPrefix + "OAUTH2_CLIENT_ID"},
			Destination: &cfg.ClientID,
		},
		&cli.StringFlag{
			Name:        flagName(lowerPrefix, "oauth2-client-secret"),
			Usage:       "oauth2 client secret",
			EnvVars:     []string{upperPrefix + "OAUTH2_CLIENT_SECRET"},
			Destination: &cfg.ClientSecret,
		},
		&cli.StringFlag{
			Name:        flagName(lowerPrefix, "oauth2-auth-url"),
			Usage:       "oauth2 authorization endpoint (custom provider)",
			EnvVars:     []string{upperPrefix + "OAUTH2_AUTH_URL"},
			Destination: &cfg.AuthURL,
		},
		&cli.StringFlag{
			Name:        flagName(lowerPrefix, "oauth2-token-url"),
			Usage:       "oauth2 token endpoint (custom provider)",
			EnvVars:     []string{upperPrefix + "OAUTH2_TOKEN_URL"},
			Destination: &cfg.TokenURL,
		},
	}
}

// Resolve fills in Config from the provider defaults and any overrides.
func (cfg *OAuth2Config) Resolve() error {
	var base oauth2.Config
	switch strings.ToLower(cfg.Provider) {
	case "", OAuth2ProviderGoogle:
		base = oauthProviderGoogle
	case OAuth2ProviderCustom:
		base = oauth2.Config{}
	default:
		return fmt.Errorf("%w: %v", errUnknownOAuth2, cfg.Provider)
	}

	if cfg.ClientID == "" {
		return errNoOAuth2Client
	}

	base.ClientID = cfg.ClientID
	base.ClientSecret = cfg.ClientSecret

	if cfg.AuthURL != "" {
		base.Endpoint.AuthURL = cfg.AuthURL
	}

	if cfg.TokenURL != "" {
		base.Endpoint.TokenURL = cfg.TokenURL
	}

	if cfg.RedirectURL != "" {
		base.RedirectURL = cfg.RedirectURL
	}

	if len(cfg.Scopes) > 0 {
		base.Scopes = cfg.Scopes
	}

	cfg.Config = base
	return nil
}
