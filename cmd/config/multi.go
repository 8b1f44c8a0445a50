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
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"github.com/vs49688/mailsync/mailbox"
	"gopkg.in/yaml.v2"
)

type ResolvedAccount struct {
	Name    string
	Manager mailbox.Config
}

// MultiConfig is the file format for running several accounts in one
// process. Files ending in .yaml or .yml are read as YAML, anything else
// as JSON.
type MultiConfig struct {
	ConfigPath string `json:"-" yaml:"-"`

	Accounts  map[string]*AccountConfig `json:"accounts,omitempty" yaml:"accounts,omitempty"`
	LogConfig `yaml:",inline"`

	Resolved []ResolvedAccount `json:"-" yaml:"-"`
	Logger   *log.Logger       `json:"-" yaml:"-"`
}

func DefaultMultiConfig() MultiConfig {
	return MultiConfig{
		ConfigPath: "accounts.yaml",
		LogConfig:  DefaultLogConfig(),
		Logger:     log.StandardLogger(),
	}
}

func (cfg *MultiConfig) Parameters() []cli.Flag {
	def := DefaultMultiConfig()
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "path to configuration file, or '-' to read JSON from stdin",
			Value:       def.ConfigPath,
			Destination: &cfg.ConfigPath,
		},
	}
}

func (cfg *MultiConfig) read() ([]byte, error) {
	if cfg.ConfigPath == "" || cfg.ConfigPath == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(cfg.ConfigPath)
}

func (cfg *MultiConfig) isYAML() bool {
	switch strings.ToLower(filepath.Ext(cfg.ConfigPath)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}

// Resolve loads the file and resolves every account, in name order.
func (cfg *MultiConfig) Resolve() error {
	raw, err := cfg.read()
	if err != nil {
		return err
	}

	if cfg.isYAML() {
		err = yaml.UnmarshalStrict(raw, cfg)
	} else {
		err = json.Unmarshal(raw, cfg)
	}

	if err != nil {
		return err
	}

	if len(cfg.Accounts) == 0 {
		return errNoAccounts
	}

	if cfg.Logger == nil {
		cfg.Logger = log.StandardLogger()
	}

	names := make([]string, 0, len(cfg.Accounts))
	for name := range cfg.Accounts {
		names = append(names, name)
	}
	sort.Strings(names)

	cfg.Resolved = make([]ResolvedAccount, 0, len(names))
	for _, name := range names {
		mcfg, err := cfg.Accounts[name].BuildManagerConfig(cfg.Logger.WithField("account", name))
		if err != nil {
			return err
		}

		cfg.Resolved = append(cfg.Resolved, ResolvedAccount{Name: name, Manager: mcfg})
	}

	return nil
}
