// Copyright 2017 Vector Creations Ltd
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// ServerName is the name a homeserver is identified by, typically a DNS name.
type ServerName string

// DataSource is a database connection string in URI form, e.g.
// "file:accounts.db" or "postgresql://user@host/db".
type DataSource string

// IsSQLite returns true if the data source refers to a SQLite file.
func (d DataSource) IsSQLite() bool {
	return strings.HasPrefix(string(d), "file:")
}

// IsPostgres returns true if the data source refers to a PostgreSQL database.
func (d DataSource) IsPostgres() bool {
	return strings.HasPrefix(string(d), "postgres")
}

// DatabaseOptions contains the database connection settings for a component.
type DatabaseOptions struct {
	ConnectionString   DataSource `yaml:"connection_string"`
	MaxOpenConnections int        `yaml:"max_open_conns"`
	MaxIdleConnections int        `yaml:"max_idle_conns"`
	ConnMaxLifetimeSec int        `yaml:"conn_max_lifetime"`
}

func (d *DatabaseOptions) Defaults(conns int) {
	d.MaxOpenConnections = conns
	d.MaxIdleConnections = 2
	d.ConnMaxLifetimeSec = -1
}

// Synapse is the master configuration for the whole server.
type Synapse struct {
	Global    Global    `yaml:"global"`
	ClientAPI ClientAPI `yaml:"client_api"`
	UserAPI   UserAPI   `yaml:"user_api"`
	Logging   Logging   `yaml:"logging"`
	Tracing   Tracing   `yaml:"tracing"`
}

// DefaultOpts contains the options passed to Defaults when generating a
// fresh configuration.
type DefaultOpts struct {
	Generate bool
}

func (c *Synapse) Defaults(opts DefaultOpts) {
	c.Global.Defaults(opts)
	c.ClientAPI.Defaults(opts)
	c.UserAPI.Defaults(opts)
	c.Logging.Defaults(opts)
	c.Tracing.Defaults(opts)

	c.Wire()
}

func (c *Synapse) Verify(configErrs *ConfigErrors) {
	for _, verifiable := range []interface {
		Verify(configErrs *ConfigErrors)
	}{
		&c.Global, &c.ClientAPI, &c.UserAPI,
	} {
		verifiable.Verify(configErrs)
	}
}

// Wire repopulates the pointers each component config holds back to the
// global section. Must be called after unmarshalling.
func (c *Synapse) Wire() {
	c.ClientAPI.Global = &c.Global
	c.UserAPI.Global = &c.Global
}

// Load parses the given file as the master configuration.
func Load(configPath string) (*Synapse, error) {
	configData, err := os.ReadFile(configPath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read config file %q", configPath)
	}
	var c Synapse
	c.Defaults(DefaultOpts{})
	if err = yaml.Unmarshal(configData, &c); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}
	c.Wire()

	var configErrs ConfigErrors
	c.Verify(&configErrs)
	if configErrs != nil {
		return nil, fmt.Errorf(
			"loading config failed: %v", strings.Join(configErrs, ", "),
		)
	}
	return &c, nil
}

// Logging controls process log output.
type Logging struct {
	Level string `yaml:"level"`
}

func (c *Logging) Defaults(opts DefaultOpts) {
	c.Level = "info"
}

// ConfigErrors stores problems encountered when parsing a config file.
// It implements the error interface.
type ConfigErrors []string

// Add appends an error to the list of errors in this ConfigErrors.
func (errs *ConfigErrors) Add(str string) {
	*errs = append(*errs, str)
}

func (errs ConfigErrors) Error() string {
	if len(errs) == 1 {
		return errs[0]
	}
	return fmt.Sprintf(
		"%s (and %d other problems)", errs[0], len(errs)-1,
	)
}

// checkNotEmpty verifies the given value is not empty in the configuration.
// If it is, adds an error to the list.
func checkNotEmpty(configErrs *ConfigErrors, key, value string) {
	if value == "" {
		configErrs.Add(fmt.Sprintf("missing config key %q", key))
	}
}

// checkPositive verifies the given value is positive (zero included)
// in the configuration. If it is not, adds an error to the list.
func checkPositive(configErrs *ConfigErrors, key string, value int64) {
	if value < 0 {
		configErrs.Add(fmt.Sprintf("invalid value for config key %q: %d", key, value))
	}
}
