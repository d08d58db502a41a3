package config

// Global contains the settings shared by every component.
type Global struct {
	// The name of this homeserver, used as the domain part of user IDs.
	ServerName ServerName `yaml:"server_name"`

	// The database connection used by all components unless overridden.
	DatabaseOptions DatabaseOptions `yaml:"database,omitempty"`

	JetStream JetStream `yaml:"jetstream"`
	Metrics   Metrics   `yaml:"metrics"`
	Sentry    Sentry    `yaml:"sentry"`
}

func (c *Global) Defaults(opts DefaultOpts) {
	if opts.Generate {
		c.ServerName = "localhost"
		c.DatabaseOptions.ConnectionString = "file:synapse.db"
	}
	c.DatabaseOptions.Defaults(90)
	c.JetStream.Defaults(opts)
	c.Metrics.Defaults(opts)
	c.Sentry.Defaults(opts)
}

func (c *Global) Verify(configErrs *ConfigErrors) {
	checkNotEmpty(configErrs, "global.server_name", string(c.ServerName))
	c.JetStream.Verify(configErrs)
}

// IsLocalServerName returns true if the given server name belongs to this
// homeserver.
func (c *Global) IsLocalServerName(serverName ServerName) bool {
	return c.ServerName == serverName
}

// Metrics configures prometheus metrics collection.
type Metrics struct {
	Enabled bool `yaml:"enabled"`

	// Use basic HTTP authentication to protect /metrics.
	BasicAuth struct {
		Username string `yaml:"username"`
		Password string `yaml:"password"`
	} `yaml:"basic_auth"`
}

func (c *Metrics) Defaults(opts DefaultOpts) {
	c.Enabled = false
}

// Sentry configures panic and server-fault reporting.
type Sentry struct {
	Enabled     bool   `yaml:"enabled"`
	DSN         string `yaml:"dsn"`
	Environment string `yaml:"environment"`
}

func (c *Sentry) Defaults(opts DefaultOpts) {
	c.Enabled = false
}
