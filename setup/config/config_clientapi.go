package config

import "fmt"

// ClientAPI contains the settings for the client-facing HTTP API.
type ClientAPI struct {
	Global *Global `yaml:"-"`

	// The identity servers the server is willing to proxy verification
	// requests to. Requests naming any other server are refused.
	TrustedIDServers []string `yaml:"trusted_third_party_id_servers"`

	// How long an in-progress interactive auth session survives without
	// activity before the client has to start over, in milliseconds.
	UserInteractiveTimeoutMS int64 `yaml:"user_interactive_timeout_ms"`
}

func (c *ClientAPI) Defaults(opts DefaultOpts) {
	if opts.Generate {
		c.TrustedIDServers = []string{"matrix.org", "vector.im"}
	}
	c.UserInteractiveTimeoutMS = 5 * 60 * 1000
}

func (c *ClientAPI) Verify(configErrs *ConfigErrors) {
	checkPositive(configErrs, "client_api.user_interactive_timeout_ms", c.UserInteractiveTimeoutMS)
	for i, server := range c.TrustedIDServers {
		checkNotEmpty(configErrs, fmt.Sprintf("client_api.trusted_third_party_id_servers[%d]", i), server)
	}
}
