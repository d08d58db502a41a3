package config

import (
	jaegerconfig "github.com/uber/jaeger-client-go/config"
)

// Tracing contains the config for tracing the server.
type Tracing struct {
	// Set to true to enable tracer hooks. If false, no tracing is set up.
	Enabled bool `yaml:"enabled"`
	// The config for the jaeger opentracing reporter.
	Jaeger jaegerconfig.Configuration `yaml:"jaeger"`
}

func (c *Tracing) Defaults(opts DefaultOpts) {
	c.Enabled = false
	c.Jaeger = jaegerconfig.Configuration{}
}

func (c *Tracing) Verify(configErrs *ConfigErrors) {}
