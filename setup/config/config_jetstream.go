package config

import "fmt"

// JetStream configures the NATS JetStream connection, or the embedded
// server when no addresses are given.
type JetStream struct {
	// A list of NATS addresses to connect to. If none are specified, an
	// internal NATS server will be used when running in monolith mode only.
	Addresses []string `yaml:"addresses"`
	// The prefix to use for stream names for this homeserver - really only
	// useful if running more than one server on the same NATS deployment.
	TopicPrefix string `yaml:"topic_prefix"`
	// The directory where the stream store will be kept when using the
	// embedded server.
	StoragePath string `yaml:"storage_path"`
	// Keep all storage in memory. This is mostly useful for unit tests.
	InMemory bool `yaml:"in_memory"`
}

// Prefixed returns the given stream name with the configured topic prefix
// applied.
func (c *JetStream) Prefixed(name string) string {
	return fmt.Sprintf("%s%s", c.TopicPrefix, name)
}

// Durable returns a durable consumer name with the topic prefix applied.
func (c *JetStream) Durable(name string) string {
	return c.Prefixed(name)
}

func (c *JetStream) Defaults(opts DefaultOpts) {
	c.Addresses = []string{}
	c.TopicPrefix = "Synapse"
	if opts.Generate {
		c.StoragePath = "./"
		c.InMemory = true
	}
}

func (c *JetStream) Verify(configErrs *ConfigErrors) {}
