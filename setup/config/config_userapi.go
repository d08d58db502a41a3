package config

// UserAPI contains the settings for account, device and threepid storage.
type UserAPI struct {
	Global *Global `yaml:"-"`

	// The cost when hashing passwords.
	BCryptCost int `yaml:"bcrypt_cost"`

	AccountDatabase DatabaseOptions `yaml:"account_database,omitempty"`
}

const DefaultBcryptCost = 10

func (c *UserAPI) Defaults(opts DefaultOpts) {
	c.BCryptCost = DefaultBcryptCost
	c.AccountDatabase.Defaults(10)
	if opts.Generate {
		c.AccountDatabase.ConnectionString = "file:userapi.db"
	}
}

func (c *UserAPI) Verify(configErrs *ConfigErrors) {
	if c.Global.DatabaseOptions.ConnectionString == "" {
		checkNotEmpty(configErrs, "user_api.account_database.connection_string", string(c.AccountDatabase.ConnectionString))
	}
	checkPositive(configErrs, "user_api.bcrypt_cost", int64(c.BCryptCost))
}
