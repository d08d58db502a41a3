package authtypes

// LoginType are specified by login-types
// https://matrix.org/docs/spec/client_server/r0.2.0.html#login-types
type LoginType string

// The relevant login types implemented here
const (
	LoginTypePassword           = "m.login.password"
	LoginTypeEmailIdentity      = "m.login.email.identity"
	LoginTypeMSISDN             = "m.login.msisdn"
	LoginTypeDummy              = "m.login.dummy"
	LoginTypeApplicationService = "m.login.application_service"
)

// Flow is a UIA authentication flow
// https://matrix.org/docs/spec/client_server/r0.3.0.html#user-interactive-authentication-api
type Flow struct {
	Stages []LoginType `json:"stages"`
}
