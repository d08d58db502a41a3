package storage

import (
	"context"

	"github.com/seckrv/synapse/clientapi/auth/authtypes"
	"github.com/seckrv/synapse/setup/config"
	"github.com/seckrv/synapse/userapi/api"
	"github.com/seckrv/synapse/userapi/storage/shared"
)

// Re-exported so callers only need the storage package to test for them.
var (
	Err3PIDInUse        = shared.Err3PIDInUse
	ErrThreePIDNotFound = shared.ErrThreePIDNotFound
	ErrThreePIDNotOwned = shared.ErrThreePIDNotOwned
)

// UserDatabase holds the accounts, devices and third-party identifier
// associations of this server's users.
type UserDatabase interface {
	// CreateAccount creates a new account with the given password, which may
	// be empty for passwordless (appservice) accounts. Returns
	// sqlutil.ErrUserExists if the localpart is taken.
	CreateAccount(ctx context.Context, localpart string, serverName config.ServerName, plaintextPassword, appserviceID string, accountType api.AccountType) (*api.Account, error)
	// GetAccountByPassword verifies the password against the stored hash and
	// returns the matching active account. Deactivated accounts never match.
	GetAccountByPassword(ctx context.Context, localpart string, serverName config.ServerName, plaintextPassword string) (*api.Account, error)
	GetAccountByLocalpart(ctx context.Context, localpart string, serverName config.ServerName) (*api.Account, error)
	// SetPassword hashes and stores a new password for the account.
	SetPassword(ctx context.Context, localpart string, serverName config.ServerName, plaintextPassword string) error
	// DeactivateAccount marks the account terminal and removes its devices
	// and local third-party identifier associations. Reports whether the
	// account had already been deactivated.
	DeactivateAccount(ctx context.Context, localpart string, serverName config.ServerName) (alreadyDeactivated bool, err error)

	// SaveThreePIDAssociation creates the association as a single atomic
	// insert-if-absent; returns Err3PIDInUse if the identifier already has
	// an owner.
	SaveThreePIDAssociation(ctx context.Context, threepid, localpart string, serverName config.ServerName, medium string, validatedAt int64) error
	// RemoveThreePIDAssociation deletes the association only if it is owned
	// by the given account; returns ErrThreePIDNotFound or
	// ErrThreePIDNotOwned otherwise and leaves the store unchanged.
	RemoveThreePIDAssociation(ctx context.Context, threepid string, medium, localpart string, serverName config.ServerName) error
	GetLocalpartForThreePID(ctx context.Context, threepid string, medium string) (localpart string, serverName config.ServerName, err error)
	// GetThreePIDsForLocalpart lists associations in insertion order.
	GetThreePIDsForLocalpart(ctx context.Context, localpart string, serverName config.ServerName) (threepids []authtypes.ThreePID, err error)

	CreateDevice(ctx context.Context, localpart string, serverName config.ServerName, deviceID *string, accessToken string, displayName *string, ipAddr, userAgent string) (*api.Device, error)
	GetDeviceByAccessToken(ctx context.Context, token string) (*api.Device, error)
	RemoveDevices(ctx context.Context, localpart string, serverName config.ServerName, devices []string) error
	// RemoveAllDevices deletes the account's devices, optionally keeping one.
	RemoveAllDevices(ctx context.Context, localpart string, serverName config.ServerName, exceptDeviceID string) error
}
