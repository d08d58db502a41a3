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

package shared

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/seckrv/synapse/clientapi/auth/authtypes"
	"github.com/seckrv/synapse/internal/sqlutil"
	"github.com/seckrv/synapse/setup/config"
	"github.com/seckrv/synapse/userapi/api"
	"github.com/seckrv/synapse/userapi/storage/tables"
)

var (
	// Err3PIDInUse is returned when trying to associate a third-party
	// identifier that already has an owner.
	Err3PIDInUse = errors.New("this third-party identifier is already in use")
	// ErrThreePIDNotFound is returned when no association exists.
	ErrThreePIDNotFound = errors.New("no association exists for this third-party identifier")
	// ErrThreePIDNotOwned is returned when the association belongs to a
	// different account than the caller.
	ErrThreePIDNotOwned = errors.New("this third-party identifier belongs to another account")
)

// Database is a set of statements shared between database engines.
type Database struct {
	DB         *sql.DB
	Writer     sqlutil.Writer
	ServerName config.ServerName

	Accounts  tables.AccountsTable
	Devices   tables.DevicesTable
	ThreePIDs tables.ThreePIDTable

	BcryptCost int
}

// CreateAccount makes a new account with the given login name and password.
// If no password is supplied, the account will be a passwordless account.
func (d *Database) CreateAccount(
	ctx context.Context, localpart string, serverName config.ServerName,
	plaintextPassword, appserviceID string, accountType api.AccountType,
) (acc *api.Account, err error) {
	var hash string
	if plaintextPassword != "" {
		if hash, err = d.hashPassword(plaintextPassword); err != nil {
			return nil, err
		}
	}
	err = d.Writer.Do(d.DB, nil, func(txn *sql.Tx) error {
		acc, err = d.Accounts.InsertAccount(ctx, txn, localpart, serverName, hash, appserviceID, accountType)
		return err
	})
	if err != nil {
		if sqlutil.IsUniqueConstraintViolationErr(err) {
			return nil, sqlutil.ErrUserExists
		}
		return nil, err
	}
	return acc, nil
}

// GetAccountByPassword returns the account associated with the given
// localpart and password. Deactivated accounts are excluded at the query
// level so they can never authenticate again.
func (d *Database) GetAccountByPassword(
	ctx context.Context, localpart string, serverName config.ServerName,
	plaintextPassword string,
) (*api.Account, error) {
	hash, err := d.Accounts.SelectPasswordHash(ctx, localpart, serverName)
	if err != nil {
		return nil, err
	}
	if len(hash) == 0 && len(plaintextPassword) > 0 {
		return nil, bcrypt.ErrHashTooShort
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintextPassword)); err != nil {
		return nil, err
	}
	return d.Accounts.SelectAccountByLocalpart(ctx, localpart, serverName)
}

func (d *Database) GetAccountByLocalpart(
	ctx context.Context, localpart string, serverName config.ServerName,
) (*api.Account, error) {
	return d.Accounts.SelectAccountByLocalpart(ctx, localpart, serverName)
}

// SetPassword sets the account password to the given hash.
func (d *Database) SetPassword(
	ctx context.Context, localpart string, serverName config.ServerName,
	plaintextPassword string,
) error {
	hash, err := d.hashPassword(plaintextPassword)
	if err != nil {
		return err
	}
	return d.Writer.Do(d.DB, nil, func(txn *sql.Tx) error {
		return d.Accounts.UpdatePassword(ctx, txn, localpart, serverName, hash)
	})
}

// DeactivateAccount marks the account terminal. Devices and local threepid
// associations are removed in the same transaction so a failure leaves the
// account fully active rather than half-disabled.
func (d *Database) DeactivateAccount(
	ctx context.Context, localpart string, serverName config.ServerName,
) (alreadyDeactivated bool, err error) {
	account, err := d.Accounts.SelectAccountByLocalpart(ctx, localpart, serverName)
	if err != nil {
		return false, err
	}
	if account.Deactivated {
		return true, nil
	}
	err = d.Writer.Do(d.DB, nil, func(txn *sql.Tx) error {
		threepids, err := d.ThreePIDs.SelectThreePIDsForLocalpart(ctx, txn, localpart, serverName)
		if err != nil {
			return err
		}
		for _, t := range threepids {
			if err = d.ThreePIDs.DeleteThreePID(ctx, txn, t.Address, t.Medium); err != nil {
				return err
			}
		}
		if err = d.Devices.DeleteDevicesByLocalpart(ctx, txn, localpart, serverName, ""); err != nil {
			return err
		}
		return d.Accounts.DeactivateAccount(ctx, txn, localpart, serverName)
	})
	return false, err
}

// SaveThreePIDAssociation saves the association between a third party
// identifier and a localpart. The insert itself is the uniqueness check:
// the table's key over (medium, address) makes concurrent claims of the
// same identifier resolve to exactly one winner.
func (d *Database) SaveThreePIDAssociation(
	ctx context.Context, threepid, localpart string, serverName config.ServerName,
	medium string, validatedAt int64,
) (err error) {
	err = d.Writer.Do(d.DB, nil, func(txn *sql.Tx) error {
		return d.ThreePIDs.InsertThreePID(
			ctx, txn, threepid, medium, localpart, serverName,
			time.Now().UnixMilli(), validatedAt,
		)
	})
	if err != nil && sqlutil.IsUniqueConstraintViolationErr(err) {
		return Err3PIDInUse
	}
	return err
}

// RemoveThreePIDAssociation removes the association only when it is owned by
// the given account. Owner check and delete run in one transaction so a
// concurrent re-add cannot be deleted out from under its new owner.
func (d *Database) RemoveThreePIDAssociation(
	ctx context.Context, threepid string, medium, localpart string, serverName config.ServerName,
) error {
	return d.Writer.Do(d.DB, nil, func(txn *sql.Tx) error {
		ownerLocalpart, ownerServerName, err := d.ThreePIDs.SelectLocalpartForThreePID(ctx, txn, threepid, medium)
		switch {
		case err != nil:
			return err
		case ownerLocalpart == "":
			return ErrThreePIDNotFound
		case ownerLocalpart != localpart || ownerServerName != serverName:
			return ErrThreePIDNotOwned
		}
		return d.ThreePIDs.DeleteThreePID(ctx, txn, threepid, medium)
	})
}

// GetLocalpartForThreePID looks up the localpart associated with a third
// party identifier. Returns an empty localpart if no association exists.
func (d *Database) GetLocalpartForThreePID(
	ctx context.Context, threepid string, medium string,
) (localpart string, serverName config.ServerName, err error) {
	return d.ThreePIDs.SelectLocalpartForThreePID(ctx, nil, threepid, medium)
}

// GetThreePIDsForLocalpart returns the third party identifiers associated
// with the account, in insertion order.
func (d *Database) GetThreePIDsForLocalpart(
	ctx context.Context, localpart string, serverName config.ServerName,
) (threepids []authtypes.ThreePID, err error) {
	return d.ThreePIDs.SelectThreePIDsForLocalpart(ctx, nil, localpart, serverName)
}

// CreateDevice makes a new device associated with the given account. If no
// device ID is given one is generated.
func (d *Database) CreateDevice(
	ctx context.Context, localpart string, serverName config.ServerName,
	deviceID *string, accessToken string, displayName *string, ipAddr, userAgent string,
) (dev *api.Device, err error) {
	id := uuid.NewString()
	if deviceID != nil {
		id = *deviceID
	}
	err = d.Writer.Do(d.DB, nil, func(txn *sql.Tx) error {
		if deviceID != nil {
			// Replace any existing device with the same ID so the new
			// access token supersedes the old one.
			if err := d.Devices.DeleteDevice(ctx, txn, id, localpart, serverName); err != nil && err != sql.ErrNoRows {
				return err
			}
		}
		dev, err = d.Devices.InsertDevice(ctx, txn, id, localpart, serverName, accessToken, displayName, ipAddr, userAgent)
		return err
	})
	return
}

// GetDeviceByAccessToken returns the device matching the given access token.
// Returns sql.ErrNoRows if no matching device was found.
func (d *Database) GetDeviceByAccessToken(
	ctx context.Context, token string,
) (*api.Device, error) {
	return d.Devices.SelectDeviceByToken(ctx, token)
}

// RemoveDevices revokes the given devices for the account.
func (d *Database) RemoveDevices(
	ctx context.Context, localpart string, serverName config.ServerName,
	devices []string,
) error {
	return d.Writer.Do(d.DB, nil, func(txn *sql.Tx) error {
		for _, id := range devices {
			if err := d.Devices.DeleteDevice(ctx, txn, id, localpart, serverName); err != nil && err != sql.ErrNoRows {
				return err
			}
		}
		return nil
	})
}

// RemoveAllDevices revokes devices for the account, keeping the exception if
// given.
func (d *Database) RemoveAllDevices(
	ctx context.Context, localpart string, serverName config.ServerName,
	exceptDeviceID string,
) error {
	return d.Writer.Do(d.DB, nil, func(txn *sql.Tx) error {
		return d.Devices.DeleteDevicesByLocalpart(ctx, txn, localpart, serverName, exceptDeviceID)
	})
}

func (d *Database) hashPassword(plaintext string) (hash string, err error) {
	hashBytes, err := bcrypt.GenerateFromPassword([]byte(plaintext), d.BcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashBytes), nil
}
