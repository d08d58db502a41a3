// Copyright 2020 The Coddy.org Foundation C.I.C.
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

package internal

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/seckrv/synapse/internal/eventutil"
	"github.com/seckrv/synapse/internal/util"
	"github.com/seckrv/synapse/setup/config"
	"github.com/seckrv/synapse/userapi/api"
	"github.com/seckrv/synapse/userapi/producers"
	"github.com/seckrv/synapse/userapi/storage"
)

// UserInternalAPI implements api.UserInternalAPI over the user database.
type UserInternalAPI struct {
	DB         storage.UserDatabase
	Config     *config.UserAPI
	ServerName config.ServerName
	// Producer may be nil, in which case no account events are published.
	Producer *producers.AccountEvent
}

func (a *UserInternalAPI) QueryAccessToken(ctx context.Context, req *api.QueryAccessTokenRequest, res *api.QueryAccessTokenResponse) error {
	device, err := a.DB.GetDeviceByAccessToken(ctx, req.AccessToken)
	if err != nil {
		if err == sql.ErrNoRows {
			res.Err = "Unknown token"
			return nil
		}
		return err
	}
	if device.AccountType == api.AccountTypeAppService && req.AppServiceUserID != "" {
		return a.appServiceMasquerade(ctx, device, req.AppServiceUserID, res)
	}
	res.Device = device
	return nil
}

// appServiceMasquerade resolves the user_id an appservice is acting as into
// a dummy device for that user. The target must be a local account
// registered to the same appservice.
func (a *UserInternalAPI) appServiceMasquerade(ctx context.Context, asDevice *api.Device, userID string, res *api.QueryAccessTokenResponse) error {
	localpart, domain, err := splitUserID(userID)
	if err != nil || domain != a.ServerName {
		res.Err = fmt.Sprintf("forbidden: %q is not a local user", userID)
		return nil
	}
	account, err := a.DB.GetAccountByLocalpart(ctx, localpart, domain)
	if err != nil {
		if err == sql.ErrNoRows {
			res.Err = fmt.Sprintf("forbidden: no such user %q", userID)
			return nil
		}
		return err
	}
	if account.AppServiceID == "" || account.AppServiceID != asDevice.AppserviceID {
		res.Err = fmt.Sprintf("forbidden: %q is not administered by this appservice", userID)
		return nil
	}
	res.Device = &api.Device{
		ID:           asDevice.ID,
		UserID:       account.UserID,
		AccessToken:  asDevice.AccessToken,
		AccountType:  api.AccountTypeAppService,
		AppserviceID: asDevice.AppserviceID,
	}
	return nil
}

func (a *UserInternalAPI) QueryAccountByPassword(ctx context.Context, req *api.QueryAccountByPasswordRequest, res *api.QueryAccountByPasswordResponse) error {
	acc, err := a.DB.GetAccountByPassword(ctx, req.Localpart, req.ServerName, req.PlaintextPassword)
	switch err {
	case sql.ErrNoRows: // user does not exist
		return nil
	case nil:
		res.Exists = true
		res.Account = acc
		return nil
	default:
		// The hash didn't match; this is indistinguishable from an unknown
		// user to avoid leaking account existence.
		return nil
	}
}

func (a *UserInternalAPI) QueryLocalpartForThreePID(ctx context.Context, req *api.QueryLocalpartForThreePIDRequest, res *api.QueryLocalpartForThreePIDResponse) error {
	localpart, domain, err := a.DB.GetLocalpartForThreePID(ctx, req.ThreePID, req.Medium)
	if err != nil {
		return err
	}
	res.Localpart = localpart
	res.ServerName = domain
	return nil
}

func (a *UserInternalAPI) QueryThreePIDsForLocalpart(ctx context.Context, req *api.QueryThreePIDsForLocalpartRequest, res *api.QueryThreePIDsForLocalpartResponse) error {
	threepids, err := a.DB.GetThreePIDsForLocalpart(ctx, req.Localpart, req.ServerName)
	if err != nil {
		return err
	}
	res.ThreePIDs = threepids
	return nil
}

func (a *UserInternalAPI) PerformPasswordUpdate(ctx context.Context, req *api.PerformPasswordUpdateRequest, res *api.PerformPasswordUpdateResponse) error {
	if err := a.DB.SetPassword(ctx, req.Localpart, req.ServerName, req.Password); err != nil {
		return err
	}
	res.PasswordUpdated = true
	a.publishUpdate(ctx, req.Localpart, req.ServerName, eventutil.AccountUpdate{
		Type: eventutil.AccountPasswordUpdated,
	})
	return nil
}

func (a *UserInternalAPI) PerformAccountDeactivation(ctx context.Context, req *api.PerformAccountDeactivationRequest, res *api.PerformAccountDeactivationResponse) error {
	alreadyDeactivated, err := a.DB.DeactivateAccount(ctx, req.Localpart, req.ServerName)
	if err != nil {
		return err
	}
	res.AccountDeactivated = true
	res.AlreadyDeactivated = alreadyDeactivated
	if !alreadyDeactivated {
		a.publishUpdate(ctx, req.Localpart, req.ServerName, eventutil.AccountUpdate{
			Type: eventutil.AccountDeactivated,
		})
	}
	return nil
}

func (a *UserInternalAPI) PerformSaveThreePIDAssociation(ctx context.Context, req *api.PerformSaveThreePIDAssociationRequest, res *struct{}) error {
	if err := a.DB.SaveThreePIDAssociation(ctx, req.ThreePID, req.Localpart, req.ServerName, req.Medium, req.ValidatedAt); err != nil {
		return err
	}
	a.publishUpdate(ctx, req.Localpart, req.ServerName, eventutil.AccountUpdate{
		Type:    eventutil.AccountThreePIDAdded,
		Medium:  req.Medium,
		Address: req.ThreePID,
	})
	return nil
}

func (a *UserInternalAPI) PerformForgetThreePID(ctx context.Context, req *api.PerformForgetThreePIDRequest, res *struct{}) error {
	if err := a.DB.RemoveThreePIDAssociation(ctx, req.ThreePID, req.Medium, req.Localpart, req.ServerName); err != nil {
		return err
	}
	a.publishUpdate(ctx, req.Localpart, req.ServerName, eventutil.AccountUpdate{
		Type:    eventutil.AccountThreePIDRemoved,
		Medium:  req.Medium,
		Address: req.ThreePID,
	})
	return nil
}

func (a *UserInternalAPI) PerformDeviceDeletion(ctx context.Context, req *api.PerformDeviceDeletionRequest, res *api.PerformDeviceDeletionResponse) error {
	util.GetLogger(ctx).WithField("user_id", req.UserID).WithField("devices", req.DeviceIDs).Trace("PerformDeviceDeletion")
	localpart, serverName, err := splitUserID(req.UserID)
	if err != nil {
		return err
	}
	if serverName != a.ServerName {
		return fmt.Errorf("cannot delete devices of remote users: got %q expected %q", serverName, a.ServerName)
	}
	if len(req.DeviceIDs) == 0 {
		return a.DB.RemoveAllDevices(ctx, localpart, serverName, req.ExceptDeviceID)
	}
	return a.DB.RemoveDevices(ctx, localpart, serverName, req.DeviceIDs)
}

func (a *UserInternalAPI) PerformAccountCreation(ctx context.Context, req *api.PerformAccountCreationRequest, res *api.PerformAccountCreationResponse) error {
	acc, err := a.DB.CreateAccount(ctx, req.Localpart, req.ServerName, req.Password, req.AppServiceID, req.AccountType)
	if err != nil {
		return err
	}
	res.AccountCreated = true
	res.Account = acc
	return nil
}

func (a *UserInternalAPI) PerformDeviceCreation(ctx context.Context, req *api.PerformDeviceCreationRequest, res *api.PerformDeviceCreationResponse) error {
	dev, err := a.DB.CreateDevice(ctx, req.Localpart, req.ServerName, req.DeviceID, req.AccessToken, req.DeviceDisplayName, req.IPAddr, req.UserAgent)
	if err != nil {
		return err
	}
	res.DeviceCreated = true
	res.Device = dev
	return nil
}

// publishUpdate notifies other components about an account change. Failures
// are logged, never surfaced: the local database is the source of truth and
// consumers catch up from it.
func (a *UserInternalAPI) publishUpdate(ctx context.Context, localpart string, serverName config.ServerName, update eventutil.AccountUpdate) {
	if a.Producer == nil {
		return
	}
	userID := fmt.Sprintf("@%s:%s", localpart, serverName)
	if err := a.Producer.SendAccountUpdate(userID, update); err != nil {
		util.GetLogger(ctx).WithError(err).WithField("user_id", userID).Error("Failed to publish account update")
	}
}

// splitUserID splits "@localpart:domain" into its parts.
func splitUserID(userID string) (string, config.ServerName, error) {
	if len(userID) == 0 || userID[0] != '@' {
		return "", "", fmt.Errorf("invalid user ID %q", userID)
	}
	for i := 1; i < len(userID); i++ {
		if userID[i] == ':' {
			return userID[1:i], config.ServerName(userID[i+1:]), nil
		}
	}
	return "", "", fmt.Errorf("invalid user ID %q: missing server name", userID)
}
