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

// Package api contains the types used to talk to the user API from other
// components.
package api

import (
	"context"

	"github.com/seckrv/synapse/clientapi/auth/authtypes"
	"github.com/seckrv/synapse/setup/config"
)

// QueryAcccessTokenAPI is the subset of the user API that resolves bearer
// access tokens to devices.
type QueryAcccessTokenAPI interface {
	QueryAccessToken(ctx context.Context, req *QueryAccessTokenRequest, res *QueryAccessTokenResponse) error
}

// ClientUserAPI is the user API surface consumed by the client API.
type ClientUserAPI interface {
	QueryAcccessTokenAPI

	QueryAccountByPassword(ctx context.Context, req *QueryAccountByPasswordRequest, res *QueryAccountByPasswordResponse) error
	QueryLocalpartForThreePID(ctx context.Context, req *QueryLocalpartForThreePIDRequest, res *QueryLocalpartForThreePIDResponse) error
	QueryThreePIDsForLocalpart(ctx context.Context, req *QueryThreePIDsForLocalpartRequest, res *QueryThreePIDsForLocalpartResponse) error

	PerformPasswordUpdate(ctx context.Context, req *PerformPasswordUpdateRequest, res *PerformPasswordUpdateResponse) error
	PerformAccountDeactivation(ctx context.Context, req *PerformAccountDeactivationRequest, res *PerformAccountDeactivationResponse) error
	PerformSaveThreePIDAssociation(ctx context.Context, req *PerformSaveThreePIDAssociationRequest, res *struct{}) error
	PerformForgetThreePID(ctx context.Context, req *PerformForgetThreePIDRequest, res *struct{}) error
	PerformDeviceDeletion(ctx context.Context, req *PerformDeviceDeletionRequest, res *PerformDeviceDeletionResponse) error
}

// UserInternalAPI is the full internal API surface, used by admin tooling in
// addition to everything the client API consumes.
type UserInternalAPI interface {
	ClientUserAPI

	PerformAccountCreation(ctx context.Context, req *PerformAccountCreationRequest, res *PerformAccountCreationResponse) error
	PerformDeviceCreation(ctx context.Context, req *PerformDeviceCreationRequest, res *PerformDeviceCreationResponse) error
}

// AccountType is an enum representing the kind of account
type AccountType int

const (
	// AccountTypeUser indicates this is a user account
	AccountTypeUser AccountType = 1
	// AccountTypeAdmin indicates this is an admin account
	AccountTypeAdmin AccountType = 2
	// AccountTypeAppService indicates this is an appservice account
	AccountTypeAppService AccountType = 3
)

// Account represents a Matrix account on this home server.
type Account struct {
	UserID       string            `json:"user_id"`
	Localpart    string            `json:"local_part"`
	ServerName   config.ServerName `json:"server_name"`
	AppServiceID string            `json:"app_service_id"`
	AccountType  AccountType       `json:"account_type"`
	Deactivated  bool              `json:"deactivated"`
}

// Device represents a client's device (mobile, web, etc)
type Device struct {
	ID     string
	UserID string
	// The access_token granted to this device.
	AccessToken string
	DisplayName string
	LastSeenTS  int64
	// The account type of the user this device belongs to. An appservice
	// typed device may act for the accounts it administers without
	// interactive auth.
	AccountType AccountType
	// The appservice this device acts for, if any.
	AppserviceID string
}

type QueryAccessTokenRequest struct {
	AccessToken string
	// AppServiceUserID is the user the appservice is acting as, from the
	// user_id query parameter. Ignored for non-appservice tokens.
	AppServiceUserID string
}

type QueryAccessTokenResponse struct {
	Device *Device
	Err    string // e.g. unknown token
}

type QueryAccountByPasswordRequest struct {
	Localpart         string
	ServerName        config.ServerName
	PlaintextPassword string
}

type QueryAccountByPasswordResponse struct {
	Account *Account
	Exists  bool
}

type QueryLocalpartForThreePIDRequest struct {
	// ThreePID is the normalized address; normalization is owned by the
	// caller so lookups, inserts and deletes share a key space.
	ThreePID string
	Medium   string
}

type QueryLocalpartForThreePIDResponse struct {
	Localpart  string
	ServerName config.ServerName
}

type QueryThreePIDsForLocalpartRequest struct {
	Localpart  string
	ServerName config.ServerName
}

type QueryThreePIDsForLocalpartResponse struct {
	ThreePIDs []authtypes.ThreePID
}

type PerformPasswordUpdateRequest struct {
	Localpart  string
	ServerName config.ServerName
	Password   string
}

type PerformPasswordUpdateResponse struct {
	PasswordUpdated bool
	Account         *Account
}

type PerformAccountDeactivationRequest struct {
	Localpart  string
	ServerName config.ServerName
}

type PerformAccountDeactivationResponse struct {
	AccountDeactivated bool
	// AlreadyDeactivated reports a repeated deactivation: the account is
	// already terminal and nothing was changed.
	AlreadyDeactivated bool
}

type PerformSaveThreePIDAssociationRequest struct {
	ThreePID    string
	Localpart   string
	ServerName  config.ServerName
	Medium      string
	ValidatedAt int64
}

type PerformForgetThreePIDRequest struct {
	ThreePID string
	Medium   string
	// The association is only removed if it is currently owned by this
	// account.
	Localpart  string
	ServerName config.ServerName
}

type PerformDeviceDeletionRequest struct {
	UserID string
	// The devices to delete, or nil to delete all devices.
	DeviceIDs []string
	// The device to skip, if any.
	ExceptDeviceID string
}

type PerformDeviceDeletionResponse struct {
}

type PerformAccountCreationRequest struct {
	AccountType  AccountType
	Localpart    string
	ServerName   config.ServerName
	AppServiceID string
	Password     string
}

type PerformAccountCreationResponse struct {
	AccountCreated bool
	Account        *Account
}

type PerformDeviceCreationRequest struct {
	Localpart   string
	ServerName  config.ServerName
	AccessToken string
	// DeviceID is optional; a new one is generated if nil.
	DeviceID          *string
	DeviceDisplayName *string
	IPAddr            string
	UserAgent         string
}

type PerformDeviceCreationResponse struct {
	DeviceCreated bool
	Device        *Device
}
