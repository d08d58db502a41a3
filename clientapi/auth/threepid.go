// Copyright 2021 The Coddy.org Foundation C.I.C.
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

package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/seckrv/synapse/clientapi/auth/authtypes"
	"github.com/seckrv/synapse/clientapi/httputil"
	"github.com/seckrv/synapse/clientapi/jsonerror"
	"github.com/seckrv/synapse/clientapi/threepid"
	"github.com/seckrv/synapse/internal/util"
	"github.com/seckrv/synapse/setup/config"
	"github.com/seckrv/synapse/userapi/api"
)

// threePIDCredsRequest carries the validation credentials for a third-party
// identifier stage. Clients disagree on the field name so both spellings
// are accepted, the current one winning.
type threePIDCredsRequest struct {
	Creds       *threepid.Credentials `json:"threepid_creds"`
	LegacyCreds *threepid.Credentials `json:"three_pid_creds"`
}

func (r *threePIDCredsRequest) credentials() *threepid.Credentials {
	if r.Creds != nil {
		return r.Creds
	}
	return r.LegacyCreds
}

// LoginTypeEmailIdentity proves ownership of an email address through a
// completed identity-server validation session.
type LoginTypeEmailIdentity struct {
	Config *config.ClientAPI
	Client *http.Client
}

func (t *LoginTypeEmailIdentity) Name() authtypes.LoginType {
	return authtypes.LoginTypeEmailIdentity
}

func (t *LoginTypeEmailIdentity) VerifyAuthDict(ctx context.Context, authBytes []byte, device *api.Device) (interface{}, *util.JSONResponse) {
	return verifyThreePIDCreds(ctx, authBytes, threepid.MediumEmail, t.Config, t.Client)
}

// LoginTypeMSISDN is LoginTypeEmailIdentity for phone numbers.
type LoginTypeMSISDN struct {
	Config *config.ClientAPI
	Client *http.Client
}

func (t *LoginTypeMSISDN) Name() authtypes.LoginType {
	return authtypes.LoginTypeMSISDN
}

func (t *LoginTypeMSISDN) VerifyAuthDict(ctx context.Context, authBytes []byte, device *api.Device) (interface{}, *util.JSONResponse) {
	return verifyThreePIDCreds(ctx, authBytes, threepid.MediumMSISDN, t.Config, t.Client)
}

func verifyThreePIDCreds(
	ctx context.Context, authBytes []byte, wantMedium string,
	cfg *config.ClientAPI, client *http.Client,
) (interface{}, *util.JSONResponse) {
	var r threePIDCredsRequest
	if errRes := httputil.UnmarshalJSON(authBytes, &r); errRes != nil {
		return nil, errRes
	}
	creds := r.credentials()
	if creds == nil {
		return nil, &util.JSONResponse{
			Code: http.StatusBadRequest,
			JSON: jsonerror.MissingParams([]string{"threepid_creds"}),
		}
	}

	verified, assoc, err := threepid.CheckAssociation(ctx, *creds, cfg, client)
	if err != nil {
		var notTrusted threepid.ErrNotTrusted
		if errors.As(err, &notTrusted) {
			return nil, &util.JSONResponse{
				Code: http.StatusBadRequest,
				JSON: jsonerror.NotTrusted(notTrusted.Server),
			}
		}
		util.GetLogger(ctx).WithError(err).Error("threepid.CheckAssociation failed")
		return nil, &util.JSONResponse{
			Code: http.StatusInternalServerError,
			JSON: jsonerror.Unknown("Failed to check threepid association"),
		}
	}
	if !verified {
		return nil, &util.JSONResponse{
			Code: http.StatusBadRequest,
			JSON: jsonerror.ThreePIDAuthFailed("Validation credentials were not accepted"),
		}
	}
	if assoc.Medium != wantMedium {
		return nil, &util.JSONResponse{
			Code: http.StatusBadRequest,
			JSON: jsonerror.ThreePIDAuthFailed("Validated medium does not match this stage"),
		}
	}

	address, err := threepid.NormalizeAddress(assoc.Medium, assoc.Address)
	if err != nil {
		util.GetLogger(ctx).WithError(err).Error("threepid.NormalizeAddress failed")
		return nil, &util.JSONResponse{
			Code: http.StatusInternalServerError,
			JSON: jsonerror.Unknown("Failed to normalize the validated address"),
		}
	}
	return authtypes.ThreePID{
		Address:     address,
		Medium:      assoc.Medium,
		ValidatedAt: assoc.ValidatedAt,
	}, nil
}
