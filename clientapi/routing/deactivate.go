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

package routing

import (
	"io"
	"net/http"

	"github.com/seckrv/synapse/clientapi/auth"
	"github.com/seckrv/synapse/clientapi/auth/authtypes"
	"github.com/seckrv/synapse/clientapi/jsonerror"
	"github.com/seckrv/synapse/clientapi/userutil"
	"github.com/seckrv/synapse/internal/util"
	"github.com/seckrv/synapse/userapi/api"
)

var deactivateFlows = []authtypes.Flow{
	{Stages: []authtypes.LoginType{authtypes.LoginTypePassword}},
}

// Deactivate handles POST requests to /account/deactivate
func Deactivate(
	req *http.Request,
	userInteractiveAuth *auth.UserInteractive,
	accountAPI api.ClientUserAPI,
	device *api.Device,
) util.JSONResponse {
	ctx := req.Context()

	// Appservices deactivate their own users without going through the
	// interactive flow; there is no password to prove.
	if device.AccountType != api.AccountTypeAppService {
		defer req.Body.Close() // nolint:errcheck
		bodyBytes, err := io.ReadAll(req.Body)
		if err != nil {
			return util.JSONResponse{
				Code: http.StatusBadRequest,
				JSON: jsonerror.BadJSON("The request body could not be read: " + err.Error()),
			}
		}

		result, errRes := userInteractiveAuth.Verify(ctx, deactivateFlows, bodyBytes, device)
		if errRes != nil {
			return *errRes
		}
		userID, ok := result.Completed[authtypes.LoginTypePassword].(string)
		if !ok {
			return *unexpectedStagePayload(req, authtypes.LoginTypePassword)
		}
		if userID != device.UserID {
			return util.JSONResponse{
				Code: http.StatusForbidden,
				JSON: jsonerror.Forbidden("The supplied credentials belong to a different user."),
			}
		}
	}

	localpart, serverName, err := userutil.SplitID(device.UserID)
	if err != nil {
		util.GetLogger(ctx).WithError(err).Error("userutil.SplitID failed")
		return util.JSONResponse{
			Code: http.StatusInternalServerError,
			JSON: jsonerror.InternalServerError(),
		}
	}

	var res api.PerformAccountDeactivationResponse
	err = accountAPI.PerformAccountDeactivation(ctx, &api.PerformAccountDeactivationRequest{
		Localpart:  localpart,
		ServerName: serverName,
	}, &res)
	if err != nil {
		util.GetLogger(ctx).WithError(err).Error("accountAPI.PerformAccountDeactivation failed")
		return util.JSONResponse{
			Code: http.StatusInternalServerError,
			JSON: jsonerror.InternalServerError(),
		}
	}
	if res.AlreadyDeactivated {
		util.GetLogger(ctx).WithField("user_id", device.UserID).Debug("Account was already deactivated")
	}

	return util.JSONResponse{
		Code: http.StatusOK,
		JSON: struct{}{},
	}
}
