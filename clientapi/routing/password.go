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

	"github.com/sirupsen/logrus"

	"github.com/seckrv/synapse/clientapi/auth"
	"github.com/seckrv/synapse/clientapi/auth/authtypes"
	"github.com/seckrv/synapse/clientapi/httputil"
	"github.com/seckrv/synapse/clientapi/jsonerror"
	"github.com/seckrv/synapse/clientapi/userutil"
	"github.com/seckrv/synapse/internal"
	"github.com/seckrv/synapse/internal/util"
	"github.com/seckrv/synapse/userapi/api"
)

// passwordFlows are the ways a caller can prove they may set a new password:
// knowing the old one, or controlling a threepid bound to the account.
var passwordFlows = []authtypes.Flow{
	{Stages: []authtypes.LoginType{authtypes.LoginTypePassword}},
	{Stages: []authtypes.LoginType{authtypes.LoginTypeEmailIdentity}},
	{Stages: []authtypes.LoginType{authtypes.LoginTypeMSISDN}},
}

type newPasswordRequest struct {
	NewPassword   string `json:"new_password"`
	LogoutDevices bool   `json:"logout_devices"`
}

// Password implements POST /account/password
func Password(
	req *http.Request,
	userAPI api.ClientUserAPI,
	device *api.Device,
	userInteractiveAuth *auth.UserInteractive,
) util.JSONResponse {
	ctx := req.Context()
	defer req.Body.Close() // nolint:errcheck
	bodyBytes, err := io.ReadAll(req.Body)
	if err != nil {
		return util.JSONResponse{
			Code: http.StatusBadRequest,
			JSON: jsonerror.BadJSON("The request body could not be read: " + err.Error()),
		}
	}

	fields := logrus.Fields{}
	if device != nil {
		fields["userId"] = device.UserID
	}
	logrus.WithFields(fields).Debug("Changing password")

	result, errRes := userInteractiveAuth.Verify(ctx, passwordFlows, bodyBytes, device)
	if errRes != nil {
		return *errRes
	}

	// Work out whose password the completed stages authorize changing.
	targetUserID, errRes := passwordTargetUser(req, userAPI, device, result)
	if errRes != nil {
		return *errRes
	}

	var r newPasswordRequest
	r.LogoutDevices = true
	if errRes := httputil.UnmarshalJSON(result.Params, &r); errRes != nil {
		return *errRes
	}
	if r.NewPassword == "" {
		return util.JSONResponse{
			Code: http.StatusBadRequest,
			JSON: jsonerror.MissingParams([]string{"new_password"}),
		}
	}
	if err := internal.ValidatePassword(r.NewPassword); err != nil {
		return *internal.PasswordResponse(err)
	}

	localpart, domain, err := userutil.SplitID(targetUserID)
	if err != nil {
		util.GetLogger(ctx).WithError(err).Error("userutil.SplitID failed")
		return util.JSONResponse{
			Code: http.StatusInternalServerError,
			JSON: jsonerror.InternalServerError(),
		}
	}

	passwordReq := &api.PerformPasswordUpdateRequest{
		Localpart:  localpart,
		ServerName: domain,
		Password:   r.NewPassword,
	}
	passwordRes := &api.PerformPasswordUpdateResponse{}
	if err := userAPI.PerformPasswordUpdate(ctx, passwordReq, passwordRes); err != nil {
		util.GetLogger(ctx).WithError(err).Error("PerformPasswordUpdate failed")
		return util.JSONResponse{
			Code: http.StatusInternalServerError,
			JSON: jsonerror.InternalServerError(),
		}
	}
	if !passwordRes.PasswordUpdated {
		util.GetLogger(ctx).Error("Expected password to have been updated but wasn't")
		return util.JSONResponse{
			Code: http.StatusInternalServerError,
			JSON: jsonerror.InternalServerError(),
		}
	}

	// If the request asks us to log out all other devices then
	// ask the user API to do that.
	if r.LogoutDevices {
		logoutReq := &api.PerformDeviceDeletionRequest{
			UserID:    targetUserID,
			DeviceIDs: nil,
		}
		// A password reset via threepid logs out every device; a change by
		// the account holder keeps the session that made it.
		if device != nil && targetUserID == device.UserID {
			logoutReq.ExceptDeviceID = device.ID
		}
		logoutRes := &api.PerformDeviceDeletionResponse{}
		if err := userAPI.PerformDeviceDeletion(ctx, logoutReq, logoutRes); err != nil {
			util.GetLogger(ctx).WithError(err).Error("PerformDeviceDeletion failed")
			return util.JSONResponse{
				Code: http.StatusInternalServerError,
				JSON: jsonerror.InternalServerError(),
			}
		}
	}

	return util.JSONResponse{
		Code: http.StatusOK,
		JSON: struct{}{},
	}
}

// passwordTargetUser resolves the completed authentication stages to the user
// whose password may be changed. The password stage must have authenticated
// the requester themselves; a threepid stage names whichever account the
// verified identifier is bound to.
func passwordTargetUser(
	req *http.Request, userAPI api.ClientUserAPI, device *api.Device, result *auth.AuthResult,
) (string, *util.JSONResponse) {
	if payload, ok := result.Completed[authtypes.LoginTypePassword]; ok {
		userID, ok := payload.(string)
		if !ok {
			return "", unexpectedStagePayload(req, authtypes.LoginTypePassword)
		}
		// The password stage changes the requester's own password, so the
		// requester has to be identified by an access token.
		if device == nil {
			return "", &util.JSONResponse{
				Code: http.StatusUnauthorized,
				JSON: jsonerror.MissingToken("Changing a password by password requires an access token"),
			}
		}
		if userID != device.UserID {
			return "", &util.JSONResponse{
				Code: http.StatusForbidden,
				JSON: jsonerror.Forbidden("The supplied credentials belong to a different user."),
			}
		}
		return userID, nil
	}

	for _, stage := range []authtypes.LoginType{authtypes.LoginTypeEmailIdentity, authtypes.LoginTypeMSISDN} {
		payload, ok := result.Completed[stage]
		if !ok {
			continue
		}
		tp, ok := payload.(authtypes.ThreePID)
		if !ok {
			return "", unexpectedStagePayload(req, stage)
		}
		res := &api.QueryLocalpartForThreePIDResponse{}
		err := userAPI.QueryLocalpartForThreePID(req.Context(), &api.QueryLocalpartForThreePIDRequest{
			ThreePID: tp.Address,
			Medium:   tp.Medium,
		}, res)
		if err != nil {
			util.GetLogger(req.Context()).WithError(err).Error("QueryLocalpartForThreePID failed")
			return "", &util.JSONResponse{
				Code: http.StatusInternalServerError,
				JSON: jsonerror.InternalServerError(),
			}
		}
		if res.Localpart == "" {
			return "", &util.JSONResponse{
				Code: http.StatusNotFound,
				JSON: jsonerror.NotFound("No account is associated with the verified identifier."),
			}
		}
		return userutil.MakeUserID(res.Localpart, res.ServerName), nil
	}

	return "", unexpectedStagePayload(req, "")
}

func unexpectedStagePayload(req *http.Request, stage authtypes.LoginType) *util.JSONResponse {
	util.GetLogger(req.Context()).WithField("stage", stage).Error("Completed auth stages had an unexpected shape")
	return &util.JSONResponse{
		Code: http.StatusInternalServerError,
		JSON: jsonerror.Unknown("Unexpected authentication result"),
	}
}
