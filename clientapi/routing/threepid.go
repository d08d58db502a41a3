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

package routing

import (
	"errors"
	"net/http"

	"github.com/seckrv/synapse/clientapi/auth/authtypes"
	"github.com/seckrv/synapse/clientapi/httputil"
	"github.com/seckrv/synapse/clientapi/jsonerror"
	"github.com/seckrv/synapse/clientapi/threepid"
	"github.com/seckrv/synapse/clientapi/userutil"
	"github.com/seckrv/synapse/internal/util"
	"github.com/seckrv/synapse/setup/config"
	"github.com/seckrv/synapse/userapi/api"
	userdb "github.com/seckrv/synapse/userapi/storage"
)

// ConflictPolicy says what a requestToken endpoint demands of the
// identifier's current ownership before a validation session is opened.
type ConflictPolicy int

const (
	// PolicyRequireUnowned refuses identifiers that are already bound to an
	// account. Used when adding a threepid.
	PolicyRequireUnowned ConflictPolicy = iota
	// PolicyRequireOwned refuses identifiers that no account is bound to.
	// Used for password resets, which need an account to act on.
	PolicyRequireOwned
)

type reqTokenResponse struct {
	SID string `json:"sid"`
}

type ThreePIDsResponse struct {
	ThreePIDs []authtypes.ThreePID `json:"threepids"`
}

// RequestEmailToken implements:
//
//	POST /account/3pid/email/requestToken
//	POST /account/password/email/requestToken
func RequestEmailToken(
	req *http.Request, threePIDAPI api.ClientUserAPI, cfg *config.ClientAPI,
	client *http.Client, policy ConflictPolicy,
) util.JSONResponse {
	var body threepid.EmailAssociationRequest
	if reqErr := httputil.UnmarshalJSONRequest(req, &body); reqErr != nil {
		return *reqErr
	}
	if resErr := checkRequiredParams(map[string]string{
		"email":         body.Email,
		"client_secret": body.Secret,
		"id_server":     body.IDServer,
	}); resErr != nil {
		return *resErr
	}

	address, err := threepid.NormalizeAddress(threepid.MediumEmail, body.Email)
	if err != nil {
		return util.JSONResponse{
			Code: http.StatusBadRequest,
			JSON: jsonerror.BadJSON("The email address is invalid: " + err.Error()),
		}
	}
	body.Email = address

	if resErr := checkOwnershipPolicy(req, threePIDAPI, address, threepid.MediumEmail, policy); resErr != nil {
		return *resErr
	}

	var resp reqTokenResponse
	resp.SID, err = threepid.CreateSession(req.Context(), body, cfg, client)
	return sessionResponse(req, resp, body.IDServer, err)
}

// RequestMsisdnToken implements:
//
//	POST /account/3pid/msisdn/requestToken
//	POST /account/password/msisdn/requestToken
func RequestMsisdnToken(
	req *http.Request, threePIDAPI api.ClientUserAPI, cfg *config.ClientAPI,
	client *http.Client, policy ConflictPolicy,
) util.JSONResponse {
	var body threepid.MsisdnAssociationRequest
	if reqErr := httputil.UnmarshalJSONRequest(req, &body); reqErr != nil {
		return *reqErr
	}
	if resErr := checkRequiredParams(map[string]string{
		"phone_number":  body.PhoneNumber,
		"client_secret": body.Secret,
		"id_server":     body.IDServer,
	}); resErr != nil {
		return *resErr
	}

	msisdn, err := threepid.PhoneNumberToMsisdn(body.Country, body.PhoneNumber)
	if err != nil {
		return util.JSONResponse{
			Code: http.StatusBadRequest,
			JSON: jsonerror.BadJSON("The phone number is invalid: " + err.Error()),
		}
	}

	if resErr := checkOwnershipPolicy(req, threePIDAPI, msisdn, threepid.MediumMSISDN, policy); resErr != nil {
		return *resErr
	}

	var resp reqTokenResponse
	resp.SID, err = threepid.CreateMsisdnSession(req.Context(), body, cfg, client)
	return sessionResponse(req, resp, body.IDServer, err)
}

func checkRequiredParams(params map[string]string) *util.JSONResponse {
	var absent []string
	for name, value := range params {
		if value == "" {
			absent = append(absent, name)
		}
	}
	if len(absent) == 0 {
		return nil
	}
	return &util.JSONResponse{
		Code: http.StatusBadRequest,
		JSON: jsonerror.MissingParams(absent),
	}
}

// checkOwnershipPolicy resolves, fresh on every call, whether the identifier
// is bound to a local account and applies the endpoint's conflict policy.
func checkOwnershipPolicy(
	req *http.Request, threePIDAPI api.ClientUserAPI, address, medium string, policy ConflictPolicy,
) *util.JSONResponse {
	res := &api.QueryLocalpartForThreePIDResponse{}
	err := threePIDAPI.QueryLocalpartForThreePID(req.Context(), &api.QueryLocalpartForThreePIDRequest{
		ThreePID: address,
		Medium:   medium,
	}, res)
	if err != nil {
		util.GetLogger(req.Context()).WithError(err).Error("threePIDAPI.QueryLocalpartForThreePID failed")
		return &util.JSONResponse{
			Code: http.StatusInternalServerError,
			JSON: jsonerror.InternalServerError(),
		}
	}

	owned := len(res.Localpart) > 0
	switch {
	case policy == PolicyRequireUnowned && owned:
		return &util.JSONResponse{
			Code: http.StatusBadRequest,
			JSON: jsonerror.ThreePIDInUse(userdb.Err3PIDInUse.Error()),
		}
	case policy == PolicyRequireOwned && !owned:
		return &util.JSONResponse{
			Code: http.StatusBadRequest,
			JSON: jsonerror.ThreePIDNotFound("No account is associated with this address"),
		}
	}
	return nil
}

func sessionResponse(req *http.Request, resp reqTokenResponse, idServer string, err error) util.JSONResponse {
	switch err.(type) {
	case nil:
	case threepid.ErrNotTrusted:
		util.GetLogger(req.Context()).WithError(err).Error("threepid.CreateSession failed")
		return util.JSONResponse{
			Code: http.StatusBadRequest,
			JSON: jsonerror.NotTrusted(idServer),
		}
	default:
		util.GetLogger(req.Context()).WithError(err).Error("threepid.CreateSession failed")
		return util.JSONResponse{
			Code: http.StatusInternalServerError,
			JSON: jsonerror.InternalServerError(),
		}
	}

	return util.JSONResponse{
		Code: http.StatusOK,
		JSON: resp,
	}
}

// CheckAndSave3PIDAssociation implements POST /account/3pid
func CheckAndSave3PIDAssociation(
	req *http.Request, threePIDAPI api.ClientUserAPI, device *api.Device,
	cfg *config.ClientAPI, client *http.Client,
) util.JSONResponse {
	var body threepid.EmailAssociationCheckRequest
	if reqErr := httputil.UnmarshalJSONRequest(req, &body); reqErr != nil {
		return *reqErr
	}
	creds := body.Credentials()

	// Check if the association has been validated
	verified, assoc, err := threepid.CheckAssociation(req.Context(), creds, cfg, client)
	switch err.(type) {
	case nil:
	case threepid.ErrNotTrusted:
		util.GetLogger(req.Context()).WithError(err).Error("threepid.CheckAssociation failed")
		return util.JSONResponse{
			Code: http.StatusBadRequest,
			JSON: jsonerror.NotTrusted(creds.IDServer),
		}
	default:
		util.GetLogger(req.Context()).WithError(err).Error("threepid.CheckAssociation failed")
		return util.JSONResponse{
			Code: http.StatusInternalServerError,
			JSON: jsonerror.InternalServerError(),
		}
	}

	if !verified {
		return util.JSONResponse{
			Code: http.StatusBadRequest,
			JSON: jsonerror.ThreePIDAuthFailed("Failed to auth 3pid"),
		}
	}

	address, err := threepid.NormalizeAddress(assoc.Medium, assoc.Address)
	if err != nil {
		util.GetLogger(req.Context()).WithError(err).Error("threepid.NormalizeAddress failed")
		return util.JSONResponse{
			Code: http.StatusInternalServerError,
			JSON: jsonerror.InternalServerError(),
		}
	}

	localpart, domain, err := userutil.SplitID(device.UserID)
	if err != nil {
		util.GetLogger(req.Context()).WithError(err).Error("userutil.SplitID failed")
		return util.JSONResponse{
			Code: http.StatusInternalServerError,
			JSON: jsonerror.InternalServerError(),
		}
	}

	// Save the association in the database before publishing it anywhere, so
	// that a failed publish never leaves a dangling public binding.
	if err = threePIDAPI.PerformSaveThreePIDAssociation(req.Context(), &api.PerformSaveThreePIDAssociationRequest{
		ThreePID:    address,
		Localpart:   localpart,
		ServerName:  domain,
		Medium:      assoc.Medium,
		ValidatedAt: assoc.ValidatedAt,
	}, &struct{}{}); err != nil {
		if errors.Is(err, userdb.Err3PIDInUse) {
			return util.JSONResponse{
				Code: http.StatusBadRequest,
				JSON: jsonerror.ThreePIDInUse(userdb.Err3PIDInUse.Error()),
			}
		}
		util.GetLogger(req.Context()).WithError(err).Error("threePIDAPI.PerformSaveThreePIDAssociation failed")
		return util.JSONResponse{
			Code: http.StatusInternalServerError,
			JSON: jsonerror.InternalServerError(),
		}
	}

	res := struct {
		Bound *bool `json:"bound,omitempty"`
	}{}
	if body.Bind {
		// Publish the association on the identity server if requested. The
		// local association has already been stored and stays either way.
		bound := true
		if err = threepid.PublishAssociation(req.Context(), creds, device.UserID, cfg, client); err != nil {
			util.GetLogger(req.Context()).WithError(err).Warn("threepid.PublishAssociation failed")
			bound = false
		}
		res.Bound = &bound
	}

	return util.JSONResponse{
		Code: http.StatusOK,
		JSON: res,
	}
}

// GetAssociated3PIDs implements GET /account/3pid
func GetAssociated3PIDs(
	req *http.Request, threepidAPI api.ClientUserAPI, device *api.Device,
) util.JSONResponse {
	localpart, domain, err := userutil.SplitID(device.UserID)
	if err != nil {
		util.GetLogger(req.Context()).WithError(err).Error("userutil.SplitID failed")
		return util.JSONResponse{
			Code: http.StatusInternalServerError,
			JSON: jsonerror.InternalServerError(),
		}
	}

	res := &api.QueryThreePIDsForLocalpartResponse{}
	err = threepidAPI.QueryThreePIDsForLocalpart(req.Context(), &api.QueryThreePIDsForLocalpartRequest{
		Localpart:  localpart,
		ServerName: domain,
	}, res)
	if err != nil {
		util.GetLogger(req.Context()).WithError(err).Error("threepidAPI.QueryThreePIDsForLocalpart failed")
		return util.JSONResponse{
			Code: http.StatusInternalServerError,
			JSON: jsonerror.InternalServerError(),
		}
	}
	if res.ThreePIDs == nil {
		res.ThreePIDs = []authtypes.ThreePID{}
	}

	return util.JSONResponse{
		Code: http.StatusOK,
		JSON: ThreePIDsResponse{res.ThreePIDs},
	}
}

// Forget3PID implements POST /account/3pid/delete
func Forget3PID(
	req *http.Request, threepidAPI api.ClientUserAPI, device *api.Device,
) util.JSONResponse {
	var body authtypes.ThreePID
	if reqErr := httputil.UnmarshalJSONRequest(req, &body); reqErr != nil {
		return *reqErr
	}

	address, err := threepid.NormalizeAddress(body.Medium, body.Address)
	if err != nil {
		return util.JSONResponse{
			Code: http.StatusBadRequest,
			JSON: jsonerror.BadJSON("The address is invalid: " + err.Error()),
		}
	}

	localpart, domain, err := userutil.SplitID(device.UserID)
	if err != nil {
		util.GetLogger(req.Context()).WithError(err).Error("userutil.SplitID failed")
		return util.JSONResponse{
			Code: http.StatusInternalServerError,
			JSON: jsonerror.InternalServerError(),
		}
	}

	if err := threepidAPI.PerformForgetThreePID(req.Context(), &api.PerformForgetThreePIDRequest{
		ThreePID:   address,
		Medium:     body.Medium,
		Localpart:  localpart,
		ServerName: domain,
	}, &struct{}{}); err != nil {
		switch {
		case errors.Is(err, userdb.ErrThreePIDNotFound):
			return util.JSONResponse{
				Code: http.StatusNotFound,
				JSON: jsonerror.NotFound("The address is not known"),
			}
		case errors.Is(err, userdb.ErrThreePIDNotOwned):
			return util.JSONResponse{
				Code: http.StatusForbidden,
				JSON: jsonerror.Forbidden("The address belongs to a different user"),
			}
		}
		util.GetLogger(req.Context()).WithError(err).Error("threepidAPI.PerformForgetThreePID failed")
		return util.JSONResponse{
			Code: http.StatusInternalServerError,
			JSON: jsonerror.InternalServerError(),
		}
	}

	return util.JSONResponse{
		Code: http.StatusOK,
		JSON: struct{}{},
	}
}
