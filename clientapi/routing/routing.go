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
	"net/http"

	"github.com/seckrv/synapse/clientapi/auth"
	"github.com/seckrv/synapse/internal/httputil"
	"github.com/seckrv/synapse/internal/util"
	"github.com/seckrv/synapse/setup/config"
	userapi "github.com/seckrv/synapse/userapi/api"
)

// Setup registers HTTP handlers with the given ServeMux.
//
// Due to Setup being used to call many other functions, a gocyclo nolint is
// applied:
// nolint: gocyclo
func Setup(
	routers httputil.Routers,
	cfg *config.Synapse,
	userAPI userapi.ClientUserAPI,
	userInteractiveAuth *auth.UserInteractive,
	client *http.Client,
) {
	v3mux := routers.Client.PathPrefix("/{apiversion:(?:r0|v3)}/").Subrouter()

	v3mux.Handle("/account/whoami",
		httputil.MakeAuthAPI("whoami", userAPI, func(req *http.Request, device *userapi.Device) util.JSONResponse {
			return Whoami(req, device)
		}),
	).Methods(http.MethodGet, http.MethodOptions)

	// Password changes must stay reachable without a token: a locked-out
	// user resets through the threepid stages, so the requester is only
	// resolved when a token is supplied.
	v3mux.Handle("/account/password",
		httputil.MakeOptionalAuthAPI("password", userAPI, func(req *http.Request, device *userapi.Device) util.JSONResponse {
			return Password(req, userAPI, device, userInteractiveAuth)
		}),
	).Methods(http.MethodPost, http.MethodOptions)

	v3mux.Handle("/account/password/email/requestToken",
		httputil.MakeExternalAPI("password_email_requesttoken", func(req *http.Request) util.JSONResponse {
			return RequestEmailToken(req, userAPI, &cfg.ClientAPI, client, PolicyRequireOwned)
		}),
	).Methods(http.MethodPost, http.MethodOptions)

	v3mux.Handle("/account/password/msisdn/requestToken",
		httputil.MakeExternalAPI("password_msisdn_requesttoken", func(req *http.Request) util.JSONResponse {
			return RequestMsisdnToken(req, userAPI, &cfg.ClientAPI, client, PolicyRequireOwned)
		}),
	).Methods(http.MethodPost, http.MethodOptions)

	v3mux.Handle("/account/deactivate",
		httputil.MakeAuthAPI("deactivate", userAPI, func(req *http.Request, device *userapi.Device) util.JSONResponse {
			return Deactivate(req, userInteractiveAuth, userAPI, device)
		}),
	).Methods(http.MethodPost, http.MethodOptions)

	v3mux.Handle("/account/3pid",
		httputil.MakeAuthAPI("account_3pid", userAPI, func(req *http.Request, device *userapi.Device) util.JSONResponse {
			return GetAssociated3PIDs(req, userAPI, device)
		}),
	).Methods(http.MethodGet, http.MethodOptions)

	v3mux.Handle("/account/3pid",
		httputil.MakeAuthAPI("account_3pid", userAPI, func(req *http.Request, device *userapi.Device) util.JSONResponse {
			return CheckAndSave3PIDAssociation(req, userAPI, device, &cfg.ClientAPI, client)
		}),
	).Methods(http.MethodPost, http.MethodOptions)

	v3mux.Handle("/account/3pid/delete",
		httputil.MakeAuthAPI("account_3pid_delete", userAPI, func(req *http.Request, device *userapi.Device) util.JSONResponse {
			return Forget3PID(req, userAPI, device)
		}),
	).Methods(http.MethodPost, http.MethodOptions)

	v3mux.Handle("/account/3pid/email/requestToken",
		httputil.MakeExternalAPI("account_3pid_email_requesttoken", func(req *http.Request) util.JSONResponse {
			return RequestEmailToken(req, userAPI, &cfg.ClientAPI, client, PolicyRequireUnowned)
		}),
	).Methods(http.MethodPost, http.MethodOptions)

	v3mux.Handle("/account/3pid/msisdn/requestToken",
		httputil.MakeExternalAPI("account_3pid_msisdn_requesttoken", func(req *http.Request) util.JSONResponse {
			return RequestMsisdnToken(req, userAPI, &cfg.ClientAPI, client, PolicyRequireUnowned)
		}),
	).Methods(http.MethodPost, http.MethodOptions)
}
