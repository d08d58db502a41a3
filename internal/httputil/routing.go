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

package httputil

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/seckrv/synapse/clientapi/jsonerror"
	"github.com/seckrv/synapse/internal/util"
)

// Routers groups the public mux routers by the path prefix they serve.
type Routers struct {
	Client    *mux.Router
	WellKnown *mux.Router
}

func NewRouters() Routers {
	r := Routers{
		Client:    mux.NewRouter().SkipClean(true).PathPrefix(PublicClientPathPrefix).Subrouter().UseEncodedPath(),
		WellKnown: mux.NewRouter().PathPrefix(PublicWellKnownPrefix).Subrouter().UseEncodedPath(),
	}
	r.configureHTTPErrors()
	return r
}

var notAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	util.RespondWithJSON(w, util.JSONResponse{
		Code: http.StatusMethodNotAllowed,
		JSON: jsonerror.Unrecognized("Unsupported request method"),
	})
})

var notFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	util.RespondWithJSON(w, util.JSONResponse{
		Code: http.StatusNotFound,
		JSON: jsonerror.Unrecognized("Unrecognized request"),
	})
})

func (r *Routers) configureHTTPErrors() {
	for _, router := range []*mux.Router{r.Client, r.WellKnown} {
		router.NotFoundHandler = notFoundHandler
		router.MethodNotAllowedHandler = notAllowedHandler
	}
}
