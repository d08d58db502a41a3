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
	"fmt"
	"net/http"

	"github.com/getsentry/sentry-go"
	"github.com/opentracing/opentracing-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/seckrv/synapse/clientapi/auth"
	"github.com/seckrv/synapse/clientapi/jsonerror"
	"github.com/seckrv/synapse/internal/util"
	userapi "github.com/seckrv/synapse/userapi/api"
)

var requestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "synapse",
		Subsystem: "clientapi",
		Name:      "requests_total",
		Help:      "Total number of client API requests by handler and status code.",
	},
	[]string{"handler", "code"},
)

// MakeAuthAPI turns a util.JSONResponse-returning function into an
// http.Handler which authenticates the request and hands the resolved
// device to the handler.
func MakeAuthAPI(
	metricsName string, userAPI userapi.QueryAcccessTokenAPI,
	f func(*http.Request, *userapi.Device) util.JSONResponse,
) http.Handler {
	h := func(req *http.Request) util.JSONResponse {
		logger := util.GetLogger(req.Context())
		device, errRes := auth.VerifyUserFromRequest(req, userAPI)
		if errRes != nil {
			logger.Debugf("VerifyUserFromRequest %s -> HTTP %d", req.RemoteAddr, errRes.Code)
			return *errRes
		}
		logger = logger.WithField("user_id", device.UserID)
		req = req.WithContext(util.ContextWithLogger(req.Context(), logger))

		// add the user to Sentry, if enabled
		hub := sentry.GetHubFromContext(req.Context())
		if hub != nil {
			hub = hub.Clone()
			hub.Scope().SetUser(sentry.User{Username: device.UserID})
			hub.Scope().SetTag("device_id", device.ID)
		}
		defer func() {
			if r := recover(); r != nil {
				if hub != nil {
					hub.CaptureException(fmt.Errorf("%s panicked", req.URL.Path))
				}
				// re-panic to restore the original stack for the outer recovery
				panic(r)
			}
		}()

		res := f(req, device)
		if res.Code >= 500 && hub != nil {
			hub.CaptureException(fmt.Errorf("%s returned HTTP %d", req.URL.Path, res.Code))
		}
		return res
	}
	return MakeExternalAPI(metricsName, h)
}

// MakeOptionalAuthAPI is MakeAuthAPI for endpoints that also serve callers
// with no session, such as credential recovery. A request without an access
// token runs the handler with a nil device; a token that is present must
// still resolve to one.
func MakeOptionalAuthAPI(
	metricsName string, userAPI userapi.QueryAcccessTokenAPI,
	f func(*http.Request, *userapi.Device) util.JSONResponse,
) http.Handler {
	withAuth := MakeAuthAPI(metricsName, userAPI, f)
	withoutAuth := MakeExternalAPI(metricsName, func(req *http.Request) util.JSONResponse {
		return f(req, nil)
	})
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if _, err := auth.ExtractAccessToken(req); err != nil {
			withoutAuth.ServeHTTP(w, req)
			return
		}
		withAuth.ServeHTTP(w, req)
	})
}

// MakeExternalAPI turns a util.JSONResponse-returning function into an
// http.Handler, wrapping it with request logging, panic recovery, a tracing
// span and request counting.
func MakeExternalAPI(metricsName string, f func(*http.Request) util.JSONResponse) http.Handler {
	withSpan := func(w http.ResponseWriter, req *http.Request) {
		span := opentracing.StartSpan(metricsName)
		defer span.Finish()
		req = req.WithContext(opentracing.ContextWithSpan(req.Context(), span))

		req = util.RequestWithLogging(req)
		logger := util.GetLogger(req.Context())
		defer func() {
			if r := recover(); r != nil {
				logger.WithField("panic", r).Error("Request handler panicked")
				res := util.JSONResponse{
					Code: http.StatusInternalServerError,
					JSON: jsonerror.InternalServerError(),
				}
				requestsTotal.WithLabelValues(metricsName, fmt.Sprintf("%d", res.Code)).Inc()
				util.RespondWithJSON(w, res)
			}
		}()

		res := f(req)
		requestsTotal.WithLabelValues(metricsName, fmt.Sprintf("%d", res.Code)).Inc()
		util.RespondWithJSON(w, res)
	}
	return http.HandlerFunc(withSpan)
}

// WrapHandlerInBasicAuth adds basic auth to a handler. Only used for
// /metrics when metrics_basic_auth is configured.
type BasicAuth struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

func WrapHandlerInBasicAuth(h http.Handler, b BasicAuth) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if b.Username != "" && b.Password != "" {
			user, pass, ok := r.BasicAuth()
			if !ok || user != b.Username || pass != b.Password {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
		}
		h.ServeHTTP(w, r)
	}
}

// WrapHandlerInCORS adds CORS headers to all responses, including all error
// responses, as the client API is meant to be called from browsers.
func WrapHandlerInCORS(h http.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Origin, X-Requested-With, Content-Type, Accept, Authorization")

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			// Its easiest just to always return a 200 OK for everything. Whether
			// this is technically correct or not is a question, but in the end this
			// is what a lot of other people do (including synapse) and the clients
			// are perfectly happy with it.
			w.WriteHeader(http.StatusOK)
		} else {
			h.ServeHTTP(w, r)
		}
	}
}
