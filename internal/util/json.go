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

// Package util provides HTTP JSON response plumbing and the per-request
// logger carried on the request context.
package util

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"
)

// JSONResponse represents an HTTP response which contains a JSON body.
type JSONResponse struct {
	// HTTP status code.
	Code int
	// JSON represents the JSON that should be serialized and sent to the client
	JSON interface{}
	// Headers represent any headers that should be sent to the client
	Headers map[string]string
}

// Is2xx returns true if the Code is between 200 and 299.
func (r JSONResponse) Is2xx() bool {
	return r.Code/100 == 2
}

// MessageResponse returns a JSONResponse with a 'message' key containing the
// given text.
func MessageResponse(code int, msg string) JSONResponse {
	return JSONResponse{
		Code: code,
		JSON: struct {
			Message string `json:"message"`
		}{msg},
	}
}

// ErrorResponse returns an HTTP 500 JSONResponse with a 'message' key
// containing the error message.
func ErrorResponse(err error) JSONResponse {
	return MessageResponse(http.StatusInternalServerError, err.Error())
}

// RespondWithJSON serializes the given response and writes it, along with any
// custom headers, to the ResponseWriter.
func RespondWithJSON(w http.ResponseWriter, res JSONResponse) {
	resBytes, err := json.Marshal(res.JSON)
	if err != nil {
		res = ErrorResponse(err)
		resBytes, _ = json.Marshal(res.JSON)
	}
	w.Header().Set("Content-Type", "application/json")
	for h, val := range res.Headers {
		w.Header().Set(h, val)
	}
	w.WriteHeader(res.Code)
	w.Write(resBytes) // nolint:errcheck
}

type contextKeys string

const ctxValueLogger = contextKeys("logger")

// GetLogger retrieves the logrus logger from the supplied context. Always
// returns a logger, even if one wasn't attached to the context.
func GetLogger(ctx context.Context) *logrus.Entry {
	l := ctx.Value(ctxValueLogger)
	if entry, ok := l.(*logrus.Entry); ok {
		return entry
	}
	return logrus.NewEntry(logrus.StandardLogger())
}

// ContextWithLogger returns a new context which has the given logger attached.
func ContextWithLogger(ctx context.Context, l *logrus.Entry) context.Context {
	return context.WithValue(ctx, ctxValueLogger, l)
}

// RequestWithLogging returns the given request with a field-annotated logger
// attached to its context.
func RequestWithLogging(req *http.Request) *http.Request {
	logger := logrus.NewEntry(logrus.StandardLogger()).WithFields(logrus.Fields{
		"req.method": req.Method,
		"req.path":   req.URL.Path,
	})
	return req.WithContext(ContextWithLogger(req.Context(), logger))
}
