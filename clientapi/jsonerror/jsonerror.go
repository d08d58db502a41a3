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

// Package jsonerror contains the JSON error bodies returned to clients,
// keyed by machine-readable error codes.
package jsonerror

import (
	"fmt"
	"strings"
)

// MatrixError represents the "standard error response" in Matrix.
// http://matrix.org/docs/spec/client_server/r0.2.0.html#api-standards
type MatrixError struct {
	ErrCode string `json:"errcode"`
	Err     string `json:"error"`
}

func (e MatrixError) Error() string {
	return fmt.Sprintf("%s: %s", e.ErrCode, e.Err)
}

// InternalServerError returns a 500 Internal Server Error in a matrix-compliant
// format.
func InternalServerError() MatrixError {
	return Unknown("internal server error")
}

// Unknown is an unexpected error
func Unknown(msg string) MatrixError {
	return MatrixError{"M_UNKNOWN", msg}
}

// Forbidden is an error when the client tries to access a resource
// they are not allowed to access.
func Forbidden(msg string) MatrixError {
	return MatrixError{"M_FORBIDDEN", msg}
}

// BadJSON is an error when the client supplies malformed JSON.
func BadJSON(msg string) MatrixError {
	return MatrixError{"M_BAD_JSON", msg}
}

// NotJSON is an error when the client supplies something that is not JSON
// to a JSON endpoint.
func NotJSON(msg string) MatrixError {
	return MatrixError{"M_NOT_JSON", msg}
}

// NotFound is an error when the client tries to access an unknown resource.
func NotFound(msg string) MatrixError {
	return MatrixError{"M_NOT_FOUND", msg}
}

// MissingArgument is an error when the client tries to access a resource
// without providing an argument that is required.
func MissingArgument(msg string) MatrixError {
	return MatrixError{"M_MISSING_ARGUMENT", msg}
}

// MissingParams is an error when the client omits required request
// parameters. The absent parameter names are listed in the message, matching
// the upstream behaviour.
func MissingParams(absent []string) MatrixError {
	return MatrixError{"M_MISSING_PARAM", "Missing params: " + strings.Join(absent, ", ")}
}

// UnknownToken is an error when the access token is unknown.
func UnknownToken(msg string) MatrixError {
	return MatrixError{"M_UNKNOWN_TOKEN", msg}
}

// MissingToken is an error when the client tries to access a resource which
// requires authentication without supplying credentials.
func MissingToken(msg string) MatrixError {
	return MatrixError{"M_MISSING_TOKEN", msg}
}

// WeakPassword is an error which is returned when the client tries to register
// using a weak password. http://matrix.org/docs/spec/client_server/r0.2.0.html#password-based
func WeakPassword(msg string) MatrixError {
	return MatrixError{"M_WEAK_PASSWORD", msg}
}

// InvalidUsername is an error returned when the client tries to register an
// invalid username
func InvalidUsername(msg string) MatrixError {
	return MatrixError{"M_INVALID_USERNAME", msg}
}

// Unrecognized is an error when the server received a request it
// didn't understand, for example an unknown interactive auth stage type.
func Unrecognized(msg string) MatrixError {
	return MatrixError{"M_UNRECOGNIZED", msg}
}

// ThreePIDInUse is an error returned when the client attempts to associate a
// third-party identifier which is already associated with an account.
func ThreePIDInUse(msg string) MatrixError {
	return MatrixError{"M_THREEPID_IN_USE", msg}
}

// ThreePIDNotFound is an error returned when no account is associated with
// the given third-party identifier.
func ThreePIDNotFound(msg string) MatrixError {
	return MatrixError{"M_THREEPID_NOT_FOUND", msg}
}

// ThreePIDAuthFailed is an error returned when the identity server refuses
// the supplied third-party identifier credentials.
func ThreePIDAuthFailed(msg string) MatrixError {
	return MatrixError{"M_THREEPID_AUTH_FAILED", msg}
}

// NotTrusted is an error which is returned when the client asks the server to
// proxy a request to a server that isn't trusted.
func NotTrusted(serverName string) MatrixError {
	return MatrixError{"M_SERVER_NOT_TRUSTED", fmt.Sprintf("Untrusted server '%s'", serverName)}
}
