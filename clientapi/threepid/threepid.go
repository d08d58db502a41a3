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

// Package threepid talks to the identity servers that verify ownership of
// third-party identifiers, and owns address normalization.
package threepid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/seckrv/synapse/setup/config"
)

// EmailAssociationRequest represents the request defined at https://matrix.org/docs/spec/client_server/r0.2.0.html#post-matrix-client-r0-register-email-requesttoken
type EmailAssociationRequest struct {
	IDServer    string `json:"id_server"`
	Secret      string `json:"client_secret"`
	Email       string `json:"email"`
	SendAttempt int    `json:"send_attempt"`
}

// MsisdnAssociationRequest is the phone-number equivalent of
// EmailAssociationRequest. The country and number pair is canonicalized to a
// single msisdn before any lookup.
type MsisdnAssociationRequest struct {
	IDServer    string `json:"id_server"`
	Secret      string `json:"client_secret"`
	Country     string `json:"country"`
	PhoneNumber string `json:"phone_number"`
	SendAttempt int    `json:"send_attempt"`
}

// EmailAssociationCheckRequest represents the request defined at https://matrix.org/docs/spec/client_server/r0.2.0.html#post-matrix-client-r0-account-3pid
type EmailAssociationCheckRequest struct {
	Creds Credentials `json:"three_pid_creds"`
	// Older clients spell the key in camel case.
	LegacyCreds Credentials `json:"threePidCreds"`
	Bind        bool        `json:"bind"`
}

// Credentials returns the validation credentials from whichever spelling the
// client used, the current one winning.
func (r *EmailAssociationCheckRequest) Credentials() Credentials {
	if r.Creds.SID != "" || r.Creds.Secret != "" || r.Creds.IDServer != "" {
		return r.Creds
	}
	return r.LegacyCreds
}

// Credentials represents the "three_pid_creds" structure defined at https://matrix.org/docs/spec/client_server/r0.2.0.html#post-matrix-client-r0-account-3pid
type Credentials struct {
	SID      string `json:"sid"`
	IDServer string `json:"id_server"`
	Secret   string `json:"client_secret"`
}

// Association is the verified {medium, address, validated_at} triple an
// identity server hands back for valid credentials.
type Association struct {
	Medium      string `json:"medium"`
	Address     string `json:"address"`
	ValidatedAt int64  `json:"validated_at"`
}

// ErrNotTrusted is an error returned when an identity server isn't in the
// list of trusted servers in the configuration file.
type ErrNotTrusted struct {
	Server string
}

func (e ErrNotTrusted) Error() string {
	return fmt.Sprintf("untrusted server: %s", e.Server)
}

// ErrMalformedResponse is returned when the identity server said the
// credentials were valid but the triple it returned is incomplete. This is
// an upstream fault, not a client error.
type ErrMalformedResponse struct {
	Missing string
}

func (e ErrMalformedResponse) Error() string {
	return fmt.Sprintf("invalid response from identity server: missing %q", e.Missing)
}

// CreateSession requests the creation of a validation session for the given
// email address on the given identity server. Returns the session's ID.
// Returns an error if the identity server isn't trusted.
func CreateSession(
	ctx context.Context, req EmailAssociationRequest, cfg *config.ClientAPI, client *http.Client,
) (string, error) {
	if err := isTrusted(req.IDServer, cfg); err != nil {
		return "", err
	}

	requestURL := fmt.Sprintf("https://%s/_matrix/identity/api/v1/validate/email/requestToken", req.IDServer)
	return postSessionRequest(ctx, requestURL, req, client)
}

// CreateMsisdnSession requests the creation of a validation session for the
// given phone number on the given identity server. Returns the session's ID.
// Returns an error if the identity server isn't trusted.
func CreateMsisdnSession(
	ctx context.Context, req MsisdnAssociationRequest, cfg *config.ClientAPI, client *http.Client,
) (string, error) {
	if err := isTrusted(req.IDServer, cfg); err != nil {
		return "", err
	}

	requestURL := fmt.Sprintf("https://%s/_matrix/identity/api/v1/validate/msisdn/requestToken", req.IDServer)
	return postSessionRequest(ctx, requestURL, req, client)
}

func postSessionRequest(ctx context.Context, requestURL string, body interface{}, client *http.Client) (string, error) {
	reqBody, err := json.Marshal(body)
	if err != nil {
		return "", err
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, requestURL, bytes.NewReader(reqBody))
	if err != nil {
		return "", err
	}
	request.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(request)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close() // nolint: errcheck
	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("identity server responded with %d: %s", resp.StatusCode, string(errBody))
	}

	var sessionResp struct {
		SID string `json:"sid"`
	}
	if err = json.NewDecoder(resp.Body).Decode(&sessionResp); err != nil {
		return "", err
	}
	return sessionResp.SID, nil
}

// CheckAssociation checks the status of an ongoing association validation on
// the identity server named in the credentials. Returns whether the
// credentials were accepted along with the verified association. The guard
// against untrusted servers runs before anything else so a refusal can never
// leave state behind.
func CheckAssociation(
	ctx context.Context, creds Credentials, cfg *config.ClientAPI, client *http.Client,
) (bool, Association, error) {
	if err := isTrusted(creds.IDServer, cfg); err != nil {
		return false, Association{}, err
	}

	requestURL := fmt.Sprintf(
		"https://%s/_matrix/identity/api/v1/3pid/getValidated3pid?sid=%s&client_secret=%s",
		creds.IDServer, url.QueryEscape(creds.SID), url.QueryEscape(creds.Secret),
	)
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return false, Association{}, err
	}
	resp, err := client.Do(request)
	if err != nil {
		return false, Association{}, err
	}
	defer resp.Body.Close() // nolint: errcheck

	var respBody struct {
		Association
		ErrCode string `json:"errcode"`
		Error   string `json:"error"`
	}
	if err = json.NewDecoder(resp.Body).Decode(&respBody); err != nil {
		return false, Association{}, err
	}

	if respBody.ErrCode == "M_SESSION_NOT_VALIDATED" {
		return false, Association{}, nil
	} else if respBody.ErrCode != "" {
		return false, Association{}, fmt.Errorf("%s: %s", respBody.ErrCode, respBody.Error)
	}

	// The identity server said yes; make sure it actually told us what was
	// verified before we store anything.
	switch {
	case respBody.Medium == "":
		return false, Association{}, ErrMalformedResponse{Missing: "medium"}
	case respBody.Address == "":
		return false, Association{}, ErrMalformedResponse{Missing: "address"}
	case respBody.ValidatedAt == 0:
		return false, Association{}, ErrMalformedResponse{Missing: "validated_at"}
	}
	return true, respBody.Association, nil
}

// PublishAssociation publishes a validated association between a third-party
// identifier and a user ID on the identity server that validated it.
func PublishAssociation(ctx context.Context, creds Credentials, userID string, cfg *config.ClientAPI, client *http.Client) error {
	if err := isTrusted(creds.IDServer, cfg); err != nil {
		return err
	}

	reqBody := url.Values{}
	reqBody.Set("sid", creds.SID)
	reqBody.Set("client_secret", creds.Secret)
	reqBody.Set("mxid", userID)

	requestURL := fmt.Sprintf("https://%s/_matrix/identity/api/v1/3pid/bind", creds.IDServer)
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, requestURL, strings.NewReader(reqBody.Encode()))
	if err != nil {
		return err
	}
	request.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := client.Do(request)
	if err != nil {
		return err
	}
	defer resp.Body.Close() // nolint: errcheck
	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("identity server responded with %d: %s", resp.StatusCode, string(errBody))
	}
	return nil
}

// isTrusted checks if a given identity server is part of the list of trusted
// identity servers in the configuration file. Returns an error if it isn't.
func isTrusted(idServer string, cfg *config.ClientAPI) error {
	for _, server := range cfg.TrustedIDServers {
		if idServer == server {
			return nil
		}
	}
	return ErrNotTrusted{Server: idServer}
}
