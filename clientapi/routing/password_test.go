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
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/seckrv/synapse/userapi/api"
)

func postJSON(path, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestPasswordChangeWithPasswordStage(t *testing.T) {
	cfg := testConfig()
	userAPI := newFakeUserAPI()
	userAPI.accounts["alice"] = "old-password"
	uia := testUIA(cfg, userAPI, http.DefaultClient)
	device := testDevice("@alice:test", api.AccountTypeUser)

	body := `{
		"new_password": "a-much-better-one",
		"auth": {"type": "m.login.password", "identifier": {"type": "m.id.user", "user": "alice"}, "password": "old-password"}
	}`
	res := Password(postJSON("/account/password", body), userAPI, device, uia)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%+v)", res.Code, res.JSON)
	}
	if userAPI.passwordUpdates["alice"] != "a-much-better-one" {
		t.Errorf("expected the new password to be persisted, got %q", userAPI.passwordUpdates["alice"])
	}
	// logout_devices defaults to true and keeps the requesting device.
	if len(userAPI.deviceDeletions) != 1 {
		t.Fatalf("expected one device deletion, got %d", len(userAPI.deviceDeletions))
	}
	if userAPI.deviceDeletions[0].ExceptDeviceID != device.ID {
		t.Errorf("expected the requesting device to be spared, got %q", userAPI.deviceDeletions[0].ExceptDeviceID)
	}
}

func TestPasswordChangeIdentityMismatch(t *testing.T) {
	cfg := testConfig()
	userAPI := newFakeUserAPI()
	userAPI.accounts["alice"] = "alices-password"
	userAPI.accounts["bob"] = "bobs-password"
	uia := testUIA(cfg, userAPI, http.DefaultClient)

	// Bob's valid credentials must not let him set Alice's password.
	body := `{
		"new_password": "a-much-better-one",
		"auth": {"type": "m.login.password", "identifier": {"type": "m.id.user", "user": "bob"}, "password": "bobs-password"}
	}`
	res := Password(postJSON("/account/password", body), userAPI, testDevice("@alice:test", api.AccountTypeUser), uia)
	mustMatrixError(t, res, http.StatusForbidden, "M_FORBIDDEN")
	if len(userAPI.passwordUpdates) != 0 {
		t.Errorf("expected no password update after a rejected request, got %v", userAPI.passwordUpdates)
	}
}

func TestPasswordChangeMissingNewPassword(t *testing.T) {
	cfg := testConfig()
	userAPI := newFakeUserAPI()
	userAPI.accounts["alice"] = "old-password"
	uia := testUIA(cfg, userAPI, http.DefaultClient)

	body := `{"auth": {"type": "m.login.password", "identifier": {"type": "m.id.user", "user": "alice"}, "password": "old-password"}}`
	res := Password(postJSON("/account/password", body), userAPI, testDevice("@alice:test", api.AccountTypeUser), uia)
	mustMatrixError(t, res, http.StatusBadRequest, "M_MISSING_PARAM")
}

func TestPasswordChangeWeakPassword(t *testing.T) {
	cfg := testConfig()
	userAPI := newFakeUserAPI()
	userAPI.accounts["alice"] = "old-password"
	uia := testUIA(cfg, userAPI, http.DefaultClient)

	body := `{
		"new_password": "short",
		"auth": {"type": "m.login.password", "identifier": {"type": "m.id.user", "user": "alice"}, "password": "old-password"}
	}`
	res := Password(postJSON("/account/password", body), userAPI, testDevice("@alice:test", api.AccountTypeUser), uia)
	mustMatrixError(t, res, http.StatusBadRequest, "M_WEAK_PASSWORD")
}

func TestPasswordResetViaEmail(t *testing.T) {
	cfg := testConfig()
	userAPI := newFakeUserAPI()
	userAPI.accounts["alice"] = "forgotten"
	userAPI.threepids = []fakeThreePID{{localpart: "alice", medium: "email", address: "alice@example.com"}}

	client, close := identityServerClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"medium":"email","address":"Alice@Example.com","validated_at":1234}`)
	}))
	defer close()
	uia := testUIA(cfg, userAPI, client)

	// The reset flow has no usable bearer user; the verified email names the
	// account. The verifier's address casing must not matter.
	body := `{
		"new_password": "a-much-better-one",
		"auth": {"type": "m.login.email.identity", "threepid_creds": {"sid": "1", "client_secret": "shh", "id_server": "id.example.com"}}
	}`
	res := Password(postJSON("/account/password", body), userAPI, testDevice("@alice:test", api.AccountTypeUser), uia)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%+v)", res.Code, res.JSON)
	}
	if userAPI.passwordUpdates["alice"] != "a-much-better-one" {
		t.Errorf("expected alice's password to be reset, got %v", userAPI.passwordUpdates)
	}
}

func TestPasswordResetViaEmailWithoutToken(t *testing.T) {
	cfg := testConfig()
	userAPI := newFakeUserAPI()
	userAPI.accounts["alice"] = "forgotten"
	userAPI.threepids = []fakeThreePID{{localpart: "alice", medium: "email", address: "alice@example.com"}}

	client, close := identityServerClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"medium":"email","address":"alice@example.com","validated_at":1234}`)
	}))
	defer close()
	uia := testUIA(cfg, userAPI, client)

	// A locked-out user has no access token at all; the verified email is
	// the only credential.
	body := `{
		"new_password": "a-much-better-one",
		"auth": {"type": "m.login.email.identity", "threepid_creds": {"sid": "1", "client_secret": "shh", "id_server": "id.example.com"}}
	}`
	res := Password(postJSON("/account/password", body), userAPI, nil, uia)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%+v)", res.Code, res.JSON)
	}
	if userAPI.passwordUpdates["alice"] != "a-much-better-one" {
		t.Errorf("expected alice's password to be reset, got %v", userAPI.passwordUpdates)
	}
	// With no requesting device there is nothing to spare from logout.
	if len(userAPI.deviceDeletions) != 1 || userAPI.deviceDeletions[0].ExceptDeviceID != "" {
		t.Errorf("expected every device to be logged out, got %+v", userAPI.deviceDeletions)
	}
}

func TestPasswordChangeByPasswordRequiresToken(t *testing.T) {
	cfg := testConfig()
	userAPI := newFakeUserAPI()
	userAPI.accounts["alice"] = "old-password"
	uia := testUIA(cfg, userAPI, http.DefaultClient)

	body := `{
		"new_password": "a-much-better-one",
		"auth": {"type": "m.login.password", "identifier": {"type": "m.id.user", "user": "alice"}, "password": "old-password"}
	}`
	res := Password(postJSON("/account/password", body), userAPI, nil, uia)
	mustMatrixError(t, res, http.StatusUnauthorized, "M_MISSING_TOKEN")
	if len(userAPI.passwordUpdates) != 0 {
		t.Errorf("expected no password update without a token, got %v", userAPI.passwordUpdates)
	}
}

func TestPasswordResetViaEmailUnknownAddress(t *testing.T) {
	cfg := testConfig()
	userAPI := newFakeUserAPI()

	client, close := identityServerClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"medium":"email","address":"nobody@example.com","validated_at":1234}`)
	}))
	defer close()
	uia := testUIA(cfg, userAPI, client)

	body := `{
		"new_password": "a-much-better-one",
		"auth": {"type": "m.login.email.identity", "threepid_creds": {"sid": "1", "client_secret": "shh", "id_server": "id.example.com"}}
	}`
	res := Password(postJSON("/account/password", body), userAPI, testDevice("@alice:test", api.AccountTypeUser), uia)
	mustMatrixError(t, res, http.StatusNotFound, "M_NOT_FOUND")
}
