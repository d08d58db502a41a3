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
	"net/http"
	"testing"

	"github.com/seckrv/synapse/userapi/api"
)

func TestDeactivateRequiresInteractiveAuth(t *testing.T) {
	cfg := testConfig()
	userAPI := newFakeUserAPI()
	userAPI.accounts["alice"] = "alices-password"
	uia := testUIA(cfg, userAPI, http.DefaultClient)

	res := Deactivate(postJSON("/account/deactivate", `{}`), uia, userAPI, testDevice("@alice:test", api.AccountTypeUser))
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected a 401 challenge, got %d (%+v)", res.Code, res.JSON)
	}
	if userAPI.deactivated["alice"] {
		t.Error("account must not be deactivated before authentication completes")
	}

	body := `{"auth": {"type": "m.login.password", "identifier": {"type": "m.id.user", "user": "alice"}, "password": "alices-password"}}`
	res = Deactivate(postJSON("/account/deactivate", body), uia, userAPI, testDevice("@alice:test", api.AccountTypeUser))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%+v)", res.Code, res.JSON)
	}
	if !userAPI.deactivated["alice"] {
		t.Error("expected the account to be deactivated")
	}
}

func TestDeactivateIdentityMismatch(t *testing.T) {
	cfg := testConfig()
	userAPI := newFakeUserAPI()
	userAPI.accounts["bob"] = "bobs-password"
	uia := testUIA(cfg, userAPI, http.DefaultClient)

	body := `{"auth": {"type": "m.login.password", "identifier": {"type": "m.id.user", "user": "bob"}, "password": "bobs-password"}}`
	res := Deactivate(postJSON("/account/deactivate", body), uia, userAPI, testDevice("@alice:test", api.AccountTypeUser))
	mustMatrixError(t, res, http.StatusForbidden, "M_FORBIDDEN")
	if userAPI.deactivated["alice"] || userAPI.deactivated["bob"] {
		t.Error("no account may be deactivated on an identity mismatch")
	}
}

func TestDeactivateAppServiceBypass(t *testing.T) {
	cfg := testConfig()
	userAPI := newFakeUserAPI()
	uia := testUIA(cfg, userAPI, http.DefaultClient)

	res := Deactivate(postJSON("/account/deactivate", `{}`), uia, userAPI, testDevice("@asuser:test", api.AccountTypeAppService))
	if res.Code != http.StatusOK {
		t.Fatalf("expected the appservice to bypass interactive auth, got %d (%+v)", res.Code, res.JSON)
	}
	if !userAPI.deactivated["asuser"] {
		t.Error("expected the appservice user to be deactivated")
	}
}

func TestDeactivateIdempotent(t *testing.T) {
	cfg := testConfig()
	userAPI := newFakeUserAPI()
	uia := testUIA(cfg, userAPI, http.DefaultClient)
	device := testDevice("@asuser:test", api.AccountTypeAppService)

	for i := 0; i < 2; i++ {
		res := Deactivate(postJSON("/account/deactivate", `{}`), uia, userAPI, device)
		if res.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d (%+v)", i+1, res.Code, res.JSON)
		}
	}
}
