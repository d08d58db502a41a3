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
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/seckrv/synapse/clientapi/auth"
	"github.com/seckrv/synapse/clientapi/auth/authtypes"
	"github.com/seckrv/synapse/clientapi/jsonerror"
	"github.com/seckrv/synapse/internal/util"
	"github.com/seckrv/synapse/setup/config"
	"github.com/seckrv/synapse/userapi/api"
	userdb "github.com/seckrv/synapse/userapi/storage"
)

const testServerName = config.ServerName("test")

type fakeThreePID struct {
	localpart string
	medium    string
	address   string
}

// fakeUserAPI is an in-memory api.ClientUserAPI for handler tests.
type fakeUserAPI struct {
	// localpart -> password
	accounts map[string]string
	// insertion-ordered associations
	threepids []fakeThreePID

	deactivated     map[string]bool
	passwordUpdates map[string]string
	deviceDeletions []*api.PerformDeviceDeletionRequest
}

func newFakeUserAPI() *fakeUserAPI {
	return &fakeUserAPI{
		accounts:        map[string]string{},
		deactivated:     map[string]bool{},
		passwordUpdates: map[string]string{},
	}
}

func (u *fakeUserAPI) QueryAccessToken(ctx context.Context, req *api.QueryAccessTokenRequest, res *api.QueryAccessTokenResponse) error {
	return nil
}

func (u *fakeUserAPI) QueryAccountByPassword(ctx context.Context, req *api.QueryAccountByPasswordRequest, res *api.QueryAccountByPasswordResponse) error {
	if pw, ok := u.accounts[req.Localpart]; ok && pw == req.PlaintextPassword {
		res.Exists = true
		res.Account = &api.Account{
			UserID:     "@" + req.Localpart + ":" + string(req.ServerName),
			Localpart:  req.Localpart,
			ServerName: req.ServerName,
		}
	}
	return nil
}

func (u *fakeUserAPI) QueryLocalpartForThreePID(ctx context.Context, req *api.QueryLocalpartForThreePIDRequest, res *api.QueryLocalpartForThreePIDResponse) error {
	for _, tp := range u.threepids {
		if tp.medium == req.Medium && tp.address == req.ThreePID {
			res.Localpart = tp.localpart
			res.ServerName = testServerName
		}
	}
	return nil
}

func (u *fakeUserAPI) QueryThreePIDsForLocalpart(ctx context.Context, req *api.QueryThreePIDsForLocalpartRequest, res *api.QueryThreePIDsForLocalpartResponse) error {
	for _, tp := range u.threepids {
		if tp.localpart == req.Localpart {
			res.ThreePIDs = append(res.ThreePIDs, authtypes.ThreePID{
				Address: tp.address,
				Medium:  tp.medium,
			})
		}
	}
	return nil
}

func (u *fakeUserAPI) PerformPasswordUpdate(ctx context.Context, req *api.PerformPasswordUpdateRequest, res *api.PerformPasswordUpdateResponse) error {
	u.passwordUpdates[req.Localpart] = req.Password
	res.PasswordUpdated = true
	return nil
}

func (u *fakeUserAPI) PerformAccountDeactivation(ctx context.Context, req *api.PerformAccountDeactivationRequest, res *api.PerformAccountDeactivationResponse) error {
	if u.deactivated[req.Localpart] {
		res.AlreadyDeactivated = true
	}
	u.deactivated[req.Localpart] = true
	res.AccountDeactivated = true
	return nil
}

func (u *fakeUserAPI) PerformSaveThreePIDAssociation(ctx context.Context, req *api.PerformSaveThreePIDAssociationRequest, res *struct{}) error {
	for _, tp := range u.threepids {
		if tp.medium == req.Medium && tp.address == req.ThreePID {
			return userdb.Err3PIDInUse
		}
	}
	u.threepids = append(u.threepids, fakeThreePID{
		localpart: req.Localpart,
		medium:    req.Medium,
		address:   req.ThreePID,
	})
	return nil
}

func (u *fakeUserAPI) PerformForgetThreePID(ctx context.Context, req *api.PerformForgetThreePIDRequest, res *struct{}) error {
	for i, tp := range u.threepids {
		if tp.medium != req.Medium || tp.address != req.ThreePID {
			continue
		}
		if tp.localpart != req.Localpart {
			return userdb.ErrThreePIDNotOwned
		}
		u.threepids = append(u.threepids[:i], u.threepids[i+1:]...)
		return nil
	}
	return userdb.ErrThreePIDNotFound
}

func (u *fakeUserAPI) PerformDeviceDeletion(ctx context.Context, req *api.PerformDeviceDeletionRequest, res *api.PerformDeviceDeletionResponse) error {
	u.deviceDeletions = append(u.deviceDeletions, req)
	return nil
}

func testConfig() *config.Synapse {
	cfg := &config.Synapse{}
	cfg.Global.ServerName = testServerName
	cfg.ClientAPI.Global = &cfg.Global
	cfg.ClientAPI.TrustedIDServers = []string{"id.example.com"}
	cfg.ClientAPI.UserInteractiveTimeoutMS = 5 * 60 * 1000
	return cfg
}

func testDevice(userID string, accountType api.AccountType) *api.Device {
	return &api.Device{
		ID:          "FOOBAR",
		UserID:      userID,
		AccountType: accountType,
	}
}

// testUIA builds a user-interactive engine with the password stage backed by
// the fake user API and the threepid stages backed by the given client.
func testUIA(cfg *config.Synapse, userAPI *fakeUserAPI, client *http.Client) *auth.UserInteractive {
	return auth.NewUserInteractive(&cfg.ClientAPI,
		&auth.LoginTypePassword{GetAccountByPassword: userAPI.QueryAccountByPassword, Config: &cfg.ClientAPI},
		&auth.LoginTypeEmailIdentity{Config: &cfg.ClientAPI, Client: client},
		&auth.LoginTypeMSISDN{Config: &cfg.ClientAPI, Client: client},
	)
}

// identityServerClient rewrites requests onto a local httptest server so the
// identity client's https URLs resolve without TLS.
func identityServerClient(t *testing.T, handler http.Handler) (*http.Client, func()) {
	t.Helper()
	srv := httptest.NewServer(handler)
	target, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("failed to parse test server URL: %s", err)
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	return &http.Client{Transport: rewriteTransport{target: target, next: transport}}, srv.Close
}

type rewriteTransport struct {
	target *url.URL
	next   http.RoundTripper
}

func (t rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.URL.Scheme = t.target.Scheme
	req.URL.Host = t.target.Host
	return t.next.RoundTrip(req)
}

func mustMatrixError(t *testing.T, res util.JSONResponse, wantCode int, wantErrCode string) {
	t.Helper()
	if res.Code != wantCode {
		t.Fatalf("expected HTTP %d, got %d (%+v)", wantCode, res.Code, res.JSON)
	}
	merr, ok := res.JSON.(jsonerror.MatrixError)
	if !ok {
		t.Fatalf("expected a MatrixError body, got %T", res.JSON)
	}
	if merr.ErrCode != wantErrCode {
		t.Fatalf("expected %s, got %s (%s)", wantErrCode, merr.ErrCode, merr.Err)
	}
}
