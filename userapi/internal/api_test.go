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

package internal

import (
	"context"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/seckrv/synapse/internal/sqlutil"
	"github.com/seckrv/synapse/setup/config"
	"github.com/seckrv/synapse/userapi/api"
	"github.com/seckrv/synapse/userapi/storage"
)

const testServerName = config.ServerName("test")

func mustMakeUserAPI(t *testing.T) (*UserInternalAPI, storage.UserDatabase) {
	t.Helper()
	db, err := storage.NewUserDatabase(
		context.Background(),
		sqlutil.NewConnectionManager(),
		&config.DatabaseOptions{ConnectionString: "file::memory:"},
		testServerName,
		bcrypt.MinCost,
	)
	if err != nil {
		t.Fatalf("failed to open the database: %s", err)
	}
	return &UserInternalAPI{DB: db, ServerName: testServerName}, db
}

func TestQueryAccessTokenAppServiceMasquerade(t *testing.T) {
	ctx := context.Background()
	userAPI, db := mustMakeUserAPI(t)

	if _, err := db.CreateAccount(ctx, "bridge", testServerName, "", "telegram", api.AccountTypeAppService); err != nil {
		t.Fatalf("CreateAccount failed: %s", err)
	}
	asToken := "as-token"
	if _, err := db.CreateDevice(ctx, "bridge", testServerName, nil, asToken, nil, "", ""); err != nil {
		t.Fatalf("CreateDevice failed: %s", err)
	}
	if _, err := db.CreateAccount(ctx, "bridged", testServerName, "", "telegram", api.AccountTypeAppService); err != nil {
		t.Fatalf("CreateAccount failed: %s", err)
	}
	if _, err := db.CreateAccount(ctx, "human", testServerName, "a-password", "", api.AccountTypeUser); err != nil {
		t.Fatalf("CreateAccount failed: %s", err)
	}

	res := api.QueryAccessTokenResponse{}
	err := userAPI.QueryAccessToken(ctx, &api.QueryAccessTokenRequest{
		AccessToken:      asToken,
		AppServiceUserID: "@bridged:test",
	}, &res)
	if err != nil {
		t.Fatalf("QueryAccessToken failed: %s", err)
	}
	if res.Err != "" {
		t.Fatalf("expected the masquerade to be allowed, got %q", res.Err)
	}
	if res.Device == nil || res.Device.UserID != "@bridged:test" {
		t.Fatalf("expected a device for the masqueraded user, got %+v", res.Device)
	}
	if res.Device.AccountType != api.AccountTypeAppService {
		t.Errorf("the masqueraded device must keep the appservice account type, got %d", res.Device.AccountType)
	}

	// An account the appservice does not administer is off limits.
	res = api.QueryAccessTokenResponse{}
	err = userAPI.QueryAccessToken(ctx, &api.QueryAccessTokenRequest{
		AccessToken:      asToken,
		AppServiceUserID: "@human:test",
	}, &res)
	if err != nil {
		t.Fatalf("QueryAccessToken failed: %s", err)
	}
	if !strings.HasPrefix(strings.ToLower(res.Err), "forbidden:") || res.Device != nil {
		t.Errorf("expected a forbidden masquerade, got err=%q device=%+v", res.Err, res.Device)
	}

	// So is anything remote.
	res = api.QueryAccessTokenResponse{}
	err = userAPI.QueryAccessToken(ctx, &api.QueryAccessTokenRequest{
		AccessToken:      asToken,
		AppServiceUserID: "@bridged:elsewhere",
	}, &res)
	if err != nil {
		t.Fatalf("QueryAccessToken failed: %s", err)
	}
	if !strings.HasPrefix(strings.ToLower(res.Err), "forbidden:") {
		t.Errorf("expected a forbidden masquerade for a remote user, got %q", res.Err)
	}
}

func TestQueryAccessTokenIgnoresMasqueradeForUsers(t *testing.T) {
	ctx := context.Background()
	userAPI, db := mustMakeUserAPI(t)

	if _, err := db.CreateAccount(ctx, "alice", testServerName, "a-password", "", api.AccountTypeUser); err != nil {
		t.Fatalf("CreateAccount failed: %s", err)
	}
	if _, err := db.CreateAccount(ctx, "bob", testServerName, "b-password", "", api.AccountTypeUser); err != nil {
		t.Fatalf("CreateAccount failed: %s", err)
	}
	token := "alices-token"
	if _, err := db.CreateDevice(ctx, "alice", testServerName, nil, token, nil, "", ""); err != nil {
		t.Fatalf("CreateDevice failed: %s", err)
	}

	res := api.QueryAccessTokenResponse{}
	err := userAPI.QueryAccessToken(ctx, &api.QueryAccessTokenRequest{
		AccessToken:      token,
		AppServiceUserID: "@bob:test",
	}, &res)
	if err != nil {
		t.Fatalf("QueryAccessToken failed: %s", err)
	}
	if res.Device == nil || res.Device.UserID != "@alice:test" {
		t.Errorf("a user token must never masquerade, got %+v", res.Device)
	}
}
