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

package storage_test

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/seckrv/synapse/internal/sqlutil"
	"github.com/seckrv/synapse/setup/config"
	"github.com/seckrv/synapse/userapi/api"
	"github.com/seckrv/synapse/userapi/storage"
)

const serverName = config.ServerName("test")

func mustCreateDatabase(t *testing.T) storage.UserDatabase {
	t.Helper()
	db, err := storage.NewUserDatabase(
		context.Background(),
		sqlutil.NewConnectionManager(),
		&config.DatabaseOptions{ConnectionString: "file::memory:"},
		serverName,
		bcrypt.MinCost,
	)
	if err != nil {
		t.Fatalf("failed to open the database: %s", err)
	}
	return db
}

func TestAccountLifecycle(t *testing.T) {
	ctx := context.Background()
	db := mustCreateDatabase(t)

	account, err := db.CreateAccount(ctx, "alice", serverName, "a-password", "", api.AccountTypeUser)
	if err != nil {
		t.Fatalf("CreateAccount failed: %s", err)
	}
	if account.UserID != "@alice:test" {
		t.Errorf("unexpected user ID: %q", account.UserID)
	}

	if _, err = db.CreateAccount(ctx, "alice", serverName, "other", "", api.AccountTypeUser); err != sqlutil.ErrUserExists {
		t.Errorf("expected ErrUserExists for a duplicate localpart, got %v", err)
	}

	if _, err = db.GetAccountByPassword(ctx, "alice", serverName, "a-password"); err != nil {
		t.Errorf("expected the password to verify, got %v", err)
	}
	if _, err = db.GetAccountByPassword(ctx, "alice", serverName, "wrong"); err == nil {
		t.Error("expected a wrong password to be refused")
	}

	if err = db.SetPassword(ctx, "alice", serverName, "a-new-password"); err != nil {
		t.Fatalf("SetPassword failed: %s", err)
	}
	if _, err = db.GetAccountByPassword(ctx, "alice", serverName, "a-password"); err == nil {
		t.Error("expected the old password to stop verifying")
	}
	if _, err = db.GetAccountByPassword(ctx, "alice", serverName, "a-new-password"); err != nil {
		t.Errorf("expected the new password to verify, got %v", err)
	}
}

func TestDeactivateAccount(t *testing.T) {
	ctx := context.Background()
	db := mustCreateDatabase(t)

	if _, err := db.CreateAccount(ctx, "alice", serverName, "a-password", "", api.AccountTypeUser); err != nil {
		t.Fatalf("CreateAccount failed: %s", err)
	}
	token := "some-access-token"
	if _, err := db.CreateDevice(ctx, "alice", serverName, nil, token, nil, "", ""); err != nil {
		t.Fatalf("CreateDevice failed: %s", err)
	}
	if err := db.SaveThreePIDAssociation(ctx, "alice@example.com", "alice", serverName, "email", 1234); err != nil {
		t.Fatalf("SaveThreePIDAssociation failed: %s", err)
	}

	already, err := db.DeactivateAccount(ctx, "alice", serverName)
	if err != nil {
		t.Fatalf("DeactivateAccount failed: %s", err)
	}
	if already {
		t.Error("first deactivation must not report already deactivated")
	}

	// Deactivation revokes password auth, devices and threepids.
	if _, err = db.GetAccountByPassword(ctx, "alice", serverName, "a-password"); err == nil {
		t.Error("a deactivated account must refuse password auth")
	}
	if _, err = db.GetDeviceByAccessToken(ctx, token); err == nil {
		t.Error("a deactivated account's devices must be removed")
	}
	threepids, err := db.GetThreePIDsForLocalpart(ctx, "alice", serverName)
	if err != nil {
		t.Fatalf("GetThreePIDsForLocalpart failed: %s", err)
	}
	if len(threepids) != 0 {
		t.Errorf("a deactivated account's threepids must be removed, got %+v", threepids)
	}

	// And the address frees up for someone else.
	if _, err := db.CreateAccount(ctx, "bob", serverName, "bobs-password", "", api.AccountTypeUser); err != nil {
		t.Fatalf("CreateAccount failed: %s", err)
	}
	if err := db.SaveThreePIDAssociation(ctx, "alice@example.com", "bob", serverName, "email", 5678); err != nil {
		t.Errorf("expected the released address to be claimable, got %v", err)
	}

	already, err = db.DeactivateAccount(ctx, "alice", serverName)
	if err != nil {
		t.Fatalf("repeat DeactivateAccount failed: %s", err)
	}
	if !already {
		t.Error("repeat deactivation must report already deactivated")
	}
}

func TestThreePIDUniqueOwner(t *testing.T) {
	ctx := context.Background()
	db := mustCreateDatabase(t)

	if err := db.SaveThreePIDAssociation(ctx, "shared@example.com", "alice", serverName, "email", 1); err != nil {
		t.Fatalf("SaveThreePIDAssociation failed: %s", err)
	}
	err := db.SaveThreePIDAssociation(ctx, "shared@example.com", "bob", serverName, "email", 2)
	if !errors.Is(err, storage.Err3PIDInUse) {
		t.Fatalf("expected Err3PIDInUse, got %v", err)
	}

	// Exactly one owner and it is still the first claimant.
	localpart, _, err := db.GetLocalpartForThreePID(ctx, "shared@example.com", "email")
	if err != nil {
		t.Fatalf("GetLocalpartForThreePID failed: %s", err)
	}
	if localpart != "alice" {
		t.Errorf("expected alice to keep the address, got %q", localpart)
	}

	// Same address under another medium is a distinct identifier.
	if err := db.SaveThreePIDAssociation(ctx, "shared@example.com", "bob", serverName, "msisdn", 3); err != nil {
		t.Errorf("expected a different medium to be insertable, got %v", err)
	}
}

func TestThreePIDOwnerScopedDelete(t *testing.T) {
	ctx := context.Background()
	db := mustCreateDatabase(t)

	if err := db.SaveThreePIDAssociation(ctx, "alice@example.com", "alice", serverName, "email", 1); err != nil {
		t.Fatalf("SaveThreePIDAssociation failed: %s", err)
	}

	err := db.RemoveThreePIDAssociation(ctx, "alice@example.com", "email", "bob", serverName)
	if !errors.Is(err, storage.ErrThreePIDNotOwned) {
		t.Fatalf("expected ErrThreePIDNotOwned, got %v", err)
	}
	if localpart, _, _ := db.GetLocalpartForThreePID(ctx, "alice@example.com", "email"); localpart != "alice" {
		t.Error("a refused delete must leave the association in place")
	}

	err = db.RemoveThreePIDAssociation(ctx, "unknown@example.com", "email", "alice", serverName)
	if !errors.Is(err, storage.ErrThreePIDNotFound) {
		t.Fatalf("expected ErrThreePIDNotFound, got %v", err)
	}

	if err = db.RemoveThreePIDAssociation(ctx, "alice@example.com", "email", "alice", serverName); err != nil {
		t.Fatalf("owner delete failed: %s", err)
	}
	if localpart, _, _ := db.GetLocalpartForThreePID(ctx, "alice@example.com", "email"); localpart != "" {
		t.Error("expected the association to be gone")
	}
}

func TestThreePIDListInsertionOrder(t *testing.T) {
	ctx := context.Background()
	db := mustCreateDatabase(t)

	addresses := []string{"c@example.com", "a@example.com", "b@example.com"}
	for i, address := range addresses {
		if err := db.SaveThreePIDAssociation(ctx, address, "alice", serverName, "email", int64(i)); err != nil {
			t.Fatalf("SaveThreePIDAssociation failed: %s", err)
		}
	}

	threepids, err := db.GetThreePIDsForLocalpart(ctx, "alice", serverName)
	if err != nil {
		t.Fatalf("GetThreePIDsForLocalpart failed: %s", err)
	}
	if len(threepids) != 3 {
		t.Fatalf("expected 3 associations, got %d", len(threepids))
	}
	for i, address := range addresses {
		if threepids[i].Address != address {
			t.Errorf("position %d: expected %q, got %q", i, address, threepids[i].Address)
		}
	}
}
