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

package sqlite3

import (
	"context"
	"fmt"

	"github.com/seckrv/synapse/internal/sqlutil"
	"github.com/seckrv/synapse/setup/config"
	"github.com/seckrv/synapse/userapi/storage/shared"
)

// NewUserDatabase creates a new accounts and profiles database.
func NewUserDatabase(
	ctx context.Context,
	conMan *sqlutil.Connections,
	dbProperties *config.DatabaseOptions,
	serverName config.ServerName,
	bcryptCost int,
) (*shared.Database, error) {
	db, writer, err := conMan.Connection(dbProperties)
	if err != nil {
		return nil, err
	}

	accountsTable, err := NewSQLiteAccountsTable(db, serverName)
	if err != nil {
		return nil, fmt.Errorf("NewSQLiteAccountsTable: %w", err)
	}
	devicesTable, err := NewSQLiteDevicesTable(db)
	if err != nil {
		return nil, fmt.Errorf("NewSQLiteDevicesTable: %w", err)
	}
	threepidTable, err := NewSQLiteThreePIDTable(db)
	if err != nil {
		return nil, fmt.Errorf("NewSQLiteThreePIDTable: %w", err)
	}

	return &shared.Database{
		DB:         db,
		Writer:     writer,
		ServerName: serverName,
		Accounts:   accountsTable,
		Devices:    devicesTable,
		ThreePIDs:  threepidTable,
		BcryptCost: bcryptCost,
	}, nil
}

// userIDFromParts returns a complete user ID for the given localpart on this
// server.
func userIDFromParts(localpart string, serverName config.ServerName) string {
	return fmt.Sprintf("@%s:%s", localpart, serverName)
}
