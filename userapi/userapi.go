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

package userapi

import (
	"github.com/sirupsen/logrus"

	"github.com/seckrv/synapse/internal/sqlutil"
	"github.com/seckrv/synapse/setup/config"
	"github.com/seckrv/synapse/setup/jetstream"
	"github.com/seckrv/synapse/setup/process"
	"github.com/seckrv/synapse/userapi/internal"
	"github.com/seckrv/synapse/userapi/producers"
	"github.com/seckrv/synapse/userapi/storage"
)

// NewInternalAPI returns a concrete implementation of the internal API.
func NewInternalAPI(
	processContext *process.ProcessContext,
	cfg *config.Synapse,
	cm *sqlutil.Connections,
	natsInstance *jetstream.NATSInstance,
) *internal.UserInternalAPI {
	dbProperties := &cfg.UserAPI.AccountDatabase
	if dbProperties.ConnectionString == "" {
		dbProperties = &cfg.Global.DatabaseOptions
	}
	db, err := storage.NewUserDatabase(
		processContext.Context(),
		cm,
		dbProperties,
		cfg.Global.ServerName,
		cfg.UserAPI.BCryptCost,
	)
	if err != nil {
		logrus.WithError(err).Panicf("failed to connect to accounts db")
	}

	js, _ := natsInstance.Prepare(processContext, &cfg.Global.JetStream)
	producer := producers.NewAccountEvent(
		js, cfg.Global.JetStream.Prefixed(jetstream.OutputAccountEvent),
	)

	return &internal.UserInternalAPI{
		DB:         db,
		Config:     &cfg.UserAPI,
		ServerName: cfg.Global.ServerName,
		Producer:   producer,
	}
}
