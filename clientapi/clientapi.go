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

package clientapi

import (
	"net/http"
	"time"

	"github.com/seckrv/synapse/clientapi/auth"
	"github.com/seckrv/synapse/clientapi/routing"
	"github.com/seckrv/synapse/internal/httputil"
	"github.com/seckrv/synapse/setup/config"
	userapi "github.com/seckrv/synapse/userapi/api"
)

// AddPublicRoutes sets up and registers HTTP handlers for the ClientAPI component.
func AddPublicRoutes(
	routers httputil.Routers,
	cfg *config.Synapse,
	userAPI userapi.ClientUserAPI,
) {
	client := &http.Client{Timeout: 30 * time.Second}

	userInteractiveAuth := auth.NewUserInteractive(&cfg.ClientAPI,
		&auth.LoginTypePassword{GetAccountByPassword: userAPI.QueryAccountByPassword, Config: &cfg.ClientAPI},
		&auth.LoginTypeEmailIdentity{Config: &cfg.ClientAPI, Client: client},
		&auth.LoginTypeMSISDN{Config: &cfg.ClientAPI, Client: client},
	)

	routing.Setup(routers, cfg, userAPI, userInteractiveAuth, client)
}
