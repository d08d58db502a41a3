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

package setup

import (
	"github.com/seckrv/synapse/clientapi"
	"github.com/seckrv/synapse/internal/httputil"
	"github.com/seckrv/synapse/setup/config"
	userapi "github.com/seckrv/synapse/userapi/api"
)

// Monolith represents an instantiation of all dependencies required to build
// all components of the server.
type Monolith struct {
	Config  *config.Synapse
	UserAPI userapi.UserInternalAPI
}

// AddAllPublicRoutes attaches all public paths to the given router
func (m *Monolith) AddAllPublicRoutes(routers httputil.Routers) {
	clientapi.AddPublicRoutes(routers, m.Config, m.UserAPI)
}
