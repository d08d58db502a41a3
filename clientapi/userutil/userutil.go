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

package userutil

import (
	"errors"
	"fmt"
	"strings"

	"github.com/seckrv/synapse/setup/config"
)

// ParseUsernameParam extracts the localpart and domain from the given
// username, which is either a full user ID or a bare localpart. A bare
// localpart is assumed to be local to this server.
func ParseUsernameParam(usernameParam string, cfg *config.Global) (string, config.ServerName, error) {
	localpart := usernameParam
	domain := cfg.ServerName

	if strings.HasPrefix(usernameParam, "@") {
		lp, d, err := SplitID(usernameParam)
		if err != nil {
			return "", "", errors.New("invalid username")
		}
		localpart = lp
		domain = d
	}
	return localpart, domain, nil
}

// MakeUserID generates user ID from localpart & server name
func MakeUserID(localpart string, server config.ServerName) string {
	return fmt.Sprintf("@%s:%s", localpart, string(server))
}

// SplitID splits a user ID of the form "@localpart:domain" into its parts.
func SplitID(id string) (localpart string, domain config.ServerName, err error) {
	if len(id) == 0 || id[0] != '@' {
		return "", "", fmt.Errorf("invalid user ID %q: missing '@' sigil", id)
	}
	idx := strings.IndexByte(id, ':')
	if idx < 0 {
		return "", "", fmt.Errorf("invalid user ID %q: missing server name", id)
	}
	return id[1:idx], config.ServerName(id[idx+1:]), nil
}
