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

package auth

import (
	"context"
	"net/http"
	"sync"
	"time"

	cache "github.com/patrickmn/go-cache"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"golang.org/x/exp/slices"

	"github.com/seckrv/synapse/clientapi/auth/authtypes"
	"github.com/seckrv/synapse/clientapi/jsonerror"
	"github.com/seckrv/synapse/internal/util"
	"github.com/seckrv/synapse/setup/config"
	"github.com/seckrv/synapse/userapi/api"
)

const sessionIDLength = 24

// StageType is a single user-interactive authentication stage. Each
// implementation owns the verification of its auth dict and returns an
// opaque payload describing what was proven, which the caller interprets.
type StageType interface {
	Name() authtypes.LoginType
	VerifyAuthDict(ctx context.Context, authBytes []byte, device *api.Device) (interface{}, *util.JSONResponse)
}

// AuthResult is returned once some flow has been satisfied.
type AuthResult struct {
	// SessionID identifies the session the flow completed under.
	SessionID string
	// Completed maps each completed stage to the payload its verifier
	// produced, e.g. the authenticated user ID for the password stage.
	Completed map[authtypes.LoginType]interface{}
	// Params is the request body with the "auth" key removed, holding
	// whatever the guarded endpoint actually wants to do.
	Params []byte
}

// Challenge is the body of a 401 continuation response as defined at
// https://matrix.org/docs/spec/client_server/r0.6.1#user-interactive-authentication-api
type Challenge struct {
	Completed []authtypes.LoginType  `json:"completed"`
	Flows     []authtypes.Flow       `json:"flows"`
	Session   string                 `json:"session"`
	Params    map[string]interface{} `json:"params"`
}

// uiaSession accumulates completed stages across requests. Payloads are kept
// so that re-submitting a completed stage does not re-verify it; stage
// verifiers may consume single-use tokens.
type uiaSession struct {
	completed map[authtypes.LoginType]interface{}
}

// UserInteractive checks request bodies against the user-interactive
// authentication flows the calling endpoint demands.
type UserInteractive struct {
	mu       sync.Mutex
	types    map[authtypes.LoginType]StageType
	sessions *cache.Cache
}

func NewUserInteractive(cfg *config.ClientAPI, stages ...StageType) *UserInteractive {
	types := make(map[authtypes.LoginType]StageType, len(stages))
	for _, stage := range stages {
		types[stage.Name()] = stage
	}
	timeout := time.Duration(cfg.UserInteractiveTimeoutMS) * time.Millisecond
	return &UserInteractive{
		types:    types,
		sessions: cache.New(timeout, timeout),
	}
}

// Verify evaluates the "auth" dict in bodyBytes against the given flows.
// A nil error response means some flow is satisfied and the returned
// AuthResult says how; otherwise the error response is either a 401
// challenge asking for more stages or a real failure.
func (u *UserInteractive) Verify(
	ctx context.Context, flows []authtypes.Flow, bodyBytes []byte, device *api.Device,
) (*AuthResult, *util.JSONResponse) {
	if !gjson.ValidBytes(bodyBytes) {
		return nil, &util.JSONResponse{
			Code: http.StatusBadRequest,
			JSON: jsonerror.NotJSON("The request body could not be parsed as JSON"),
		}
	}
	params, err := sjson.DeleteBytes(bodyBytes, "auth")
	if err != nil {
		return nil, &util.JSONResponse{
			Code: http.StatusBadRequest,
			JSON: jsonerror.BadJSON("The request body could not be parsed: " + err.Error()),
		}
	}

	authDict := gjson.GetBytes(bodyBytes, "auth")
	sessionID := authDict.Get("session").String()
	if sessionID == "" {
		sessionID = util.RandomString(sessionIDLength)
	}

	authType := authtypes.LoginType(authDict.Get("type").String())
	if authType == "" {
		return nil, u.challengeLocked(sessionID, flows)
	}
	stage, ok := u.types[authType]
	if !ok {
		return nil, &util.JSONResponse{
			Code: http.StatusBadRequest,
			JSON: jsonerror.Unrecognized("Unknown auth type: " + string(authType)),
		}
	}

	// Stage verification can involve identity server round trips, so the
	// lock is only held while the session state is read or written.
	if !u.stageCompleted(sessionID, authType) {
		payload, errRes := stage.VerifyAuthDict(ctx, []byte(authDict.Raw), device)
		if errRes != nil {
			return nil, errRes
		}
		u.completeStage(sessionID, authType, payload)
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	session := u.session(sessionID)
	if !flowComplete(flows, session.completed) {
		u.sessions.SetDefault(sessionID, session)
		return nil, u.challenge(sessionID, flows, session)
	}
	// The flow is satisfied: the session is spent and must not be kept
	// alive for replay.
	u.sessions.Delete(sessionID)
	return &AuthResult{
		SessionID: sessionID,
		Completed: session.completed,
		Params:    params,
	}, nil
}

// stageCompleted reports whether the session has already verified the given
// stage, restarting the session's inactivity clock either way.
func (u *UserInteractive) stageCompleted(sessionID string, authType authtypes.LoginType) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	session := u.session(sessionID)
	u.sessions.SetDefault(sessionID, session)
	_, done := session.completed[authType]
	return done
}

// completeStage records a verified stage's payload. A concurrent request
// that verified the same stage first keeps its payload; verifiers may have
// consumed single-use tokens.
func (u *UserInteractive) completeStage(sessionID string, authType authtypes.LoginType, payload interface{}) {
	u.mu.Lock()
	defer u.mu.Unlock()
	session := u.session(sessionID)
	if _, done := session.completed[authType]; !done {
		session.completed[authType] = payload
	}
	u.sessions.SetDefault(sessionID, session)
}

func (u *UserInteractive) challengeLocked(sessionID string, flows []authtypes.Flow) *util.JSONResponse {
	u.mu.Lock()
	defer u.mu.Unlock()
	session := u.session(sessionID)
	u.sessions.SetDefault(sessionID, session)
	return u.challenge(sessionID, flows, session)
}

func (u *UserInteractive) session(sessionID string) *uiaSession {
	if s, ok := u.sessions.Get(sessionID); ok {
		return s.(*uiaSession)
	}
	return &uiaSession{completed: make(map[authtypes.LoginType]interface{})}
}

func (u *UserInteractive) challenge(sessionID string, flows []authtypes.Flow, session *uiaSession) *util.JSONResponse {
	completed := make([]authtypes.LoginType, 0, len(session.completed))
	for stage := range session.completed {
		completed = append(completed, stage)
	}
	slices.Sort(completed)
	return &util.JSONResponse{
		Code: http.StatusUnauthorized,
		JSON: Challenge{
			Completed: completed,
			Flows:     flows,
			Session:   sessionID,
			Params:    map[string]interface{}{},
		},
	}
}

// flowComplete reports whether every stage of at least one flow has been
// completed. Extra completed stages never hurt.
func flowComplete(flows []authtypes.Flow, completed map[authtypes.LoginType]interface{}) bool {
	for _, flow := range flows {
		satisfied := true
		for _, stage := range flow.Stages {
			if _, ok := completed[stage]; !ok {
				satisfied = false
				break
			}
		}
		if satisfied && len(flow.Stages) > 0 {
			return true
		}
	}
	return false
}
