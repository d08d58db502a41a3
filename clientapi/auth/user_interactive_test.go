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
	"fmt"
	"net/http"
	"testing"

	"github.com/seckrv/synapse/clientapi/auth/authtypes"
	"github.com/seckrv/synapse/clientapi/jsonerror"
	"github.com/seckrv/synapse/internal/util"
	"github.com/seckrv/synapse/setup/config"
	"github.com/seckrv/synapse/userapi/api"
)

// countingStage accepts every auth dict and counts how often it actually
// verified, to prove completed stages are not re-verified.
type countingStage struct {
	name   authtypes.LoginType
	calls  int
	reject bool
}

func (s *countingStage) Name() authtypes.LoginType { return s.name }

func (s *countingStage) VerifyAuthDict(ctx context.Context, authBytes []byte, device *api.Device) (interface{}, *util.JSONResponse) {
	s.calls++
	if s.reject {
		return nil, &util.JSONResponse{
			Code: http.StatusForbidden,
			JSON: jsonerror.Forbidden("no"),
		}
	}
	return fmt.Sprintf("payload-%s-%d", s.name, s.calls), nil
}

func testUIAConfig() *config.ClientAPI {
	return &config.ClientAPI{UserInteractiveTimeoutMS: 5 * 60 * 1000}
}

func TestUserInteractiveChallenge(t *testing.T) {
	uia := NewUserInteractive(testUIAConfig(), &countingStage{name: "test.stage.a"})
	flows := []authtypes.Flow{{Stages: []authtypes.LoginType{"test.stage.a"}}}

	_, errRes := uia.Verify(context.Background(), flows, []byte(`{"some":"param"}`), nil)
	if errRes == nil {
		t.Fatal("expected a challenge for a body without an auth dict")
	}
	if errRes.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", errRes.Code)
	}
	challenge, ok := errRes.JSON.(Challenge)
	if !ok {
		t.Fatalf("expected a Challenge body, got %T", errRes.JSON)
	}
	if challenge.Session == "" {
		t.Error("challenge is missing a session ID")
	}
	if len(challenge.Completed) != 0 {
		t.Errorf("expected no completed stages, got %v", challenge.Completed)
	}
	if len(challenge.Flows) != 1 {
		t.Errorf("expected the requested flows to be echoed, got %v", challenge.Flows)
	}
}

func TestUserInteractiveRejectsInvalidJSON(t *testing.T) {
	uia := NewUserInteractive(testUIAConfig(), &countingStage{name: "test.stage.a"})
	flows := []authtypes.Flow{{Stages: []authtypes.LoginType{"test.stage.a"}}}

	_, errRes := uia.Verify(context.Background(), flows, []byte(`not json at all`), nil)
	if errRes == nil || errRes.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for an unparseable body, got %+v", errRes)
	}
	if merr, ok := errRes.JSON.(jsonerror.MatrixError); !ok || merr.ErrCode != "M_NOT_JSON" {
		t.Errorf("expected M_NOT_JSON, got %+v", errRes.JSON)
	}
}

// gatedStage blocks inside verification until released, so tests can hold
// one evaluation open while issuing another.
type gatedStage struct {
	name    authtypes.LoginType
	started chan struct{}
	release chan struct{}
}

func (s *gatedStage) Name() authtypes.LoginType { return s.name }

func (s *gatedStage) VerifyAuthDict(ctx context.Context, authBytes []byte, device *api.Device) (interface{}, *util.JSONResponse) {
	close(s.started)
	<-s.release
	return "gated", nil
}

func TestUserInteractiveConcurrentSessions(t *testing.T) {
	gated := &gatedStage{
		name:    "test.stage.slow",
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	fast := &countingStage{name: "test.stage.fast"}
	uia := NewUserInteractive(testUIAConfig(), gated, fast)
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		defer close(done)
		flows := []authtypes.Flow{{Stages: []authtypes.LoginType{"test.stage.slow"}}}
		if _, errRes := uia.Verify(ctx, flows, []byte(`{"auth":{"type":"test.stage.slow"}}`), nil); errRes != nil {
			t.Errorf("slow verification failed: %+v", errRes)
		}
	}()
	<-gated.started

	// A stuck verifier in one session must not stall other sessions.
	flows := []authtypes.Flow{{Stages: []authtypes.LoginType{"test.stage.fast"}}}
	if _, errRes := uia.Verify(ctx, flows, []byte(`{"auth":{"type":"test.stage.fast"}}`), nil); errRes != nil {
		t.Fatalf("fast verification failed: %+v", errRes)
	}

	close(gated.release)
	<-done
}

func TestUserInteractiveUnknownType(t *testing.T) {
	uia := NewUserInteractive(testUIAConfig(), &countingStage{name: "test.stage.a"})
	flows := []authtypes.Flow{{Stages: []authtypes.LoginType{"test.stage.a"}}}

	_, errRes := uia.Verify(context.Background(), flows, []byte(`{"auth":{"type":"test.stage.nope"}}`), nil)
	if errRes == nil || errRes.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for an unknown auth type, got %+v", errRes)
	}
	if merr, ok := errRes.JSON.(jsonerror.MatrixError); !ok || merr.ErrCode != "M_UNRECOGNIZED" {
		t.Errorf("expected M_UNRECOGNIZED, got %+v", errRes.JSON)
	}
}

func TestUserInteractiveFlowAccumulation(t *testing.T) {
	stageA := &countingStage{name: "test.stage.a"}
	stageB := &countingStage{name: "test.stage.b"}
	uia := NewUserInteractive(testUIAConfig(), stageA, stageB)
	// [[A,B],[C]]: completing A alone must not satisfy, A+B must.
	flows := []authtypes.Flow{
		{Stages: []authtypes.LoginType{"test.stage.a", "test.stage.b"}},
		{Stages: []authtypes.LoginType{"test.stage.c"}},
	}
	ctx := context.Background()

	_, errRes := uia.Verify(ctx, flows, []byte(`{"auth":{"type":"test.stage.a"}}`), nil)
	if errRes == nil || errRes.Code != http.StatusUnauthorized {
		t.Fatalf("expected a 401 continuation after one of two stages, got %+v", errRes)
	}
	challenge := errRes.JSON.(Challenge)
	if len(challenge.Completed) != 1 || challenge.Completed[0] != "test.stage.a" {
		t.Fatalf("expected completed=[test.stage.a], got %v", challenge.Completed)
	}

	body := fmt.Sprintf(`{"do":"it","auth":{"type":"test.stage.b","session":%q}}`, challenge.Session)
	result, errRes := uia.Verify(ctx, flows, []byte(body), nil)
	if errRes != nil {
		t.Fatalf("expected the flow to complete, got %+v", errRes)
	}
	if result.SessionID != challenge.Session {
		t.Errorf("session ID changed across the flow: %q != %q", result.SessionID, challenge.Session)
	}
	if len(result.Completed) != 2 {
		t.Errorf("expected two completed stages, got %v", result.Completed)
	}
	if string(result.Params) != `{"do":"it"}` {
		t.Errorf("expected the auth dict to be stripped from params, got %s", result.Params)
	}
	if stageA.calls != 1 || stageB.calls != 1 {
		t.Errorf("expected each stage verified once, got a=%d b=%d", stageA.calls, stageB.calls)
	}
}

func TestUserInteractiveNoReverification(t *testing.T) {
	stageA := &countingStage{name: "test.stage.a"}
	stageB := &countingStage{name: "test.stage.b"}
	uia := NewUserInteractive(testUIAConfig(), stageA, stageB)
	flows := []authtypes.Flow{{Stages: []authtypes.LoginType{"test.stage.a", "test.stage.b"}}}
	ctx := context.Background()

	_, errRes := uia.Verify(ctx, flows, []byte(`{"auth":{"type":"test.stage.a"}}`), nil)
	if errRes == nil {
		t.Fatal("expected a continuation")
	}
	session := errRes.JSON.(Challenge).Session

	// Re-submitting the completed stage must not call the verifier again.
	body := fmt.Sprintf(`{"auth":{"type":"test.stage.a","session":%q}}`, session)
	if _, errRes = uia.Verify(ctx, flows, []byte(body), nil); errRes == nil {
		t.Fatal("expected a continuation, flow is still incomplete")
	}
	if stageA.calls != 1 {
		t.Errorf("expected stage a verified exactly once, got %d", stageA.calls)
	}

	body = fmt.Sprintf(`{"auth":{"type":"test.stage.b","session":%q}}`, session)
	result, errRes := uia.Verify(ctx, flows, []byte(body), nil)
	if errRes != nil {
		t.Fatalf("expected completion, got %+v", errRes)
	}
	if result.Completed["test.stage.a"] != "payload-test.stage.a-1" {
		t.Errorf("expected the first verification's payload to be kept, got %v", result.Completed["test.stage.a"])
	}
}

func TestUserInteractiveStageFailure(t *testing.T) {
	stage := &countingStage{name: "test.stage.a", reject: true}
	uia := NewUserInteractive(testUIAConfig(), stage)
	flows := []authtypes.Flow{{Stages: []authtypes.LoginType{"test.stage.a"}}}

	_, errRes := uia.Verify(context.Background(), flows, []byte(`{"auth":{"type":"test.stage.a"}}`), nil)
	if errRes == nil || errRes.Code != http.StatusForbidden {
		t.Fatalf("expected the stage's own error, got %+v", errRes)
	}

	// The failed stage must not count as completed.
	stage.reject = false
	_, errRes = uia.Verify(context.Background(), flows, []byte(`{"auth":{"type":"test.stage.a"}}`), nil)
	if errRes != nil {
		t.Fatalf("expected success after the stage stopped rejecting, got %+v", errRes)
	}
	if stage.calls != 2 {
		t.Errorf("expected the stage to be verified again after failing, got %d calls", stage.calls)
	}
}
