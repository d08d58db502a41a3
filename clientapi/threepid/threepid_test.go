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

package threepid

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/seckrv/synapse/setup/config"
)

// plainTransport rewrites outgoing requests onto a local httptest server so
// the identity client's hardcoded https scheme can be exercised without TLS.
type plainTransport struct {
	target *url.URL
}

func (t plainTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.URL.Scheme = t.target.Scheme
	req.URL.Host = t.target.Host
	return http.DefaultTransport.RoundTrip(req)
}

func identityClient(t *testing.T, handler http.Handler) (*http.Client, func()) {
	t.Helper()
	srv := httptest.NewServer(handler)
	target, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("failed to parse test server URL: %s", err)
	}
	return &http.Client{Transport: plainTransport{target: target}}, srv.Close
}

func testClientAPIConfig(trusted ...string) *config.ClientAPI {
	return &config.ClientAPI{TrustedIDServers: trusted}
}

func TestCreateSessionUntrustedServer(t *testing.T) {
	cfg := testClientAPIConfig("id.example.com")
	_, err := CreateSession(context.Background(), EmailAssociationRequest{
		IDServer: "rogue.example.com",
		Email:    "alice@example.com",
	}, cfg, http.DefaultClient)
	var notTrusted ErrNotTrusted
	if !errors.As(err, &notTrusted) {
		t.Fatalf("expected ErrNotTrusted, got %v", err)
	}
	if notTrusted.Server != "rogue.example.com" {
		t.Errorf("unexpected server in error: %q", notTrusted.Server)
	}
}

func TestCreateSession(t *testing.T) {
	client, close := identityClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/_matrix/identity/api/v1/validate/email/requestToken" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		fmt.Fprint(w, `{"sid":"42"}`)
	}))
	defer close()

	sid, err := CreateSession(context.Background(), EmailAssociationRequest{
		IDServer: "id.example.com",
		Email:    "alice@example.com",
	}, testClientAPIConfig("id.example.com"), client)
	if err != nil {
		t.Fatalf("CreateSession returned error: %s", err)
	}
	if sid != "42" {
		t.Errorf("unexpected session ID: %q", sid)
	}
}

func TestCheckAssociation(t *testing.T) {
	tests := []struct {
		name         string
		response     string
		wantVerified bool
		wantMissing  string
	}{
		{
			name:         "validated",
			response:     `{"medium":"email","address":"alice@example.com","validated_at":1234}`,
			wantVerified: true,
		},
		{
			name:     "not yet validated",
			response: `{"errcode":"M_SESSION_NOT_VALIDATED","error":"This validation session has not yet been completed"}`,
		},
		{
			name:        "missing address",
			response:    `{"medium":"email","validated_at":1234}`,
			wantMissing: "address",
		},
		{
			name:        "missing validated_at",
			response:    `{"medium":"email","address":"alice@example.com"}`,
			wantMissing: "validated_at",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			client, close := identityClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/_matrix/identity/api/v1/3pid/getValidated3pid" {
					t.Errorf("unexpected path: %s", r.URL.Path)
				}
				fmt.Fprint(w, tc.response)
			}))
			defer close()

			verified, assoc, err := CheckAssociation(context.Background(), Credentials{
				SID: "42", IDServer: "id.example.com", Secret: "shh",
			}, testClientAPIConfig("id.example.com"), client)

			if tc.wantMissing != "" {
				var malformed ErrMalformedResponse
				if !errors.As(err, &malformed) {
					t.Fatalf("expected ErrMalformedResponse, got %v", err)
				}
				if malformed.Missing != tc.wantMissing {
					t.Errorf("expected missing %q, got %q", tc.wantMissing, malformed.Missing)
				}
				return
			}
			if err != nil {
				t.Fatalf("CheckAssociation returned error: %s", err)
			}
			if verified != tc.wantVerified {
				t.Errorf("expected verified=%v, got %v", tc.wantVerified, verified)
			}
			if verified && assoc.Address != "alice@example.com" {
				t.Errorf("unexpected address: %q", assoc.Address)
			}
		})
	}
}

func TestNormalizeAddress(t *testing.T) {
	got, err := NormalizeAddress(MediumEmail, "Alice@Example.COM")
	if err != nil {
		t.Fatalf("NormalizeAddress returned error: %s", err)
	}
	if got != "alice@example.com" {
		t.Errorf("expected lowercased email, got %q", got)
	}
	if _, err = NormalizeAddress("postal", "221B Baker Street"); err == nil {
		t.Error("expected error for unsupported medium")
	}
}

func TestPhoneNumberToMsisdn(t *testing.T) {
	tests := []struct {
		country string
		number  string
		want    string
		wantErr bool
	}{
		{country: "GB", number: "07700 900123", want: "447700900123"},
		{country: "", number: "+447700900123", want: "447700900123"},
		{country: "", number: "447700900123", want: "447700900123"},
		{country: "GB", number: "not a number", wantErr: true},
	}
	for _, tc := range tests {
		got, err := PhoneNumberToMsisdn(tc.country, tc.number)
		if tc.wantErr {
			if err == nil {
				t.Errorf("PhoneNumberToMsisdn(%q, %q): expected error", tc.country, tc.number)
			}
			continue
		}
		if err != nil {
			t.Errorf("PhoneNumberToMsisdn(%q, %q): %s", tc.country, tc.number, err)
			continue
		}
		if got != tc.want {
			t.Errorf("PhoneNumberToMsisdn(%q, %q) = %q, want %q", tc.country, tc.number, got, tc.want)
		}
	}
}
