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
	"fmt"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// MediumEmail and MediumMSISDN are the only third-party identifier media we
// accept.
const (
	MediumEmail  = "email"
	MediumMSISDN = "msisdn"
)

// NormalizeAddress canonicalizes an address for the given medium so that
// equality checks and uniqueness constraints see one spelling per identifier.
// Email addresses are lowercased, msisdns are reduced to E.164 digits with
// the leading plus dropped.
func NormalizeAddress(medium, address string) (string, error) {
	switch medium {
	case MediumEmail:
		return strings.ToLower(address), nil
	case MediumMSISDN:
		return PhoneNumberToMsisdn("", address)
	default:
		return "", fmt.Errorf("unsupported medium: %q", medium)
	}
}

// PhoneNumberToMsisdn parses a phone number against an ISO 3166-1 country
// code and returns the canonical msisdn form, which is the E.164
// representation without the leading plus. Numbers already carrying an
// international prefix parse with an empty country.
func PhoneNumberToMsisdn(country, number string) (string, error) {
	if !strings.HasPrefix(number, "+") && country == "" {
		number = "+" + number
	}
	parsed, err := phonenumbers.Parse(number, strings.ToUpper(country))
	if err != nil {
		return "", err
	}
	// Canonicalization only: a parseable number is accepted even when the
	// metadata considers it unassigned, so test ranges keep working.
	return strings.TrimPrefix(phonenumbers.Format(parsed, phonenumbers.E164), "+"), nil
}
