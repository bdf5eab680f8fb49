// Copyright 2025 Murmur Systems
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


package core

import (
	"errors"
	"fmt"
)

// Domain validation errors
var (
	// ErrInvalidUtterance indicates an Utterance failed validation.
	ErrInvalidUtterance = errors.New("invalid utterance")

	// ErrEmptySessionID indicates the SessionID field is empty.
	ErrEmptySessionID = errors.New("session id cannot be empty")

	// ErrEmptySpeakerID indicates the SpeakerID field is empty.
	ErrEmptySpeakerID = errors.New("speaker id cannot be empty")

	// ErrInvalidStartTS indicates the start timestamp is missing or negative.
	ErrInvalidStartTS = errors.New("start timestamp must be positive")

	// ErrInvalidEndTS indicates the end timestamp precedes the start timestamp.
	ErrInvalidEndTS = errors.New("end timestamp cannot precede start timestamp")

	// ErrInvalidPayload indicates a payload mapping is missing a required field.
	ErrInvalidPayload = errors.New("invalid utterance payload")
)

func payloadFieldError(field string) error {
	return fmt.Errorf("%w: missing or malformed field %q", ErrInvalidPayload, field)
}
