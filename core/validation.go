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

import "fmt"

// ValidateUtterance validates an Utterance according to domain rules.
//
// Validation rules:
//   - SessionID must not be empty
//   - SpeakerID must not be empty
//   - StartTS must be positive
//   - EndTS, when set, must not precede StartTS
//
// NOT validated:
//   - Text (empty segments are legal, e.g. silence markers)
//   - SpeakerName and Source (optional with defaults)
//   - Vector (populated later by the store layer)
func ValidateUtterance(u *Utterance) error {
	if u == nil {
		return fmt.Errorf("%w: utterance is nil", ErrInvalidUtterance)
	}

	if u.SessionID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidUtterance, ErrEmptySessionID)
	}

	if u.SpeakerID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidUtterance, ErrEmptySpeakerID)
	}

	if u.StartTS <= 0 {
		return fmt.Errorf("%w: %w", ErrInvalidUtterance, ErrInvalidStartTS)
	}

	if u.EndTS != 0 && u.EndTS < u.StartTS {
		return fmt.Errorf("%w: %w", ErrInvalidUtterance, ErrInvalidEndTS)
	}

	return nil
}
