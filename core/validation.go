// Copyright 2025 Poiesic Systems
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
	"fmt"
	"time"
)

// ValidateTurn validates a ConversationTurn before it is appended to a session.
//
// Validation rules:
//   - SessionID must not be empty
//   - Role must be user, assistant or tool
//   - Content must not be empty for user turns
//   - Timestamp must not be in the future
//
// NOT validated (assigned by the store):
//   - Seq
func ValidateTurn(turn *ConversationTurn) error {
	if turn == nil {
		return fmt.Errorf("%w: turn is nil", ErrInvalidTurn)
	}

	if turn.SessionID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidTurn, ErrEmptySessionID)
	}

	if err := ValidateRole(turn.Role); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTurn, err)
	}

	if turn.Role == RoleUser && turn.Content == "" {
		return fmt.Errorf("%w: %w", ErrInvalidTurn, ErrEmptyContent)
	}

	if !IsValidTimestamp(turn.Timestamp) {
		return fmt.Errorf("%w: timestamp cannot be in the future", ErrInvalidTurn)
	}

	return nil
}

// ValidateEntry validates an IndexEntry before upsert.
func ValidateEntry(entry *IndexEntry) error {
	if entry == nil {
		return fmt.Errorf("%w: entry is nil", ErrInvalidEntry)
	}
	if len(entry.Vector) == 0 {
		return fmt.Errorf("%w: %w", ErrInvalidEntry, ErrEmptyVector)
	}
	if entry.Payload.URL == "" {
		return fmt.Errorf("%w: url is empty", ErrInvalidEntry)
	}
	return nil
}

// ValidateRole validates that a Role has a known value.
func ValidateRole(role Role) error {
	switch role {
	case RoleUser, RoleAssistant, RoleTool:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidRole, role)
}

// IsValidTimestamp checks if a timestamp is valid (not in the future).
// A small allowance covers clock skew between goroutines.
func IsValidTimestamp(ts time.Time) bool {
	return !ts.After(time.Now().Add(time.Second))
}
