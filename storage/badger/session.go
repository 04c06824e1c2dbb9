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


package badger

import (
	"context"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/docrag/core"
	"github.com/poiesic/docrag/storage"
)

// SessionLog implements storage.SessionStore for BadgerDB.
// Turns are keyed by session and sequence so a prefix scan returns them
// in append order.
type SessionLog struct {
	backend *Backend
	mu      sync.Mutex // serializes appends so sequence numbers never collide
}

var _ storage.SessionStore = (*SessionLog)(nil)

// NewSessionLog creates a new SessionLog.
func NewSessionLog(backend *Backend) *SessionLog {
	return &SessionLog{backend: backend}
}

// Close is a no-op; the backend is closed by its owner.
func (s *SessionLog) Close() error {
	return nil
}

// AppendTurn validates the turn, assigns the next sequence number of its
// session and stores it. The caller's turn is not modified.
func (s *SessionLog) AppendTurn(ctx context.Context, turn *core.ConversationTurn) (*core.ConversationTurn, error) {
	if turn == nil {
		return nil, core.ValidateTurn(nil)
	}
	stored := *turn
	if stored.Timestamp.IsZero() {
		stored.Timestamp = time.Now().UTC().Truncate(time.Microsecond)
	}
	if err := core.ValidateTurn(&stored); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.backend.WithTx(func(tx *badger.Txn) error {
		last, err := lastSeq(tx, stored.SessionID)
		if err != nil {
			return err
		}
		stored.Seq = last + 1

		if err := tx.Set(makeTurnKey(stored.SessionID, stored.Seq), storage.MarshalTurn(&stored)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}
	return &stored, nil
}

// History returns the turns of a session in append order.
func (s *SessionLog) History(ctx context.Context, sessionID string) ([]*core.ConversationTurn, error) {
	if sessionID == "" {
		return nil, core.ErrEmptySessionID
	}
	turns := []*core.ConversationTurn{}
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeSessionPrefix(sessionID)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			err := iter.Item().Value(func(val []byte) error {
				turn, err := storage.UnmarshalTurn(val)
				if err != nil {
					return err
				}
				turns = append(turns, turn)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return turns, nil
}

// lastSeq returns the highest sequence number of a session, or 0.
func lastSeq(tx *badger.Txn, sessionID string) (uint64, error) {
	prefix := makeSessionPrefix(sessionID)
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Reverse = true
	opts.Prefix = prefix
	iter := tx.NewIterator(opts)
	defer iter.Close()

	// Reverse iteration must seek past the end of the prefix range.
	seek := append(append([]byte(nil), prefix...), 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF)
	iter.Seek(seek)
	if !iter.ValidForPrefix(prefix) {
		return 0, nil
	}
	return seqFromTurnKey(iter.Item().Key()), nil
}
