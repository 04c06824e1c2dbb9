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

import "errors"

// Stores bundles the index, session log and run store that share one backend.
type Stores struct {
	Backend  *Backend
	Index    *Index
	Sessions *SessionLog
	Runs     *RunReports
}

// OpenStores opens a backend at path and builds every store on it.
// Caller must Close the returned Stores.
func OpenStores(path string, inMemory bool) (*Stores, error) {
	backend, err := OpenBackend(path, inMemory)
	if err != nil {
		return nil, err
	}

	index, err := NewIndex(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	return &Stores{
		Backend:  backend,
		Index:    index,
		Sessions: NewSessionLog(backend),
		Runs:     NewRunReports(backend),
	}, nil
}

// NewMemoryStores creates in-memory stores for testing.
// Caller must Close the returned Stores.
func NewMemoryStores() (*Stores, error) {
	return OpenStores("", true)
}

// Close releases the stores and then the backend.
func (s *Stores) Close() error {
	return errors.Join(s.Index.Close(), s.Sessions.Close(), s.Backend.Close())
}
