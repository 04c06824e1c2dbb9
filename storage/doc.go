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


// Package storage provides the storage abstraction layer for docrag.
//
// This package defines the interfaces that decouple persistence from the
// ingestion, retrieval and agent logic:
//
//   - VectorIndex: chunk vectors with payloads and similarity search
//   - SessionStore: append-only conversation log per session
//   - RunStore: the most recent ingestion report
//
// # Implementations
//
//   - storage/badger: embedded index, session log and run store
//   - storage/sqlite: session store in a single sqlite file
//   - index/qdrant: remote vector index
//
// Use in tests with in-memory storage:
//
//	stores, err := badger.NewMemoryStores()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer stores.Close()
//
// # Serialization
//
// Records are encoded with msgpack. Field tags on the core types keep the
// encoding stable across releases.
//
// # Thread Safety
//
// All implementations must be thread-safe and support concurrent access
// from multiple goroutines.
package storage
