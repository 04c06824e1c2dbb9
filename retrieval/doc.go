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


// Package retrieval answers natural-language queries with ranked chunks.
//
// A Service embeds the query in query mode, asks the vector index for the
// nearest chunks and returns them ranked from 1, with scores clamped into
// [0,1] and a low-confidence flag for scores under the threshold.
// Document-mode embedding is never used here: the Service only depends
// on the EmbedQuery half of the embedding client.
package retrieval
