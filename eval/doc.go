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

// Package eval measures retrieval quality against a fixed query set.
//
// An Evaluator runs every TestQuery through a Retriever, records the top
// score of each query and, where a ground-truth mapping exists, computes
// precision@3 and precision@5 over the retrieved URLs. The aggregate Report
// passes when enough queries clear the relevance threshold and, if any
// ground truth was evaluated, the average precision@3 is high enough.
//
// The default query set is embedded in the binary; LoadQuerySet reads a
// replacement from a YAML file with the same shape.
package eval
