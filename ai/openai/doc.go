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


// Package openai talks to OpenAI-compatible servers (OpenAI, OpenRouter,
// Ollama, vLLM) through langchaingo.
//
// The embedder maps ai.ModeDocument and ai.ModeQuery onto the configured
// text prefixes, since these servers have no notion of an input type. The
// generator sends the search_documentation tool as a native function
// definition and returns tool calls unexecuted; the agent runs them.
//
//	cfg := ai.NewConfig(
//	    ai.WithHost("http://localhost:11434/v1"),
//	    ai.WithEmbeddingModel("embeddinggemma"),
//	    ai.WithPrefixes("title: none | text: ", "task: search result | query: "),
//	)
//	provider, err := openai.NewProvider(cfg)
//
// NewProviderWithEmbedder keeps the generator here while embeddings come from
// another backend such as ai/genai.
package openai
