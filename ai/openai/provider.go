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


package openai

import (
	"log/slog"

	"github.com/poiesic/docrag/ai"
)

// Provider serves embeddings and chat generation from OpenAI-compatible
// endpoints.
type Provider struct {
	embedder  ai.Embedder
	generator *Generator
	logger    *slog.Logger
}

// NewProvider builds both services from config.
func NewProvider(config *ai.Config) (ai.AIProvider, error) {
	embedder, err := newEmbedder(config)
	if err != nil {
		return nil, err
	}
	return NewProviderWithEmbedder(config, embedder)
}

// NewProviderWithEmbedder pairs the OpenAI-compatible generator with an
// embedder from another backend.
func NewProviderWithEmbedder(config *ai.Config, embedder ai.Embedder) (ai.AIProvider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	generator, err := newGenerator(config)
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("component", "openai-provider")
	logger.Debug("provider ready",
		"generation_host", config.GenerationHost,
		"generation_model", config.GenerationModel,
		"embedding_model", embedder.ModelName())
	return &Provider{embedder: embedder, generator: generator, logger: logger}, nil
}

func (p *Provider) Embedder() ai.Embedder   { return p.embedder }
func (p *Provider) Generator() ai.Generator { return p.generator }

// Close closes the embedder when it holds resources of its own.
func (p *Provider) Close() error {
	p.logger.Debug("closing provider")
	if c, ok := p.embedder.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
