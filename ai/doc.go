// Copyright 2025 The Lexigraph Authors
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


// Package ai provides abstractions for the AI services used in Lexigraph.
//
// This package defines interfaces for text embedding and entity/relationship
// extraction. It follows the dependency inversion principle, allowing the
// pipeline and extraction logic to depend on abstractions rather than
// concrete vendors.
//
// # Design Principles
//
// The package is designed around four key interfaces:
//
//   - Embedder: generates vector embeddings from text
//   - EntityExtractor: detects named entities in text
//   - RelationshipExtractor: discovers relationships between known entities
//   - Provider: aggregates AI services for convenient initialization
//
// EmbeddingGateway composes several EmbeddingProvider backends into one
// Embedder with ordered fallback, throttling and bounded backoff. The
// pipeline talks to the gateway, never to a vendor client directly.
//
// # Implementation Packages
//
//   - ai/openai: production implementation using OpenAI-compatible APIs
//   - ai/ollama: embedding provider for a local Ollama server
//   - ai/mock: test doubles for unit testing without external dependencies
//
// Public constructors (openai.NewProvider, ollama.NewEmbeddingProvider)
// return interface types to enforce abstraction. Mock constructors return
// concrete types so tests can inject behaviour and assert call counts.
package ai
