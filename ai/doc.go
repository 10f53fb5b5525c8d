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

// Package ai provides abstractions for the AI collaborators used by conceptrag.
//
// The core pipeline never requires these services: chunking, concept
// extraction, indexing, matching and routing are all local. The interfaces
// here describe the optional collaborators that turn a routed query into an
// answer:
//
//   - Embedder: Generates vector embeddings from text
//   - Generator: Produces an answer from a context passage and a query
//   - VectorSearcher: Finds chunks semantically similar to a query
//   - Provider: Aggregates the embedder and generator for convenient initialization
//
// # Implementation Packages
//
//   - ai/openai: Production implementation using OpenAI-compatible APIs
//   - ai/mock: Test doubles for unit testing without external dependencies
//
// # Constructor Return Type Pattern
//
// Public constructors (openai.NewProvider, openai.NewEmbedder,
// openai.NewGenerator) return INTERFACE types to prevent accidental coupling
// to concrete implementations.
//
//	provider, err := openai.NewProvider(config)  // returns ai.Provider
//
// Test utility constructors (mock.NewMockEmbedder, mock.NewMockGenerator)
// return CONCRETE types so tests can inject behavior and assert call counts.
// mock.NewMockProvider() returns the interface but exposes
// GetMockEmbedder()/GetMockGenerator() for assertions.
//
// # Usage Example
//
//	config := ai.NewConfig(ai.WithHost("http://localhost:11434"))
//	provider, err := openai.NewProvider(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	answer, err := provider.Generator().Generate(ctx, passage, "What are the work hours?")
package ai
