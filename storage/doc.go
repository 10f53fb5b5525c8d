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

// Package storage defines the persistence interfaces for documents, chunks,
// the concept index and maintenance checkpoints.
//
// Two backends implement them:
//
//   - storage/badger keeps everything in one BadgerDB. Chunks are keyed by ID
//     and indexed by (document, position) so a document's chunks iterate in
//     order. Repositories built on one Backend share it; the Backend is closed
//     by whoever opened it.
//   - storage/jsonfile keeps document_store.json and concept_index.json in a
//     directory, rewriting the affected file after every mutation.
//
// Open a persistent badger store:
//
//	backend, err := badger.OpenBackend("/path/to/db", false)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//	documents := badger.NewDocumentRepository(backend)
//	indexRepo := badger.NewIndexRepository(backend)
//
// Tests use badger.NewMemoryRepositories.
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support
// concurrent access from multiple goroutines. Writers that must observe a
// consistent load-modify-save cycle serialize themselves; the repositories
// only guarantee that each call is atomic.
package storage
