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

package core

import "errors"

// Domain validation errors
var (
	// ErrEmptyInput indicates empty or whitespace-only document or query text.
	ErrEmptyInput = errors.New("input cannot be empty")

	// ErrInvalidDocument indicates a Document failed validation.
	ErrInvalidDocument = errors.New("invalid document")

	// ErrInvalidChunk indicates a Chunk failed validation.
	ErrInvalidChunk = errors.New("invalid chunk")

	// ErrInvalidConcept indicates a Concept failed validation.
	ErrInvalidConcept = errors.New("invalid concept")

	// ErrEmptyID indicates a missing identifier.
	ErrEmptyID = errors.New("identifier cannot be empty")

	// ErrMissingOriginalText indicates derived content without the original text.
	ErrMissingOriginalText = errors.New("derived content requires original text")

	// ErrNegativePosition indicates a chunk position below zero.
	ErrNegativePosition = errors.New("chunk position cannot be negative")

	// ErrEmptyConceptName indicates the concept Name field is empty.
	ErrEmptyConceptName = errors.New("concept name cannot be empty")

	// ErrEmptyConceptCategory indicates the concept Category field is empty.
	ErrEmptyConceptCategory = errors.New("concept category cannot be empty")

	// ErrOutOfRange indicates a weight or confidence outside [0,1].
	ErrOutOfRange = errors.New("value must be within [0,1]")
)
