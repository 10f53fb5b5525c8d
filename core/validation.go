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

import (
	"fmt"
	"strings"
)

// IsBlank reports whether text is empty or whitespace only.
func IsBlank(text string) bool {
	return strings.TrimSpace(text) == ""
}

// ValidateText rejects empty or whitespace-only text with ErrEmptyInput.
func ValidateText(text string) error {
	if IsBlank(text) {
		return ErrEmptyInput
	}
	return nil
}

// ValidateDocument validates a Document according to domain rules.
//
// Validation rules:
//   - ID must not be empty
//   - Text must not be blank
func ValidateDocument(doc *Document) error {
	if doc == nil {
		return fmt.Errorf("%w: document is nil", ErrInvalidDocument)
	}
	if doc.ID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, ErrEmptyID)
	}
	if IsBlank(doc.Text) {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, ErrEmptyInput)
	}
	return nil
}

// ValidateChunk validates a Chunk according to domain rules.
//
// Validation rules:
//   - ID and DocID must not be empty
//   - Position must not be negative
//   - OriginalText must be present (derived content is never stored alone)
//   - Concepts must be valid
//
// NOT validated (populated by processors):
//   - Vector (can be empty until embedded)
func ValidateChunk(chunk *Chunk) error {
	if chunk == nil {
		return fmt.Errorf("%w: chunk is nil", ErrInvalidChunk)
	}
	if chunk.ID == "" || chunk.DocID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrEmptyID)
	}
	if chunk.Position < 0 {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrNegativePosition)
	}
	if chunk.OriginalText == "" {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrMissingOriginalText)
	}
	for i := range chunk.Concepts {
		if err := ValidateConcept(&chunk.Concepts[i]); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidChunk, err)
		}
	}
	return nil
}

// ValidateConcept validates a Concept according to domain rules.
func ValidateConcept(concept *Concept) error {
	if concept == nil {
		return fmt.Errorf("%w: concept is nil", ErrInvalidConcept)
	}
	if concept.Name == "" {
		return fmt.Errorf("%w: %w", ErrInvalidConcept, ErrEmptyConceptName)
	}
	if concept.Category == "" {
		return fmt.Errorf("%w: %w", ErrInvalidConcept, ErrEmptyConceptCategory)
	}
	if !inUnitRange(concept.Weight) {
		return fmt.Errorf("%w: weight %.3f: %w", ErrInvalidConcept, concept.Weight, ErrOutOfRange)
	}
	if !inUnitRange(concept.Confidence) {
		return fmt.Errorf("%w: confidence %.3f: %w", ErrInvalidConcept, concept.Confidence, ErrOutOfRange)
	}
	return nil
}

func inUnitRange(v float64) bool {
	return v >= 0 && v <= 1
}
