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

package storage

import (
	"encoding/json"
	"fmt"

	"github.com/poiesic/conceptrag/core"
)

// DocumentStoreState is the persisted form of the document store.
type DocumentStoreState struct {
	Documents map[string]*core.Document `json:"documents"`
	Chunks    map[string]*core.Chunk    `json:"chunks"`
}

// NewDocumentStoreState returns an empty state with non-nil maps.
func NewDocumentStoreState() *DocumentStoreState {
	return &DocumentStoreState{
		Documents: make(map[string]*core.Document),
		Chunks:    make(map[string]*core.Chunk),
	}
}

func MarshalDocument(doc *core.Document) ([]byte, error) {
	return marshal(doc)
}

// UnmarshalDocument decodes a document stored under id.
func UnmarshalDocument(id string, data []byte) (*core.Document, error) {
	var doc core.Document
	if err := unmarshal(data, &doc); err != nil {
		return nil, err
	}
	doc.ID = id
	return &doc, nil
}

func MarshalChunk(chunk *core.Chunk) ([]byte, error) {
	return marshal(chunk)
}

func UnmarshalChunk(data []byte) (*core.Chunk, error) {
	var chunk core.Chunk
	if err := unmarshal(data, &chunk); err != nil {
		return nil, err
	}
	return &chunk, nil
}

func MarshalIndexEntry(entry *core.IndexEntry) ([]byte, error) {
	return marshal(entry)
}

// UnmarshalIndexEntry decodes the entry of the named concept.
func UnmarshalIndexEntry(name string, data []byte) (*core.IndexEntry, error) {
	var entry core.IndexEntry
	if err := unmarshal(data, &entry); err != nil {
		return nil, err
	}
	entry.Name = name
	return entry.Clone(), nil
}

func MarshalCheckpoint(checkpoint *core.Checkpoint) ([]byte, error) {
	return marshal(checkpoint)
}

func UnmarshalCheckpoint(data []byte) (*core.Checkpoint, error) {
	var checkpoint core.Checkpoint
	if err := unmarshal(data, &checkpoint); err != nil {
		return nil, err
	}
	return &checkpoint, nil
}

func marshal(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return data, nil
}

func unmarshal(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return nil
}
