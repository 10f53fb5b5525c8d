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

// Package search is the vector-store collaborator used when a query has no
// usable concept match.
//
// The Searcher embeds the query, scores every stored chunk vector by dot
// product (vectors are normalized, so this is cosine similarity) and boosts
// chunks whose text contains every content word of the query verbatim.
// Results are ranked by score, ties by chunk ID.
package search
