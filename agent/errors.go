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

package agent

import "errors"

var (
	// ErrRouterRequired is returned when no query router is provided.
	ErrRouterRequired = errors.New("query router required")

	// ErrDocumentsRequired is returned when no chunk store is provided.
	ErrDocumentsRequired = errors.New("document repository required")

	// ErrInvalidConfig indicates an option value outside its valid range.
	ErrInvalidConfig = errors.New("invalid agent configuration")
)
