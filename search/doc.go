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


// Package search answers queries over the processed document corpus.
//
// The Searcher type combines several retrieval signals:
//   - Semantic search using chunk vector embeddings
//   - Keyword matching over chunk content
//   - A verbatim boost with stop-word filtering
//
// It also supports document-to-document similarity using the stored
// document-level embedding. All queries are scoped to a single owner.
package search
