// Package ingestion turns raw documents into stored, indexed chunks.
//
// The Pipeline type manages the ingestion workflow for one document:
//   - Splitting the text into overlapping chunks
//   - Deriving keywords, a summary and concepts per chunk on a worker pool
//   - Optionally embedding each chunk for vector search
//   - Writing the document and chunks, then folding the concepts into the index
//
// The write step runs under a single writer lock shared with every other
// pipeline of the same database, so concurrent ingestions never interleave
// their load-modify-save of the index.
package ingestion
