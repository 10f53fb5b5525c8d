// Package reindex holds the offline maintenance jobs that walk every stored
// document: rebuilding the concept index from chunk concepts and recomputing
// chunk vectors after the embedding model changes.
//
// Both jobs read the store in document batches, report progress to a writer
// and retry collaborator calls with exponential backoff. The reembedder can
// record a checkpoint after each batch and resume from it.
package reindex
