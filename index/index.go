package index

import (
	"maps"
	"reflect"
	"slices"
	"sync"

	"github.com/poiesic/conceptrag/core"
)

// ChunkConcepts are the concepts extracted from one chunk.
type ChunkConcepts struct {
	ChunkID  string
	Concepts []core.Concept
}

// DocumentConcepts are the per-chunk concepts of one document.
type DocumentConcepts struct {
	DocID  string
	Chunks []ChunkConcepts
}

// ChunkView is the index seen from one chunk: every concept referencing it
// with the weight recorded for that chunk.
type ChunkView struct {
	ChunkID  string
	DocID    string
	Seq      uint64
	Concepts []core.Concept
}

// Index aggregates concepts into concept -> {documents, cumulative weight,
// related concepts}. Reads run concurrently; each Update is applied under the
// write lock so readers never observe a partially folded document.
type Index struct {
	mu       sync.RWMutex
	entries  map[string]*core.IndexEntry
	chunkSeq map[string]uint64
	nextSeq  uint64
}

// New returns an empty index.
func New() *Index {
	return &Index{
		entries:  make(map[string]*core.IndexEntry),
		chunkSeq: make(map[string]uint64),
		nextSeq:  1,
	}
}

// Build folds every document into a fresh index.
func Build(docs []DocumentConcepts) *Index {
	idx := New()
	for _, doc := range docs {
		idx.Update(doc.DocID, doc.Chunks)
	}
	return idx
}

// FromEntries restores an index from persisted entries. Chunk sequence
// numbers are recovered from the document references.
func FromEntries(entries map[string]*core.IndexEntry) *Index {
	idx := New()
	for name, entry := range entries {
		if entry == nil {
			continue
		}
		e := entry.Clone()
		e.Name = name
		idx.entries[name] = e
		for _, ref := range e.Documents {
			idx.chunkSeq[ref.ChunkID] = ref.Seq
			if ref.Seq >= idx.nextSeq {
				idx.nextSeq = ref.Seq + 1
			}
		}
	}
	return idx
}

// Update folds one document's chunk concepts into the index and returns
// copies of every entry it changed.
func (i *Index) Update(docID string, chunks []ChunkConcepts) []*core.IndexEntry {
	i.mu.Lock()
	defer i.mu.Unlock()

	changed, seqs, next := i.plan(docID, chunks)
	for name, entry := range changed {
		i.entries[name] = entry
	}
	for chunkID, seq := range seqs {
		i.chunkSeq[chunkID] = seq
	}
	i.nextSeq = next
	return sortedClones(changed)
}

// Stage returns the entries Update would produce for the document without
// changing the index, so they can be persisted before the fold is applied.
func (i *Index) Stage(docID string, chunks []ChunkConcepts) []*core.IndexEntry {
	i.mu.RLock()
	defer i.mu.RUnlock()
	changed, _, _ := i.plan(docID, chunks)
	return sortedClones(changed)
}

// plan folds a document into copies of the affected entries. It returns the
// new entries, the sequence numbers of newly seen chunks and the next free
// sequence number. Callers hold the lock.
func (i *Index) plan(docID string, chunks []ChunkConcepts) (map[string]*core.IndexEntry, map[string]uint64, uint64) {
	changed := make(map[string]*core.IndexEntry)
	seqs := make(map[string]uint64)
	next := i.nextSeq
	for _, chunk := range chunks {
		if len(chunk.Concepts) == 0 {
			continue
		}
		seq, ok := i.chunkSeq[chunk.ChunkID]
		if !ok {
			seq, ok = seqs[chunk.ChunkID]
		}
		if !ok {
			seq = next
			next++
			seqs[chunk.ChunkID] = seq
		}

		for _, c := range chunk.Concepts {
			entry, ok := changed[c.Name]
			if !ok {
				if current, found := i.entries[c.Name]; found {
					entry = current.Clone()
				} else {
					entry = &core.IndexEntry{
						Name:            c.Name,
						Category:        c.Category,
						Documents:       []core.DocumentRef{},
						RelatedConcepts: []string{},
					}
				}
				changed[c.Name] = entry
			}
			entry.TotalWeight += c.Weight
			entry.Documents = append(entry.Documents, core.DocumentRef{
				DocID:   docID,
				ChunkID: chunk.ChunkID,
				Weight:  c.Weight,
				Seq:     seq,
			})
			for _, other := range chunk.Concepts {
				if other.Name != c.Name {
					entry.RelatedConcepts = insertSorted(entry.RelatedConcepts, other.Name)
				}
			}
		}
	}
	return changed, seqs, next
}

func sortedClones(entries map[string]*core.IndexEntry) []*core.IndexEntry {
	out := make([]*core.IndexEntry, 0, len(entries))
	for _, name := range slices.Sorted(maps.Keys(entries)) {
		out = append(out, entries[name].Clone())
	}
	return out
}

// Entry returns a copy of the named entry.
func (i *Index) Entry(name string) (*core.IndexEntry, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	e, ok := i.entries[name]
	if !ok {
		return nil, false
	}
	return e.Clone(), true
}

// Entries returns a deep copy of all entries keyed by concept name.
func (i *Index) Entries() map[string]*core.IndexEntry {
	i.mu.RLock()
	defer i.mu.RUnlock()
	out := make(map[string]*core.IndexEntry, len(i.entries))
	for name, e := range i.entries {
		out[name] = e.Clone()
	}
	return out
}

// Names returns concept names in order of first insertion.
func (i *Index) Names() []string {
	i.mu.RLock()
	defer i.mu.RUnlock()

	first := make(map[string]uint64, len(i.entries))
	names := make([]string, 0, len(i.entries))
	for name, e := range i.entries {
		names = append(names, name)
		for _, ref := range e.Documents {
			if s, ok := first[name]; !ok || ref.Seq < s {
				first[name] = ref.Seq
			}
		}
	}
	slices.SortFunc(names, func(a, b string) int {
		if first[a] != first[b] {
			if first[a] < first[b] {
				return -1
			}
			return 1
		}
		if a < b {
			return -1
		}
		if a > b {
			return 1
		}
		return 0
	})
	return names
}

// Len returns the number of distinct concepts.
func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.entries)
}

// Chunks returns the number of distinct chunks referenced by the index.
func (i *Index) Chunks() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.chunkSeq)
}

// Targets returns one view per indexed chunk in insertion order. Concepts in
// a view are sorted by weight descending, then name.
func (i *Index) Targets() []ChunkView {
	i.mu.RLock()
	defer i.mu.RUnlock()

	views := make(map[string]*ChunkView, len(i.chunkSeq))
	for name, e := range i.entries {
		for _, ref := range e.Documents {
			v, ok := views[ref.ChunkID]
			if !ok {
				v = &ChunkView{ChunkID: ref.ChunkID, DocID: ref.DocID, Seq: ref.Seq}
				views[ref.ChunkID] = v
			}
			v.Concepts = append(v.Concepts, core.Concept{
				Name:     name,
				Weight:   ref.Weight,
				Category: e.Category,
			})
		}
	}

	out := make([]ChunkView, 0, len(views))
	for _, v := range views {
		slices.SortFunc(v.Concepts, func(a, b core.Concept) int {
			switch {
			case a.Weight > b.Weight:
				return -1
			case a.Weight < b.Weight:
				return 1
			case a.Name < b.Name:
				return -1
			case a.Name > b.Name:
				return 1
			}
			return 0
		})
		out = append(out, *v)
	}
	slices.SortFunc(out, func(a, b ChunkView) int {
		if a.Seq < b.Seq {
			return -1
		}
		if a.Seq > b.Seq {
			return 1
		}
		return 0
	})
	return out
}

// Stats returns chunk counts and per-concept chunk frequencies.
func (i *Index) Stats() *core.CorpusStats {
	i.mu.RLock()
	defer i.mu.RUnlock()

	stats := &core.CorpusStats{
		Chunks:           len(i.chunkSeq),
		ConceptFrequency: make(map[string]int, len(i.entries)),
	}
	for name, e := range i.entries {
		seen := make(map[string]bool)
		for _, ref := range e.Documents {
			seen[ref.ChunkID] = true
		}
		stats.ConceptFrequency[name] = len(seen)
	}
	return stats
}

// TopConcepts returns up to n concept names by total weight descending.
func (i *Index) TopConcepts(n int) []string {
	entries := i.Entries()
	names := slices.Sorted(maps.Keys(entries))
	slices.SortStableFunc(names, func(a, b string) int {
		wa, wb := entries[a].TotalWeight, entries[b].TotalWeight
		switch {
		case wa > wb:
			return -1
		case wa < wb:
			return 1
		}
		return 0
	})
	if n >= 0 && len(names) > n {
		names = names[:n]
	}
	return names
}

// Equal reports value equality of the two indexes' entries.
func (i *Index) Equal(other *Index) bool {
	if other == nil {
		return false
	}
	return reflect.DeepEqual(i.Entries(), other.Entries())
}

// Replace swaps the contents of i for a copy of other's.
func (i *Index) Replace(other *Index) {
	fresh := FromEntries(other.Entries())
	i.mu.Lock()
	defer i.mu.Unlock()
	i.entries = fresh.entries
	i.chunkSeq = fresh.chunkSeq
	i.nextSeq = fresh.nextSeq
}

// Reset removes every entry.
func (i *Index) Reset() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.entries = make(map[string]*core.IndexEntry)
	i.chunkSeq = make(map[string]uint64)
	i.nextSeq = 1
}

func insertSorted(set []string, name string) []string {
	pos, found := slices.BinarySearch(set, name)
	if found {
		return set
	}
	return slices.Insert(set, pos, name)
}
