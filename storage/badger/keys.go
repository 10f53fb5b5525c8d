package badger

import (
	"encoding/binary"
	"fmt"
)

const (
	documentPrefix      = "docrec"
	chunkPrefix         = "chkrec"
	chunkPositionPrefix = "chkpos"
	indexEntryPrefix    = "conidx"
	checkpointPrefix    = "chkpt"
)

func makeDocumentKey(id string) []byte {
	return []byte(fmt.Sprintf("%s:%s", documentPrefix, id))
}

func makeChunkKey(id string) []byte {
	return []byte(fmt.Sprintf("%s:%s", chunkPrefix, id))
}

// makeChunkPositionKey orders a document's chunks by position. The document ID
// is NUL-terminated so that IDs sharing a prefix never interleave.
func makeChunkPositionKey(docID string, position int) []byte {
	prefix := makePartialChunkPositionKey(docID)
	buf := make([]byte, len(prefix)+4)
	offset := copy(buf, prefix)
	// Write in BigEndian order so lexicographic sort works correctly
	binary.BigEndian.PutUint32(buf[offset:], uint32(position))
	return buf
}

func makePartialChunkPositionKey(docID string) []byte {
	return []byte(fmt.Sprintf("%s:%s\x00", chunkPositionPrefix, docID))
}

func makeIndexEntryKey(name string) []byte {
	return []byte(fmt.Sprintf("%s:%s", indexEntryPrefix, name))
}

func makeCheckpointKey(processor string) []byte {
	return []byte(fmt.Sprintf("%s:%s", checkpointPrefix, processor))
}

func prefixOf(name string) []byte {
	return []byte(name + ":")
}
