package badger

import (
	"encoding/binary"

	"github.com/poiesic/docrag/core"
)

// Key prefixes for different data types
const (
	indexEntryPrefix = "idxent:"
	indexMetaDimKey  = "idxmeta:dim"
	indexSeq         = "idxseq"
	sessionPrefix    = "sesturn:"
	runReportKey     = "runrep:last"
)

// makeEntryKey generates a key for an index entry by ID.
// Format: prefix + BigEndian(id)
func makeEntryKey(id core.ID) []byte {
	buf := make([]byte, len(indexEntryPrefix)+8)
	offset := copy(buf, indexEntryPrefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

// makeSessionPrefix generates the key prefix shared by all turns of a session.
// Format: prefix + sessionID + 0x00
// The terminator keeps "a" from matching turns of session "ab".
func makeSessionPrefix(sessionID string) []byte {
	buf := make([]byte, 0, len(sessionPrefix)+len(sessionID)+1)
	buf = append(buf, sessionPrefix...)
	buf = append(buf, sessionID...)
	return append(buf, 0)
}

// makeTurnKey generates a composite key for a conversation turn.
// Format: prefix + sessionID + 0x00 + BigEndian(seq)
// BigEndian keeps lexicographic order equal to append order.
func makeTurnKey(sessionID string, seq uint64) []byte {
	prefix := makeSessionPrefix(sessionID)
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], seq)
	return buf
}

// seqFromTurnKey extracts the sequence number from a turn key.
func seqFromTurnKey(key []byte) uint64 {
	if len(key) < 8 {
		return 0
	}
	return binary.BigEndian.Uint64(key[len(key)-8:])
}
