package domain

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// BatchCursor is the persisted resume point of a run. Records with index
// <= LastCommittedIndex are skipped on resume; Checksum binds the cursor to
// the exact sequence of record ids already processed so a resume against a
// reordered or different source file is refused.
type BatchCursor struct {
	LastCommittedIndex int    `json:"last_committed_index"`
	TotalRecords       int    `json:"total_records"`
	Checksum           string `json:"checksum_of_processed_ids"`
}

// IDChecksum chains record ids into a running blake2b digest. Order matters:
// the same ids in a different order produce a different sum.
type IDChecksum struct {
	state []byte
}

// Add folds the next processed record id into the checksum.
func (c *IDChecksum) Add(recordID string) {
	h, _ := blake2b.New256(nil)
	h.Write(c.state)
	h.Write([]byte(recordID))
	c.state = h.Sum(nil)
}

// Sum returns the hex digest of everything added so far. An empty checksum
// (no ids yet) is the empty string.
func (c *IDChecksum) Sum() string {
	if len(c.state) == 0 {
		return ""
	}
	return hex.EncodeToString(c.state)
}
