package domain

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// RenderedTile carries one encoded tile image from the pipeline to a sink.
// The payload is created once per rendered tile and never mutated.
type RenderedTile struct {
	Address TileAddress
	Data    []byte

	hash    [16]byte
	hashSet bool
}

// NewRenderedTile wraps an encoded tile image for sink handoff.
func NewRenderedTile(address TileAddress, data []byte) *RenderedTile {
	return &RenderedTile{Address: address, Data: data}
}

// ContentHash returns the 128-bit BLAKE3 digest of the payload.
// It is computed on first use so sinks that do not deduplicate never pay
// for it. Not safe for concurrent use; sinks are single-writer.
func (t *RenderedTile) ContentHash() [16]byte {
	if !t.hashSet {
		sum := blake3.Sum256(t.Data)
		copy(t.hash[:], sum[:16])
		t.hashSet = true
	}
	return t.hash
}

// ContentHashHex returns the content hash as a lowercase hex string.
func (t *RenderedTile) ContentHashHex() string {
	h := t.ContentHash()
	return hex.EncodeToString(h[:])
}

// ContentHashOf digests raw tile bytes without a payload wrapper.
// The compaction pass uses it when streaming existing database rows.
func ContentHashOf(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:16])
}
