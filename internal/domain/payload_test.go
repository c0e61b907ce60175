package domain

import "testing"

func TestContentHashStable(t *testing.T) {
	tile := NewRenderedTile(TileAddress{Z: 1, X: 0, Y: 0}, []byte("payload"))

	first := tile.ContentHash()
	second := tile.ContentHash()
	if first != second {
		t.Error("ContentHash must be stable across calls")
	}
}

func TestContentHashDistinguishesPayloads(t *testing.T) {
	a := NewRenderedTile(TileAddress{}, []byte("payload a"))
	b := NewRenderedTile(TileAddress{}, []byte("payload b"))
	if a.ContentHash() == b.ContentHash() {
		t.Error("different payloads must not share a hash")
	}
}

func TestContentHashIgnoresAddress(t *testing.T) {
	a := NewRenderedTile(TileAddress{Z: 1, X: 0, Y: 0}, []byte("same"))
	b := NewRenderedTile(TileAddress{Z: 7, X: 42, Y: 13}, []byte("same"))
	if a.ContentHash() != b.ContentHash() {
		t.Error("identical payloads must hash equal regardless of address")
	}
}

func TestContentHashHexMatchesContentHashOf(t *testing.T) {
	data := []byte("some tile bytes")
	tile := NewRenderedTile(TileAddress{}, data)

	if got, want := tile.ContentHashHex(), ContentHashOf(data); got != want {
		t.Errorf("ContentHashHex() = %q, ContentHashOf = %q", got, want)
	}
	if got := len(tile.ContentHashHex()); got != 32 {
		t.Errorf("hex digest length = %d, want 32", got)
	}
}
