package backend

import (
	"fmt"
	"testing"
)

// TestPathKeeper_Chunking verifies that accumulated paths are grouped into
// chunks that never exceed the limit.
func TestPathKeeper_Chunking(t *testing.T) {
	keeper := NewPathKeeper(3)

	if !keeper.Empty() {
		t.Error("Fresh keeper must be empty")
	}

	for i := 0; i < 8; i++ {
		keeper.AddPath(fmt.Sprintf("obj-%d", i))
	}

	if keeper.Len() != 8 {
		t.Errorf("Expected 8 paths, got %d", keeper.Len())
	}

	chunks := keeper.Chunks()
	if len(chunks) != 3 {
		t.Fatalf("Expected 3 chunks, got %d", len(chunks))
	}

	sizes := []int{3, 3, 2}
	for i, chunk := range chunks {
		if len(chunk) != sizes[i] {
			t.Errorf("Chunk %d: expected %d paths, got %d", i, sizes[i], len(chunk))
		}
	}

	// Insertion order survives chunking.
	if chunks[0][0] != "obj-0" || chunks[2][1] != "obj-7" {
		t.Errorf("Paths out of order: %v", chunks)
	}
}

// TestPathKeeper_MinimumLimit verifies the lower bound on the chunk limit.
func TestPathKeeper_MinimumLimit(t *testing.T) {
	keeper := NewPathKeeper(0)

	keeper.AddPath("a")
	keeper.AddPath("b")

	if len(keeper.Chunks()) != 2 {
		t.Errorf("Expected one path per chunk, got %v", keeper.Chunks())
	}
}
